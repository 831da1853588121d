package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"sheetsplit/internal/codec"
	apperrors "sheetsplit/internal/errors"
	"sheetsplit/internal/table"
)

// Default sheet names for the two written artifacts.
const (
	DefaultProcessedSheet = "Processed Data"
	DefaultCountsSheet    = "Element Counts"
)

// Options tunes a Controller.
type Options struct {
	Delimiter      string
	CountFrom      int
	ProcessedSheet string
	CountsSheet    string
	Logger         *slog.Logger
}

// DefaultOptions returns the standard split and count settings.
func DefaultOptions() Options {
	return Options{
		Delimiter:      table.DefaultDelimiter,
		CountFrom:      table.DefaultCountFrom,
		ProcessedSheet: DefaultProcessedSheet,
		CountsSheet:    DefaultCountsSheet,
	}
}

// Controller drives one table through load, process, save and save-counts.
// It is not safe for concurrent use.
type Controller struct {
	codec  codec.Codec
	opts   Options
	logger *slog.Logger

	raw       table.Table
	processed table.Table
	counts    *table.CountMap
	stage     Stage
}

// New creates an idle controller. Zero-valued sheet names fall back to the
// defaults; the delimiter is used as given.
func New(c codec.Codec, opts Options) *Controller {
	if opts.ProcessedSheet == "" {
		opts.ProcessedSheet = DefaultProcessedSheet
	}
	if opts.CountsSheet == "" {
		opts.CountsSheet = DefaultCountsSheet
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		codec:  c,
		opts:   opts,
		logger: logger.With(slog.String("component", "pipeline")),
		stage:  StageIdle,
	}
}

// Load decodes path into the raw table. On failure the previous raw table and
// stage are kept.
func (c *Controller) Load(ctx context.Context, path string) Result {
	t, err := c.codec.Decode(path)
	if err != nil {
		return c.fail(ctx, RequestLoad, path, MsgLoadFailed, err)
	}

	c.raw = t
	c.stage = StageLoaded
	c.logger.InfoContext(ctx, "table loaded",
		slog.String("path", path),
		slog.Int("rows", len(t)))

	return c.result(RequestLoad, StatusSuccess, MsgLoaded, path, withRows(t))
}

// Process splits column 0 of the raw table.
func (c *Controller) Process(ctx context.Context) Result {
	if c.raw.IsEmpty() {
		return c.warn(ctx, RequestProcess, "", MsgLoadFirst)
	}

	c.processed = table.Split(c.raw, c.opts.Delimiter)
	c.stage = StageProcessed
	c.logger.InfoContext(ctx, "table processed",
		slog.Int("rows", len(c.processed)),
		slog.Int("cells", c.processed.CellCount()))

	return c.result(RequestProcess, StatusSuccess, MsgProcessed, "", withRows(c.processed))
}

// Save writes the processed table to path, reads it back and counts the
// re-read values. The stage reaches Saved as soon as the write succeeds.
func (c *Controller) Save(ctx context.Context, path string) Result {
	if !c.stage.AtLeast(StageProcessed) || c.processed.IsEmpty() {
		return c.warn(ctx, RequestSave, path, MsgNoDataToSave)
	}

	if err := c.codec.Encode(path, c.opts.ProcessedSheet, c.processed); err != nil {
		return c.fail(ctx, RequestSave, path, MsgSaveFailed, err)
	}
	c.stage = StageSaved
	c.logger.InfoContext(ctx, "processed table saved", slog.String("path", path))

	reread, err := c.codec.Decode(path)
	if err != nil {
		return c.fail(ctx, RequestSave, path, MsgSaveFailed, err)
	}

	c.counts = table.Count(reread, c.opts.CountFrom)
	c.stage = StageCounted
	c.logger.InfoContext(ctx, "elements counted",
		slog.Int("distinct", c.counts.Len()),
		slog.Int("total", c.counts.Total()))

	return c.result(RequestSave, StatusSuccess, MsgSaved, path, withCounts(c.counts))
}

// SaveCounts writes the counts as a two-column table without a header.
func (c *Controller) SaveCounts(ctx context.Context, path string) Result {
	if c.counts == nil || !c.stage.AtLeast(StageCounted) {
		return c.warn(ctx, RequestSaveCounts, path, MsgNoCountsToSave)
	}

	if err := c.codec.Encode(path, c.opts.CountsSheet, c.counts.Table()); err != nil {
		return c.fail(ctx, RequestSaveCounts, path, MsgSaveFailed, err)
	}
	c.stage = StageCountsSaved
	c.logger.InfoContext(ctx, "counts saved", slog.String("path", path))

	return c.result(RequestSaveCounts, StatusSuccess, MsgCountsSaved, path, withCounts(c.counts))
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	return c.stage
}

// Raw returns a copy of the loaded table.
func (c *Controller) Raw() table.Table {
	return c.raw.Clone()
}

// Processed returns a copy of the split table.
func (c *Controller) Processed() table.Table {
	return c.processed.Clone()
}

// Counts returns a copy of the counts, or nil before the first successful save.
func (c *Controller) Counts() *table.CountMap {
	if c.counts == nil {
		return nil
	}
	return c.counts.Clone()
}

type resultOption func(*Result)

func withRows(t table.Table) resultOption {
	return func(r *Result) {
		r.Rows = t.Records()
	}
}

func withCounts(m *table.CountMap) resultOption {
	return func(r *Result) {
		r.Counts = m.Entries()
		r.Summary = m.String()
	}
}

func (c *Controller) result(req Request, status Status, msg, path string, opts ...resultOption) Result {
	r := Result{
		Request: req,
		Status:  status,
		Message: msg,
		Stage:   c.stage,
		Path:    path,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (c *Controller) warn(ctx context.Context, req Request, path, msg string) Result {
	c.logger.WarnContext(ctx, msg,
		slog.String("request", string(req)),
		slog.String("stage", c.stage.String()))

	r := c.result(req, StatusWarning, msg, path)
	r.Err = apperrors.NewPreconditionError(msg)
	return r
}

func (c *Controller) fail(ctx context.Context, req Request, path, prefix string, err error) Result {
	c.logger.ErrorContext(ctx, prefix,
		slog.String("request", string(req)),
		slog.String("path", path),
		slog.String("error", err.Error()))

	r := c.result(req, StatusFailure, fmt.Sprintf("%s: %s", prefix, apperrors.Cause(err)), path)
	r.Err = err
	return r
}
