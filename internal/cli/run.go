package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"sheetsplit/internal/codec"
	"sheetsplit/internal/history"
	"sheetsplit/internal/infrastructure"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/services"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	CountsPath string
	Delimiter  string
	CountFrom  int
	NoHistory  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <input> <output>",
		Short: "Load, split, save and count a spreadsheet",
		Long: `Run every pipeline stage on one spreadsheet.

The first sheet of <input> is loaded, the first column of every row is split on
the delimiter and the parts are appended to the row. The result is written to
<output>, read back and the values from column --from onwards are counted.
With --counts the counts are written as a two-column sheet.

The command stops at the first request that does not succeed and exits with
status 1.

Example:
  sheetsplit run data.xlsx processed.xlsx
  sheetsplit run data.csv processed.xlsx --counts counts.xlsx --delimiter /`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("delimiter") {
				opts.Delimiter = opts.Config.Pipeline.Delimiter
			}
			if !cmd.Flags().Changed("from") {
				opts.CountFrom = opts.Config.Pipeline.CountFrom
			}
			return runPipeline(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.CountsPath, "counts", "", "also write the counts to this file")
	cmd.Flags().StringVarP(&opts.Delimiter, "delimiter", "d", ".", "delimiter splitting the first column")
	cmd.Flags().IntVar(&opts.CountFrom, "from", 1, "first column (0-based) whose values are counted")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run in the history database")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *RunOptions, input, output string) error {
	if opts.CountFrom < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--from must not be negative: %d", opts.CountFrom))
	}

	logger, err := opts.logger(cmd, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}
	defer infrastructure.CloseLogFile()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	svcCfg := services.PipelineConfig{
		Codec:  codec.NewRegistry(),
		Logger: logger,
		Options: pipeline.Options{
			Delimiter:      opts.Delimiter,
			CountFrom:      opts.CountFrom,
			ProcessedSheet: opts.Config.Pipeline.ProcessedSheet,
			CountsSheet:    opts.Config.Pipeline.CountsSheet,
		},
	}

	if !opts.NoHistory && opts.Config.Paths.HistoryDB != "" {
		store, err := openHistory(opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("error closing history", slog.String("error", err.Error()))
			}
		}()
		svcCfg.History = store
	}

	svc := services.NewPipelineService(svcCfg)
	sess, err := svc.CreateSession(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}
	defer func() { _ = svc.DeleteSession(ctx, sess.ID) }()

	steps := []func() (pipeline.Result, error){
		func() (pipeline.Result, error) { return svc.Load(ctx, sess.ID, input) },
		func() (pipeline.Result, error) { return svc.Process(ctx, sess.ID) },
		func() (pipeline.Result, error) { return svc.Save(ctx, sess.ID, output) },
	}
	if opts.CountsPath != "" {
		steps = append(steps, func() (pipeline.Result, error) {
			return svc.SaveCounts(ctx, sess.ID, opts.CountsPath)
		})
	}

	out := cmd.OutOrStdout()
	for _, step := range steps {
		res, err := step()
		if err != nil {
			return WrapExitError(ExitCommandError, "request rejected", err)
		}
		if err := writeResult(out, opts.Format, res); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		if !res.OK() {
			return NewExitError(ExitFailure, fmt.Sprintf("%s %s", res.Request, res.Status))
		}
	}
	return nil
}

func openHistory(opts *RunOptions) (*history.Store, error) {
	if err := opts.Config.EnsureDirectories(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create directories", err)
	}
	store, err := history.Open(opts.Config.Paths.HistoryDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	return store, nil
}

// writeResult prints one result: its message, and after a save the counts.
// The json format writes one Result object per line.
func writeResult(w io.Writer, format string, res pipeline.Result) error {
	if format == "json" {
		res.Rows = nil
		return json.NewEncoder(w).Encode(res)
	}

	if _, err := fmt.Fprintln(w, res.Message); err != nil {
		return err
	}
	if res.Request == pipeline.RequestSave && res.OK() {
		if _, err := fmt.Fprintln(w, pipeline.MsgCountsHeader); err != nil {
			return err
		}
		if res.Summary != "" {
			if _, err := fmt.Fprintln(w, res.Summary); err != nil {
				return err
			}
		}
	}
	return nil
}
