package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sheetsplit/internal/codec"
	"sheetsplit/internal/files"
	"sheetsplit/internal/history"
	"sheetsplit/internal/pipeline"
	"sheetsplit/internal/table"
	ws "sheetsplit/internal/websocket"
)

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, messageType string, data any) {
	m.Called(ctx, messageType, data)
}

type serviceFixture struct {
	svc     *PipelineService
	dir     string
	store   *history.Store
	events  *MockBroadcaster
	codecs  *codec.Registry
	options pipeline.Options
}

func newFixture(t *testing.T, maxSessions int) *serviceFixture {
	t.Helper()
	dir := t.TempDir()

	resolver, err := files.NewResolver(dir)
	require.NoError(t, err)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	events := &MockBroadcaster{}
	events.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()

	f := &serviceFixture{
		dir:     dir,
		store:   store,
		events:  events,
		codecs:  codec.NewRegistry(),
		options: pipeline.DefaultOptions(),
	}
	f.svc = NewPipelineService(PipelineConfig{
		Codec:       f.codecs,
		Options:     f.options,
		Resolver:    resolver,
		History:     store,
		Events:      events,
		MaxSessions: maxSessions,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *serviceFixture) writeInput(t *testing.T, name string, records [][]string) {
	t.Helper()
	require.NoError(t, f.codecs.Encode(filepath.Join(f.dir, name), "Sheet1", table.FromRecords(records)))
}

func TestPipelineService_FullRun(t *testing.T) {
	f := newFixture(t, 0)
	f.writeInput(t, "in.csv", [][]string{{"a.b", "x"}, {"c", "y"}})
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageIdle, sess.Stage)

	res, err := f.svc.Load(ctx, sess.ID, "in.csv")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, res.Status)
	assert.Equal(t, "in.csv", res.Path)

	res, err = f.svc.Process(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.b", "x", "a", "b"}, {"c", "y", "c"}}, res.Rows)

	res, err = f.svc.Save(ctx, sess.ID, "out/processed.xlsx")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailure, res.Status)
	assert.Equal(t, pipeline.StageProcessed, res.Stage)

	res, err = f.svc.Save(ctx, sess.ID, "processed.xlsx")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, pipeline.StageCounted, res.Stage)
	assert.Equal(t, []table.Entry{
		{Value: "x", Count: 1}, {Value: "a", Count: 1}, {Value: "b", Count: 1},
		{Value: "y", Count: 1}, {Value: "c", Count: 1},
	}, res.Counts)

	res, err = f.svc.SaveCounts(ctx, sess.ID, "counts.csv")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, res.Status)

	counts, err := f.codecs.Decode(filepath.Join(f.dir, "counts.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "1"}, {"a", "1"}, {"b", "1"}, {"y", "1"}, {"c", "1"}}, counts.Records())

	info, err := f.svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageCountsSaved, info.Stage)
	assert.Equal(t, 2, info.RawRows)
	assert.Equal(t, 2, info.ProcessedRows)
	assert.Len(t, info.Counts, 5)

	entries, err := f.svc.History(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "save_counts", entries[0].Request)
	assert.Equal(t, "counts.csv", entries[0].Path)
	assert.Equal(t, "counts_saved", entries[0].Stage)
	assert.Equal(t, "failure", entries[2].Status)

	f.events.AssertCalled(t, "Broadcast", mock.Anything, ws.TypeSessionCreated, mock.Anything)
	f.events.AssertNumberOfCalls(t, "Broadcast", 6)
}

func TestPipelineService_Warnings(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	res, err := f.svc.Process(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusWarning, res.Status)
	assert.Equal(t, pipeline.MsgLoadFirst, res.Message)

	res, err = f.svc.SaveCounts(ctx, sess.ID, "counts.xlsx")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusWarning, res.Status)
	assert.Equal(t, pipeline.MsgNoCountsToSave, res.Message)

	entries, err := f.svc.History(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "warning", entries[0].Status)
}

func TestPipelineService_LoadMissingFile(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	res, err := f.svc.Load(ctx, sess.ID, "missing.xlsx")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailure, res.Status)
	assert.Contains(t, res.Message, pipeline.MsgLoadFailed+": ")
	assert.Equal(t, pipeline.StageIdle, res.Stage)
}

func TestPipelineService_Errors(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.svc.Process(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, f.svc.DeleteSession(ctx, "nope"), ErrSessionNotFound)

	sess, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	for _, p := range []string{"", "../escape.xlsx", "/etc/passwd"} {
		_, err = f.svc.Load(ctx, sess.ID, p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}

	entries, err := f.svc.History(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineService_SessionLifecycle(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	s1, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	s2, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.svc.CreateSession(ctx)
	assert.ErrorIs(t, err, ErrTooManySessions)

	list := f.svc.ListSessions(ctx)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{s1.ID, s2.ID}, []string{list[0].ID, list[1].ID})

	require.NoError(t, f.svc.DeleteSession(ctx, s1.ID))
	assert.Equal(t, 1, f.svc.SessionCount())

	_, err = f.svc.CreateSession(ctx)
	assert.NoError(t, err)

	f.events.AssertCalled(t, "Broadcast", mock.Anything, ws.TypeSessionDeleted, map[string]string{"id": s1.ID})
}

func TestPipelineService_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t, 0)
	f.writeInput(t, "in.csv", [][]string{{"p.q", "r"}})
	ctx := context.Background()

	a, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	b, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = f.svc.Load(ctx, a.ID, "in.csv")
	require.NoError(t, err)

	res, err := f.svc.Process(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusWarning, res.Status)

	res, err = f.svc.Process(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, res.Status)
}

func TestPipelineService_ConcurrentRequests(t *testing.T) {
	f := newFixture(t, 0)
	f.writeInput(t, "in.csv", [][]string{{"a.b.c", "x"}})
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.svc.Load(ctx, sess.ID, "in.csv")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Process(ctx, sess.ID)
			assert.NoError(t, err)
			assert.Equal(t, pipeline.StatusSuccess, res.Status)
			_, _ = f.svc.GetSession(ctx, sess.ID)
		}()
	}
	wg.Wait()

	info, err := f.svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageProcessed, info.Stage)
}

func TestPipelineService_NoHistory(t *testing.T) {
	svc := NewPipelineService(PipelineConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	entries, err := svc.History(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = svc.ListFiles(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestPipelineService_ListFiles(t *testing.T) {
	f := newFixture(t, 0)
	f.writeInput(t, "in.csv", [][]string{{"a"}})
	f.writeInput(t, "book.xlsx", [][]string{{"a"}})

	list, err := f.svc.ListFiles(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(list))
	for _, fi := range list {
		names = append(names, fi.Name)
	}
	assert.ElementsMatch(t, []string{"in.csv", "book.xlsx"}, names)
}
