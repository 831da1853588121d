package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sheetsplit/internal/codec"
	apperrors "sheetsplit/internal/errors"
	"sheetsplit/internal/table"
)

// MockCodec is a mock implementation of codec.Codec
type MockCodec struct {
	mock.Mock
}

func (m *MockCodec) Decode(path string) (table.Table, error) {
	args := m.Called(path)
	t, _ := args.Get(0).(table.Table)
	return t, args.Error(1)
}

func (m *MockCodec) Encode(path, sheet string, t table.Table) error {
	args := m.Called(path, sheet, t)
	return args.Error(0)
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

// writeInput encodes t to dir/name with the real codec.
func writeInput(t *testing.T, dir, name string, data table.Table) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, codec.NewRegistry().Encode(path, "Input", data))
	return path
}

func scenarioInput() table.Table {
	return table.Table{{"a.b", "x"}, {"c", "y"}}
}

func TestController_FullRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx", scenarioInput())

	c := New(codec.NewRegistry(), quietOptions())
	assert.Equal(t, StageIdle, c.Stage())

	res := c.Load(ctx, input)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, MsgLoaded, res.Message)
	assert.Equal(t, StageLoaded, res.Stage)
	assert.Equal(t, [][]string{{"a.b", "x"}, {"c", "y"}}, res.Rows)

	res = c.Process(ctx)
	require.True(t, res.OK())
	assert.Equal(t, MsgProcessed, res.Message)
	assert.Equal(t, [][]string{{"a.b", "x", "a", "b"}, {"c", "y", "c"}}, res.Rows)

	output := filepath.Join(dir, "out.xlsx")
	res = c.Save(ctx, output)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, MsgSaved, res.Message)
	assert.Equal(t, StageCounted, res.Stage)
	assert.Equal(t, []table.Entry{
		{Value: "x", Count: 1},
		{Value: "a", Count: 1},
		{Value: "b", Count: 1},
		{Value: "y", Count: 1},
		{Value: "c", Count: 1},
	}, res.Counts)
	assert.Equal(t, "x: 1\na: 1\nb: 1\ny: 1\nc: 1", res.Summary)
	assert.Equal(t, map[string]int{"x": 1, "a": 1, "b": 1, "y": 1, "c": 1}, c.Counts().AsMap())

	countsPath := filepath.Join(dir, "counts.csv")
	res = c.SaveCounts(ctx, countsPath)
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, MsgCountsSaved, res.Message)
	assert.Equal(t, StageCountsSaved, c.Stage())

	written, err := codec.NewRegistry().Decode(countsPath)
	require.NoError(t, err)
	assert.True(t, table.Table{{"x", "1"}, {"a", "1"}, {"b", "1"}, {"y", "1"}, {"c", "1"}}.Equal(written))
}

func TestController_ProcessWithoutLoad(t *testing.T) {
	c := New(codec.NewRegistry(), quietOptions())

	res := c.Process(context.Background())

	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, MsgLoadFirst, res.Message)
	assert.Equal(t, StageIdle, c.Stage())
	assert.True(t, apperrors.IsType(res.Err, apperrors.ErrTypePrecondition))
	assert.True(t, c.Processed().IsEmpty())
}

func TestController_Warnings(t *testing.T) {
	ctx := context.Background()
	c := New(codec.NewRegistry(), quietOptions())

	res := c.Save(ctx, filepath.Join(t.TempDir(), "out.xlsx"))
	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, MsgNoDataToSave, res.Message)

	res = c.SaveCounts(ctx, filepath.Join(t.TempDir(), "counts.xlsx"))
	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, MsgNoCountsToSave, res.Message)
	assert.Equal(t, StageIdle, c.Stage())
}

func TestController_LoadFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := writeInput(t, dir, "in.csv", scenarioInput())

	c := New(codec.NewRegistry(), quietOptions())
	require.True(t, c.Load(ctx, input).OK())

	res := c.Load(ctx, filepath.Join(dir, "missing.xlsx"))

	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Message, MsgLoadFailed+": ")
	assert.Contains(t, res.Message, "cannot open file")
	assert.True(t, apperrors.IsDecodeError(res.Err))
	assert.Equal(t, StageLoaded, c.Stage())
	assert.True(t, scenarioInput().Equal(c.Raw()))
}

func TestController_SaveToUnwritableDestination(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx", scenarioInput())

	c := New(codec.NewRegistry(), quietOptions())
	require.True(t, c.Load(ctx, input).OK())
	require.True(t, c.Process(ctx).OK())
	before := c.Processed()

	res := c.Save(ctx, filepath.Join(dir, "no", "such", "dir", "out.xlsx"))

	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Message, MsgSaveFailed+": ")
	assert.True(t, apperrors.IsEncodeError(res.Err))
	assert.Equal(t, StageProcessed, c.Stage())
	assert.True(t, before.Equal(c.Processed()))
	assert.Nil(t, c.Counts())
}

func TestController_RereadFailureStopsAtSaved(t *testing.T) {
	ctx := context.Background()
	m := new(MockCodec)
	input := table.Table{{"k.v", "1"}}

	m.On("Decode", "in.xlsx").Return(input, nil).Once()
	m.On("Encode", "out.xlsx", DefaultProcessedSheet, mock.Anything).Return(nil).Once()
	m.On("Decode", "out.xlsx").Return(nil, apperrors.NewDecodeError("cannot open file", os.ErrNotExist)).Once()

	c := New(m, quietOptions())
	require.True(t, c.Load(ctx, "in.xlsx").OK())
	require.True(t, c.Process(ctx).OK())

	res := c.Save(ctx, "out.xlsx")

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, "Failed to save the file: cannot open file: file does not exist", res.Message)
	assert.Equal(t, StageSaved, c.Stage())
	assert.Nil(t, c.Counts())

	res = c.SaveCounts(ctx, "counts.xlsx")
	assert.Equal(t, StatusWarning, res.Status)
	m.AssertExpectations(t)
}

func TestController_CountsUseRereadTable(t *testing.T) {
	ctx := context.Background()
	m := new(MockCodec)

	m.On("Decode", "in.xlsx").Return(table.Table{{"a.b", "x"}}, nil).Once()
	m.On("Encode", "out.xlsx", DefaultProcessedSheet, table.Table{{"a.b", "x", "a", "b"}}).Return(nil).Once()
	// The written file reads back differently from what was processed.
	m.On("Decode", "out.xlsx").Return(table.Table{{"ignored", "z", "z"}}, nil).Once()

	c := New(m, quietOptions())
	require.True(t, c.Load(ctx, "in.xlsx").OK())
	require.True(t, c.Process(ctx).OK())
	res := c.Save(ctx, "out.xlsx")

	require.True(t, res.OK())
	assert.Equal(t, []table.Entry{{Value: "z", Count: 2}}, res.Counts)
	m.AssertExpectations(t)
}

func TestController_EmptyFragmentsAreNotCounted(t *testing.T) {
	for _, ext := range []string{".xlsx", ".csv"} {
		t.Run(ext, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			input := writeInput(t, dir, "in"+ext, table.Table{{"a..b", "x"}})

			c := New(codec.NewRegistry(), quietOptions())
			require.True(t, c.Load(ctx, input).OK())

			res := c.Process(ctx)
			require.True(t, res.OK())
			assert.Equal(t, [][]string{{"a..b", "x", "a", "", "b"}}, res.Rows)

			res = c.Save(ctx, filepath.Join(dir, "out"+ext))
			require.True(t, res.OK(), res.Message)
			assert.Equal(t, []table.Entry{
				{Value: "x", Count: 1},
				{Value: "a", Count: 1},
				{Value: "b", Count: 1},
			}, res.Counts)
		})
	}
}

func TestController_SaveCountsFailure(t *testing.T) {
	ctx := context.Background()
	m := new(MockCodec)
	m.On("Decode", "in.csv").Return(table.Table{{"a", "b"}}, nil)
	m.On("Encode", "out.csv", DefaultProcessedSheet, mock.Anything).Return(nil)
	m.On("Decode", "out.csv").Return(table.Table{{"a", "b"}}, nil)
	m.On("Encode", "counts.csv", DefaultCountsSheet, table.Table{{"b", "1"}}).
		Return(apperrors.NewEncodeError("cannot create file", errors.New("permission denied")))

	c := New(m, quietOptions())
	require.True(t, c.Load(ctx, "in.csv").OK())
	require.True(t, c.Process(ctx).OK())
	require.True(t, c.Save(ctx, "out.csv").OK())

	res := c.SaveCounts(ctx, "counts.csv")

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, "Failed to save the file: cannot create file: permission denied", res.Message)
	assert.Equal(t, StageCounted, c.Stage())
	assert.NotNil(t, c.Counts())
}

func TestController_ReloadRequiresReprocess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx", scenarioInput())

	c := New(codec.NewRegistry(), quietOptions())
	require.True(t, c.Load(ctx, input).OK())
	require.True(t, c.Process(ctx).OK())
	require.True(t, c.Save(ctx, filepath.Join(dir, "out.xlsx")).OK())

	require.True(t, c.Load(ctx, input).OK())
	assert.Equal(t, StageLoaded, c.Stage())

	res := c.Save(ctx, filepath.Join(dir, "out2.xlsx"))
	assert.Equal(t, MsgNoDataToSave, res.Message)

	res = c.SaveCounts(ctx, filepath.Join(dir, "counts.xlsx"))
	assert.Equal(t, MsgNoCountsToSave, res.Message)
}

func TestController_CustomOptions(t *testing.T) {
	ctx := context.Background()
	m := new(MockCodec)
	m.On("Decode", "in").Return(table.Table{{"a/b", "a"}}, nil)
	m.On("Encode", "out", "Split", table.Table{{"a/b", "a", "a", "b"}}).Return(nil)
	m.On("Decode", "out").Return(table.Table{{"a/b", "a", "a", "b"}}, nil)

	opts := quietOptions()
	opts.Delimiter = "/"
	opts.CountFrom = 2
	opts.ProcessedSheet = "Split"

	c := New(m, opts)
	require.True(t, c.Load(ctx, "in").OK())
	require.True(t, c.Process(ctx).OK())
	res := c.Save(ctx, "out")

	require.True(t, res.OK())
	assert.Equal(t, "a: 1\nb: 1", res.Summary)
}

func TestController_AccessorsReturnCopies(t *testing.T) {
	ctx := context.Background()
	m := new(MockCodec)
	m.On("Decode", "in").Return(table.Table{{"a.b"}}, nil)

	c := New(m, quietOptions())
	require.True(t, c.Load(ctx, "in").OK())
	require.True(t, c.Process(ctx).OK())

	raw := c.Raw()
	raw[0][0] = "mutated"
	processed := c.Processed()
	processed[0][0] = "mutated"

	assert.Equal(t, "a.b", c.Raw()[0][0])
	assert.Equal(t, "a.b", c.Processed()[0][0])
}

func TestStage_AtLeast(t *testing.T) {
	assert.True(t, StageCounted.AtLeast(StageProcessed))
	assert.True(t, StageProcessed.AtLeast(StageProcessed))
	assert.False(t, StageLoaded.AtLeast(StageProcessed))
	assert.True(t, StageCountsSaved.Valid())
	assert.False(t, Stage("bogus").Valid())
}
