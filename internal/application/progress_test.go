package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/qbank/internal/core"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return nm, cmd
}

func TestModel_TracksBatches(t *testing.T) {
	m := NewModel("./data")

	m, _ = update(t, m, batchMsg{File: "a.csv", Batch: 1, Batches: 2, Written: 50, Total: 70})
	m, _ = update(t, m, batchMsg{File: "a.csv", Batch: 2, Batches: 2, Written: 70, Total: 70})
	m, _ = update(t, m, batchMsg{
		File: "b.csv", Batch: 1, Batches: 1, Written: 0, Total: 10,
		Failure: &core.Failure{Kind: core.FailureStore, Code: "DB003", Message: "connection refused"},
	})

	require.Equal(t, 2, m.files)
	require.Equal(t, 70, m.written)
	require.Len(t, m.failures, 1)
	require.Contains(t, m.failures[0], "b.csv batch 1/1")

	view := m.View()
	require.Contains(t, view, "b.csv")
	require.Contains(t, view, "1 failed batches")
	require.Contains(t, view, "DB003")
}

func TestModel_DoneQuits(t *testing.T) {
	m := NewModel("./data")

	m, cmd := update(t, m, doneMsg{result: &core.RunResult{Imported: 120, Files: make([]core.FileResult, 2)}})

	require.True(t, m.done)
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.Contains(t, m.View(), "done: 120 records imported from 2 files")
}

func TestModel_DoneWithError(t *testing.T) {
	m := NewModel("./data")

	m, _ = update(t, m, doneMsg{err: core.ErrNoFiles})

	require.Contains(t, m.View(), "import failed: no csv files found in source")
}

func TestModel_CancelKey(t *testing.T) {
	cancelled := false
	m := NewModel("./data")
	m.cancel = func() { cancelled = true }

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	require.True(t, cancelled)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_Resize(t *testing.T) {
	m := NewModel("./data")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 10})
	require.Equal(t, 26, m.bar.Width)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 10})
	require.Equal(t, 60, m.bar.Width)
}

func TestView_Run(t *testing.T) {
	var out bytes.Buffer
	v := NewView(&out, "./data")
	v.in = strings.NewReader("")

	want := &core.RunResult{Imported: 3}
	res, err := v.Run(context.Background(), func(ctx context.Context) (*core.RunResult, error) {
		v.Report(core.BatchProgress{File: "q.csv", Batch: 1, Batches: 1, Written: 3, Total: 3})
		return want, nil
	})

	require.NoError(t, err)
	require.Same(t, want, res)
	require.Nil(t, v.program.Load())
}

func TestView_RunError(t *testing.T) {
	var out bytes.Buffer
	v := NewView(&out, "./data")
	v.in = strings.NewReader("")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := v.Run(ctx, func(context.Context) (*core.RunResult, error) {
		return nil, core.ErrSourceNotFound
	})

	require.True(t, errors.Is(err, core.ErrSourceNotFound))
}
