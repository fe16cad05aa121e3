// Package application renders import progress in the terminal.
package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/qbank/internal/core"
)

// maxFailureLines caps the failure list shown under the bar.
const maxFailureLines = 5

// batchMsg carries one writer progress report into the event loop.
type batchMsg core.BatchProgress

// doneMsg ends the view with the run outcome.
type doneMsg struct {
	result *core.RunResult
	err    error
}

// Model is the bubbletea model of a running import.
type Model struct {
	bar      progress.Model
	styles   styles
	source   string
	current  core.BatchProgress
	files    int
	written  int
	failures []string
	result   *core.RunResult
	err      error
	done     bool
	cancel   context.CancelFunc
}

// NewModel creates the view model for an import of source.
func NewModel(source string) Model {
	return Model{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		styles: defaultStyles(),
		source: source,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)

	case batchMsg:
		p := core.BatchProgress(msg)
		if p.File != m.current.File {
			m.files++
			if m.current.File != "" {
				m.written += m.current.Written
			}
		}
		m.current = p
		if p.Failure != nil {
			m.failures = append(m.failures,
				fmt.Sprintf("%s batch %d/%d: %s (%s)", p.File, p.Batch, p.Batches, p.Failure.Message, p.Failure.Code))
		}

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("qbank import") + " " + m.styles.Muted.Render(m.source) + "\n\n")

	if m.current.File != "" {
		fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("file"), m.current.File)
		b.WriteString(m.bar.ViewAs(float64(m.current.Percent())/100) + "\n")
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("batch %d/%d  written %d/%d  total written %d",
			m.current.Batch, m.current.Batches, m.current.Written, m.current.Total, m.written+m.current.Written)) + "\n")
	} else if !m.done {
		b.WriteString(m.styles.Muted.Render("parsing...") + "\n")
	}

	if n := len(m.failures); n > 0 {
		b.WriteString("\n" + m.styles.Warning.Render(fmt.Sprintf("%d failed batches", n)) + "\n")
		start := max(0, n-maxFailureLines)
		for _, f := range m.failures[start:] {
			b.WriteString(m.styles.Error.Render("  "+f) + "\n")
		}
	}

	switch {
	case m.err != nil:
		b.WriteString("\n" + m.styles.Error.Render("import failed: "+m.err.Error()) + "\n")
	case m.result != nil:
		b.WriteString("\n" + m.styles.Success.Render(fmt.Sprintf("done: %d records imported from %d files",
			m.result.Imported, len(m.result.Files))) + "\n")
	case !m.done:
		b.WriteString("\n" + m.styles.Muted.Render("ctrl+c to cancel") + "\n")
	}

	return b.String()
}

// View drives a Model while an import runs in the background.
type View struct {
	out     io.Writer
	in      io.Reader
	source  string
	program atomic.Pointer[tea.Program]
}

// NewView creates a progress view writing to out.
func NewView(out io.Writer, source string) *View {
	return &View{out: out, source: source}
}

// Report is a core.ProgressFunc feeding the running view.
func (v *View) Report(p core.BatchProgress) {
	if prog := v.program.Load(); prog != nil {
		prog.Send(batchMsg(p))
	}
}

// Run starts run in a goroutine and renders its progress until it returns.
// Quitting the view cancels the context passed to run.
func (v *View) Run(ctx context.Context, run func(context.Context) (*core.RunResult, error)) (*core.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(v.source)
	m.cancel = cancel

	opts := []tea.ProgramOption{tea.WithOutput(v.out), tea.WithContext(ctx)}
	if v.in != nil {
		opts = append(opts, tea.WithInput(v.in))
	}
	prog := tea.NewProgram(m, opts...)
	v.program.Store(prog)
	defer v.program.Store(nil)

	var (
		res    *core.RunResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = run(ctx)
		prog.Send(doneMsg{result: res, err: runErr})
	}()

	_, viewErr := prog.Run()
	cancel()
	<-done

	if runErr == nil && viewErr != nil && res == nil {
		return nil, fmt.Errorf("progress view: %w", viewErr)
	}
	return res, runErr
}
