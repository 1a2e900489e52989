package tui

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/vvka-141/orderload/internal/tui/components"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// ProgressDisplay renders load progress. In interactive mode a bubbletea
// program draws a spinner with the running row count; otherwise plain lines
// are written.
type ProgressDisplay struct {
	out     io.Writer
	label   string
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewProgressDisplay starts a display for one run. Finish must be called
// exactly once to release the renderer.
func NewProgressDisplay(out io.Writer, label string, interactive bool) *ProgressDisplay {
	p := &ProgressDisplay{out: out, label: label}
	if !interactive {
		fmt.Fprintln(out, label)
		return p
	}

	// Input is detached so Ctrl+C reaches the process signal handler.
	p.program = tea.NewProgram(progressModel{spinner: components.NewSpinner(label)},
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Rows implements orderload.ProgressReporter.
func (p *ProgressDisplay) Rows(n int64) {
	if p.program != nil {
		p.program.Send(components.RowsMsg(n))
		return
	}
	fmt.Fprintf(p.out, "  %d rows written\n", n)
}

// Finish implements orderload.ProgressReporter.
func (p *ProgressDisplay) Finish(result orderload.LoadResult, err error) {
	p.once.Do(func() {
		if p.program == nil {
			if err != nil {
				fmt.Fprintln(p.out, ErrorStyle.Render(SymbolCross+" "+FormatFailure(err)))
				return
			}
			fmt.Fprintln(p.out, SuccessStyle.Render(SymbolCheck+" "+FormatResult(result)))
			return
		}

		if err != nil {
			p.program.Send(components.SpinnerFailed(errors.New(FormatFailure(err))))
		} else {
			p.program.Send(components.SpinnerDone(FormatResult(result)))
		}
		<-p.done
	})
}

// FormatResult renders a one-line summary of a successful run.
func FormatResult(result orderload.LoadResult) string {
	elapsed := result.Duration.Round(time.Millisecond)
	if result.DryRun {
		return fmt.Sprintf("dry run: %d rows read, nothing written (%s)", result.RowsRead, elapsed)
	}
	return fmt.Sprintf("inserted %d rows in %s (mode %s, run %s)",
		result.RowsInserted, elapsed, result.Mode, result.RunID)
}

// FormatFailure renders a one-line summary of a failed run.
func FormatFailure(err error) string {
	return "load failed, no rows were committed: " + err.Error()
}

type progressModel struct {
	spinner components.Spinner
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	if _, ok := msg.(components.SpinnerDoneMsg); ok {
		return m, tea.Quit
	}
	return m, cmd
}

func (m progressModel) View() string {
	return m.spinner.View() + "\n"
}

var _ orderload.ProgressReporter = (*ProgressDisplay)(nil)
