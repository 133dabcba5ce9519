package engine

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Reporter prints test progress in the Deno test layout. Colors are dropped
// when the writer is not a terminal.
type Reporter struct {
	w      io.Writer
	gray   lipgloss.Style
	green  lipgloss.Style
	red    lipgloss.Style
	banner lipgloss.Style
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:     w,
		gray:  r.NewStyle().Foreground(lipgloss.Color("245")),
		green: r.NewStyle().Foreground(lipgloss.Color("2")),
		red:   r.NewStyle().Foreground(lipgloss.Color("1")),
		banner: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")),
	}
}

// Header prints the test count of a file.
func (r *Reporter) Header(n int, file string) {
	fmt.Fprintln(r.w, r.gray.Render(fmt.Sprintf("running %d tests from %s", n, file)))
}

// Result prints the outcome of one test.
func (r *Reporter) Result(result TestResult) {
	var status string
	switch result.Status {
	case TestFailed:
		status = r.red.Render(result.Status.String())
	case TestIgnored:
		status = r.gray.Render(result.Status.String())
	default:
		status = r.green.Render(result.Status.String())
	}
	fmt.Fprintf(r.w, "%s ... %s %s\n", result.Name, status,
		r.gray.Render(fmt.Sprintf("(%dms)", result.Duration.Milliseconds())))
}

// Failures prints the ERRORS and FAILURES sections of the failed results.
func (r *Reporter) Failures(results []TestResult, file string) {
	fmt.Fprintln(r.w)
	var failed []TestResult
	for _, result := range results {
		if result.Status == TestFailed {
			failed = append(failed, result)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(r.w, "%s\n\n", r.banner.Render(" ERRORS "))
	for _, result := range failed {
		fmt.Fprintf(r.w, "%s %s\n", result.Name, r.gray.Render("=> "+file))
		var ex *RuntimeException
		if errors.As(result.Err, &ex) {
			fmt.Fprintf(r.w, "%s: Error: %s\n", r.red.Bold(true).Render("error"), ex.Error())
			if ex.Stack != "" {
				fmt.Fprintln(r.w, ex.Stack)
			}
		} else if result.Err != nil {
			fmt.Fprintf(r.w, "%s: Error: %s\n", r.red.Bold(true).Render("error"), result.Err)
		}
		fmt.Fprintln(r.w)
	}

	fmt.Fprintf(r.w, "%s\n\n", r.banner.Render(" FAILURES "))
	for _, result := range failed {
		fmt.Fprintf(r.w, "%s %s\n", result.Name, r.gray.Render("=> "+file))
	}
	fmt.Fprintln(r.w)
}

// Summary prints the totals over every test file.
func (r *Reporter) Summary(passed, failed, ignored int, elapsed time.Duration) {
	status := r.green.Render("ok")
	if failed > 0 {
		status = r.red.Render("FAILED")
	}
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "%s | %d passed | %d failed | %d ignored %s\n", status, passed, failed, ignored,
		r.gray.Render(fmt.Sprintf("(%dms)", elapsed.Milliseconds())))
	fmt.Fprintln(r.w)
}
