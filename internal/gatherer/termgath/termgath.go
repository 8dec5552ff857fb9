// Package termgath prints the progress of a judging job for a human.
package termgath

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/judge/internal/gatherer"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

type TerminalGatherer struct {
	StartedAt time.Time

	w       io.Writer
	verbose bool

	ok   *color.Color
	bad  *color.Color
	dim  *color.Color
	bold *color.Color
}

func New() *TerminalGatherer { return NewWriter(os.Stdout, false) }

// NewWriter prints to w. With verbose set the output and stderr of every
// test are shown, not only of failing ones.
func NewWriter(w io.Writer, verbose bool) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		w:         w,
		verbose:   verbose,
		ok:        color.New(color.FgGreen, color.Bold),
		bad:       color.New(color.FgRed, color.Bold),
		dim:       color.New(color.Faint),
		bold:      color.New(color.Bold),
	}
}

func (t *TerminalGatherer) StartJob(systemInfo string) {
	t.bold.Fprintln(t.w, "== Evaluation started ==")
	if systemInfo != "" {
		t.dim.Fprintf(t.w, "System info: %s\n", systemInfo)
	}
}

func (t *TerminalGatherer) StartCompile() {
	fmt.Fprintln(t.w, "-- Compilation started --")
}

func (t *TerminalGatherer) FinishCompile(out *sandbox.ExecutionOutcome) {
	fmt.Fprintln(t.w, "-- Compilation finished --")
	if out != nil {
		t.dim.Fprintln(t.w, usage(out))
	}
}

func (t *TerminalGatherer) ReachTest(ordinal int, input, answer string) {
	fmt.Fprintf(t.w, "-> Test %d reached\n", ordinal)
}

func (t *TerminalGatherer) IgnoreTest(ordinal int) {
	t.dim.Fprintf(t.w, "-> Test %d ignored\n", ordinal)
}

func (t *TerminalGatherer) FinishTest(ordinal int, v verdict.Verdict, out *sandbox.ExecutionOutcome) {
	fmt.Fprintf(t.w, "<- Test %d finished: %s", ordinal, t.paint(v))
	if out != nil {
		t.dim.Fprintf(t.w, "  %s", usage(out))
	}
	fmt.Fprintln(t.w)
	if out == nil || (v == verdict.Accepted && !t.verbose) {
		return
	}
	t.section("stdout", out.Stdout)
	t.section("stderr", out.Stderr)
}

func (t *TerminalGatherer) CompileError(msg string) {
	t.bad.Fprintln(t.w, "== Compilation error ==")
	fmt.Fprintln(t.w, msg)
}

func (t *TerminalGatherer) InternalError(msg string) {
	t.bad.Fprintf(t.w, "== Internal error: %s ==\n", msg)
}

func (t *TerminalGatherer) FinishJob(v verdict.Verdict, failing *int) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(t.w, "== Evaluation finished in %s: %s", dur, t.paint(v))
	if failing != nil {
		fmt.Fprintf(t.w, " on test %d", *failing)
	}
	fmt.Fprintln(t.w, " ==")
}

func (t *TerminalGatherer) paint(v verdict.Verdict) string {
	if v == verdict.Accepted {
		return t.ok.Sprint(v.Name())
	}
	return t.bad.Sprint(v.Name())
}

func (t *TerminalGatherer) section(name, content string) {
	content = gatherer.TrimToRect(strings.TrimRight(content, "\n"), 20, 120)
	if content == "" {
		return
	}
	t.dim.Fprintf(t.w, "  %s:\n", name)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(t.w, "    %s\n", line)
	}
}

func usage(out *sandbox.ExecutionOutcome) string {
	exit := "-"
	switch {
	case out.ExitCode != nil:
		exit = fmt.Sprint(*out.ExitCode)
	case out.Signal != nil:
		exit = fmt.Sprintf("sig%d", *out.Signal)
	}
	return fmt.Sprintf("exit=%s cpu=%dms wall=%dms mem=%dKiB",
		exit, out.CPUTime.Milliseconds(), out.WallTime.Milliseconds(), out.MemoryKiB)
}
