// Package gatherer holds what the streaming result gatherers share: the
// conversion of sandbox outcomes into api messages and output trimming.
package gatherer

import (
	"strings"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

const trimMarker = "[...]"

// TrimToRect keeps at most maxHeight lines of at most maxWidth bytes each.
func TrimToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	cut := len(lines) > maxHeight
	if cut {
		lines = lines[:maxHeight]
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if len(line) > maxWidth {
			b.WriteString(line[:maxWidth])
			b.WriteString(trimMarker)
		} else {
			b.WriteString(line)
		}
	}
	if cut {
		if len(lines) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(trimMarker)
	}
	return b.String()
}

// TrimPtr trims s and returns nil for an empty result.
func TrimPtr(s string, maxHeight int, maxWidth int) *string {
	t := TrimToRect(s, maxHeight, maxWidth)
	if t == "" {
		return nil
	}
	return &t
}

// RuntimeData converts an outcome into its wire form, trimming the streams
// to maxHeight x maxWidth. A process that never exited on its own reports
// exit code -1.
func RuntimeData(out *sandbox.ExecutionOutcome, stdin string, maxHeight int, maxWidth int) *api.RuntimeData {
	if out == nil {
		return nil
	}
	data := &api.RuntimeData{
		Stdin:           TrimToRect(stdin, maxHeight, maxWidth),
		Stdout:          TrimToRect(out.Stdout, maxHeight, maxWidth),
		Stderr:          TrimToRect(out.Stderr, maxHeight, maxWidth),
		ExitCode:        -1,
		CpuMillis:       out.CPUTime.Milliseconds(),
		WallMillis:      out.WallTime.Milliseconds(),
		MemoryKiBytes:   out.MemoryKiB,
		CtxSwV:          out.CtxSwitchesVoluntary,
		CtxSwF:          out.CtxSwitchesForced,
		OomKilled:       out.OOMKilled,
		StdoutTruncated: out.StdoutTruncated,
		Outcome:         string(out.Kind),
	}
	if out.ExitCode != nil {
		data.ExitCode = int64(*out.ExitCode)
	}
	if out.Signal != nil {
		sig := int64(*out.Signal)
		data.ExitSignal = &sig
	}
	if out.Message != "" {
		msg := out.Message
		data.Message = &msg
	}
	return data
}

// JobErrors remembers a compile or internal error until the job finishes.
// Streaming gatherers embed it and send the outcome with FinishJob.
type JobErrors struct {
	msg      *string
	compile  bool
	internal bool
}

func (e *JobErrors) CompileError(msg string) {
	e.msg = &msg
	e.compile = true
}

func (e *JobErrors) InternalError(msg string) {
	e.msg = &msg
	e.internal = true
}

// FinishMessage builds the final message of a job.
func (e *JobErrors) FinishMessage(evalUuid string, v verdict.Verdict, failing *int) api.FinishJob {
	msg := api.NewFinishJob(evalUuid, string(v), TestID(failing))
	msg.ErrorMessage = e.msg
	msg.CompileError = e.compile
	msg.InternalError = e.internal
	return msg
}

// TestID widens an optional ordinal to the wire test id.
func TestID(ordinal *int) *int64 {
	if ordinal == nil {
		return nil
	}
	id := int64(*ordinal)
	return &id
}
