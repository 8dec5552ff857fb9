package sandbox

import (
	"bytes"
	"time"
)

// rawResult is everything observed about a finished process.
type rawResult struct {
	exitCode int
	signal   int // 0 when the process exited on its own
	sigXCPU  bool

	cpu     time.Duration
	wall    time.Duration
	peakKiB int64
	// meteredKiB is the peak compared with the memory limit. Zero when
	// only an rlimit enforces it.
	meteredKiB int64
	ctxSwV     int64
	ctxSwF     int64

	wallExceeded bool
	oomKilled    bool

	stdout          []byte
	stdoutTruncated bool
	stderr          []byte
}

func (r rawResult) abnormal() bool {
	return r.signal != 0 || r.exitCode != 0
}

// classify maps a finished process to an outcome kind. Time limits are
// checked before memory so a program that is both slow and large is
// reported by the limit that stopped it.
func classify(r rawResult, lim Limits, oomMarkers []string) OutcomeKind {
	if r.wallExceeded || r.sigXCPU || r.cpu > lim.CPUTime {
		return TimeLimitExceeded
	}
	if r.oomKilled {
		return MemoryLimitExceeded
	}
	limitKiB := lim.MemoryBytes / 1024
	if limitKiB > 0 && r.meteredKiB > limitKiB {
		return MemoryLimitExceeded
	}
	if r.abnormal() {
		if hasMarker(r.stderr, oomMarkers) {
			return MemoryLimitExceeded
		}
		return RuntimeError
	}
	return Success
}

func hasMarker(stderr []byte, markers []string) bool {
	for _, m := range markers {
		if m != "" && bytes.Contains(stderr, []byte(m)) {
			return true
		}
	}
	return false
}

func (r rawResult) outcome(kind OutcomeKind) ExecutionOutcome {
	o := ExecutionOutcome{
		Kind:                 kind,
		Stdout:               string(r.stdout),
		StdoutTruncated:      r.stdoutTruncated,
		Stderr:               string(r.stderr),
		CPUTime:              r.cpu,
		WallTime:             r.wall,
		MemoryKiB:            r.peakKiB,
		CtxSwitchesVoluntary: r.ctxSwV,
		CtxSwitchesForced:    r.ctxSwF,
		OOMKilled:            r.oomKilled,
	}
	if r.signal != 0 {
		sig := r.signal
		o.Signal = &sig
	} else {
		code := r.exitCode
		o.ExitCode = &code
	}
	return o
}
