package sandbox

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidLimits = errors.New("invalid resource limits")

// Limits bound one run of a program.
type Limits struct {
	CPUTime     time.Duration
	WallTime    time.Duration
	MemoryBytes int64
}

// ExecutionRequest is a single compile and run attempt.
type ExecutionRequest struct {
	SourceCode string
	LanguageID string
	Input      string
	Limits     Limits
}

// Normalize fills in the wall-clock limit when it is unset and validates
// the result.
func (l Limits) Normalize() (Limits, error) {
	if l.WallTime == 0 {
		l.WallTime = 2*l.CPUTime + time.Second
	}
	switch {
	case l.CPUTime <= 0:
		return l, fmt.Errorf("%w: cpu time must be positive", ErrInvalidLimits)
	case l.MemoryBytes <= 0:
		return l, fmt.Errorf("%w: memory must be positive", ErrInvalidLimits)
	case l.WallTime < l.CPUTime:
		return l, fmt.Errorf("%w: wall time %s below cpu time %s", ErrInvalidLimits, l.WallTime, l.CPUTime)
	}
	return l, nil
}

// rlimitCPUSeconds rounds the cpu limit up to whole seconds for RLIMIT_CPU.
// The exact limit is checked against rusage afterwards.
func (l Limits) rlimitCPUSeconds() uint64 {
	ms := l.CPUTime.Milliseconds()
	return uint64((ms + 999) / 1000)
}
