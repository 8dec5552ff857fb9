package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	lim := Limits{CPUTime: time.Second, WallTime: 2 * time.Second, MemoryBytes: 64 * 1024 * 1024}
	markers := []string{"MemoryError"}

	tests := []struct {
		name string
		raw  rawResult
		want OutcomeKind
	}{
		{"clean exit", rawResult{}, Success},
		{"non-zero exit", rawResult{exitCode: 1}, RuntimeError},
		{"segfault", rawResult{signal: 11, exitCode: -1}, RuntimeError},
		{"watchdog", rawResult{wallExceeded: true, signal: 9, exitCode: -1}, TimeLimitExceeded},
		{"sigxcpu", rawResult{sigXCPU: true, signal: 24, exitCode: -1}, TimeLimitExceeded},
		{"cpu over limit with clean exit", rawResult{cpu: 1100 * time.Millisecond}, TimeLimitExceeded},
		{"cpu at limit", rawResult{cpu: time.Second}, Success},
		{"cgroup oom", rawResult{oomKilled: true, signal: 9, exitCode: -1}, MemoryLimitExceeded},
		{"metered peak above limit", rawResult{peakKiB: 64*1024 + 1, meteredKiB: 64*1024 + 1}, MemoryLimitExceeded},
		{"unmetered peak is only reported", rawResult{peakKiB: 70 * 1024}, Success},
		{"allocation failure marker", rawResult{exitCode: 1, stderr: []byte("Traceback\nMemoryError\n")}, MemoryLimitExceeded},
		{"marker on clean exit is ignored", rawResult{stderr: []byte("MemoryError")}, Success},
		{"time wins over memory", rawResult{wallExceeded: true, oomKilled: true}, TimeLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.raw, lim, markers))
		})
	}
}

func TestOutcomeExitStatus(t *testing.T) {
	exited := rawResult{exitCode: 3}.outcome(RuntimeError)
	if assert.NotNil(t, exited.ExitCode) {
		assert.Equal(t, 3, *exited.ExitCode)
	}
	assert.Nil(t, exited.Signal)

	killed := rawResult{signal: 9, exitCode: -1}.outcome(TimeLimitExceeded)
	assert.Nil(t, killed.ExitCode)
	if assert.NotNil(t, killed.Signal) {
		assert.Equal(t, 9, *killed.Signal)
	}
}

func TestLimitsNormalize(t *testing.T) {
	l, err := Limits{CPUTime: time.Second, MemoryBytes: 1}.Normalize()
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, l.WallTime)

	_, err = Limits{CPUTime: 2 * time.Second, WallTime: time.Second, MemoryBytes: 1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidLimits)

	_, err = Limits{CPUTime: time.Second}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidLimits)

	_, err = Limits{MemoryBytes: 1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidLimits)

	assert.Equal(t, uint64(2), Limits{CPUTime: 1500 * time.Millisecond}.rlimitCPUSeconds())
	assert.Equal(t, uint64(1), Limits{CPUTime: time.Second}.rlimitCPUSeconds())
}

func TestCompileDiagnostic(t *testing.T) {
	assert.Equal(t, "main.py:1: invalid syntax",
		compileDiagnostic(RuntimeError, rawResult{exitCode: 1, stderr: []byte("main.py:1: invalid syntax\n")}))
	assert.Equal(t, "compilation time limit exceeded",
		compileDiagnostic(TimeLimitExceeded, rawResult{wallExceeded: true}))
	assert.Equal(t, "compiler exited with code 2",
		compileDiagnostic(RuntimeError, rawResult{exitCode: 2}))
}
