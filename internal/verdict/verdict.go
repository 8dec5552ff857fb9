package verdict

import (
	"fmt"
	"strings"

	"github.com/programme-lv/judge/internal/sandbox"
)

type Verdict string

const (
	Accepted            Verdict = "AC"
	WrongAnswer         Verdict = "WA"
	CompileError        Verdict = "CE"
	RuntimeError        Verdict = "RE"
	TimeLimitExceeded   Verdict = "TLE"
	MemoryLimitExceeded Verdict = "MLE"
	InternalError       Verdict = "IE"
)

var names = map[Verdict]string{
	Accepted:            "Accepted",
	WrongAnswer:         "WrongAnswer",
	CompileError:        "CompileError",
	RuntimeError:        "RuntimeError",
	TimeLimitExceeded:   "TimeLimitExceeded",
	MemoryLimitExceeded: "MemoryLimitExceeded",
	InternalError:       "InternalError",
}

// Name returns the long form, e.g. "WrongAnswer".
func (v Verdict) Name() string {
	if n, ok := names[v]; ok {
		return n
	}
	return string(v)
}

// Parse accepts both the short code and the long name, case-insensitively.
func Parse(s string) (Verdict, error) {
	s = strings.TrimSpace(s)
	for v, name := range names {
		if strings.EqualFold(s, string(v)) || strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown verdict %q", s)
}

var outcomeVerdicts = map[sandbox.OutcomeKind]Verdict{
	sandbox.CompileError:        CompileError,
	sandbox.RuntimeError:        RuntimeError,
	sandbox.TimeLimitExceeded:   TimeLimitExceeded,
	sandbox.MemoryLimitExceeded: MemoryLimitExceeded,
	sandbox.InternalError:       InternalError,
}

// Evaluate decides the verdict of one test. Failed executions map straight
// to their verdict; only a successful run has its output compared.
func Evaluate(out sandbox.ExecutionOutcome, expected string) Verdict {
	if out.Kind != sandbox.Success {
		if v, ok := outcomeVerdicts[out.Kind]; ok {
			return v
		}
		return InternalError
	}
	if out.StdoutTruncated {
		return WrongAnswer
	}
	if Equal(out.Stdout, expected) {
		return Accepted
	}
	return WrongAnswer
}
