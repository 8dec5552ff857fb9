package sandbox

type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Observer is notified after every compile and run.
type Observer interface {
	ObserveExecution(language string, phase Phase, outcome ExecutionOutcome)
}

type noopObserver struct{}

func (noopObserver) ObserveExecution(string, Phase, ExecutionOutcome) {}
