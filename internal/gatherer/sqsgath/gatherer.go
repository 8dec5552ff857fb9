package sqsgath

import (
	"context"
	"log/slog"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/gatherer"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

type sqsResQueueGatherer struct {
	gatherer.JobErrors

	ctx       context.Context
	sqsClient Sender
	queueUrl  string
	evalUuid  string
	log       *slog.Logger

	input string
}

func (s *sqsResQueueGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.evalUuid, systemInfo))
}

func (s *sqsResQueueGatherer) StartCompile() {
	s.send(api.NewStartCompile(s.evalUuid))
}

func (s *sqsResQueueGatherer) FinishCompile(out *sandbox.ExecutionOutcome) {
	s.send(api.NewFinishCompile(
		s.evalUuid,
		gatherer.RuntimeData(out, "", api.MaxRuntimeDataHeight*2, api.MaxRuntimeDataWidth*2),
	))
}

func (s *sqsResQueueGatherer) ReachTest(ordinal int, input, answer string) {
	s.input = input
	s.send(api.NewReachTest(
		s.evalUuid,
		int64(ordinal),
		gatherer.TrimPtr(input, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
		gatherer.TrimPtr(answer, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
	))
}

func (s *sqsResQueueGatherer) IgnoreTest(ordinal int) {
	s.send(api.NewIgnoreTest(s.evalUuid, int64(ordinal)))
}

func (s *sqsResQueueGatherer) FinishTest(ordinal int, v verdict.Verdict, out *sandbox.ExecutionOutcome) {
	s.send(api.NewFinishTest(
		s.evalUuid,
		int64(ordinal),
		string(v),
		gatherer.RuntimeData(out, s.input, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
	))
	s.input = ""
}

func (s *sqsResQueueGatherer) FinishJob(v verdict.Verdict, failing *int) {
	s.send(s.FinishMessage(s.evalUuid, v, failing))
}
