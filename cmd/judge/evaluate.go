package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/metrics"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"golang.org/x/sync/errgroup"
)

// fileStore is the part of *testfiles.Store the evaluator needs.
type fileStore interface {
	Schedule(sha256Hex string, rawURL string) error
	Await(ctx context.Context, sha256Hex string) ([]byte, error)
}

// evaluator turns wire requests into judge runs.
type evaluator struct {
	judge   *judge.Judge
	files   fileStore
	metrics *metrics.Collector
	log     *slog.Logger
}

func newEvaluator(j *judge.Judge, files fileStore, m *metrics.Collector, log *slog.Logger) *evaluator {
	return &evaluator{judge: j, files: files, metrics: m, log: log}
}

// Evaluate judges req and streams the progress to gath. Every request,
// even a malformed one, ends with a FinishJob event; the returned error
// is only for logging.
func (e *evaluator) Evaluate(ctx context.Context, req api.EvalReq, gath judge.ResultGatherer) (judge.Result, error) {
	log := e.log.With("eval_uuid", req.EvalUuid, "lang", req.LangId)
	started := time.Now()
	finish := func(verdict.Verdict) {}
	if e.metrics != nil {
		finish = e.metrics.StartJob()
	}

	res, err := e.evaluate(ctx, req, gath)
	if err != nil {
		log.Error("request rejected", "error", err)
		gath.InternalError(err.Error())
		gath.FinishJob(verdict.InternalError, nil)
		res = judge.Result{Verdict: verdict.InternalError, Message: err.Error()}
	}
	finish(res.Verdict)
	log.Info("evaluation finished", "verdict", res.Verdict, "took", time.Since(started))
	return res, err
}

func (e *evaluator) evaluate(ctx context.Context, req api.EvalReq, gath judge.ResultGatherer) (judge.Result, error) {
	if err := req.Validate(); err != nil {
		return judge.Result{}, err
	}
	tests, err := e.fetchTests(ctx, req.Tests)
	if err != nil {
		return judge.Result{}, err
	}
	sub := judge.Submission{
		Code:       req.Code,
		LanguageID: req.LangId,
		Limits: sandbox.Limits{
			CPUTime:     time.Duration(req.CpuMillis) * time.Millisecond,
			WallTime:    time.Duration(req.WallMillis) * time.Millisecond,
			MemoryBytes: req.MemoryKiB * 1024,
		},
	}
	return e.judge.Judge(ctx, sub, tests, gath)
}

// fetchTests resolves inline contents and downloads the rest concurrently.
func (e *evaluator) fetchTests(ctx context.Context, reqTests []api.ReqTest) ([]judge.TestCase, error) {
	tests := make([]judge.TestCase, len(reqTests))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range reqTests {
		tests[i].Ordinal = t.ID
		g.Go(func() error {
			in, err := e.content(ctx, t.InContent, t.InUrl, t.InSha256)
			if err != nil {
				return fmt.Errorf("test %d input: %w", t.ID, err)
			}
			ans, err := e.content(ctx, t.AnsContent, t.AnsUrl, t.AnsSha256)
			if err != nil {
				return fmt.Errorf("test %d answer: %w", t.ID, err)
			}
			tests[i].Input = in
			tests[i].Expected = ans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tests, nil
}

func (e *evaluator) content(ctx context.Context, content, url, sha *string) (string, error) {
	if content != nil {
		return *content, nil
	}
	if url == nil || sha == nil {
		return "", errors.New("neither content nor url with sha256 given")
	}
	if err := e.files.Schedule(*sha, *url); err != nil {
		return "", err
	}
	data, err := e.files.Await(ctx, *sha)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
