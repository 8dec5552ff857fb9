package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/programme-lv/judge/internal/metrics"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, c *metrics.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	res := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		res[f.GetName()] = f
	}
	return res
}

func labels(m *dto.Metric) map[string]string {
	res := map[string]string{}
	for _, l := range m.GetLabel() {
		res[l.GetName()] = l.GetValue()
	}
	return res
}

func TestObserveExecution(t *testing.T) {
	c := metrics.New(nil)
	var _ sandbox.Observer = c

	c.ObserveExecution("cpp", sandbox.PhaseCompile, sandbox.ExecutionOutcome{Kind: sandbox.Success, CPUTime: 800 * time.Millisecond})
	c.ObserveExecution("cpp", sandbox.PhaseRun, sandbox.ExecutionOutcome{Kind: sandbox.TimeLimitExceeded, CPUTime: time.Second, MemoryKiB: 2048})
	c.ObserveExecution("cpp", sandbox.PhaseRun, sandbox.ExecutionOutcome{Kind: sandbox.TimeLimitExceeded})
	c.ObserveExecution("py", sandbox.PhaseRun, sandbox.ExecutionOutcome{Kind: sandbox.InternalError})

	fams := gather(t, c)
	execs := fams["judge_executions_total"]
	require.NotNil(t, execs)
	counts := map[string]float64{}
	for _, m := range execs.GetMetric() {
		l := labels(m)
		counts[l["language"]+"/"+l["phase"]+"/"+l["outcome"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"cpp/compile/success":         1,
		"cpp/run/time_limit_exceeded": 2,
		"py/run/internal_error":       1,
	}, counts)

	mem := fams["judge_execution_memory_kib"]
	require.NotNil(t, mem)
	require.Len(t, mem.GetMetric(), 1)
	assert.Equal(t, uint64(2), mem.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestStartJob(t *testing.T) {
	c := metrics.New(func() int { return 3 })

	finish := c.StartJob()
	fams := gather(t, c)
	assert.Equal(t, 1.0, fams["judge_jobs_in_flight"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 3.0, fams["judge_active_workspaces"].GetMetric()[0].GetGauge().GetValue())

	finish(verdict.WrongAnswer)
	fams = gather(t, c)
	assert.Equal(t, 0.0, fams["judge_jobs_in_flight"].GetMetric()[0].GetGauge().GetValue())
	v := fams["judge_verdicts_total"].GetMetric()
	require.Len(t, v, 1)
	assert.Equal(t, "WA", labels(v[0])["verdict"])
	assert.Equal(t, uint64(1), fams["judge_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestHandler(t *testing.T) {
	c := metrics.New(nil)
	c.StartJob()(verdict.Accepted)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `judge_verdicts_total{verdict="AC"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
