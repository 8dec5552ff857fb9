// Package metrics exports judge activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	executions    *prometheus.CounterVec
	executionCPU  *prometheus.HistogramVec
	executionMem  *prometheus.HistogramVec
	verdicts      *prometheus.CounterVec
	judgeDuration prometheus.Histogram
	jobsInFlight  prometheus.Gauge
}

// New registers the judge metrics, plus Go and process collectors, in a
// registry of its own. activeWorkspaces is sampled on every scrape.
func New(activeWorkspaces func() int) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		reg: reg,
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judge_executions_total",
				Help: "Total number of sandboxed executions",
			},
			[]string{"language", "phase", "outcome"},
		),
		executionCPU: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judge_execution_cpu_ms",
				Help:    "CPU time per execution in milliseconds",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"language", "phase"},
		),
		executionMem: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judge_execution_memory_kib",
				Help:    "Peak memory usage per execution in KiB",
				Buckets: []float64{1024, 4096, 16384, 65536, 131072, 262144, 524288, 1048576},
			},
			[]string{"language"},
		),
		verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judge_verdicts_total",
				Help: "Total number of judged submissions by final verdict",
			},
			[]string{"verdict"},
		),
		judgeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "judge_duration_seconds",
				Help:    "Time to judge one submission",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		jobsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "judge_jobs_in_flight",
				Help: "Number of submissions being judged",
			},
		),
	}
	if activeWorkspaces != nil {
		f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "judge_active_workspaces",
				Help: "Number of workspaces currently on disk",
			},
			func() float64 { return float64(activeWorkspaces()) },
		)
	}
	return c
}

// ObserveExecution implements sandbox.Observer.
func (c *Collector) ObserveExecution(language string, phase sandbox.Phase, out sandbox.ExecutionOutcome) {
	c.executions.WithLabelValues(language, string(phase), string(out.Kind)).Inc()
	if out.Kind == sandbox.InternalError {
		return
	}
	c.executionCPU.WithLabelValues(language, string(phase)).Observe(float64(out.CPUTime.Milliseconds()))
	if phase == sandbox.PhaseRun {
		c.executionMem.WithLabelValues(language).Observe(float64(out.MemoryKiB))
	}
}

// StartJob marks a submission as in flight. The returned function records
// its verdict and must be called exactly once.
func (c *Collector) StartJob() func(v verdict.Verdict) {
	started := time.Now()
	c.jobsInFlight.Inc()
	return func(v verdict.Verdict) {
		c.jobsInFlight.Dec()
		c.judgeDuration.Observe(time.Since(started).Seconds())
		c.verdicts.WithLabelValues(string(v)).Inc()
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}
