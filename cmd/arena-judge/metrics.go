package main

import (
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/workspace"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "arena_judge"

	// languages outside the registry share one label value
	unsupportedLanguage = "unsupported"
)

var (
	// 1ms -> 30s
	timeBuckets = []float64{
		0.001, 0.002, 0.005, 0.010, 0.025, 0.050, 0.075, 0.1, 0.2,
		0.4, 0.6, 0.8, 1.0, 1.5, 2, 3, 5, 10, 15, 30,
	}

	// 1 -> 1024 test cases
	caseBuckets = prometheus.ExponentialBuckets(1, 2, 11)

	metricsSummaryQuantile = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

	execVerdictCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "verdict_total",
		Help:      "Number of verdicts by language, status and error kind",
	}, []string{"language", "status", "kind"})

	execTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "time_seconds",
		Help:      "Histogram for the execution time",
		Buckets:   timeBuckets,
	}, []string{"language", "status"})

	execTimeSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  metricsNamespace,
		Name:       "time",
		Help:       "Summary for the execution time",
		Objectives: metricsSummaryQuantile,
	}, []string{"language", "status"})

	execQueueHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "queue_seconds",
		Help:      "Histogram for the time spent waiting for a worker",
		Buckets:   timeBuckets,
	})

	execCaseHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "test_cases",
		Help:      "Histogram for the number of test results in a verdict",
		Buckets:   caseBuckets,
	}, []string{"language"})
)

func init() {
	prometheus.MustRegister(execVerdictCount)
	prometheus.MustRegister(execTimeHist, execTimeSummary)
	prometheus.MustRegister(execQueueHist, execCaseHist)
}

func newExecObserver(languages *language.Registry) func(judge.Response) {
	return func(res judge.Response) {
		execObserve(languageLabel(languages, res), res)
	}
}

func languageLabel(languages *language.Registry, res judge.Response) string {
	if _, ok := languages.Get(res.Language); !ok {
		return unsupportedLanguage
	}
	return string(res.Language)
}

func execObserve(lang string, res judge.Response) {
	status := res.Verdict.Status.String()
	execVerdictCount.WithLabelValues(lang, status, string(res.Verdict.Kind)).Inc()

	d := res.Duration.Seconds()
	execTimeHist.WithLabelValues(lang, status).Observe(d)
	execTimeSummary.WithLabelValues(lang, status).Observe(d)
	execQueueHist.Observe(res.Queued.Seconds())
	if len(res.Verdict.Results) > 0 {
		execCaseHist.WithLabelValues(lang).Observe(float64(len(res.Verdict.Results)))
	}
}

func registerWorkspaceMetrics(m *workspace.Manager) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "workspace_in_use",
		Help:      "Number of workspaces currently acquired",
	}, func() float64 {
		return float64(m.Live())
	}))
}
