package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
)

const namespace = "cheo"

// statuses
const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Recorder holds the collectors of one process on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	rankingRuns      *prometheus.CounterVec
	rankingRecords   *prometheus.CounterVec
	leaderboardRuns  *prometheus.CounterVec
	leaderboardSize  *prometheus.GaugeVec
	batchDuration    *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpRequestsTime *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rankingRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ranking_runs_total",
				Help:      "Total number of ranking scope runs",
			},
			[]string{"scope", "status"},
		),
		rankingRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ranking_records_total",
				Help:      "Total number of ranked students and skipped performance records",
			},
			[]string{"outcome"},
		),
		leaderboardRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leaderboard_runs_total",
				Help:      "Total number of leaderboard runs",
			},
			[]string{"status"},
		),
		leaderboardSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "leaderboard_entries",
				Help:      "Number of entries of a leaderboard after its last run",
			},
			[]string{"leaderboard"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch runs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpRequestsTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.rankingRuns,
		r.rankingRecords,
		r.leaderboardRuns,
		r.leaderboardSize,
		r.batchDuration,
		r.httpRequests,
		r.httpRequestsTime,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRanking records a ranking batch run.
func (r *Recorder) ObserveRanking(batch ranking.BatchSummary, elapsed time.Duration) {
	for _, s := range batch.Scopes {
		r.ObserveRankingScope(s, nil)
	}
	for _, f := range batch.Failures {
		r.ObserveRankingScope(ranking.Summary{Scope: f.Scope}, f)
	}
	r.batchDuration.WithLabelValues(core.EngineRanking).Observe(elapsed.Seconds())
}

// ObserveRankingScope records the run of one ranking scope.
func (r *Recorder) ObserveRankingScope(s ranking.Summary, err error) {
	if err != nil {
		r.rankingRuns.WithLabelValues(s.Scope.Kind, statusFailed).Inc()
		return
	}
	r.rankingRuns.WithLabelValues(s.Scope.Kind, statusOK).Inc()
	r.rankingRecords.WithLabelValues("ranked").Add(float64(s.Processed))
	r.rankingRecords.WithLabelValues("skipped").Add(float64(s.Errors))
}

// ObserveLeaderboards records a leaderboard batch run.
func (r *Recorder) ObserveLeaderboards(batch leaderboard.BatchSummary, elapsed time.Duration) {
	for _, res := range batch.Results {
		r.ObserveLeaderboard(res, nil)
	}
	for range batch.Failures {
		r.leaderboardRuns.WithLabelValues(statusFailed).Inc()
	}
	r.batchDuration.WithLabelValues(core.EngineLeaderboard).Observe(elapsed.Seconds())
}

// ObserveLeaderboard records the run of one leaderboard.
func (r *Recorder) ObserveLeaderboard(res leaderboard.Result, err error) {
	if err != nil {
		r.leaderboardRuns.WithLabelValues(statusFailed).Inc()
		return
	}
	r.leaderboardRuns.WithLabelValues(statusOK).Inc()
	r.leaderboardSize.WithLabelValues(strconv.Itoa(res.LeaderboardID)).Set(float64(res.EntriesWritten))
}

// ObserveRequest records one HTTP request. path must be the route template, not the raw URL path.
func (r *Recorder) ObserveRequest(path, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	r.httpRequestsTime.WithLabelValues(path, method).Observe(elapsed.Seconds())
}
