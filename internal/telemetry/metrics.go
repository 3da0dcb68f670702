package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики ETL-запусков.
//
// Все методы безопасны для nil-получателя: компоненты, собранные
// без метрик, просто ничего не регистрируют.
type Metrics struct {
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	items         *prometheus.CounterVec
	commits       *prometheus.CounterVec
	documents     *prometheus.CounterVec
	chunkDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	progress      *prometheus.GaugeVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// reg == nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_source_requests_total",
			Help: "HTTP requests to the legislative API by path template and status code",
		}, []string{"path", "code"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legisync_source_request_duration_seconds",
			Help:    "Latency of HTTP requests to the legislative API",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_fetch_retries_total",
			Help: "Retried fetch attempts by entity",
		}, []string{"entity"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_stage_items_total",
			Help: "Items processed per entity, stage and outcome",
		}, []string{"entity", "stage", "outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_batch_commits_total",
			Help: "Batch commits per destination and outcome",
		}, []string{"destination", "outcome"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_documents_written_total",
			Help: "Documents written per entity and destination",
		}, []string{"entity", "destination"}),
		chunkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legisync_fetch_chunk_duration_seconds",
			Help:    "Duration of one concurrent fetch chunk",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"entity"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "legisync_runs_total",
			Help: "Finished runs per entity and final status",
		}, []string{"entity", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legisync_run_duration_seconds",
			Help:    "Duration of finished runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"entity"}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "legisync_run_progress_percent",
			Help: "Last reported progress of the current run per entity",
		}, []string{"entity"}),
	}

	reg.MustRegister(
		m.requests, m.requestTime, m.retries, m.items, m.commits,
		m.documents, m.chunkDuration, m.runs, m.runDuration, m.progress,
	)
	return m
}

// ObserveRequest учитывает один HTTP-запрос к источнику. code = 0 — сетевая ошибка.
func (m *Metrics) ObserveRequest(path string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	m.requestTime.WithLabelValues(path).Observe(d.Seconds())
}

// IncRetry учитывает повторную попытку вызова.
func (m *Metrics) IncRetry(entity string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(entity).Inc()
}

// AddItems учитывает исходы стадии.
func (m *Metrics) AddItems(entity, stage string, succeeded, failed int) {
	if m == nil {
		return
	}
	if succeeded > 0 {
		m.items.WithLabelValues(entity, stage, "succeeded").Add(float64(succeeded))
	}
	if failed > 0 {
		m.items.WithLabelValues(entity, stage, "failed").Add(float64(failed))
	}
}

// ObserveCommit учитывает один commit batch.
func (m *Metrics) ObserveCommit(entity, destination string, documents int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.commits.WithLabelValues(destination, "failed").Inc()
		return
	}
	m.commits.WithLabelValues(destination, "succeeded").Inc()
	m.documents.WithLabelValues(entity, destination).Add(float64(documents))
}

// ObserveChunk учитывает длительность окна выгрузки.
func (m *Metrics) ObserveChunk(entity string, d time.Duration) {
	if m == nil {
		return
	}
	m.chunkDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// SetProgress выставляет текущий прогресс run.
func (m *Metrics) SetProgress(entity string, percent float64) {
	if m == nil {
		return
	}
	m.progress.WithLabelValues(entity).Set(percent)
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(entity, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(entity, status).Inc()
	m.runDuration.WithLabelValues(entity).Observe(d.Seconds())
}
