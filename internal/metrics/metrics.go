package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "faturas_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultStale   = "stale"
	ResultApplied = "applied"
)

var (
	registerOnce sync.Once

	loadTotal   *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec

	loadedRecords  prometheus.Gauge
	loadedAccounts prometheus.Gauge

	malformedRecords *prometheus.CounterVec

	monthsResults *prometheus.CounterVec

	downloadTotal   *prometheus.CounterVec
	downloadLatency *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec

	httpRejected *prometheus.CounterVec
)

// Init registers the viewer metrics with the default registry. Calling it
// more than once is harmless; Observe* functions are no-ops before Init.
func Init() {
	registerOnce.Do(func() {
		loadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_loads_total",
				Help: "Total record store loads by result",
			},
			[]string{"result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "record_load_latency_seconds",
				Help:    "Record store load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		loadedRecords = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "loaded_records",
				Help: "Invoice records in the current snapshot",
			},
		)
		loadedAccounts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "loaded_accounts",
				Help: "Distinct accounts in the current snapshot",
			},
		)

		malformedRecords = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "malformed_records_total",
				Help: "Malformed invoice records seen by stage",
			},
			[]string{"stage"},
		)

		monthsResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "months_results_total",
				Help: "Month index queries by outcome (applied, stale, error)",
			},
			[]string{"result"},
		)

		downloadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "document_downloads_total",
				Help: "Invoice document downloads by result",
			},
			[]string{"result"},
		)
		downloadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "document_download_latency_seconds",
				Help:    "Invoice document download latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_exports_total",
				Help: "Series exports by format and result",
			},
			[]string{"format", "result"},
		)

		httpRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_rejected_requests_total",
				Help: "HTTP requests rejected or flagged by reason (rate_limited, suspicious)",
			},
			[]string{"reason"},
		)

		prometheus.MustRegister(
			loadTotal, loadLatency,
			loadedRecords, loadedAccounts,
			malformedRecords,
			monthsResults,
			downloadTotal, downloadLatency,
			exportTotal,
			httpRejected,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLoad records a record store load.
func ObserveLoad(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if loadTotal != nil {
		loadTotal.WithLabelValues(result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// SetSnapshotSize publishes the size of the current snapshot.
func SetSnapshotSize(records, accounts int) {
	if loadedRecords != nil {
		loadedRecords.Set(float64(records))
	}
	if loadedAccounts != nil {
		loadedAccounts.Set(float64(accounts))
	}
}

// AddMalformed counts malformed records found at stage ("load",
// "energy", "monetary").
func AddMalformed(stage string, count int) {
	if count <= 0 {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if malformedRecords != nil {
		malformedRecords.WithLabelValues(stage).Add(float64(count))
	}
}

// IncMonthsResult counts a month index query outcome.
func IncMonthsResult(result string) {
	if result == "" {
		result = "unknown"
	}
	if monthsResults != nil {
		monthsResults.WithLabelValues(result).Inc()
	}
}

// ObserveDownload records a document download.
func ObserveDownload(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if downloadTotal != nil {
		downloadTotal.WithLabelValues(result).Inc()
	}
	if downloadLatency != nil {
		downloadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExport counts a series export.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// IncHTTPRejected counts a request refused or flagged by the HTTP guards.
func IncHTTPRejected(reason string) {
	if httpRejected != nil {
		httpRejected.WithLabelValues(reason).Inc()
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
