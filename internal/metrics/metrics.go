// Package metrics defines the counters and gauges the Scheduler and its
// tasks write to. The registry is a process-wide, write-only sink: tasks
// receive it explicitly and only ever call Inc/Set/Observe on it. No HTTP
// handler is wired here; a caller can expose it externally with
// promhttp.HandlerFor(Registry, ...).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the core pipeline emits.
type Metrics struct {
	Registry *prometheus.Registry

	RPCErrorsTotal          *prometheus.CounterVec
	UnprocessedSignatures   *prometheus.GaugeVec
	UnprocessedSignatureAge *prometheus.GaugeVec
	CandleLagSeconds        *prometheus.GaugeVec
	TaskRestartsTotal       *prometheus.CounterVec
	SignatureScraperLag     prometheus.Gauge
	FillsIngestedTotal      *prometheus.CounterVec
	MarketsDiscoveredTotal  prometheus.Counter
}

// New constructs and registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RPCErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_errors_total",
			Help: "Count of RPC call errors, labelled by method.",
		}, []string{"method"}),
		UnprocessedSignatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unprocessed_signatures",
			Help: "Number of unprocessed, non-error signatures per partition.",
		}, []string{"partition"}),
		UnprocessedSignatureAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unprocessed_signature_age_seconds",
			Help: "Age in seconds of the oldest unprocessed signature per partition.",
		}, []string{"partition"}),
		CandleLagSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "candle_lag_seconds",
			Help: "Seconds between now and the latest completed candle's end_time, per market and resolution.",
		}, []string{"market", "resolution"}),
		TaskRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_restarts_total",
			Help: "Count of task restarts after a crash, labelled by task name.",
		}, []string{"task"}),
		SignatureScraperLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signature_scraper_lag_slots",
			Help: "Slot difference between the chain head and the newest scraped signature.",
		}),
		FillsIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fills_ingested_total",
			Help: "Count of fill rows committed, labelled by market.",
		}, []string{"market"}),
		MarketsDiscoveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "markets_discovered_total",
			Help: "Count of new markets discovered via CreateMarket events.",
		}),
	}

	reg.MustRegister(
		m.RPCErrorsTotal,
		m.UnprocessedSignatures,
		m.UnprocessedSignatureAge,
		m.CandleLagSeconds,
		m.TaskRestartsTotal,
		m.SignatureScraperLag,
		m.FillsIngestedTotal,
		m.MarketsDiscoveredTotal,
	)

	return m
}
