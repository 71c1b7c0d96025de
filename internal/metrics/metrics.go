package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	TicksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcx_ticks_received_total",
		Help: "Ticks accepted into the processing queue, by source",
	}, []string{"source"})

	TicksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcx_ticks_rejected_total",
		Help: "Ticks refused before processing, by source and reason",
	}, []string{"source", "reason"})

	TicksDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcx_ticks_discarded_total",
		Help: "Ticks that did not reach the diagnostics, by reason",
	}, []string{"reason"})

	TicksAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rcx_ticks_analyzed_total",
		Help: "Ticks that passed every precondition",
	})

	FaultRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcx_fault_records_total",
		Help: "Diagnostic rows produced, by diagnostic and color",
	}, []string{"diagnostic", "color"})

	EnergyImpact = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rcx_energy_impact_kw",
		Help: "Latest computed energy impact, by diagnostic",
	}, []string{"diagnostic"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rcx_queue_depth",
		Help: "Ticks waiting for the analyzer",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcx_sink_errors_total",
		Help: "Failed row writes, by writer",
	}, []string{"writer"})
)
