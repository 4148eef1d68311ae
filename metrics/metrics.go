// The metrics package defines prometheus metric types and provides
// convenience methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: rows, events, corrupt frames.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SetupPrometheus registers every metric below and starts an HTTP server
// on promPort serving /metrics and the standard pprof debug endpoints. A
// promPort <= 0 disables exporting entirely (useful for replay/analyze
// runs that don't need a live dashboard).
func SetupPrometheus(promPort int) {
	if promPort <= 0 {
		log.Info().Msg("metrics: not exporting prometheus metrics")
		return
	}

	// Custom mux on a separate port so the admin surface (out of scope for
	// this module) can keep the default port to itself.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	prometheus.MustRegister(RowsTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(SkippedTotal)
	prometheus.MustRegister(ImsiExposureRatio)
	prometheus.MustRegister(CorruptFramesTotal)
	prometheus.MustRegister(QmdlBytesWritten)
	prometheus.MustRegister(RowJSONSizeHistogram)

	port := fmt.Sprintf(":%d", promPort)
	log.Info().Str("addr", port).Msg("metrics: exporting prometheus metrics")
	go http.ListenAndServe(port, mux)
}

var (
	// RowsTotal counts analysis rows emitted to the report, one per
	// MessagesContainer.
	//
	// Provides metric: rayhunter_rows_total
	RowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rayhunter_rows_total",
		Help: "Total number of analysis rows emitted to the report.",
	})

	// EventsTotal counts analyzer events by severity.
	//
	// Provides metric: rayhunter_events_total{severity="..."}
	// Example usage:
	//   metrics.EventsTotal.With(prometheus.Labels{"severity": "High"}).Inc()
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rayhunter_events_total",
		Help: "Total number of analyzer events, by severity.",
	}, []string{"severity"})

	// SkippedTotal counts log items that failed Stage B decoding, by
	// reason.
	//
	// Provides metric: rayhunter_skipped_total{reason="..."}
	SkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rayhunter_skipped_total",
		Help: "Total number of log items that produced no InformationElement, by skip reason.",
	}, []string{"reason"})

	// ImsiExposureRatio is the gauge for the IMSI exposure ratio analyzer's
	// sliding-window ratio. It is registered and exported, but nothing in
	// this module sets it, so it reads 0.
	//
	// Provides metric: rayhunter_imsi_exposure_ratio
	ImsiExposureRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rayhunter_imsi_exposure_ratio",
		Help: "Current ratio of IMSI-exposing messages in the sliding window.",
	})

	// CorruptFramesTotal is the counter for HDLC framing errors seen by the
	// active transport or replay source. It is registered and exported, but
	// nothing in this module increments it; the sources keep their own
	// CorruptFrameCount instead.
	//
	// Provides metric: rayhunter_corrupt_frames_total
	CorruptFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rayhunter_corrupt_frames_total",
		Help: "Total number of HDLC frames that failed CRC or framing.",
	})

	// QmdlBytesWritten is the gauge for the current recording's QMDL file
	// size. It is registered and exported, but nothing in this module sets
	// it.
	//
	// Provides metric: rayhunter_qmdl_bytes_written
	QmdlBytesWritten = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rayhunter_qmdl_bytes_written",
		Help: "Size in bytes of the current QMDL capture file.",
	})

	// RowJSONSizeHistogram provides a histogram of marshaled NDJSON row
	// sizes, useful for sizing report-writer buffers.
	//
	// Provides metric: rayhunter_row_json_size_bytes_bucket{le="..."}
	RowJSONSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rayhunter_row_json_size_bytes",
		Help:    "Marshaled NDJSON row size distribution.",
		Buckets: []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384},
	})
)
