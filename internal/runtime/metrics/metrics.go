// Package metrics exposes per-stage Prometheus counters. Lost messages are a
// designed-in behavior of the pipeline, so the drop counters are the only
// record that a frame ever existed.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imageflow"

// StageMetrics tracks the per-message outcomes of one pipeline stage.
type StageMetrics struct {
	Published       prometheus.Counter
	Dropped         prometheus.Counter
	ReceiveTimeouts prometheus.Counter
	DecodeErrors    prometheus.Counter
	TransformErrors prometheus.Counter
	StoreErrors     prometheus.Counter
	Persisted       prometheus.Counter

	registry *prometheus.Registry
}

func newCounter(stage, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stage",
		Name:      name,
		Help:      help,
		ConstLabels: prometheus.Labels{
			"stage": stage,
		},
	})
}

// NewStageMetrics creates the counters for a stage and registers them on a
// fresh registry.
func NewStageMetrics(stage string) *StageMetrics {
	m := &StageMetrics{
		Published:       newCounter(stage, "published_total", "Messages accepted by the outbound transport."),
		Dropped:         newCounter(stage, "dropped_total", "Messages rejected at the outbound watermark."),
		ReceiveTimeouts: newCounter(stage, "receive_timeouts_total", "Inbound waits that expired with no message."),
		DecodeErrors:    newCounter(stage, "decode_errors_total", "Inbound messages rejected by the wire codec."),
		TransformErrors: newCounter(stage, "transform_errors_total", "Messages dropped by a failing transform."),
		StoreErrors:     newCounter(stage, "store_errors_total", "Records rolled back by a failing persistence write."),
		Persisted:       newCounter(stage, "persisted_total", "Records committed to storage."),
		registry:        prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Published,
		m.Dropped,
		m.ReceiveTimeouts,
		m.DecodeErrors,
		m.TransformErrors,
		m.StoreErrors,
		m.Persisted,
	)
	return m
}

// Handler returns an http.Handler serving the stage's metrics in the
// Prometheus exposition format.
func (m *StageMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the given port in the background. Serving
// metrics is ancillary: a failure is reported through the returned channel
// but must never stop the stage.
func (m *StageMetrics) Serve(port int) <-chan error {
	errs := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	go func() {
		errs <- http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()
	return errs
}
