// Package metrics exposes Prometheus instruments for the form bot.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/linzabot/core/logger"
)

// Submission outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

var (
	// UpdatesReceived counts Telegram updates by kind (message, callback, command).
	UpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linzabot_updates_received_total",
			Help: "The total number of Telegram updates received.",
		},
		[]string{"kind"},
	)

	// Transitions counts conversation transitions.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linzabot_form_transitions_total",
			Help: "The total number of conversation state transitions.",
		},
		[]string{"from", "to", "event"},
	)

	// Submissions counts questionnaire submissions by outcome.
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linzabot_form_submissions_total",
			Help: "The total number of questionnaire submissions.",
		},
		[]string{"outcome"},
	)

	// StoreDuration observes answer store operations.
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linzabot_store_operation_duration_seconds",
			Help:    "A histogram of answer store operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"op"},
	)

	// ActiveSessions reports in-memory conversation sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linzabot_active_sessions",
			Help: "The number of conversation sessions held in memory.",
		},
	)
)

// ObserveStore records the latency of a store operation started at start.
func ObserveStore(op string, start time.Time) {
	StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Server serves /metrics on a dedicated listener.
type Server struct {
	srv *http.Server
}

// NewServer builds a metrics server for addr. An empty addr disables it and returns nil.
func NewServer(addr string) *Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start runs the listener in the background.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		logger.TWire.Info("metrics listening",
			slog.String("event", "metrics.listen"),
			slog.String("addr", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.TWire.Error("metrics server failed",
				slog.String("event", "metrics.listen"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
