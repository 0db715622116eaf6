// Package telemetry provides Prometheus metrics, tracing and correlation-id
// aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Dispatch outcomes by source and outcome label.
	DispatchTotal *prometheus.CounterVec
	// Successful invocations by source and kind.
	CommandInvocations *prometheus.CounterVec
	// Dispatch latency in seconds, by source.
	DispatchDuration *prometheus.HistogramVec

	// Usage accounting.
	UsageDropped       prometheus.Counter
	UsageFlushFailures prometheus.Counter
	UsagePendingGauge  prometheus.Gauge

	// Chat adapters.
	ChatReconnects    *prometheus.CounterVec
	ChatRepliesFailed *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatbot_dispatch_total", Help: "Inbound chat events by source and dispatch outcome"}, []string{"source", "outcome"})
		CommandInvocations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatbot_command_invocations_total", Help: "Successfully executed commands by source and kind"}, []string{"source", "kind"})
		DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "chatbot_dispatch_duration_seconds", Help: "Time from receiving an event to producing a reply", Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}}, []string{"source"})
		UsageDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chatbot_usage_dropped_total", Help: "Usage increments lost to storage failures"})
		UsageFlushFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chatbot_usage_flush_failures_total", Help: "Failed attempts to re-apply pending usage increments"})
		UsagePendingGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatbot_usage_pending", Help: "Usage increments waiting to be re-applied"})
		ChatReconnects = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatbot_chat_reconnects_total", Help: "Chat connection (re)attempts by platform"}, []string{"source"})
		ChatRepliesFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatbot_chat_replies_failed_total", Help: "Replies that could not be delivered by platform"}, []string{"source"})
	})
}

// ObserveDispatch records one dispatch outcome and its latency.
func ObserveDispatch(source, outcome string, d time.Duration) {
	if DispatchTotal != nil {
		DispatchTotal.WithLabelValues(source, outcome).Inc()
	}
	if DispatchDuration != nil {
		DispatchDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncInvocation counts a successfully executed command.
func IncInvocation(source, kind string) {
	if CommandInvocations != nil {
		CommandInvocations.WithLabelValues(source, kind).Inc()
	}
}

// IncUsageDropped counts an increment lost under the drop policy.
func IncUsageDropped() {
	if UsageDropped != nil {
		UsageDropped.Inc()
	}
}

// IncUsageFlushFailure counts a failed pending-usage flush.
func IncUsageFlushFailure() {
	if UsageFlushFailures != nil {
		UsageFlushFailures.Inc()
	}
}

// SetUsagePending records the number of pending increments.
func SetUsagePending(n int64) {
	if UsagePendingGauge != nil {
		UsagePendingGauge.Set(float64(n))
	}
}

// IncChatReconnect counts a chat connection attempt.
func IncChatReconnect(source string) {
	if ChatReconnects != nil {
		ChatReconnects.WithLabelValues(source).Inc()
	}
}

// IncReplyFailed counts an undeliverable reply.
func IncReplyFailed(source string) {
	if ChatRepliesFailed != nil {
		ChatRepliesFailed.WithLabelValues(source).Inc()
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
