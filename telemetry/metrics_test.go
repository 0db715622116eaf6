package telemetry

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if DispatchTotal == nil || CommandInvocations == nil || DispatchDuration == nil {
		t.Fatal("dispatch metrics not initialized")
	}
	if UsageDropped == nil || UsageFlushFailures == nil || UsagePendingGauge == nil {
		t.Fatal("usage metrics not initialized")
	}
	if ChatReconnects == nil || ChatRepliesFailed == nil {
		t.Fatal("chat metrics not initialized")
	}
}

func TestObserveDispatch(t *testing.T) {
	Init()

	before := promtestutil.ToFloat64(DispatchTotal.WithLabelValues("twitch", "ok"))
	ObserveDispatch("twitch", "ok", 20*time.Millisecond)
	ObserveDispatch("twitch", "ok", 30*time.Millisecond)
	if got := promtestutil.ToFloat64(DispatchTotal.WithLabelValues("twitch", "ok")); got != before+2 {
		t.Errorf("dispatch_total = %v, want %v", got, before+2)
	}

	metric := &dto.Metric{}
	obs, err := DispatchDuration.GetMetricWithLabelValues("twitch")
	if err != nil {
		t.Fatal(err)
	}
	if err := obs.(interface{ Write(*dto.Metric) error }).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if metric.Histogram == nil || metric.Histogram.GetSampleCount() < 2 {
		t.Errorf("histogram sample count = %v, want >= 2", metric.Histogram.GetSampleCount())
	}
}

func TestUsageCounters(t *testing.T) {
	Init()

	before := promtestutil.ToFloat64(UsageDropped)
	IncUsageDropped()
	if got := promtestutil.ToFloat64(UsageDropped); got != before+1 {
		t.Errorf("usage_dropped = %v, want %v", got, before+1)
	}

	SetUsagePending(7)
	if got := promtestutil.ToFloat64(UsagePendingGauge); got != 7 {
		t.Errorf("usage_pending = %v, want 7", got)
	}
	SetUsagePending(0)
}

func TestCorrelationLogger(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q", got)
	}
	if GetCorrelation(context.Background()) != "" {
		t.Error("empty context should have no correlation id")
	}
	if LoggerWithCorr(ctx) == nil || LoggerWithCorr(context.Background()) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "corr-1")
	ctx, span := StartSpan(ctx, "test", "op", SourceAttr("discord"))
	defer span.End()
	if ctx == nil {
		t.Fatal("nil context")
	}
	RecordError(span, nil)
	SetSpanSuccess(span)
}
