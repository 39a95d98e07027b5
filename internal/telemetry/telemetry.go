// Package telemetry exposes service metrics through an OpenTelemetry meter
// provider backed by a Prometheus registry.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/ashureev/pm-advisor"

// Attribute keys shared by the service's instruments.
var (
	AttrPurpose  = attribute.Key("purpose")
	AttrProvider = attribute.Key("provider")
	AttrModel    = attribute.Key("model")
	AttrOutcome  = attribute.Key("outcome")
	AttrStage    = attribute.Key("stage")
	AttrSender   = attribute.Key("sender_type")
)

// Metrics owns the meter provider and the instruments recorded by the service.
// It implements llm.Observer and the advisor metrics hooks.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	llmCalls     metric.Int64Counter
	llmLatency   metric.Float64Histogram
	promptChars  metric.Int64Histogram
	goalStages   metric.Int64Counter
	messageCount metric.Int64Counter
}

// New builds a meter provider exporting to a private Prometheus registry and
// installs it as the global provider so HTTP instrumentation reports there too.
func New(ctx context.Context, serviceName string) (*Metrics, error) {
	if serviceName == "" {
		serviceName = "pm-advisor"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	}
	if err := m.initInstruments(provider.Meter(meterName)); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initInstruments(meter metric.Meter) error {
	var err error
	m.llmCalls, err = meter.Int64Counter("pm_advisor_llm_calls_total",
		metric.WithDescription("Language model calls by purpose and outcome"))
	if err != nil {
		return fmt.Errorf("create llm call counter: %w", err)
	}
	m.llmLatency, err = meter.Float64Histogram("pm_advisor_llm_call_duration_seconds",
		metric.WithDescription("Language model call latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create llm latency histogram: %w", err)
	}
	m.promptChars, err = meter.Int64Histogram("pm_advisor_llm_prompt_chars",
		metric.WithDescription("Prompt size in characters"),
		metric.WithExplicitBucketBoundaries(500, 1000, 2000, 4000, 8000, 16000, 32000))
	if err != nil {
		return fmt.Errorf("create prompt size histogram: %w", err)
	}
	m.goalStages, err = meter.Int64Counter("pm_advisor_goal_recovery_total",
		metric.WithDescription("Weekly goals by the parsing stage that recovered them"))
	if err != nil {
		return fmt.Errorf("create goal recovery counter: %w", err)
	}
	m.messageCount, err = meter.Int64Counter("pm_advisor_conversation_messages_total",
		metric.WithDescription("Messages appended to stored conversations"))
	if err != nil {
		return fmt.Errorf("create message counter: %w", err)
	}
	return nil
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// OnCallComplete records one language model call.
func (m *Metrics) OnCallComplete(event llm.CallEvent) {
	ctx := context.Background()
	outcome := "success"
	if !event.Success {
		outcome = event.ErrorCode
	}
	attrs := metric.WithAttributes(
		AttrPurpose.String(event.Purpose),
		AttrProvider.String(event.Provider),
		AttrModel.String(event.Model),
		AttrOutcome.String(outcome),
	)
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, event.Latency.Seconds(), attrs)
	m.promptChars.Record(ctx, int64(event.PromptChars), metric.WithAttributes(AttrPurpose.String(event.Purpose)))
}

// GoalRecovered counts a weekly goal by the stage that produced it.
func (m *Metrics) GoalRecovered(ctx context.Context, stage string) {
	m.goalStages.Add(ctx, 1, metric.WithAttributes(AttrStage.String(stage)))
}

// MessageAppended counts a stored conversation message.
func (m *Metrics) MessageAppended(ctx context.Context, sender domain.SenderType) {
	m.messageCount.Add(ctx, 1, metric.WithAttributes(AttrSender.String(string(sender))))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
