package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "aiwebengine-assistant"

// Metrics holds the assistant's metric instruments.
type Metrics struct {
	Prompts        metric.Int64Counter
	TurnLimitHits  metric.Int64Counter
	ModelCalls     metric.Int64Counter
	ModelErrors    metric.Int64Counter
	ModelLatency   metric.Float64Histogram
	ToolUses       metric.Int64Counter
	Approvals      metric.Int64Counter
	Rejections     metric.Int64Counter
	Commits        metric.Int64Counter
	CommitFailures metric.Int64Counter
}

// NewMetrics creates all instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.Prompts, "assistant.prompts", "Operator prompts accepted"},
		{&m.TurnLimitHits, "assistant.turn_limit.rejections", "Prompts rejected by the turn limit"},
		{&m.ModelCalls, "assistant.model.calls", "Model backend requests"},
		{&m.ModelErrors, "assistant.model.errors", "Failed model backend requests"},
		{&m.ToolUses, "assistant.tool_uses", "Tool uses by gate decision"},
		{&m.Approvals, "assistant.approvals", "Tool uses approved by the operator"},
		{&m.Rejections, "assistant.rejections", "Tool uses rejected by the operator"},
		{&m.Commits, "assistant.commits", "Changes committed to the backing store"},
		{&m.CommitFailures, "assistant.commit.failures", "Failed backing store commits"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.ModelLatency, err = meter.Float64Histogram("assistant.model.duration_seconds",
		metric.WithDescription("Model backend round trip in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordToolUse counts a tool use with its gate decision.
func (m *Metrics) RecordToolUse(ctx context.Context, tool, decision string) {
	if m == nil {
		return
	}
	m.add(ctx, m.ToolUses, attribute.String("tool", tool), attribute.String("decision", decision))
}

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// The Record helpers are no-ops on a nil receiver.

// RecordPrompt counts an accepted operator prompt.
func (m *Metrics) RecordPrompt(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.Prompts)
	}
}

// RecordTurnLimit counts a prompt rejected by the turn limit.
func (m *Metrics) RecordTurnLimit(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.TurnLimitHits)
	}
}

// RecordModelCall counts a model round trip and its latency.
func (m *Metrics) RecordModelCall(ctx context.Context, seconds float64, err error) {
	if m == nil {
		return
	}
	m.add(ctx, m.ModelCalls)
	if err != nil {
		m.add(ctx, m.ModelErrors)
	}
	if m.ModelLatency != nil {
		m.ModelLatency.Record(ctx, seconds)
	}
}

// RecordResolution counts an operator approval or rejection.
func (m *Metrics) RecordResolution(ctx context.Context, tool string, approved bool) {
	if m == nil {
		return
	}
	c := m.Rejections
	if approved {
		c = m.Approvals
	}
	m.add(ctx, c, attribute.String("tool", tool))
}

// RecordCommit counts a backing store commit by action.
func (m *Metrics) RecordCommit(ctx context.Context, action string, err error) {
	if m == nil {
		return
	}
	c := m.Commits
	if err != nil {
		c = m.CommitFailures
	}
	m.add(ctx, c, attribute.String("action", action))
}
