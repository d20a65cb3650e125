// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GetTracer returns a tracer with the given name, using whatever global
// TracerProvider the embedding process has configured. The core never
// configures an exporter itself; that belongs to the metrics exporter
// collaborator, so this package stops at the tracer.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span with the given name and options
func StartSpan(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer := GetTracer(tracerName)
	return tracer.Start(ctx, spanName, opts...)
}

// SpanFromContext returns the current span from the context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddEvent adds an event to the current span
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// AddAttributes adds attributes to the current span
func AddAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
	}
}

// SetSpanStatus sets the status of the current span
func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}

// TraceID returns the trace ID from the current span
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	return span.SpanContext().TraceID().String()
}

// SpanID returns the span ID from the current span
func SpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	return span.SpanContext().SpanID().String()
}

// Common attribute keys for the hive domain.
const (
	AttrAgentID      = attribute.Key("hive.agent_id")
	AttrAgentVariant = attribute.Key("hive.agent_variant")
	AttrTaskID       = attribute.Key("hive.task_id")
	AttrTaskPriority = attribute.Key("hive.task_priority")
	AttrToolName     = attribute.Key("hive.tool_name")
	AttrBatchID      = attribute.Key("hive.batch_id")
	AttrFailureType  = attribute.Key("hive.failure_type")
	AttrStrategy     = attribute.Key("hive.recovery_strategy")

	AttrError        = attribute.Key("error")
	AttrErrorMessage = attribute.Key("error.message")
	AttrDuration     = attribute.Key("duration_ms")
	AttrSuccess      = attribute.Key("success")
)

// AgentAttrs creates attributes for agent-scoped spans
func AgentAttrs(agentID, variant string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrAgentVariant.String(variant),
	}
}

// TaskAttrs creates attributes for task-scoped spans
func TaskAttrs(taskID, priority string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrTaskID.String(taskID),
		AttrTaskPriority.String(priority),
	}
}

// RecoveryAttrs creates attributes for supervisor recovery spans
func RecoveryAttrs(agentID, failureType, strategy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrFailureType.String(failureType),
		AttrStrategy.String(strategy),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{}
	}
	return []attribute.KeyValue{
		AttrError.Bool(true),
		AttrErrorMessage.String(err.Error()),
	}
}

// DurationAttrs creates a duration attribute in milliseconds
func DurationAttrs(duration time.Duration) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDuration.Int64(duration.Milliseconds()),
	}
}
