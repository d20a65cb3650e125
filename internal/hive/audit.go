// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package hive

import (
	"context"
	"log/slog"
	"time"

	"hive/internal/toolbus"
)

// AuditEvent is one record handed to the persistence collaborator's
// append-only sink. The core never writes files directly (spec.md §6);
// it only ever calls sink.append(event).
type AuditEvent struct {
	Kind      string // "tool_invocation", "incident", "task_lifecycle"
	Timestamp time.Time
	Payload   any
}

// AuditSink models the persistence collaborator's append-only interface.
// The core depends only on this narrow contract, never on a concrete
// store — the real sink lives outside the core per spec.md §6.
type AuditSink interface {
	Append(ctx context.Context, event AuditEvent)
}

// NoopAuditSink discards every event; it is the coordinator's default so
// construction never requires a live persistence collaborator.
type NoopAuditSink struct{}

func (NoopAuditSink) Append(context.Context, AuditEvent) {}

// LoggingAuditSink logs events at Info level in place of a real sink.
// Useful for the demo entry point and for tests that want visibility
// without standing up the persistence collaborator.
type LoggingAuditSink struct {
	Logger *slog.Logger
}

func (s LoggingAuditSink) Append(_ context.Context, event AuditEvent) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit event", "kind", event.Kind, "payload", event.Payload)
}

// toolbusAuditor adapts an AuditSink to toolbus.Auditor so the bus can
// emit tool-invocation events without depending on this package.
type toolbusAuditor struct {
	sink AuditSink
}

func (a toolbusAuditor) Append(ctx context.Context, e toolbus.Event) {
	a.sink.Append(ctx, AuditEvent{Kind: "tool_invocation", Timestamp: e.Timestamp, Payload: e})
}
