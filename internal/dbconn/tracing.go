package dbconn

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/careset/fhirstore/internal/txn"
)

// tracedHandle wraps a ConnectionHandle with OpenTelemetry spans around
// the session-control statements. Query/QueryRow/Exec pass straight through;
// application-level DML spans belong to the repository layer calling
// them, not the transport.
type tracedHandle struct {
	txn.ConnectionHandle
	tracer trace.Tracer
}

func (h *tracedHandle) Begin(ctx context.Context, level txn.IsolationLevel) error {
	ctx, span := h.tracer.Start(ctx, "txn.Begin", trace.WithAttributes(
		attribute.String("txn.isolation", level.String()),
	))
	defer span.End()
	return h.ConnectionHandle.Begin(ctx, level)
}

func (h *tracedHandle) Savepoint(ctx context.Context, name string) error {
	ctx, span := h.tracer.Start(ctx, "txn.Savepoint", trace.WithAttributes(attribute.String("txn.savepoint", name)))
	defer span.End()
	return h.ConnectionHandle.Savepoint(ctx, name)
}

func (h *tracedHandle) Release(ctx context.Context, name string) error {
	ctx, span := h.tracer.Start(ctx, "txn.Release", trace.WithAttributes(attribute.String("txn.savepoint", name)))
	defer span.End()
	return h.ConnectionHandle.Release(ctx, name)
}

func (h *tracedHandle) RollbackTo(ctx context.Context, name string) error {
	ctx, span := h.tracer.Start(ctx, "txn.RollbackTo", trace.WithAttributes(attribute.String("txn.savepoint", name)))
	defer span.End()
	return h.ConnectionHandle.RollbackTo(ctx, name)
}

func (h *tracedHandle) Commit(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "txn.Commit")
	defer span.End()
	return h.ConnectionHandle.Commit(ctx)
}

func (h *tracedHandle) Rollback(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "txn.Rollback")
	defer span.End()
	return h.ConnectionHandle.Rollback(ctx)
}

var _ txn.ConnectionHandle = (*tracedHandle)(nil)
