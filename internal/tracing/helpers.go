package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBOperation represents the type of store operation being traced.
type DBOperation string

const (
	// DBOperationQuery represents a read of one or more rows.
	DBOperationQuery DBOperation = "query"
	// DBOperationInsert represents an insert of a new row.
	DBOperationInsert DBOperation = "insert"
	// DBOperationUpdate represents a keyed field update.
	DBOperationUpdate DBOperation = "update"
	// DBOperationDelete represents a keyed row delete.
	DBOperationDelete DBOperation = "delete"
)

// Backing systems reported in the db.system attribute.
const (
	SystemPostgres = "postgresql"
	SystemRedis    = "redis"
)

// StartStoreSpan creates a new client span for a row store operation.
// Returns the new context and a function to end the span.
//
//	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemPostgres, "widgets", tracing.DBOperationUpdate)
//	defer func() { endSpan(err) }()
func StartStoreSpan(ctx context.Context, system, table string, operation DBOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("homelayout/rowstore")

	spanName := string(operation)
	if table != "" {
		spanName = spanName + " " + table
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", string(operation)),
		),
	)

	if table != "" {
		span.SetAttributes(attribute.String("db.collection.name", table))
	}

	return ctx, endFunc(span)
}

// StartSpan creates a new internal span for a layout or location operation.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	tracer := otel.Tracer("homelayout")

	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
