package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// setupTestTracer installs a tracer provider backed by an in-memory span recorder
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "chat_sync", "sync_chats",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, "avito"),
	)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "chat_sync.sync_chats", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())

	attrs := spans[0].Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, telemetry.SpanAttrPlatform, string(attrs[0].Key))
	assert.Equal(t, "avito", attrs[0].Value.AsString())
}

func TestSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "outbound_sender.send_message")
	telemetry.SetOK(span)
	telemetry.SetOK(nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "outbound_sender.send")
	telemetry.RecordError(span, errors.New("platform down"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "platform down", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordError_NilIsIgnored(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "noop")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("ignored"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "attrs")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrChatsTotal, 3,
		telemetry.SpanAttrChatsSynced, int64(2),
		"ignored-without-value",
	)
	telemetry.AddEvent(span, telemetry.EventDuplicateSkipped, telemetry.SpanAttrMessageExternal, "m1")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)

	values := map[string]int64{}
	for _, kv := range spans[0].Attributes() {
		values[string(kv.Key)] = kv.Value.AsInt64()
	}
	assert.Equal(t, int64(3), values[telemetry.SpanAttrChatsTotal])
	assert.Equal(t, int64(2), values[telemetry.SpanAttrChatsSynced])
	require.Len(t, spans[0].Events(), 1)
	event := spans[0].Events()[0]
	assert.Equal(t, telemetry.EventDuplicateSkipped, event.Name)
	require.Len(t, event.Attributes, 1)
	assert.Equal(t, "m1", event.Attributes[0].Value.AsString())
}
