package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	msg := kafka.Message{Topic: "schedule.working_hours.changed.v1", Key: []byte("prac-1")}
	meta := ExtractEventMeta(msg)
	assert.Equal(t, "prac-1", meta.EventID)
	assert.Equal(t, "schedule.working_hours.changed.v1", meta.EventType)

	msg.Headers = []kafka.Header{
		{Key: HeaderEventID, Value: []byte("evt-9")},
		{Key: HeaderEventType, Value: []byte("custom")},
	}
	meta = ExtractEventMeta(msg)
	assert.Equal(t, "evt-9", meta.EventID)
	assert.Equal(t, "custom", meta.EventType)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: HeaderEventID, Value: []byte("1")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", HeaderValue(headers, "traceparent"))

	extracted := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	assert.Equal(t, traceID, trace.SpanContextFromContext(extracted).TraceID())
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	assert.EqualError(t, ReadyCheck(" ")(context.Background()), "kafka brokers not configured")
}
