package instrumentation

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
)

func useSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithTool("mail_get_message").
		WithAccount("A1").
		WithFolder("F1").
		WithMessage("M1").
		Build()

	got := make(map[string]string)
	for _, attr := range attrs {
		got[string(attr.Key)] = attr.Value.AsString()
	}

	assert.Equal(t, map[string]string{
		SpanAttrTool:    "mail_get_message",
		SpanAttrAccount: "A1",
		SpanAttrFolder:  "F1",
		SpanAttrMessage: "M1",
	}, got)
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithTool("test_tool").
		WithAccount("").
		WithFolder("").
		Build()

	assert.Len(t, attrs, 1, "only the tool attribute should be present")
}

func TestSpanStarters(t *testing.T) {
	tests := []struct {
		name     string
		start    func(ctx context.Context) (context.Context, trace.Span)
		wantName string
		wantKind trace.SpanKind
	}{
		{
			name: "plain span",
			start: func(ctx context.Context) (context.Context, trace.Span) {
				return StartSpan(ctx, "proxy.request")
			},
			wantName: "proxy.request",
			wantKind: trace.SpanKindInternal,
		},
		{
			name: "tool span",
			start: func(ctx context.Context) (context.Context, trace.Span) {
				return StartToolSpan(ctx, "mail_list_messages")
			},
			wantName: "tool.mail_list_messages",
			wantKind: trace.SpanKindServer,
		},
		{
			name: "provider span",
			start: func(ctx context.Context) (context.Context, trace.Span) {
				return StartProviderSpan(ctx, OperationList)
			},
			wantName: "provider.list",
			wantKind: trace.SpanKindClient,
		},
		{
			name: "oauth span",
			start: func(ctx context.Context) (context.Context, trace.Span) {
				return StartOAuthSpan(ctx, "refresh_token")
			},
			wantName: "oauth.refresh_token",
			wantKind: trace.SpanKindClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := useSpanRecorder(t)

			ctx, span := tt.start(context.Background())
			assert.NotEmpty(t, GetTraceID(ctx))
			assert.NotEmpty(t, GetSpanID(ctx))
			span.End()

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantName, spans[0].Name())
			assert.Equal(t, tt.wantKind, spans[0].SpanKind())
		})
	}
}

func TestSetSpanStatus(t *testing.T) {
	recorder := useSpanRecorder(t)

	_, failed := StartSpan(context.Background(), "failed")
	SetSpanError(failed, errors.New("boom"))
	failed.End()

	_, ok := StartSpan(context.Background(), "ok")
	SetSpanSuccess(ok)
	ok.End()

	_, untouched := StartSpan(context.Background(), "untouched")
	SetSpanError(untouched, nil)
	untouched.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
}

func TestTraceIDs_NoSpan(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}
