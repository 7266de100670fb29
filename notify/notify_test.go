package notify

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var recorder *tracetest.SpanRecorder

func TestMain(m *testing.M) {
	recorder = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	os.Exit(m.Run())
}

func endedNames(from int) []string {
	var names []string
	for _, span := range recorder.Ended()[from:] {
		names = append(names, span.Name())
	}
	return names
}

func TestSendCreatedNotification_SpanChain(t *testing.T) {
	svc := &MockNotificationService{FailureRate: 0}

	before := len(recorder.Ended())
	err := svc.SendCreatedNotification(context.Background(), "id-1", "a title")
	require.NoError(t, err)

	// spans end innermost-first: webhook api, webhook, email api, email
	require.Equal(t,
		[]string{"external_api", "webhook_call", "external_api", "email_service"},
		endedNames(before))
}

func TestSendCreatedNotification_FailureSkipsEmail(t *testing.T) {
	svc := &MockNotificationService{FailureRate: 1}

	before := len(recorder.Ended())
	err := svc.SendCreatedNotification(context.Background(), "id-1", "a title")
	require.ErrorIs(t, err, ErrNotificationFailed)
	require.Equal(t, []string{"external_api", "webhook_call"}, endedNames(before))
}

func TestSendCompletedNotification_SpanChain(t *testing.T) {
	svc := &MockNotificationService{FailureRate: 0}

	before := len(recorder.Ended())
	err := svc.SendCompletedNotification(context.Background(), "id-1", "a title")
	require.NoError(t, err)
	require.Equal(t, []string{"external_api", "analytics_event"}, endedNames(before))
}

func TestSendBatchSummary_SpanChain(t *testing.T) {
	svc := &MockNotificationService{FailureRate: 0}

	before := len(recorder.Ended())
	err := svc.SendBatchSummary(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t,
		[]string{"external_api", "aggregation_service", "send_batch_summary"},
		endedNames(before))
}
