package notify

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotificationFailed = errors.New("notification service error")
	ErrRateLimited        = errors.New("rate limited by external API")
)

var tracer = otel.Tracer("todo-api/notify")

// NotificationService fans out side effects after todo mutations. Callers
// treat failures as non-fatal: they are recorded on the trace and dropped.
type NotificationService interface {
	SendCreatedNotification(ctx context.Context, todoID, title string) error
	SendCompletedNotification(ctx context.Context, todoID, title string) error
	SendBatchSummary(ctx context.Context, count int) error
}

// MockNotificationService has no real network effect. Every "call" is a
// sleep inside an external_api span, with occasional injected failures so
// traces show error states too.
type MockNotificationService struct {
	// FailureRate is the probability [0,1] that a simulated external API
	// call fails; 1.5x that chance it gets rate limited instead.
	FailureRate float64
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{FailureRate: 0.1}
}

func (s *MockNotificationService) simulateAPICall(ctx context.Context, endpoint string) error {
	_, span := tracer.Start(ctx, "external_api", trace.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
	defer span.End()

	delay := time.Duration(50+rand.Intn(200)) * time.Millisecond
	time.Sleep(delay)
	span.SetAttributes(attribute.Int64("latency_ms", delay.Milliseconds()))

	chance := rand.Float64()
	if chance < s.FailureRate {
		span.AddEvent("external API call failed")
		span.SetStatus(codes.Error, "random failure")
		return ErrNotificationFailed
	}
	if chance < s.FailureRate*1.5 {
		span.AddEvent("rate limited by external API")
		span.SetStatus(codes.Error, "rate limited")
		return ErrRateLimited
	}
	return nil
}

// SendCreatedNotification fakes a webhook call followed by an email, each
// under its own span. A webhook failure skips the email, like a real
// notification chain would.
func (s *MockNotificationService) SendCreatedNotification(ctx context.Context, todoID, title string) error {
	webhookCtx, webhookSpan := tracer.Start(ctx, "webhook_call", trace.WithAttributes(
		attribute.String("url", "https://api.slack.com/webhook"),
		attribute.String("todo.id", todoID),
		attribute.String("todo.title", title),
	))
	err := s.simulateAPICall(webhookCtx, "/webhook/todo-created")
	webhookSpan.End()
	if err != nil {
		return err
	}

	emailCtx, emailSpan := tracer.Start(ctx, "email_service", trace.WithAttributes(
		attribute.String("recipient", "team@example.com"),
	))
	err = s.simulateAPICall(emailCtx, "/email/send")
	emailSpan.End()
	return err
}

// SendCompletedNotification fakes an analytics tracking call, emitted when
// a todo flips to completed.
func (s *MockNotificationService) SendCompletedNotification(ctx context.Context, todoID, title string) error {
	analyticsCtx, span := tracer.Start(ctx, "analytics_event", trace.WithAttributes(
		attribute.String("event", "todo.completed"),
		attribute.String("todo.id", todoID),
		attribute.String("todo.title", title),
	))
	defer span.End()

	return s.simulateAPICall(analyticsCtx, "/analytics/track")
}

// SendBatchSummary fakes reporting a batch result to an aggregation
// service.
func (s *MockNotificationService) SendBatchSummary(ctx context.Context, count int) error {
	summaryCtx, summarySpan := tracer.Start(ctx, "send_batch_summary", trace.WithAttributes(
		attribute.Int("batch.count", count),
	))
	defer summarySpan.End()

	aggCtx, aggSpan := tracer.Start(summaryCtx, "aggregation_service")
	defer aggSpan.End()

	return s.simulateAPICall(aggCtx, "/aggregate/batch-summary")
}
