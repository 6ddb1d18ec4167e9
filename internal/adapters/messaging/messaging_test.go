package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/test/mocks"
)

type fakeChannel struct {
	keys     []string
	messages []amqp.Publishing
	err      error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func sampleEvent() domain.ReportEvent {
	return domain.ReportEvent{
		ID:         "evt-1",
		Type:       domain.EventReportStatusChanged,
		ReportID:   "report-1",
		Status:     domain.StatusInProgress,
		AssignedTo: "cleaner-1",
		ActorID:    "cleaner-1",
		OccurredAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestPublishReportEvent(t *testing.T) {
	ch := &fakeChannel{}
	broker := NewRabbitMQBrokerWithChannel(ch, "report-events", gobreaker.NewCircuitBreaker(gobreaker.Settings{}))

	if err := broker.PublishReportEvent(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.messages) != 1 || ch.keys[0] != "report-events" {
		t.Fatalf("expected one message on report-events, got %v", ch.keys)
	}

	msg := ch.messages[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("unexpected delivery settings %+v", msg)
	}
	if msg.Type != "report.status_changed" || msg.MessageId != "evt-1" {
		t.Errorf("unexpected headers type=%q id=%q", msg.Type, msg.MessageId)
	}

	var decoded domain.ReportEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ReportID != "report-1" || decoded.Status != domain.StatusInProgress {
		t.Errorf("unexpected body %+v", decoded)
	}
}

func TestPublishReportEvent_ExpiredContext(t *testing.T) {
	ch := &fakeChannel{}
	broker := NewRabbitMQBrokerWithChannel(ch, "q", gobreaker.NewCircuitBreaker(gobreaker.Settings{}))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if err := broker.PublishReportEvent(ctx, sampleEvent()); err == nil {
		t.Error("expected deadline error")
	}
	if len(ch.messages) != 0 {
		t.Error("nothing should be published after the deadline")
	}
}

func TestPublishReportEvent_ChannelError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	broker := NewRabbitMQBrokerWithChannel(ch, "q", gobreaker.NewCircuitBreaker(gobreaker.Settings{}))

	if err := broker.PublishReportEvent(context.Background(), sampleEvent()); err == nil {
		t.Error("expected publish error")
	}
}

func TestFanout(t *testing.T) {
	first := &mocks.MockPublisher{PublishError: errors.New("broker down")}
	second := &mocks.MockPublisher{}

	err := Fanout{first, nil, second}.PublishReportEvent(context.Background(), sampleEvent())
	if err == nil {
		t.Error("expected the first publisher's error")
	}
	if len(second.Events) != 1 {
		t.Errorf("second publisher should still receive the event, got %d", len(second.Events))
	}
}
