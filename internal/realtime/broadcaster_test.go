package realtime

import (
	"testing"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

func drainOne(t *testing.T, c *Client) models.AlertMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		alert, ok := msg.(models.AlertMessage)
		if !ok {
			t.Fatalf("Expected AlertMessage, got %T", msg)
		}
		return alert
	default:
		t.Fatal("Expected a queued alert, send buffer is empty")
	}
	return models.AlertMessage{}
}

func TestBroadcastDeliversToSubscribers(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	sub1 := NewClient(nil, "sub1", KindSubscriber)
	sub2 := NewClient(nil, "sub2", KindSubscriber)
	producer := NewClient(nil, "prod", KindProducer)
	r.Register("sub1", sub1)
	r.Register("sub2", sub2)
	r.Register("prod", producer)

	event := models.AlertEvent{Confidence: 0.9, Severity: models.SeverityHigh, SourceSessionID: "prod"}
	delivered := b.Broadcast(event)

	if delivered != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", delivered)
	}

	for _, sub := range []*Client{sub1, sub2} {
		alert := drainOne(t, sub)
		if alert.Type != "accident_alert" {
			t.Fatalf("Wrong message type: %s", alert.Type)
		}
		if alert.Data.Confidence != 0.9 {
			t.Fatalf("Wrong confidence: %f", alert.Data.Confidence)
		}
	}

	// Производитель кадров оповещений не получает
	select {
	case msg := <-producer.send:
		t.Fatalf("Producer must not receive alerts, got %T", msg)
	default:
	}
}

func TestBroadcastIsolatesDeadSubscriber(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	live1 := NewClient(nil, "live1", KindSubscriber)
	dead := NewClient(nil, "dead", KindSubscriber)
	live2 := NewClient(nil, "live2", KindSubscriber)
	r.Register("live1", live1)
	r.Register("dead", dead)
	r.Register("live2", live2)

	dead.Close()

	delivered := b.Broadcast(models.AlertEvent{Confidence: 0.8, Severity: models.SeverityMedium})
	if delivered != 2 {
		t.Fatalf("Expected delivery to the 2 live subscribers, got %d", delivered)
	}

	drainOne(t, live1)
	drainOne(t, live2)

	if _, ok := r.Get("dead"); ok {
		t.Fatal("Dead subscriber must be pruned from the registry")
	}
	if r.Count() != 2 {
		t.Fatalf("Expected 2 remaining sessions, got %d", r.Count())
	}
}

func TestBroadcastFullBufferPrunes(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	slow := NewClient(nil, "slow", KindSubscriber)
	r.Register("slow", slow)

	// Забиваем буфер до отказа
	for i := 0; i < cap(slow.send); i++ {
		if err := slow.Send(struct{}{}); err != nil {
			t.Fatalf("Unexpected send failure while filling buffer: %v", err)
		}
	}

	delivered := b.Broadcast(models.AlertEvent{Confidence: 0.95})
	if delivered != 0 {
		t.Fatalf("Expected 0 deliveries to a saturated subscriber, got %d", delivered)
	}
	if _, ok := r.Get("slow"); ok {
		t.Fatal("Saturated subscriber must be pruned")
	}
	if !slow.Closed() {
		t.Fatal("Pruned subscriber must be closed")
	}
}

func TestBroadcastNoSubscribers(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)
	r.Register("prod", NewClient(nil, "prod", KindProducer))

	if delivered := b.Broadcast(models.AlertEvent{Confidence: 0.9}); delivered != 0 {
		t.Fatalf("Expected 0 deliveries with no subscribers, got %d", delivered)
	}
}
