package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	postgresRepo "github.com/escrowd/escrowd/internal/adapter/repository/postgres"
	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/infrastructure/notifier"
)

type capturingPublisher struct {
	events []string
	bodies [][]byte
}

func (p *capturingPublisher) Publish(ctx context.Context, event *domain.OutboxEvent, body []byte) error {
	p.events = append(p.events, event.EventType)
	p.bodies = append(p.bodies, body)
	return nil
}

func TestOutboxDeliversTransitionNotifications(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.seed(ctx, t)

	outboxRepo := postgresRepo.NewOutboxRepository(s.db.Pool)

	// prepare, then fulfill
	s.do(t, http.MethodPut, "/transfers/t-notify", "alice", "alice-pw", transferBody(t, testCondition)).Body.Close()
	s.do(t, http.MethodPut, "/transfers/t-notify/fulfillment", "bob", "bob-pw", []byte(testFulfillment)).Body.Close()

	publisher := &capturingPublisher{}
	worker := notifier.NewWorker(notifier.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Logger:     zerolog.Nop(),
	})

	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("processing outbox: %v", err)
	}

	want := map[string]bool{
		domain.EventTypeTransferPrepared: false,
		domain.EventTypeTransferExecuted: false,
	}
	for _, eventType := range publisher.events {
		if _, ok := want[eventType]; ok {
			want[eventType] = true
		}
	}
	for eventType, seen := range want {
		if !seen {
			t.Fatalf("expected a %s notification, got %v", eventType, publisher.events)
		}
	}

	// envelopes carry the transfer snapshot
	var envelope struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Resource map[string]any `json:"resource"`
	}
	if err := json.Unmarshal(publisher.bodies[0], &envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Resource["transfer_id"] != "t-notify" {
		t.Fatalf("expected transfer id in envelope, got %v", envelope.Resource)
	}

	// a second pass finds nothing left to publish
	published := len(publisher.events)
	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(publisher.events) != published {
		t.Fatal("expected all events marked published after first pass")
	}
}
