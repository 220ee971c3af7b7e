package realtime

import (
	"context"
	"log/slog"
)

// MemoryBroker delivers synchronously inside the process. Publish returns after
// every subscriber has run.
type MemoryBroker struct {
	hub *hub
}

func NewMemoryBroker(log *slog.Logger) *MemoryBroker {
	return &MemoryBroker{hub: newHub(log)}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, v any) error {
	payload, err := encode(topic, v)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.hub.deliver(Message{Topic: topic, Payload: payload})
	return nil
}

func (b *MemoryBroker) Subscribe(topic string, fn Handler) func() {
	return b.hub.subscribe(topic, fn)
}

// Subscribers reports the local subscriber count for topic.
func (b *MemoryBroker) Subscribers(topic string) int { return b.hub.count(topic) }
