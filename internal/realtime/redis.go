package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultChannelPrefix = "affiliate-blog:"

// RedisBroker publishes over Redis pub/sub so every API instance sees every
// event. Subscribers only receive messages while Run is active.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	hub    *hub
	log    *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, prefix string, log *slog.Logger) *RedisBroker {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{rdb: rdb, prefix: prefix, hub: newHub(log), log: log}
}

func (b *RedisBroker) Channel(topic string) string { return b.prefix + topic }

func (b *RedisBroker) Publish(ctx context.Context, topic string, v any) error {
	if b.rdb == nil {
		return errors.New("realtime: redis client is nil")
	}
	payload, err := encode(topic, v)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.Channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(topic string, fn Handler) func() {
	return b.hub.subscribe(topic, fn)
}

// Run pattern-subscribes to the prefix and dispatches to local subscribers
// until ctx is canceled.
func (b *RedisBroker) Run(ctx context.Context) error {
	if b.rdb == nil {
		return errors.New("realtime: redis client is nil")
	}
	ps := b.rdb.PSubscribe(ctx, b.prefix+"*")
	defer ps.Close()

	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("realtime: psubscribe: %w", err)
	}
	b.log.Info("realtime broker subscribed", "pattern", b.prefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg)
		}
	}
}

func (b *RedisBroker) dispatch(msg *redis.Message) {
	topic, ok := strings.CutPrefix(msg.Channel, b.prefix)
	if !ok || topic == "" {
		return
	}
	b.hub.deliver(Message{Topic: topic, Payload: []byte(msg.Payload)})
}
