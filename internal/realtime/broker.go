// Package realtime fans out change notifications between API instances.
//
// Two topics are in use: TopicSessions carries session.Event values and
// TopicChanges carries Change values for the admin tables.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const (
	TopicSessions = "sessions"
	TopicChanges  = "changes"
)

var ErrInvalidTopic = errors.New("realtime: topic is required")

// Message is a raw payload delivered on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

type Handler func(Message)

// Broker publishes JSON values to topics and delivers them to local subscribers.
type Broker interface {
	Publish(ctx context.Context, topic string, v any) error
	Subscribe(topic string, fn Handler) (unsubscribe func())
}

// Decode unmarshals a message payload into T.
func Decode[T any](m Message) (T, error) {
	var out T
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return out, fmt.Errorf("realtime: decode %s: %w", m.Topic, err)
	}
	return out, nil
}

// hub holds local subscribers. Handlers run on the delivering goroutine
// without the lock held.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]Handler
	nextID uint64
	log    *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	if log == nil {
		log = slog.Default()
	}
	return &hub{subs: map[string]map[uint64]Handler{}, log: log}
}

func (h *hub) subscribe(topic string, fn Handler) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[topic] == nil {
		h.subs[topic] = map[uint64]Handler{}
	}
	h.subs[topic][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			h.mu.Unlock()
		})
	}
}

func (h *hub) deliver(m Message) {
	h.mu.Lock()
	set := h.subs[m.Topic]
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, set[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		h.safeCall(fn, m)
	}
}

func (h *hub) safeCall(fn Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("realtime handler panicked", "topic", m.Topic, "panic", r)
		}
	}()
	fn(m)
}

func (h *hub) count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

func encode(topic string, v any) ([]byte, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode %s: %w", topic, err)
	}
	return b, nil
}
