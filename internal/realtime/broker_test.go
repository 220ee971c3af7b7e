package realtime

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_DeliversToTopicSubscribers(t *testing.T) {
	b := NewMemoryBroker(nil)

	var got []Change
	unsub := b.Subscribe(TopicChanges, func(m Message) {
		c, err := Decode[Change](m)
		require.NoError(t, err)
		got = append(got, c)
	})
	other := 0
	b.Subscribe(TopicSessions, func(Message) { other++ })

	require.NoError(t, PublishChange(context.Background(), b, "blog_posts", OpInsert, "p1"))
	assert.Equal(t, []Change{{Table: "blog_posts", Op: OpInsert, ID: "p1"}}, got)
	assert.Zero(t, other)

	unsub()
	unsub()
	require.NoError(t, PublishChange(context.Background(), b, "blog_posts", OpDelete, "p1"))
	assert.Len(t, got, 1)
	assert.Zero(t, b.Subscribers(TopicChanges))
}

func TestMemoryBroker_RejectsEmptyTopic(t *testing.T) {
	b := NewMemoryBroker(nil)
	assert.ErrorIs(t, b.Publish(context.Background(), "", Change{}), ErrInvalidTopic)
}

func TestMemoryBroker_CanceledContext(t *testing.T) {
	b := NewMemoryBroker(nil)
	called := false
	b.Subscribe(TopicChanges, func(Message) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Publish(ctx, TopicChanges, Change{}), context.Canceled)
	assert.False(t, called)
}

func TestMemoryBroker_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := NewMemoryBroker(nil)
	b.Subscribe(TopicChanges, func(Message) { panic("boom") })
	called := false
	b.Subscribe(TopicChanges, func(Message) { called = true })

	require.NoError(t, b.Publish(context.Background(), TopicChanges, Change{}))
	assert.True(t, called)
}

func TestPublishChange_NilBroker(t *testing.T) {
	assert.NoError(t, PublishChange(context.Background(), nil, "t", OpUpdate, "x"))
}

func TestDecode_BadPayload(t *testing.T) {
	_, err := Decode[Change](Message{Topic: TopicChanges, Payload: []byte("{")})
	assert.Error(t, err)
}

func TestRedisBroker_Dispatch(t *testing.T) {
	b := NewRedisBroker(nil, "test:", nil)
	assert.Equal(t, "test:changes", b.Channel(TopicChanges))

	var got []string
	b.Subscribe(TopicChanges, func(m Message) { got = append(got, string(m.Payload)) })

	b.dispatch(&redis.Message{Channel: "test:changes", Payload: `{"id":"1"}`})
	b.dispatch(&redis.Message{Channel: "other:changes", Payload: `{"id":"2"}`})
	b.dispatch(&redis.Message{Channel: "test:", Payload: `{}`})

	assert.Equal(t, []string{`{"id":"1"}`}, got)
}

func TestRedisBroker_NilClient(t *testing.T) {
	b := NewRedisBroker(nil, "", nil)
	assert.Error(t, b.Publish(context.Background(), TopicChanges, Change{}))
	assert.Error(t, b.Run(context.Background()))
}

// Runs only when REDIS_ADDR points at a reachable server.
func TestRedisBroker_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	b := NewRedisBroker(rdb, "roundtrip:", nil)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	got := make(chan Change, 1)
	b.Subscribe(TopicChanges, func(m Message) {
		if c, err := Decode[Change](m); err == nil {
			got <- c
		}
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, PublishChange(ctx, b, "affiliate_programs", OpUpdate, "a1"))
		select {
		case c := <-got:
			assert.Equal(t, Change{Table: "affiliate_programs", Op: OpUpdate, ID: "a1"}, c)
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("no message received")
}
