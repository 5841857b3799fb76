package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestInboxEvent_JSON(t *testing.T) {
	event := &InboxEvent{
		Type:       EventItemStored,
		UserID:     1,
		UserItemID: 42,
		Subject:    "Issue #512",
		Locked:     true,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded InboxEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventItemStored, decoded.Type)
	assert.Equal(t, int64(42), decoded.UserItemID)
	assert.True(t, decoded.Locked)

	// 跳过事件带原因
	skipped := &InboxEvent{Type: EventItemSkipped, UserID: 1, Reason: "plan_limit"}
	data, err = json.Marshal(skipped)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":"plan_limit"`)
}

func TestPublishSubscribe(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *InboxEvent, 1)

	subscriber := NewSubscriber(client)
	go func() {
		_ = subscriber.Subscribe(ctx, func(event *InboxEvent) {
			received <- event
		})
	}()

	// 等订阅建立
	time.Sleep(100 * time.Millisecond)

	publisher := NewPublisher(client)
	require.NoError(t, publisher.PublishEvent(ctx, &InboxEvent{
		Type:       EventSummaryReady,
		UserID:     7,
		UserItemID: 3,
		Summary:    "本期要点",
	}))

	select {
	case event := <-received:
		assert.Equal(t, EventSummaryReady, event.Type)
		assert.Equal(t, int64(7), event.UserID)
		assert.Equal(t, "本期要点", event.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到订阅事件")
	}
}
