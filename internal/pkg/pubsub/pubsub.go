package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelInboxEvents = "inbox_events"
)

// 事件类型常量
const (
	EventItemStored   = "item_stored"
	EventItemSkipped  = "item_skipped"
	EventSummaryReady = "summary_ready"
)

// InboxEvent 推送给前端的收件箱事件
type InboxEvent struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	UserItemID int64  `json:"user_item_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Locked     bool   `json:"locked,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishEvent 发布收件箱事件
func (p *Publisher) PublishEvent(ctx context.Context, event *InboxEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal inbox event: %w", err)
	}

	return p.client.Publish(ctx, ChannelInboxEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅收件箱事件
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*InboxEvent)) error {
	pubsub := s.client.Subscribe(ctx, ChannelInboxEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event InboxEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // 忽略解析错误
			}

			handler(&event)
		}
	}
}
