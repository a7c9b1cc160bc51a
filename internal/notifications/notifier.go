// Package notifications delivers live log events over Redis pub/sub and
// fans them out to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"mindlog/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Event types published on a log channel.
const (
	EventCommentCreated = "comment_created"
	EventLikeToggled    = "like_toggled"
)

const logChannelPattern = "log:events:*"

// LogEvent is the envelope published for every live log update.
type LogEvent struct {
	Type    string          `json:"type"`
	LogID   uint            `json:"log_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommentCreatedPayload is sent after a comment is stored.
type CommentCreatedPayload struct {
	CommentID     uint   `json:"comment_id"`
	AuthorName    string `json:"author_name"`
	Category      string `json:"category"`
	CommentsCount int64  `json:"comments_count"`
}

// LikeToggledPayload is sent after a like is added or removed.
type LikeToggledPayload struct {
	UserID     uint  `json:"user_id"`
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// LogChannel returns the pub/sub channel for a log's events.
func LogChannel(logID uint) string {
	return fmt.Sprintf("log:events:%d", logID)
}

// Notifier publishes and subscribes to log events in Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns every call into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishLogEvent marshals payload into a LogEvent and publishes it on the
// log's channel.
func (n *Notifier) PublishLogEvent(ctx context.Context, logID uint, eventType string, payload any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := json.Marshal(LogEvent{Type: eventType, LogID: logID, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, LogChannel(logID), msg).Err()
}

// SubscribeLog delivers every event for logID to fn until ctx is done or the
// returned cancel func is called. The subscription is confirmed before
// SubscribeLog returns.
func (n *Notifier) SubscribeLog(ctx context.Context, logID uint, fn func(LogEvent)) (func(), error) {
	if n == nil || n.rdb == nil {
		return func() {}, nil
	}

	sub := n.rdb.Subscribe(ctx, LogChannel(logID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", LogChannel(logID), err)
	}

	subCtx, stop := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = sub.Close()
		})
	}

	ch := sub.Channel()
	go func() {
		defer cancel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt LogEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					middleware.Logger.Warn("dropping malformed log event",
						"channel", msg.Channel, "error", err)
					continue
				}
				// A cancel racing with a buffered message must not deliver it.
				if subCtx.Err() != nil {
					return
				}
				safeCall("SubscribeLog", func() { fn(evt) })
			}
		}
	}()

	return cancel, nil
}

// StartLogSubscriber subscribes to every log channel and calls onMessage with
// the parsed log id and raw payload. It stops when ctx is done.
func (n *Notifier) StartLogSubscriber(ctx context.Context, onMessage func(logID uint, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, logChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s: %w", logChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var logID uint
				if _, err := fmt.Sscanf(msg.Channel, "log:events:%d", &logID); err != nil {
					middleware.Logger.Warn("invalid log channel", "channel", msg.Channel)
					continue
				}
				safeCall("LogSubscriber", func() { onMessage(logID, msg.Payload) })
			}
		}
	}()

	return nil
}

func safeCall(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in subscriber",
				"subscriber", where, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
