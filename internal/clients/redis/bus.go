package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/sse"
)

// NotificationBus fans SSE messages out across instances so a client
// connected to one replica still sees events produced on another.
type NotificationBus interface {
	Publish(ctx context.Context, msg sse.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error
	Close() error
}

type notificationBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewNotificationBus(log *logger.Logger) (NotificationBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "notifications"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &notificationBus{
		log:     log.With("service", "RedisNotificationBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *notificationBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *notificationBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg sse.SSEMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.log.Warn("Dropping malformed bus message", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *notificationBus) Close() error {
	return b.rdb.Close()
}
