package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chatapp/pkg/logger"
)

// RedisRelay fans room frames out through Redis pub/sub so sessions on
// every instance receive them. Frames of one channel are handed to the
// deliver callback in publish order.
type RedisRelay struct {
	publisher  Publisher
	subscriber Subscriber
	log        *logger.Logger
}

func NewRedisRelay(publisher Publisher, subscriber Subscriber, log *logger.Logger) *RedisRelay {
	return &RedisRelay{publisher: publisher, subscriber: subscriber, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.publisher.Publish(ctx, ChatChannel(env.ChatID), data)
}

// Run blocks until ctx is done or the subscription fails.
func (r *RedisRelay) Run(ctx context.Context, deliver func(Envelope)) error {
	err := r.subscriber.Subscribe(ctx, []string{ChatChannelPattern}, func(channel string, payload []byte) {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.log.Logger.Warn("dropping malformed relay payload", zap.String("channel", channel), zap.Error(err))
			return
		}
		if chatID, err := ChatFromChannel(channel); err == nil {
			env.ChatID = chatID
		}
		deliver(env)
	})
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}
