// Package signals is a pub/sub change feed over Redis. It backs live queries
// when the document store cannot provide change streams (a standalone
// mongod): every client publishes after its own writes and all clients
// subscribed to the topic re-query.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/redis/go-redis/v9"
)

type RedisFeed struct {
	client *redis.Client
	prefix string
	logger logging.Logger
}

// Connect parses url (redis://...), pings the server and returns a feed.
func Connect(ctx context.Context, url string, logger logging.Logger) (*RedisFeed, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w: %w", common.ErrNetwork, err)
	}
	return NewRedisFeed(client, logger), nil
}

func NewRedisFeed(client *redis.Client, logger logging.Logger) *RedisFeed {
	return &RedisFeed{client: client, prefix: common.ChangeChannelPrefix, logger: logger.With("component", "signals")}
}

func (f *RedisFeed) channel(topic string) string {
	return f.prefix + topic
}

// Watch subscribes to topic. The returned channel is closed when ctx ends or
// the subscription breaks.
func (f *RedisFeed) Watch(ctx context.Context, topic string) (<-chan struct{}, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(topic))

	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w: %w", topic, common.ErrNetwork, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					f.logger.Warn(ctx, "subscription closed", "topic", topic)
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (f *RedisFeed) Publish(ctx context.Context, topic string) error {
	if err := f.client.Publish(ctx, f.channel(topic), time.Now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}
