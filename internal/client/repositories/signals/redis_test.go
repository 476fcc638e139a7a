package signals

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url", logging.Nop())
	require.Error(t, err)
}

func TestRedisFeed_PublishReachesWatcher(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed, err := Connect(ctx, url, logging.Nop())
	require.NoError(t, err)
	defer feed.Close()

	wctx, stop := context.WithCancel(ctx)
	ch, err := feed.Watch(wctx, "messages_test")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, "messages_test"))

	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("no signal received")
	}

	stop()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-ctx.Done():
		t.Fatal("channel not closed after cancel")
	}
}
