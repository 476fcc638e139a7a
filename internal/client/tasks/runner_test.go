package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Go_FailureReachesSink(t *testing.T) {
	sink := notify.NewChanSink(4)
	r := NewRunner(sink, logging.Nop(), time.Second)

	r.Go(context.Background(), "Send message", func(ctx context.Context) error {
		return fmt.Errorf("insert: %w", common.ErrNetwork)
	})
	r.Wait()

	got := sink.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "Send message", got[0].Title)
	assert.Equal(t, common.KindNetwork, got[0].Kind)
}

func TestRunner_Go_SuccessIsSilent(t *testing.T) {
	sink := notify.NewChanSink(4)
	r := NewRunner(sink, logging.Nop(), 0)

	var ran atomic.Bool
	r.Go(context.Background(), "ok", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()

	assert.True(t, ran.Load())
	assert.Empty(t, sink.Drain())
}

func TestRunner_Quiet_NeverNotifies(t *testing.T) {
	sink := notify.NewChanSink(4)
	r := NewRunner(sink, logging.Nop(), 0)

	r.Quiet(context.Background(), "cleanup", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Wait()

	assert.Empty(t, sink.Drain())
}

func TestRunner_CallerCancelDoesNotAbortTask(t *testing.T) {
	sink := notify.NewChanSink(4)
	r := NewRunner(sink, logging.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var ctxErr atomic.Value

	r.Go(ctx, "append", func(tctx context.Context) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		if err := tctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	})
	<-started
	cancel()
	r.Wait()

	assert.Nil(t, ctxErr.Load())
	assert.Empty(t, sink.Drain())
}

func TestRunner_TimeoutIsApplied(t *testing.T) {
	sink := notify.NewChanSink(4)
	r := NewRunner(sink, logging.Nop(), 10*time.Millisecond)

	r.Go(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Wait()

	got := sink.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, common.KindNetwork, got[0].Kind)
}
