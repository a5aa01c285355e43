package listener

import (
	"context"
	"testing"
	"time"

	"giftbot/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_RunStatusesDrain(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{}), started: make(chan int64, 2)}
	a := New(discard(), -1, &scriptedSource{steps: []step{{click: &entity.Click{UserID: 1}}}}, h,
		Options{Wait: 5 * time.Millisecond})
	b := New(discard(), -2, &scriptedSource{steps: []step{{click: &entity.Click{UserID: 2}}}}, h,
		Options{Wait: 5 * time.Millisecond})
	g := NewGroup(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-h.started:
		case <-time.After(time.Second):
			t.Fatal("handler not dispatched")
		}
	}
	assert.True(t, g.Healthy())
	statuses := g.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, int64(-1), statuses[0].ChannelID)
	assert.Equal(t, int64(-2), statuses[1].ChannelID)

	cancel()
	require.NoError(t, <-done)

	// handlers are still blocked
	assert.False(t, g.Drain(20*time.Millisecond))
	close(h.release)
	assert.True(t, g.Drain(time.Second))
}

func TestGroup_UnhealthyWhenListenerDown(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: ErrSourceUnavailable},
		{err: ErrSourceUnavailable},
	}}
	l := New(discard(), -1, src, &blockingHandler{}, Options{
		Wait:       time.Second,
		RetryDelay: time.Millisecond,
		AlertAfter: 2,
	})
	g := NewGroup(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = g.Run(ctx) }()

	assert.Eventually(t, func() bool { return !g.Healthy() }, time.Second, 5*time.Millisecond)
}
