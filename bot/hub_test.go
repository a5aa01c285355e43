package bot

import (
	"context"
	"testing"
	"time"

	"giftbot/entity"
	"giftbot/internal/listener"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClickHub_NextReturnsPublishedClick(t *testing.T) {
	hub := NewClickHub(4)
	hub.Register(-100)
	hub.Open()

	require.True(t, hub.Publish(entity.Click{UserID: 7, ButtonID: "b1", ChannelID: -100}))

	click, err := hub.Next(context.Background(), -100, time.Second)
	require.NoError(t, err)
	require.NotNil(t, click)
	assert.Equal(t, int64(7), click.UserID)
	assert.Equal(t, "b1", click.ButtonID)
}

func TestClickHub_NextTimesOut(t *testing.T) {
	hub := NewClickHub(4)
	hub.Register(-100)
	hub.Open()

	click, err := hub.Next(context.Background(), -100, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, click)
}

func TestClickHub_ClosedIsUnavailable(t *testing.T) {
	hub := NewClickHub(4)
	hub.Register(-100)

	_, err := hub.Next(context.Background(), -100, time.Second)
	assert.ErrorIs(t, err, listener.ErrSourceUnavailable)
	assert.False(t, hub.Publish(entity.Click{ChannelID: -100}))

	hub.Open()
	done := make(chan error, 1)
	go func() {
		_, err := hub.Next(context.Background(), -100, 5*time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, listener.ErrSourceUnavailable)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestClickHub_UnregisteredChannel(t *testing.T) {
	hub := NewClickHub(4)
	hub.Open()

	assert.False(t, hub.Publish(entity.Click{ChannelID: -5}))
	_, err := hub.Next(context.Background(), -5, time.Millisecond)
	assert.ErrorIs(t, err, listener.ErrSourceUnavailable)
}

func TestClickHub_PublishDoesNotBlockWhenFull(t *testing.T) {
	hub := NewClickHub(1)
	hub.Register(-100)
	hub.Open()

	assert.True(t, hub.Publish(entity.Click{ChannelID: -100}))
	assert.False(t, hub.Publish(entity.Click{ChannelID: -100}))
	assert.Equal(t, 1, hub.Pending(-100))
}

func TestClickHub_NextHonorsContext(t *testing.T) {
	hub := NewClickHub(1)
	hub.Register(-100)
	hub.Open()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hub.Next(ctx, -100, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
