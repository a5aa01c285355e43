// Package listener pulls button clicks for one channel at a time and hands
// each click to its own goroutine. A listener never gives up: timeouts loop
// straight back to waiting and source failures are retried after a delay.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"giftbot/entity"
	"giftbot/internal/metrics"
	"giftbot/lib/sl"
)

var ErrSourceUnavailable = errors.New("interaction source unavailable")

type Source interface {
	// Next returns the next click on channelID. It returns (nil, nil) when
	// wait elapses without a click.
	Next(ctx context.Context, channelID int64, wait time.Duration) (*entity.Click, error)
}

type Handler interface {
	Handle(ctx context.Context, click entity.Click)
}

type Options struct {
	Wait       time.Duration
	RetryDelay time.Duration
	// AlertAfter is the number of consecutive source failures that marks the listener down
	AlertAfter int
}

type Status struct {
	ChannelID  int64     `json:"channel_id"`
	Up         bool      `json:"up"`
	Failures   int       `json:"consecutive_failures"`
	Dispatched int64     `json:"dispatched"`
	LastClick  time.Time `json:"last_click,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

type Listener struct {
	channelID int64
	source    Source
	handler   Handler
	opts      Options
	log       *slog.Logger

	mu       sync.Mutex
	status   Status
	inflight sync.WaitGroup
}

func New(log *slog.Logger, channelID int64, source Source, handler Handler, opts Options) *Listener {
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Second
	}
	if opts.AlertAfter <= 0 {
		opts.AlertAfter = 3
	}
	return &Listener{
		channelID: channelID,
		source:    source,
		handler:   handler,
		opts:      opts,
		log:       log.With(sl.Module("listener"), sl.Channel(channelID)),
		status:    Status{ChannelID: channelID, Up: true},
	}
}

// Run loops until ctx is cancelled and returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("listening for gift code button clicks")
	metrics.SetListenerUp(l.channelID, true)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		click, err := l.source.Next(ctx, l.channelID, l.opts.Wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.failed(err)
			if !sleep(ctx, l.opts.RetryDelay) {
				return ctx.Err()
			}
			continue
		}
		l.received()

		if click == nil {
			continue
		}
		l.dispatch(ctx, *click)
	}
}

// dispatch hands the click to its own goroutine; the loop never waits for it.
// Handlers run detached from ctx so that a shutdown lets them finish.
func (l *Listener) dispatch(ctx context.Context, click entity.Click) {
	l.mu.Lock()
	l.status.Dispatched++
	l.status.LastClick = time.Now()
	l.mu.Unlock()

	hctx := context.WithoutCancel(ctx)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("click handler panic",
					sl.User(click.UserID),
					slog.String("panic", fmt.Sprint(r)),
				)
			}
		}()
		l.handler.Handle(hctx, click)
	}()
}

func (l *Listener) failed(err error) {
	l.mu.Lock()
	l.status.Failures++
	l.status.LastError = err.Error()
	failures := l.status.Failures
	if failures >= l.opts.AlertAfter {
		l.status.Up = false
	}
	l.mu.Unlock()

	metrics.RecordReconnect(l.channelID)
	log := l.log.With(
		slog.Int("failures", failures),
		slog.String("retry_in", l.opts.RetryDelay.String()),
		sl.Err(err),
	)
	switch {
	case failures == l.opts.AlertAfter:
		metrics.SetListenerUp(l.channelID, false)
		log.Error("click listener keeps failing; resubscribing")
	case errors.Is(err, ErrSourceUnavailable):
		log.Warn("click source unavailable; resubscribing")
	default:
		log.Warn("waiting for click; resubscribing")
	}
}

func (l *Listener) received() {
	l.mu.Lock()
	failures := l.status.Failures
	l.status.Failures = 0
	l.status.LastError = ""
	l.status.Up = true
	l.mu.Unlock()

	if failures > 0 {
		metrics.SetListenerUp(l.channelID, true)
		l.log.Info("click listener recovered", slog.Int("failures", failures))
	}
}

// Status returns a snapshot of the listener state.
func (l *Listener) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Wait blocks until every dispatched handler has returned.
func (l *Listener) Wait() {
	l.inflight.Wait()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
