package listener

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Group runs one listener per monitored channel.
type Group struct {
	listeners []*Listener
}

func NewGroup(listeners ...*Listener) *Group {
	return &Group{listeners: listeners}
}

// Run starts every listener and blocks until ctx is cancelled.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, l := range g.listeners {
		eg.Go(func() error {
			err := l.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return eg.Wait()
}

// Drain waits for in-flight clicks, giving up after timeout.
func (g *Group) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		for _, l := range g.listeners {
			l.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *Group) Statuses() []Status {
	list := make([]Status, 0, len(g.listeners))
	for _, l := range g.listeners {
		list = append(list, l.Status())
	}
	return list
}

// Healthy reports whether every listener is receiving.
func (g *Group) Healthy() bool {
	for _, l := range g.listeners {
		if !l.Status().Up {
			return false
		}
	}
	return true
}
