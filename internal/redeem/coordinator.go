// Package redeem runs the redemption protocol for a single button click:
// resolve the code, acknowledge, check quantity, expiry and the ledger under
// a per-code lock, record the redemption, decrement the quantity and reply.
//
// The ledger row is written before the quantity is decremented. Once the row
// exists the user owns the code; a failed decrement leaves the inventory one
// unit high, which is retried here and otherwise corrected by the admin audit.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"giftbot/entity"
	"giftbot/internal/keylock"
	"giftbot/internal/metrics"
	"giftbot/lib/clock"
	"giftbot/lib/codekey"
	"giftbot/lib/sl"
)

type Inventory interface {
	Get(ctx context.Context, key string) (*entity.GiftCode, error)
	Save(ctx context.Context, key string, code *entity.GiftCode) error
}

// Swapper is implemented by inventories with a conditional write. When
// present, the decrement only lands if the stored record still matches old.
type Swapper interface {
	CompareAndSwap(ctx context.Context, key string, old, next *entity.GiftCode) (bool, error)
}

type Ledger interface {
	Exists(ctx context.Context, userID int64, codeKey string) (bool, error)
	// Insert returns entity.ErrAlreadyRedeemed when the pair is already present
	Insert(ctx context.Context, userID int64, codeKey string) error
}

type Index interface {
	Lookup(buttonID string) (string, bool)
	Upsert(code *entity.GiftCode)
}

type Options struct {
	DecrementRetries int
	RetryDelay       time.Duration
	Clock            clock.Clock
}

type Coordinator struct {
	index     Index
	inventory Inventory
	ledger    Ledger
	locks     *keylock.Locker
	opts      Options
	log       *slog.Logger
}

func New(log *slog.Logger, index Index, inventory Inventory, ledger Ledger, locks *keylock.Locker, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.DecrementRetries < 0 {
		opts.DecrementRetries = 0
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Coordinator{
		index:     index,
		inventory: inventory,
		ledger:    ledger,
		locks:     locks,
		opts:      opts,
		log:       log.With(sl.Module("redeem")),
	}
}

// Handle processes one click. Every failure is turned into an outcome for the
// user; clicks on unknown buttons are dropped without a reply.
func (c *Coordinator) Handle(ctx context.Context, click entity.Click) {
	log := c.log.With(
		sl.User(click.UserID),
		sl.Channel(click.ChannelID),
		slog.String("button_id", click.ButtonID),
	)

	key, ok := c.index.Lookup(click.ButtonID)
	if !ok {
		log.Debug("gift code not found for button")
		return
	}
	if !codekey.Valid(key) {
		log.Warn("gift code not found for button: malformed code key", sl.Secret("code", key))
		return
	}
	log = log.With(sl.Secret("code", key))

	t1 := time.Now()
	if err := click.Replier.Ack(ctx); err != nil {
		log.Warn("acknowledging click", sl.Err(err))
	}

	outcome, code := c.redeem(ctx, log, click.UserID, key)

	if outcome == entity.OutcomeRedeemed && code != nil {
		c.index.Upsert(code)
		if err := click.Replier.EditBroadcast(ctx, code); err != nil {
			log.Warn("updating broadcast message", sl.Err(err))
		}
	}

	if err := click.Replier.Reply(ctx, Message(outcome, key)); err != nil {
		log.Warn("sending follow-up", sl.Err(err))
	}

	metrics.RecordRedemption(string(outcome), time.Since(t1).Seconds())
	log.With(
		slog.String("outcome", string(outcome)),
		slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
	).Info("redemption attempt")
}

// redeem runs the serialized part of the protocol for (userID, key) and
// returns the outcome with the record as it stands after the attempt.
func (c *Coordinator) redeem(ctx context.Context, log *slog.Logger, userID int64, key string) (entity.Outcome, *entity.GiftCode) {
	unlock, err := c.locks.Lock(ctx, key)
	if err != nil {
		log.Warn("waiting for gift code lock", sl.Err(err))
		return entity.OutcomeFailed, nil
	}
	defer unlock()

	code, err := c.inventory.Get(ctx, key)
	if errors.Is(err, entity.ErrCodeNotFound) {
		log.Info("gift code no longer in inventory")
		return entity.OutcomeExhausted, nil
	}
	if err != nil {
		log.Error("reading gift code", sl.Err(err))
		return entity.OutcomeFailed, nil
	}
	code.Key = key

	if code.IsExhausted() {
		return entity.OutcomeExhausted, code
	}
	if code.IsExpired(c.opts.Clock.Now()) {
		return entity.OutcomeExpired, code
	}

	redeemed, err := c.ledger.Exists(ctx, userID, key)
	if err != nil {
		log.Error("checking ledger", sl.Err(err))
		return entity.OutcomeFailed, code
	}
	if redeemed {
		return entity.OutcomeAlreadyRedeemed, code
	}

	err = c.ledger.Insert(ctx, userID, key)
	if errors.Is(err, entity.ErrAlreadyRedeemed) {
		return entity.OutcomeAlreadyRedeemed, code
	}
	if err != nil {
		log.Error("recording redemption", sl.Err(err))
		return entity.OutcomeFailed, code
	}

	// the user owns the code from here on; a cancelled click must not stop the decrement
	updated := c.decrement(context.WithoutCancel(ctx), log, key, code)
	return entity.OutcomeRedeemed, updated
}

func (c *Coordinator) decrement(ctx context.Context, log *slog.Logger, key string, code *entity.GiftCode) *entity.GiftCode {
	if sw, ok := c.inventory.(Swapper); ok {
		return c.swapDecrement(ctx, log, sw, key, code)
	}

	next := code.Clone()
	next.Amount--
	next.Revision++

	var err error
	for attempt := 0; attempt <= c.opts.DecrementRetries; attempt++ {
		if attempt > 0 {
			c.pause(ctx)
		}
		// full overwrite of the same snapshot; repeating it cannot decrement twice
		if err = c.inventory.Save(ctx, key, next); err == nil {
			return next
		}
		log.Warn("saving decremented quantity", slog.Int("attempt", attempt+1), sl.Err(err))
	}

	c.reconcile(log, next.Amount, err)
	return next
}

func (c *Coordinator) swapDecrement(ctx context.Context, log *slog.Logger, sw Swapper, key string, code *entity.GiftCode) *entity.GiftCode {
	current := code
	for attempt := 0; attempt <= c.opts.DecrementRetries; attempt++ {
		if current.Amount <= 0 {
			c.reconcile(log, current.Amount, errors.New("quantity exhausted by another writer"))
			return current
		}
		next := current.Clone()
		next.Amount--
		next.Revision = current.Revision + 1

		swapped, err := sw.CompareAndSwap(ctx, key, current, next)
		if err != nil {
			c.reconcile(log, next.Amount, err)
			return next
		}
		if swapped {
			return next
		}

		log.Debug("quantity changed concurrently, re-reading", slog.Int("attempt", attempt+1))
		fresh, err := c.inventory.Get(ctx, key)
		if err != nil {
			c.reconcile(log, next.Amount, err)
			return next
		}
		fresh.Key = key
		current = fresh
	}

	c.reconcile(log, current.Amount-1, errors.New("compare-and-swap retries exhausted"))
	return current
}

func (c *Coordinator) reconcile(log *slog.Logger, expected int, err error) {
	metrics.QuantityReconcile.Inc()
	log.Error("redemption recorded but quantity not updated; run audit",
		slog.Int("expected_amount", expected),
		sl.Err(err),
	)
}

func (c *Coordinator) pause(ctx context.Context) {
	if c.opts.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(c.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
