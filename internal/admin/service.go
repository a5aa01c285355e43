// Package admin implements the operator actions on gift codes: creating and
// publishing a code, removing one or all stale codes, listing, reloading the
// index and auditing quantities against the ledger.
package admin

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

	"github.com/google/uuid"
)

type Inventory interface {
	Get(ctx context.Context, key string) (*entity.GiftCode, error)
	GetAll(ctx context.Context) ([]*entity.GiftCode, error)
	Save(ctx context.Context, key string, code *entity.GiftCode) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

type Ledger interface {
	Count(ctx context.Context, codeKey string) (int64, error)
}

type Index interface {
	Load(codes []*entity.GiftCode)
	Upsert(code *entity.GiftCode)
	Remove(codeKey string) int
	Snapshot() []*entity.GiftCode
	Len() int
}

// Publisher posts the broadcast message with the redeem button and returns its message id.
type Publisher interface {
	PublishGiftCode(ctx context.Context, code *entity.GiftCode) (string, error)
}

type Options struct {
	MaxActive   int
	MainChannel int64
	TestChannel int64
	Clock       clock.Clock
}

type CodeSummary struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Amount    int       `json:"amount"`
	Issued    int       `json:"issued"`
	Redeemed  int64     `json:"redeemed"`
	ExpiredAt time.Time `json:"expired_at"`
	ChannelID int64     `json:"channel_id"`
}

type AuditReport struct {
	Key       string `json:"key"`
	Issued    int    `json:"issued"`
	Redeemed  int64  `json:"redeemed"`
	Stored    int    `json:"stored_amount"`
	Expected  int    `json:"expected_amount"`
	Corrected bool   `json:"corrected"`
	Note      string `json:"note,omitempty"`
}

type Service struct {
	inventory Inventory
	ledger    Ledger
	index     Index
	locks     *keylock.Locker
	publisher Publisher
	opts      Options
	log       *slog.Logger
}

func New(log *slog.Logger, inventory Inventory, ledger Ledger, index Index, locks *keylock.Locker, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = 20
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		inventory: inventory,
		ledger:    ledger,
		index:     index,
		locks:     locks,
		opts:      opts,
		log:       log.With(sl.Module("admin")),
	}
}

// SetPublisher attaches the broadcast channel; the bot is built after the service.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Reload rebuilds the index from a full inventory scan.
func (s *Service) Reload(ctx context.Context) (int, error) {
	codes, err := s.inventory.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading gift codes: %w", err)
	}
	s.index.Load(codes)
	metrics.IndexEntries.Set(float64(s.index.Len()))
	s.log.Info("gift code index loaded", slog.Int("count", s.index.Len()))
	return s.index.Len(), nil
}

// Create validates the draft, stores the code unless it is a test code and
// publishes the broadcast. Test and hidden codes go to the test channel.
func (s *Service) Create(ctx context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInvalidGiftCode, err)
	}
	if s.publisher == nil {
		return nil, fmt.Errorf("broadcast publisher not available")
	}

	count, err := s.inventory.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting gift codes: %w", err)
	}
	if count >= s.opts.MaxActive {
		return nil, fmt.Errorf("%w; gift code count: %d", entity.ErrCodeLimit, count)
	}

	key, err := codekey.Generate()
	if err != nil {
		return nil, err
	}
	channel := s.opts.MainChannel
	if draft.Test || draft.Hidden {
		channel = s.opts.TestChannel
	}

	code := &entity.GiftCode{
		Key:       key,
		Title:     draft.Title,
		Subtitle:  draft.Subtitle,
		Amount:    draft.Amount,
		Issued:    draft.Amount,
		Duration:  draft.Duration,
		ExpiredAt: clock.DaysFrom(s.opts.Clock.Now(), draft.Duration),
		Rewards:   draft.Rewards,
		ChannelID: channel,
		ButtonID:  uuid.NewString(),
	}
	log := s.log.With(
		sl.Secret("code", key),
		sl.Channel(channel),
		slog.Bool("test", draft.Test),
		slog.Bool("hidden", draft.Hidden),
	)

	if !draft.Test {
		if err = s.inventory.Save(ctx, key, code); err != nil {
			return nil, fmt.Errorf("saving gift code: %w", err)
		}
	}

	messageID, err := s.publisher.PublishGiftCode(ctx, code)
	if err != nil {
		if !draft.Test {
			if delErr := s.inventory.Delete(ctx, key); delErr != nil {
				log.Error("removing unpublished gift code", sl.Err(delErr))
			}
		}
		return nil, fmt.Errorf("publishing gift code: %w", err)
	}
	code.MessageID = messageID

	if !draft.Test {
		if err = s.inventory.Save(ctx, key, code); err != nil {
			log.Warn("saving broadcast message id", sl.Err(err))
		}
		s.index.Upsert(code)
		metrics.IndexEntries.Set(float64(s.index.Len()))
	}

	log.Info("gift code created", slog.Int("amount", code.Amount), slog.Time("expired_at", code.ExpiredAt))
	return code, nil
}

// Remove deletes one code from the inventory and the index.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := codekey.Check(key); err != nil {
		return err
	}
	return s.remove(ctx, key)
}

func (s *Service) remove(ctx context.Context, key string) error {
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.inventory.Delete(ctx, key)
	s.index.Remove(key)
	metrics.IndexEntries.Set(float64(s.index.Len()))
	if err != nil {
		return fmt.Errorf("deleting gift code: %w", err)
	}
	s.log.Info("gift code deleted", sl.Secret("code", key))
	return nil
}

// RemoveStale deletes every expired or exhausted code and returns their keys.
func (s *Service) RemoveStale(ctx context.Context) ([]string, error) {
	codes, err := s.inventory.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gift codes: %w", err)
	}

	now := s.opts.Clock.Now()
	var removed []string
	for _, code := range codes {
		if !code.IsStale(now) {
			continue
		}
		if err = s.remove(ctx, code.Key); err != nil && !errors.Is(err, entity.ErrCodeNotFound) {
			return removed, err
		}
		removed = append(removed, code.Key)
	}
	return removed, nil
}

// List summarizes the indexed codes with their ledger counts.
func (s *Service) List(ctx context.Context) ([]CodeSummary, error) {
	codes := s.index.Snapshot()
	list := make([]CodeSummary, 0, len(codes))
	for _, code := range codes {
		redeemed, err := s.ledger.Count(ctx, code.Key)
		if err != nil {
			return nil, fmt.Errorf("counting redemptions: %w", err)
		}
		list = append(list, CodeSummary{
			Key:       code.Key,
			Title:     code.Title,
			Amount:    code.Amount,
			Issued:    code.Issued,
			Redeemed:  redeemed,
			ExpiredAt: code.ExpiredAt,
			ChannelID: code.ChannelID,
		})
	}
	return list, nil
}

// Audit compares the stored quantity with issued minus redeemed and lowers
// the stored quantity when a decrement was lost. It never raises it.
func (s *Service) Audit(ctx context.Context, key string) (*AuditReport, error) {
	if err := codekey.Check(key); err != nil {
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	code, err := s.inventory.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading gift code: %w", err)
	}
	code.Key = key
	redeemed, err := s.ledger.Count(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("counting redemptions: %w", err)
	}

	report := &AuditReport{
		Key:      key,
		Issued:   code.Issued,
		Redeemed: redeemed,
		Stored:   code.Amount,
	}
	if code.Issued <= 0 {
		report.Expected = code.Amount
		report.Note = "issued quantity unknown"
		return report, nil
	}

	expected := code.Issued - int(redeemed)
	if expected < 0 {
		expected = 0
	}
	report.Expected = expected

	switch {
	case code.Amount > expected:
		code.Amount = expected
		code.Revision++
		if err = s.inventory.Save(ctx, key, code); err != nil {
			return nil, fmt.Errorf("saving corrected quantity: %w", err)
		}
		s.index.Upsert(code)
		report.Corrected = true
		s.log.Warn("gift code quantity corrected",
			sl.Secret("code", key),
			slog.Int("stored", report.Stored),
			slog.Int("expected", expected),
		)
	case code.Amount < expected:
		report.Note = "stored quantity below expected"
	}
	return report, nil
}
