package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"giftbot/entity"
	"giftbot/internal/index"
	"giftbot/internal/keylock"
	"giftbot/lib/clock"
	"giftbot/lib/codekey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memInventory struct {
	mu    sync.Mutex
	codes map[string]*entity.GiftCode
	saves int
}

func (m *memInventory) Get(_ context.Context, key string) (*entity.GiftCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[key]
	if !ok {
		return nil, entity.ErrCodeNotFound
	}
	return c.Clone(), nil
}

func (m *memInventory) GetAll(_ context.Context) ([]*entity.GiftCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*entity.GiftCode
	for _, c := range m.codes {
		list = append(list, c.Clone())
	}
	return list, nil
}

func (m *memInventory) Save(_ context.Context, key string, code *entity.GiftCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	c := code.Clone()
	c.Key = key
	m.codes[key] = c
	return nil
}

func (m *memInventory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[key]; !ok {
		return entity.ErrCodeNotFound
	}
	delete(m.codes, key)
	return nil
}

func (m *memInventory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes), nil
}

type countLedger map[string]int64

func (c countLedger) Count(_ context.Context, key string) (int64, error) {
	return c[key], nil
}

type publisher struct {
	published []*entity.GiftCode
	err       error
}

func (p *publisher) PublishGiftCode(_ context.Context, code *entity.GiftCode) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, code.Clone())
	return fmt.Sprintf("%d", len(p.published)), nil
}

type fixture struct {
	inv   *memInventory
	led   countLedger
	idx   *index.Index
	pub   *publisher
	svc   *Service
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		inv:   &memInventory{codes: map[string]*entity.GiftCode{}},
		led:   countLedger{},
		idx:   index.New(slog.New(slog.NewTextHandler(io.Discard, nil))),
		pub:   &publisher{},
		clock: clock.NewFake(now),
	}
	f.svc = New(slog.New(slog.NewTextHandler(io.Discard, nil)), f.inv, f.led, f.idx, keylock.New(), Options{
		MaxActive:   3,
		MainChannel: -1,
		TestChannel: -2,
		Clock:       f.clock,
	})
	f.svc.SetPublisher(f.pub)
	return f
}

func draft() *entity.GiftCodeDraft {
	return &entity.GiftCodeDraft{
		Title:    "Spring gift",
		Subtitle: "For everyone",
		Amount:   10,
		Duration: 7,
		Rewards:  entity.GiftCodeReward{XpReward: 1500},
	}
}

func TestCreate_Public(t *testing.T) {
	f := newFixture(t)

	code, err := f.svc.Create(context.Background(), draft())
	require.NoError(t, err)

	assert.True(t, codekey.Valid(code.Key))
	assert.NotEmpty(t, code.ButtonID)
	assert.Equal(t, int64(-1), code.ChannelID)
	assert.Equal(t, 10, code.Issued)
	assert.Equal(t, now.AddDate(0, 0, 7), code.ExpiredAt)
	assert.Equal(t, "1", code.MessageID)

	stored, err := f.inv.Get(context.Background(), code.Key)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.MessageID)

	key, ok := f.idx.Lookup(code.ButtonID)
	require.True(t, ok)
	assert.Equal(t, code.Key, key)
}

func TestCreate_TestAndHidden(t *testing.T) {
	f := newFixture(t)

	d := draft()
	d.Test = true
	code, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), code.ChannelID)
	assert.Empty(t, f.inv.codes)
	assert.Zero(t, f.idx.Len())

	d = draft()
	d.Hidden = true
	code, err = f.svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), code.ChannelID)
	assert.Len(t, f.inv.codes, 1)
	assert.Equal(t, 1, f.idx.Len())
}

func TestCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *entity.GiftCodeDraft)
		want   error
	}{
		{"empty title", func(d *entity.GiftCodeDraft) { d.Title = "" }, nil},
		{"zero amount", func(d *entity.GiftCodeDraft) { d.Amount = 0 }, nil},
		{"zero duration", func(d *entity.GiftCodeDraft) { d.Duration = 0 }, nil},
		{"no rewards", func(d *entity.GiftCodeDraft) { d.Rewards = entity.GiftCodeReward{} }, entity.ErrEmptyRewards},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := draft()
			tt.mutate(d)
			_, err := f.svc.Create(context.Background(), d)
			require.ErrorIs(t, err, entity.ErrInvalidGiftCode)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Empty(t, f.pub.published)
		})
	}
}

func TestCreate_Limit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), draft())
		require.NoError(t, err)
	}
	_, err := f.svc.Create(context.Background(), draft())
	assert.ErrorIs(t, err, entity.ErrCodeLimit)
}

func TestCreate_PublishFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("chat not found")

	_, err := f.svc.Create(context.Background(), draft())
	require.Error(t, err)
	assert.Empty(t, f.inv.codes)
	assert.Zero(t, f.idx.Len())
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	code, err := f.svc.Create(context.Background(), draft())
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(context.Background(), code.Key))
	assert.Empty(t, f.inv.codes)
	_, ok := f.idx.Lookup(code.ButtonID)
	assert.False(t, ok)

	assert.ErrorIs(t, f.svc.Remove(context.Background(), code.Key), entity.ErrCodeNotFound)
	assert.ErrorIs(t, f.svc.Remove(context.Background(), "bad"), entity.ErrInvalidCodeKey)
}

func TestRemoveStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.inv.codes["AAAAAAAAAAAAAAAA"] = &entity.GiftCode{Key: "AAAAAAAAAAAAAAAA", Amount: 0, ExpiredAt: now.Add(time.Hour), ButtonID: "a"}
	f.inv.codes["BBBBBBBBBBBBBBBB"] = &entity.GiftCode{Key: "BBBBBBBBBBBBBBBB", Amount: 3, ExpiredAt: now.Add(-time.Hour), ButtonID: "b"}
	f.inv.codes["CCCCCCCCCCCCCCCC"] = &entity.GiftCode{Key: "CCCCCCCCCCCCCCCC", Amount: 3, ExpiredAt: now.Add(time.Hour), ButtonID: "c"}
	_, err := f.svc.Reload(ctx)
	require.NoError(t, err)

	removed, err := f.svc.RemoveStale(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB"}, removed)
	assert.Len(t, f.inv.codes, 1)
	assert.Equal(t, 1, f.idx.Len())

	removed, err = f.svc.RemoveStale(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	code, err := f.svc.Create(context.Background(), draft())
	require.NoError(t, err)
	f.led[code.Key] = 4

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, code.Key, list[0].Key)
	assert.Equal(t, int64(4), list[0].Redeemed)
	assert.Equal(t, 10, list[0].Issued)
}

func TestAudit(t *testing.T) {
	tests := []struct {
		name      string
		issued    int
		stored    int
		redeemed  int64
		expected  int
		corrected bool
		final     int
	}{
		{"consistent", 10, 7, 3, 7, false, 7},
		{"lost decrement", 10, 8, 3, 7, true, 7},
		{"over redeemed clamps to zero", 2, 1, 3, 0, true, 0},
		{"below expected left alone", 10, 5, 3, 7, false, 5},
		{"issued unknown", 0, 5, 3, 5, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			key := "ABCDEFGH12345678"
			f.inv.codes[key] = &entity.GiftCode{Key: key, Issued: tt.issued, Amount: tt.stored, ButtonID: "b"}
			f.led[key] = tt.redeemed

			report, err := f.svc.Audit(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, report.Expected)
			assert.Equal(t, tt.corrected, report.Corrected)
			assert.Equal(t, tt.final, f.inv.codes[key].Amount)
		})
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	f.inv.codes["AAAAAAAAAAAAAAAA"] = &entity.GiftCode{Key: "AAAAAAAAAAAAAAAA", Amount: 1, ButtonID: "a"}

	n, err := f.svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	key, ok := f.idx.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "AAAAAAAAAAAAAAAA", key)
}
