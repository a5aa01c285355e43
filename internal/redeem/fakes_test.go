package redeem

import (
	"context"
	"errors"
	"sync"
	"time"

	"giftbot/entity"
)

type memInventory struct {
	mu        sync.Mutex
	codes     map[string]*entity.GiftCode
	getErr    error
	saveErrs  int // number of Save calls that fail before succeeding
	saves     int
	readDelay time.Duration
}

func newInventory(codes ...*entity.GiftCode) *memInventory {
	m := &memInventory{codes: make(map[string]*entity.GiftCode)}
	for _, c := range codes {
		m.codes[c.Key] = c.Clone()
	}
	return m
}

func (m *memInventory) Get(_ context.Context, key string) (*entity.GiftCode, error) {
	if m.readDelay > 0 {
		time.Sleep(m.readDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.codes[key]
	if !ok {
		return nil, entity.ErrCodeNotFound
	}
	return c.Clone(), nil
}

func (m *memInventory) Save(_ context.Context, key string, code *entity.GiftCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErrs > 0 {
		m.saveErrs--
		return errors.New("inventory unavailable")
	}
	c := code.Clone()
	c.Key = key
	m.codes[key] = c
	return nil
}

func (m *memInventory) amount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[key].Amount
}

// casInventory adds a conditional write keyed on Revision.
type casInventory struct {
	*memInventory
	conflicts int // number of swaps that report a concurrent change
	swaps     int
}

func (c *casInventory) CompareAndSwap(_ context.Context, key string, old, next *entity.GiftCode) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swaps++
	if c.conflicts > 0 {
		c.conflicts--
		// another writer bumps the revision
		c.codes[key].Revision++
		return false, nil
	}
	cur := c.codes[key]
	if cur.Revision != old.Revision || cur.Amount != old.Amount {
		return false, nil
	}
	n := next.Clone()
	n.Key = key
	c.codes[key] = n
	return true, nil
}

type ledgerKey struct {
	user int64
	code string
}

type memLedger struct {
	mu        sync.Mutex
	rows      map[ledgerKey]bool
	blindRead bool // Exists always reports false, leaving the unique constraint as the only guard
	insertErr error
	inserts   int
}

func newLedger() *memLedger {
	return &memLedger{rows: make(map[ledgerKey]bool)}
}

func (l *memLedger) Exists(_ context.Context, userID int64, codeKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blindRead {
		return false, nil
	}
	return l.rows[ledgerKey{userID, codeKey}], nil
}

func (l *memLedger) Insert(_ context.Context, userID int64, codeKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inserts++
	if l.insertErr != nil {
		return l.insertErr
	}
	k := ledgerKey{userID, codeKey}
	if l.rows[k] {
		return entity.ErrAlreadyRedeemed
	}
	l.rows[k] = true
	return nil
}

func (l *memLedger) count(codeKey string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k := range l.rows {
		if k.code == codeKey {
			n++
		}
	}
	return n
}

type replier struct {
	mu      sync.Mutex
	acked   int
	replies []string
	edits   []*entity.GiftCode
	editErr error
}

func (r *replier) Ack(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked++
	return nil
}

func (r *replier) Reply(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func (r *replier) EditBroadcast(_ context.Context, code *entity.GiftCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, code.Clone())
	return r.editErr
}

type staticIndex struct {
	mu      sync.Mutex
	keys    map[string]string
	upserts []*entity.GiftCode
}

func (s *staticIndex) Lookup(buttonID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[buttonID]
	return k, ok
}

func (s *staticIndex) Upsert(code *entity.GiftCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, code.Clone())
}
