// Package index keeps the process-local mapping from broadcast button ids to
// gift code records. Quantities held here are advisory; redemption always
// re-reads the inventory.
package index

import (
	"log/slog"
	"sort"
	"sync"

	"giftbot/entity"
	"giftbot/lib/codekey"
	"giftbot/lib/sl"
)

type Index struct {
	mu    sync.RWMutex
	codes map[string]*entity.GiftCode // button id -> snapshot
	log   *slog.Logger
}

func New(log *slog.Logger) *Index {
	return &Index{
		codes: make(map[string]*entity.GiftCode),
		log:   log.With(sl.Module("index")),
	}
}

// accept reports whether code can be bound to a button. Records with a
// malformed key are never redeemable and are left out.
func (x *Index) accept(code *entity.GiftCode) bool {
	if code == nil || code.ButtonID == "" {
		return false
	}
	if !codekey.Valid(code.Key) {
		x.log.Warn("skipping record with malformed code key",
			sl.Secret("code", code.Key),
			slog.String("button_id", code.ButtonID),
		)
		return false
	}
	return true
}

// Load replaces the whole mapping with codes.
func (x *Index) Load(codes []*entity.GiftCode) {
	fresh := make(map[string]*entity.GiftCode, len(codes))
	for _, code := range codes {
		if !x.accept(code) {
			continue
		}
		fresh[code.ButtonID] = code.Clone()
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.codes = fresh
}

// Upsert inserts or replaces the entry for code.ButtonID.
func (x *Index) Upsert(code *entity.GiftCode) {
	if !x.accept(code) {
		return
	}
	c := code.Clone()

	x.mu.Lock()
	defer x.mu.Unlock()
	x.codes[c.ButtonID] = c
}

// Lookup returns the code key bound to buttonID.
func (x *Index) Lookup(buttonID string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	code, ok := x.codes[buttonID]
	if !ok {
		return "", false
	}
	return code.Key, true
}

// Get returns a copy of the cached record for buttonID.
func (x *Index) Get(buttonID string) (*entity.GiftCode, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	code, ok := x.codes[buttonID]
	if !ok {
		return nil, false
	}
	return code.Clone(), true
}

// Remove drops every entry pointing at codeKey and reports how many were removed.
func (x *Index) Remove(codeKey string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for buttonID, code := range x.codes {
		if code.Key == codeKey {
			delete(x.codes, buttonID)
			n++
		}
	}
	return n
}

// Snapshot returns copies of all entries ordered by expiry.
func (x *Index) Snapshot() []*entity.GiftCode {
	x.mu.RLock()
	list := make([]*entity.GiftCode, 0, len(x.codes))
	for _, code := range x.codes {
		list = append(list, code.Clone())
	}
	x.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].ExpiredAt.Equal(list[j].ExpiredAt) {
			return list[i].Key < list[j].Key
		}
		return list[i].ExpiredAt.Before(list[j].ExpiredAt)
	})
	return list
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.codes)
}
