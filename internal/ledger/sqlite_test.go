package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"giftbot/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	l, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"), 1, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSQLite_InsertExistsCount(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	ok, err := l.Exists(ctx, 7, "ABCDEFGH12345678")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Insert(ctx, 7, "ABCDEFGH12345678"))
	require.NoError(t, l.Insert(ctx, 8, "ABCDEFGH12345678"))
	require.NoError(t, l.Insert(ctx, 7, "ZZZZZZZZ12345678"))

	ok, err = l.Exists(ctx, 7, "ABCDEFGH12345678")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := l.Count(ctx, "ABCDEFGH12345678")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_DuplicateIsAlreadyRedeemed(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, 7, "ABCDEFGH12345678"))
	err := l.Insert(ctx, 7, "ABCDEFGH12345678")
	assert.ErrorIs(t, err, entity.ErrAlreadyRedeemed)
}

func TestSQLite_ConcurrentInsertsOneWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := NewSQLite(path, 4, discard())
	require.NoError(t, err)
	defer l.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Insert(context.Background(), 42, "ABCDEFGH12345678")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, entity.ErrAlreadyRedeemed) {
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, dups)
}
