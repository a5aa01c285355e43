package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"giftbot/entity"
	"giftbot/lib/sl"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_gift_codes (
    user_id INTEGER NOT NULL,
    gift_code_key TEXT NOT NULL,
    PRIMARY KEY(user_id, gift_code_key)
);
`

// SQLite is the default ledger, compatible with existing user_gift_codes files.
type SQLite struct {
	pool *sqlitex.Pool
	path string
	log  *slog.Logger
}

// NewSQLite opens a pool on path. The pool rejects a bare ":memory:"; pass a
// file path or "file::memory:?mode=memory&cache=shared".
func NewSQLite(path string, poolSize int, log *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite ledger: path is required")
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: opening %s: %w", path, err)
	}

	l := &SQLite{
		pool: pool,
		path: path,
		log:  log.With(sl.Module("ledger.sqlite")),
	}
	l.log.Info("sqlite ledger opened", slog.String("path", path), slog.Int("pool_size", poolSize))
	return l, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (l *SQLite) Exists(ctx context.Context, userID int64, codeKey string) (bool, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("sqlite ledger: take: %w", err)
	}
	defer l.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn,
		"SELECT 1 FROM user_gift_codes WHERE user_id = ? AND gift_code_key = ? LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{userID, codeKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("sqlite ledger: exists: %w", err)
	}
	return found, nil
}

func (l *SQLite) Insert(ctx context.Context, userID int64, codeKey string) error {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite ledger: take: %w", err)
	}
	defer l.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO user_gift_codes (user_id, gift_code_key) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{userID, codeKey}})
	if sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint {
		return entity.ErrAlreadyRedeemed
	}
	if err != nil {
		return fmt.Errorf("sqlite ledger: insert: %w", err)
	}
	return nil
}

func (l *SQLite) Count(ctx context.Context, codeKey string) (int64, error) {
	conn, err := l.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlite ledger: take: %w", err)
	}
	defer l.pool.Put(conn)

	var n int64
	err = sqlitex.Execute(conn,
		"SELECT COUNT(*) FROM user_gift_codes WHERE gift_code_key = ?",
		&sqlitex.ExecOptions{
			Args: []any{codeKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("sqlite ledger: count: %w", err)
	}
	return n, nil
}

func (l *SQLite) Close() error {
	if err := l.pool.Close(); err != nil {
		return fmt.Errorf("sqlite ledger: closing %s: %w", l.path, err)
	}
	l.log.Info("sqlite ledger closed")
	return nil
}
