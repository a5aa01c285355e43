package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"giftbot/entity"
	"giftbot/lib/sl"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS user_gift_codes (
    user_id BIGINT NOT NULL,
    gift_code_key VARCHAR(32) NOT NULL,
    redeemed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, gift_code_key)
)`

// SQL is the ledger for a shared MySQL or PostgreSQL server.
type SQL struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewSQL connects with driver "mysql" or "postgres" and creates the table.
func NewSQL(ctx context.Context, driver, dsn string, log *slog.Logger) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sql ledger: dsn is required")
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql ledger: connect: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err = db.ExecContext(ctx, sqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql ledger: creating table: %w", err)
	}
	return &SQL{
		db:  db,
		log: log.With(sl.Module("ledger.sql"), slog.String("driver", driver)),
	}, nil
}

func (s *SQL) Exists(ctx context.Context, userID int64, codeKey string) (bool, error) {
	var n int64
	query := s.db.Rebind("SELECT COUNT(*) FROM user_gift_codes WHERE user_id = ? AND gift_code_key = ?")
	if err := s.db.GetContext(ctx, &n, query, userID, codeKey); err != nil {
		return false, fmt.Errorf("sql ledger: exists: %w", err)
	}
	return n > 0, nil
}

func (s *SQL) Insert(ctx context.Context, userID int64, codeKey string) error {
	query := s.db.Rebind("INSERT INTO user_gift_codes (user_id, gift_code_key) VALUES (?, ?)")
	_, err := s.db.ExecContext(ctx, query, userID, codeKey)
	if isUniqueViolation(err) {
		return entity.ErrAlreadyRedeemed
	}
	if err != nil {
		return fmt.Errorf("sql ledger: insert: %w", err)
	}
	return nil
}

func (s *SQL) Count(ctx context.Context, codeKey string) (int64, error) {
	var n int64
	query := s.db.Rebind("SELECT COUNT(*) FROM user_gift_codes WHERE gift_code_key = ?")
	if err := s.db.GetContext(ctx, &n, query, codeKey); err != nil {
		return 0, fmt.Errorf("sql ledger: count: %w", err)
	}
	return n, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
