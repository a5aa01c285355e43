// Package ledger records which user redeemed which gift code. Every backend
// enforces uniqueness of (user_id, gift_code_key) and reports a violation as
// entity.ErrAlreadyRedeemed.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"giftbot/internal/config"
	"giftbot/internal/database"
)

type Ledger interface {
	Exists(ctx context.Context, userID int64, codeKey string) (bool, error)
	Insert(ctx context.Context, userID int64, codeKey string) error
	Count(ctx context.Context, codeKey string) (int64, error)
	Close() error
}

const table = "user_gift_codes"

// Open selects the backend named by conf.Ledger.Driver. mongo may be nil
// unless the driver is mongo.
func Open(ctx context.Context, conf *config.Config, mongo *database.MongoDB, log *slog.Logger) (Ledger, error) {
	switch conf.Ledger.Driver {
	case "sqlite", "":
		return NewSQLite(conf.Ledger.SqlitePath, 0, log)
	case "mongo":
		if mongo == nil {
			return nil, fmt.Errorf("ledger: mongo driver selected but mongodb is not configured")
		}
		return NewMongo(ctx, mongo, log)
	case "mysql", "postgres":
		return NewSQL(ctx, conf.Ledger.Driver, conf.Ledger.Dsn, log)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", conf.Ledger.Driver)
	}
}
