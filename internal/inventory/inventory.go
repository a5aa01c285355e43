// Package inventory holds the authoritative gift code records. Save is a
// full overwrite of the record under its key; stores that can do better also
// offer CompareAndSwap.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"giftbot/entity"
	"giftbot/internal/cloudsave"
	"giftbot/internal/config"
	"giftbot/internal/database"
)

type Store interface {
	Get(ctx context.Context, key string) (*entity.GiftCode, error)
	GetAll(ctx context.Context) ([]*entity.GiftCode, error)
	Save(ctx context.Context, key string, code *entity.GiftCode) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

// Open selects the store named by conf.Inventory.Driver.
func Open(ctx context.Context, conf *config.Config, mongo *database.MongoDB, cs *cloudsave.Client, log *slog.Logger) (Store, error) {
	switch conf.Inventory.Driver {
	case "cloudsave", "":
		if cs == nil {
			return nil, fmt.Errorf("inventory: cloudsave driver selected but the cloud-save project is not configured")
		}
		return NewCloudSave(cs, conf.Inventory.CloudSave.Collection, log)
	case "mongo":
		if mongo == nil {
			return nil, fmt.Errorf("inventory: mongo driver selected but mongodb is not configured")
		}
		return NewMongo(mongo, log), nil
	default:
		return nil, fmt.Errorf("inventory: unknown driver %q", conf.Inventory.Driver)
	}
}
