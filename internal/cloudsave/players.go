package cloudsave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"giftbot/entity"
	"giftbot/lib/clock"
	"giftbot/lib/sl"
	"giftbot/lib/validate"
)

const gameVersionCollection = "game_version"

type PlayersOptions struct {
	// SaveDataKey is the player item holding the save document
	SaveDataKey       string
	SubscriptionTypes []string
	Clock             clock.Clock
}

// Players edits per-player save data and project-wide game records.
type Players struct {
	client *Client
	opts   PlayersOptions
	log    *slog.Logger
}

func NewPlayers(client *Client, opts PlayersOptions, logger *slog.Logger) (*Players, error) {
	if client == nil {
		return nil, fmt.Errorf("cloud save: client is not configured")
	}
	if opts.SaveDataKey == "" {
		return nil, fmt.Errorf("cloud save: save data key is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Players{
		client: client,
		opts:   opts,
		log:    logger.With(sl.Module("cloudsave.players")),
	}, nil
}

// SetGameVersion stores the client version record for platform.
func (p *Players) SetGameVersion(ctx context.Context, platform entity.Platform, version entity.GameVersion) error {
	if err := validate.Struct(version); err != nil {
		return fmt.Errorf("game version: %w", err)
	}
	if err := p.client.SetItem(ctx, p.client.CustomItemsURL(gameVersionCollection), string(platform), version); err != nil {
		return fmt.Errorf("update game version: %w", err)
	}
	p.log.Info("game version updated",
		slog.String("platform", string(platform)),
		slog.String("version", version.VersionNumber),
		slog.Bool("force_update", version.ForceUpdate),
	)
	return nil
}

// SaveData reads the save document of playerID.
func (p *Players) SaveData(ctx context.Context, playerID string) (entity.SaveData, error) {
	resp, err := p.client.GetItems(ctx, p.client.PlayerItemsURL(playerID), p.opts.SaveDataKey)
	if err != nil {
		return nil, fmt.Errorf("get save data: %w", err)
	}
	for _, it := range resp.Results {
		if it.Key != p.opts.SaveDataKey {
			continue
		}
		raw, err := it.Document()
		if err != nil {
			return nil, err
		}
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		var data entity.SaveData
		if err = decoder.Decode(&data); err != nil {
			return nil, fmt.Errorf("decode save data: %w", err)
		}
		if data == nil {
			break
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrPlayerNotFound, playerID)
}

func (p *Players) SetSaveData(ctx context.Context, playerID string, data entity.SaveData) error {
	if err := p.client.SetItem(ctx, p.client.PlayerItemsURL(playerID), p.opts.SaveDataKey, data); err != nil {
		return fmt.Errorf("set save data: %w", err)
	}
	return nil
}

// UpdateSubscription sets the subscription for productID to expire days from
// now and raises the save count by bump so clients pick up the change.
func (p *Players) UpdateSubscription(ctx context.Context, playerID, productID string, days int, bump uint64) error {
	if !slices.Contains(p.opts.SubscriptionTypes, productID) {
		return fmt.Errorf("%w: %q", entity.ErrUnknownProduct, productID)
	}
	if bump < 1 {
		return entity.ErrSaveCountBump
	}

	data, err := p.SaveData(ctx, playerID)
	if err != nil {
		return err
	}

	account, err := object(data, "playerAccountData")
	if err != nil {
		return err
	}
	shop, err := object(account, "shopData")
	if err != nil {
		return err
	}
	subscriptions, err := object(shop, "shopSubscriptionData")
	if err != nil {
		return err
	}
	product, ok := subscriptions[productID].(map[string]interface{})
	if !ok {
		product = map[string]interface{}{}
		subscriptions[productID] = product
	}
	expiresAt := p.opts.Clock.Now().UTC().AddDate(0, 0, days)
	product["expiresAt"] = expiresAt.Format(time.RFC3339)

	count, err := saveCount(data)
	if err != nil {
		return err
	}
	if err = setSaveCount(data, count+bump); err != nil {
		return err
	}
	if err = p.SetSaveData(ctx, playerID, data); err != nil {
		return err
	}
	p.log.Info("subscription updated",
		slog.String("player_id", playerID),
		slog.String("product_id", productID),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

// CopySaveData replaces the save of toPlayer with the one of fromPlayer,
// keeping toPlayer's save count raised by bump. The replaced save is returned.
func (p *Players) CopySaveData(ctx context.Context, toPlayer, fromPlayer string, bump uint64) (entity.SaveData, error) {
	if bump < 1 {
		return nil, entity.ErrSaveCountBump
	}

	old, err := p.SaveData(ctx, toPlayer)
	if err != nil {
		return nil, err
	}
	oldCount, err := saveCount(old)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", toPlayer, err)
	}

	data, err := p.SaveData(ctx, fromPlayer)
	if err != nil {
		return nil, err
	}
	if err = setSaveCount(data, oldCount+bump); err != nil {
		return nil, fmt.Errorf("%s: %w", fromPlayer, err)
	}
	if err = p.SetSaveData(ctx, toPlayer, data); err != nil {
		return nil, err
	}
	p.log.Info("save data copied",
		slog.String("to_player_id", toPlayer),
		slog.String("from_player_id", fromPlayer),
	)
	return old, nil
}

func object(m map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := m[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: '%s' not found or null", entity.ErrSaveDataShape, key)
	}
	return v, nil
}

func saveCount(data entity.SaveData) (uint64, error) {
	progress, err := object(data, "playerProgressData")
	if err != nil {
		return 0, err
	}
	switch v := progress["saveCount"].(type) {
	case uint64:
		return v, nil
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err == nil {
			return n, nil
		}
	case float64:
		if v >= 0 {
			return uint64(v), nil
		}
	}
	return 0, fmt.Errorf("%w: 'saveCount' is not a number", entity.ErrSaveDataShape)
}

func setSaveCount(data entity.SaveData, n uint64) error {
	progress, err := object(data, "playerProgressData")
	if err != nil {
		return err
	}
	progress["saveCount"] = n
	return nil
}
