package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"giftbot/entity"
	"giftbot/internal/cloudsave"
	"giftbot/lib/sl"
)

// CloudSave stores gift codes as items of a custom cloud-save collection.
// Item values are JSON documents serialized into a string.
type CloudSave struct {
	client   *cloudsave.Client
	itemsURL string
	log      *slog.Logger
}

func NewCloudSave(client *cloudsave.Client, collection string, logger *slog.Logger) (*CloudSave, error) {
	if client == nil {
		return nil, fmt.Errorf("cloud save: client is not configured")
	}
	if collection == "" {
		collection = "gift_codes"
	}
	return &CloudSave{
		client:   client,
		itemsURL: client.CustomItemsURL(collection),
		log:      logger.With(sl.Module("inventory.cloudsave")),
	}, nil
}

func (c *CloudSave) Get(ctx context.Context, key string) (*entity.GiftCode, error) {
	resp, err := c.client.GetItems(ctx, c.itemsURL, key)
	if err != nil {
		return nil, err
	}
	for _, it := range resp.Results {
		if it.Key == key {
			return decodeItem(it)
		}
	}
	return nil, entity.ErrCodeNotFound
}

func (c *CloudSave) GetAll(ctx context.Context) ([]*entity.GiftCode, error) {
	var codes []*entity.GiftCode
	endpoint := c.itemsURL
	for page := 0; endpoint != ""; page++ {
		if page > 100 {
			return nil, fmt.Errorf("cloud save: too many pages")
		}
		resp, err := c.client.GetItems(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		for _, it := range resp.Results {
			code, err := decodeItem(it)
			if err != nil {
				c.log.Warn("skipping malformed gift code", sl.Secret("code", it.Key), sl.Err(err))
				continue
			}
			codes = append(codes, code)
		}
		endpoint, err = cloudsave.NextPage(endpoint, resp.Links.Next)
		if err != nil {
			return nil, err
		}
	}
	return codes, nil
}

func (c *CloudSave) Save(ctx context.Context, key string, code *entity.GiftCode) error {
	if err := c.client.SetItem(ctx, c.itemsURL, key, code); err != nil {
		return fmt.Errorf("save gift code: %w", err)
	}
	return nil
}

func (c *CloudSave) Delete(ctx context.Context, key string) error {
	status, _, err := c.client.Do(ctx, http.MethodDelete, c.itemsURL+"/"+url.PathEscape(key), nil)
	if status == http.StatusNotFound {
		return entity.ErrCodeNotFound
	}
	return err
}

func (c *CloudSave) Count(ctx context.Context) (int, error) {
	codes, err := c.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}

func decodeItem(it cloudsave.Item) (*entity.GiftCode, error) {
	raw, err := it.Document()
	if err != nil {
		return nil, err
	}
	var code entity.GiftCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("decode gift code: %w", err)
	}
	code.Key = it.Key
	return &code, nil
}
