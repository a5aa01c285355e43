package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
env: prod
telegram:
  api_key: "123:abc"
  admins: [11, 22]
  gift_code_channel: -1001
  gift_code_test_channel: -1002
listener:
  wait_sec: 5
ledger:
  driver: postgres
  dsn: "postgres://localhost/giftbot"
players:
  save_data_key: SaveData
  subscription_types: [vip_monthly, vip_yearly]
api:
  operators:
    - name: ops
      token: secret-token
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", conf.Env)
	assert.Equal(t, []int64{11, 22}, conf.Telegram.Admins)
	assert.Equal(t, []int64{-1001, -1002}, conf.Telegram.Channels())
	assert.Equal(t, 5*time.Second, conf.Listener.Wait())
	assert.Equal(t, 10*time.Second, conf.Listener.RetryDelay())
	assert.Equal(t, 3, conf.Redeem.DecrementRetries)
	assert.Equal(t, 20, conf.Codes.MaxActive)
	assert.Equal(t, "cloudsave", conf.Inventory.Driver)
	assert.Equal(t, "gift_codes", conf.Inventory.CloudSave.Collection)
	assert.False(t, conf.Inventory.CloudSave.Configured())
	assert.Equal(t, 10*time.Second, conf.Inventory.CloudSave.Timeout())
	assert.Equal(t, "SaveData", conf.Players.SaveDataKey)
	assert.Equal(t, []string{"vip_monthly", "vip_yearly"}, conf.Players.SubscriptionTypes)
	assert.Equal(t, "postgres", conf.Ledger.Driver)
	require.Len(t, conf.Api.Operators, 1)
	assert.Equal(t, "secret-token", conf.Api.Operators[0].Token)
	assert.Equal(t, "8080", conf.Listen.Port)
}

func TestChannels_Dedup(t *testing.T) {
	tc := TelegramConfig{GiftCodeChannel: -5, GiftCodeTestChannel: -5}
	assert.Equal(t, []int64{-5}, tc.Channels())
	assert.Empty(t, TelegramConfig{}.Channels())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
