package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"giftbot/entity"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type TelegramConfig struct {
	ApiKey string  `yaml:"api_key" env:"GIFTBOT_TELEGRAM_API_KEY" env-default:""`
	Admins []int64 `yaml:"admins" env:"GIFTBOT_TELEGRAM_ADMINS" env-separator:","`
	// GiftCodeChannel receives public broadcasts; GiftCodeTestChannel receives test and hidden ones
	GiftCodeChannel     int64 `yaml:"gift_code_channel" env:"GIFTBOT_GIFT_CODE_CHANNEL"`
	GiftCodeTestChannel int64 `yaml:"gift_code_test_channel" env:"GIFTBOT_GIFT_CODE_TEST_CHANNEL"`
	SendRate            int   `yaml:"send_rate" env-default:"25"`
	ClickBuffer         int   `yaml:"click_buffer" env-default:"256"`
}

type ListenerConfig struct {
	WaitSec       int `yaml:"wait_sec" env-default:"10"`
	RetryDelaySec int `yaml:"retry_delay_sec" env-default:"10"`
	AlertAfter    int `yaml:"alert_after" env-default:"3"`
}

type RedeemConfig struct {
	DecrementRetries int `yaml:"decrement_retries" env-default:"3"`
	RetryDelayMs     int `yaml:"retry_delay_ms" env-default:"200"`
}

type CodesConfig struct {
	MaxActive int `yaml:"max_active" env-default:"20"`
}

type CloudSaveConfig struct {
	BaseUrl       string `yaml:"base_url" env-default:"https://services.api.unity.com/cloud-save/v1/data"`
	ProjectId     string `yaml:"project_id" env:"GIFTBOT_CLOUD_SAVE_PROJECT_ID"`
	EnvironmentId string `yaml:"environment_id" env:"GIFTBOT_CLOUD_SAVE_ENVIRONMENT_ID"`
	KeyId         string `yaml:"key_id" env:"GIFTBOT_CLOUD_SAVE_KEY_ID"`
	SecretKey     string `yaml:"secret_key" env:"GIFTBOT_CLOUD_SAVE_SECRET_KEY"`
	Collection    string `yaml:"collection" env-default:"gift_codes"`
	TimeoutSec    int    `yaml:"timeout_sec" env-default:"10"`
}

// PlayersConfig enables the player data commands; they share the cloud-save
// connection of the inventory.
type PlayersConfig struct {
	SaveDataKey       string   `yaml:"save_data_key" env:"GIFTBOT_SAVE_DATA_KEY" env-default:""`
	SubscriptionTypes []string `yaml:"subscription_types" env:"GIFTBOT_SUBSCRIPTION_TYPES" env-separator:","`
}

type InventoryConfig struct {
	// Driver is cloudsave or mongo
	Driver    string          `yaml:"driver" env-default:"cloudsave"`
	CloudSave CloudSaveConfig `yaml:"cloud_save"`
}

type LedgerConfig struct {
	// Driver is sqlite, mongo, mysql or postgres
	Driver     string `yaml:"driver" env-default:"sqlite"`
	SqlitePath string `yaml:"sqlite_path" env-default:"giftbot.db"`
	Dsn        string `yaml:"dsn" env:"GIFTBOT_LEDGER_DSN" env-default:""`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"GIFTBOT_MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"giftbot"`
}

type ApiConfig struct {
	Operators []entity.Operator `yaml:"operators"`
}

type Config struct {
	Env       string          `yaml:"env" env-default:"local"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Listener  ListenerConfig  `yaml:"listener"`
	Redeem    RedeemConfig    `yaml:"redeem"`
	Codes     CodesConfig     `yaml:"codes"`
	Inventory InventoryConfig `yaml:"inventory"`
	Players   PlayersConfig   `yaml:"players"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Api       ApiConfig       `yaml:"api"`
	Listen    Listen          `yaml:"listen"`
}

// Configured reports whether a cloud-save project is set up.
func (c CloudSaveConfig) Configured() bool {
	return c.ProjectId != "" && c.EnvironmentId != ""
}

func (c CloudSaveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (l ListenerConfig) Wait() time.Duration {
	return time.Duration(l.WaitSec) * time.Second
}

func (l ListenerConfig) RetryDelay() time.Duration {
	return time.Duration(l.RetryDelaySec) * time.Second
}

func (r RedeemConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// Channels returns the distinct monitored channel ids, main channel first.
func (t TelegramConfig) Channels() []int64 {
	var ids []int64
	if t.GiftCodeChannel != 0 {
		ids = append(ids, t.GiftCodeChannel)
	}
	if t.GiftCodeTestChannel != 0 && t.GiftCodeTestChannel != t.GiftCodeChannel {
		ids = append(ids, t.GiftCodeTestChannel)
	}
	return ids
}

var instance *Config
var once sync.Once

// Load reads the YAML file at path and applies env overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	once.Do(func() {
		var err error
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}
