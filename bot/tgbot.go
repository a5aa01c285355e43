// Package bot is the Telegram side of giftbot.
//
// Layout:
//   - tgbot.go     - TgBot struct, lifecycle (Start/Stop), admin service interface
//   - hub.go       - ClickHub, the per-channel click queue read by the listeners
//   - callbacks.go - gift code button presses, turned into clicks
//   - replier.go   - acknowledgment, private follow-up and broadcast edit for one click
//   - broadcast.go - broadcast text and keyboard, PublishGiftCode
//   - commands.go  - admin commands: /addcode, /removecode, /purgecodes, /codes, /audit, /reload, /help
//   - players.go   - player data commands: /gameversion, /savedata, /subscription, /copysave
//   - menus.go     - command menus via Telegram's BotCommandScope API
//   - helpers.go   - Sanitize, plainResponse, NotifyAdmins, reportError
//
// Button presses never wait on redemption: the callback handler only
// publishes the click to the hub and returns.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"giftbot/entity"
	"giftbot/internal/admin"
	"giftbot/lib/clock"
	"giftbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"golang.org/x/time/rate"
)

// BotConfig holds Telegram-specific configuration loaded from the YAML config file.
type BotConfig struct {
	Admins []int64
	// SendRate caps outgoing messages per second across all chats
	SendRate int
	Clock    clock.Clock
}

// Admin is the operator surface the commands call into.
// Implemented by internal/admin.Service.
type Admin interface {
	Create(ctx context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error)
	Remove(ctx context.Context, key string) error
	RemoveStale(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]admin.CodeSummary, error)
	Audit(ctx context.Context, key string) (*admin.AuditReport, error)
	Reload(ctx context.Context) (int, error)
}

type TgBot struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	admin   Admin
	players Players
	hub     *ClickHub
	limiter *rate.Limiter
	clock   clock.Clock
	updater *ext.Updater
	admins  []int64
}

func NewTgBot(apiKey string, hub *ClickHub, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	if cfg.SendRate <= 0 {
		cfg.SendRate = 25
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	tgBot := &TgBot{
		log:     log.With(sl.Module("tgbot")),
		hub:     hub,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), 1),
		clock:   cfg.Clock,
		admins:  slices.Clone(cfg.Admins),
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SetAdmin attaches the admin service; without it the commands answer with an error.
func (t *TgBot) SetAdmin(a Admin) {
	t.admin = a
}

// Start registers the handlers, begins polling and blocks until Stop.
func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("addcode", t.addCode))
	dispatcher.AddHandler(handlers.NewCommand("removecode", t.removeCode))
	dispatcher.AddHandler(handlers.NewCommand("purgecodes", t.purgeCodes))
	dispatcher.AddHandler(handlers.NewCommand("codes", t.listCodes))
	dispatcher.AddHandler(handlers.NewCommand("audit", t.audit))
	dispatcher.AddHandler(handlers.NewCommand("reload", t.reload))
	dispatcher.AddHandler(handlers.NewCommand("gameversion", t.gameVersion))
	dispatcher.AddHandler(handlers.NewCommand("savedata", t.saveData))
	dispatcher.AddHandler(handlers.NewCommand("subscription", t.subscription))
	dispatcher.AddHandler(handlers.NewCommand("copysave", t.copySave))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbGiftCode), t.onGiftCodeCallback))

	t.setDefaultCommands()
	t.syncAdminMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.hub.Open()
	t.log.Info("telegram bot started", slog.String("username", t.api.Username))

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	t.hub.Close()
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

func (t *TgBot) isAdmin(id int64) bool {
	return slices.Contains(t.admins, id)
}
