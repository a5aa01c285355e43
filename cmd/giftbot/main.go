package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"giftbot/bot"
	"giftbot/impl/auth"
	"giftbot/impl/core"
	"giftbot/internal/admin"
	"giftbot/internal/cloudsave"
	"giftbot/internal/config"
	"giftbot/internal/database"
	"giftbot/internal/http-server/api"
	"giftbot/internal/index"
	"giftbot/internal/inventory"
	"giftbot/internal/keylock"
	"giftbot/internal/ledger"
	"giftbot/internal/listener"
	"giftbot/internal/redeem"
	"giftbot/lib/logger"
	"giftbot/lib/sl"

	"golang.org/x/sync/errgroup"
)

const (
	drainTimeout    = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	base, closeLog := logger.SetupLogger(conf.Env, *logPath)
	defer closeLog()
	base.Info("starting giftbot", slog.String("config", *configPath), slog.String("env", conf.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mongo *database.MongoDB
	var err error
	if conf.Mongo.Enabled {
		mongo, err = database.NewMongoClient(ctx, conf)
		if err != nil {
			base.Error("mongo client", sl.Err(err))
			os.Exit(1)
		}
		defer func() {
			_ = mongo.Close(context.Background())
		}()
		base.Info("mongo client initialized", slog.String("database", conf.Mongo.Database))
	}

	var cloud *cloudsave.Client
	if cs := conf.Inventory.CloudSave; cs.Configured() {
		cloud, err = cloudsave.New(cloudsave.Config{
			BaseURL:       cs.BaseUrl,
			ProjectID:     cs.ProjectId,
			EnvironmentID: cs.EnvironmentId,
			KeyID:         cs.KeyId,
			SecretKey:     cs.SecretKey,
			Timeout:       cs.Timeout(),
		}, base)
		if err != nil {
			base.Error("cloud save client", sl.Err(err))
			os.Exit(1)
		}
	}

	store, err := inventory.Open(ctx, conf, mongo, cloud, base)
	if err != nil {
		base.Error("inventory", sl.Err(err))
		os.Exit(1)
	}
	redemptions, err := ledger.Open(ctx, conf, mongo, base)
	if err != nil {
		base.Error("ledger", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = redemptions.Close()
	}()

	channels := conf.Telegram.Channels()
	if len(channels) == 0 {
		base.Error("no gift code channels configured")
		os.Exit(1)
	}
	hub := bot.NewClickHub(conf.Telegram.ClickBuffer)
	for _, id := range channels {
		hub.Register(id)
	}

	// the bot keeps the base logger; everything else also alerts admins on errors
	tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, hub, base, bot.BotConfig{
		Admins:   conf.Telegram.Admins,
		SendRate: conf.Telegram.SendRate,
	})
	if err != nil {
		base.Error("telegram bot", sl.Err(err))
		os.Exit(1)
	}
	log := slog.New(logger.NewTelegramHandler(base.Handler(), tgBot, slog.LevelError))

	idx := index.New(log)
	locks := keylock.New()

	adminService := admin.New(log, store, redemptions, idx, locks, admin.Options{
		MaxActive:   conf.Codes.MaxActive,
		MainChannel: conf.Telegram.GiftCodeChannel,
		TestChannel: conf.Telegram.GiftCodeTestChannel,
	})
	adminService.SetPublisher(tgBot)
	tgBot.SetAdmin(adminService)

	if cloud != nil && conf.Players.SaveDataKey != "" {
		players, err := cloudsave.NewPlayers(cloud, cloudsave.PlayersOptions{
			SaveDataKey:       conf.Players.SaveDataKey,
			SubscriptionTypes: conf.Players.SubscriptionTypes,
		}, log)
		if err != nil {
			base.Error("player data service", sl.Err(err))
			os.Exit(1)
		}
		tgBot.SetPlayers(players)
	}

	if _, err = adminService.Reload(ctx); err != nil {
		log.Error("initial index load; use /reload once the inventory is reachable", sl.Err(err))
	}

	coordinator := redeem.New(log, idx, store, redemptions, locks, redeem.Options{
		DecrementRetries: conf.Redeem.DecrementRetries,
		RetryDelay:       conf.Redeem.RetryDelay(),
	})

	listeners := make([]*listener.Listener, 0, len(channels))
	for _, id := range channels {
		listeners = append(listeners, listener.New(log, id, hub, coordinator, listener.Options{
			Wait:       conf.Listener.Wait(),
			RetryDelay: conf.Listener.RetryDelay(),
			AlertAfter: conf.Listener.AlertAfter,
		}))
	}
	group := listener.NewGroup(listeners...)

	handler := core.New(adminService, log)
	handler.SetAuthService(auth.New(conf.Api.Operators))
	handler.SetListeners(group)
	server := api.New(conf, log, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(tgBot.Start)
	g.Go(func() error {
		return group.Run(gctx)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		tgBot.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err = g.Wait(); err != nil {
		log.Error("service stopped", sl.Err(err))
	}

	if !group.Drain(drainTimeout) {
		log.Warn("in-flight redemptions still running at shutdown", slog.Duration("timeout", drainTimeout))
	}
	base.Info("giftbot stopped")
}
