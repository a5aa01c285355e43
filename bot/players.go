package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"giftbot/entity"
	"giftbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Players edits game records and player saves in the cloud-save project.
// Implemented by internal/cloudsave.Players.
type Players interface {
	SetGameVersion(ctx context.Context, platform entity.Platform, version entity.GameVersion) error
	SaveData(ctx context.Context, playerID string) (entity.SaveData, error)
	UpdateSubscription(ctx context.Context, playerID, productID string, days int, bump uint64) error
	CopySaveData(ctx context.Context, toPlayer, fromPlayer string, bump uint64) (entity.SaveData, error)
}

// SetPlayers enables the player data commands.
func (t *TgBot) SetPlayers(p Players) {
	t.players = p
}

func (t *TgBot) playersOnly(chatId int64) bool {
	if !t.isAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return false
	}
	if t.players == nil {
		t.plainResponse(chatId, "Player data service is not configured\\.")
		return false
	}
	return true
}

type gameVersionArgs struct {
	platform entity.Platform
	version  entity.GameVersion
}

// parseGameVersion reads "<version> <platform> <force>".
func parseGameVersion(args string) (*gameVersionArgs, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return nil, errors.New("expected version, platform and force flag")
	}
	platform, err := entity.ParsePlatform(fields[1])
	if err != nil {
		return nil, err
	}
	force, err := strconv.ParseBool(fields[2])
	if err != nil {
		return nil, fmt.Errorf("force flag: %w", err)
	}
	return &gameVersionArgs{
		platform: platform,
		version:  entity.GameVersion{VersionNumber: fields[0], ForceUpdate: force},
	}, nil
}

type subscriptionArgs struct {
	playerID  string
	productID string
	days      int
	bump      uint64
}

// parseSubscription reads "<playerId> <productId> <days> <saveCountIncrease>".
func parseSubscription(args string) (*subscriptionArgs, error) {
	fields := strings.Fields(args)
	if len(fields) != 4 {
		return nil, errors.New("expected player id, product id, days and save count increase")
	}
	days, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("days: %w", err)
	}
	bump, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("save count increase: %w", err)
	}
	return &subscriptionArgs{playerID: fields[0], productID: fields[1], days: days, bump: bump}, nil
}

type copySaveArgs struct {
	toPlayer   string
	fromPlayer string
	bump       uint64
}

// parseCopySave reads "<toPlayerId> <fromPlayerId> <saveCountIncrease>".
func parseCopySave(args string) (*copySaveArgs, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return nil, errors.New("expected target player id, source player id and save count increase")
	}
	bump, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("save count increase: %w", err)
	}
	return &copySaveArgs{toPlayer: fields[0], fromPlayer: fields[1], bump: bump}, nil
}

// playerError answers domain errors directly and reports the rest.
func (t *TgBot) playerError(chatId int64, command string, err error) {
	switch {
	case errors.Is(err, entity.ErrPlayerNotFound),
		errors.Is(err, entity.ErrUnknownProduct),
		errors.Is(err, entity.ErrSaveCountBump),
		errors.Is(err, entity.ErrSaveDataShape),
		errors.Is(err, entity.ErrInvalidPlatform):
		t.plainResponse(chatId, Sanitize(err.Error()))
	default:
		t.reportError(chatId, command, err)
	}
}

func (t *TgBot) gameVersion(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.playersOnly(chatId) {
		return nil
	}

	args, err := parseGameVersion(commandArgs(ctx.EffectiveMessage.Text))
	if err != nil {
		t.plainResponse(chatId, fmt.Sprintf("%s\nUsage: `/gameversion <version> <ios|android> <true|false>`", Sanitize(err.Error())))
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	if err = t.players.SetGameVersion(c, args.platform, args.version); err != nil {
		t.playerError(chatId, "/gameversion", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Game version updated\\.\nPlatform: %s\nVersion: `%s`\nForced: %t",
		args.platform, Sanitize(args.version.VersionNumber), args.version.ForceUpdate))
	return nil
}

func (t *TgBot) saveData(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.playersOnly(chatId) {
		return nil
	}

	playerID := commandArgs(ctx.EffectiveMessage.Text)
	if playerID == "" || strings.ContainsAny(playerID, " \t\n") {
		t.plainResponse(chatId, "Usage: `/savedata <playerId>`")
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	data, err := t.players.SaveData(c, playerID)
	if err != nil {
		t.playerError(chatId, "/savedata", err)
		return nil
	}
	if err = t.sendJSON(c, chatId, saveFileName(playerID), data); err != nil {
		t.reportError(chatId, "/savedata", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Save data sent for player `%s`\\.", Sanitize(playerID)))
	return nil
}

func (t *TgBot) subscription(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.playersOnly(chatId) {
		return nil
	}

	args, err := parseSubscription(commandArgs(ctx.EffectiveMessage.Text))
	if err != nil {
		t.plainResponse(chatId, fmt.Sprintf("%s\nUsage: `/subscription <playerId> <productId> <days> <saveCountIncrease>`", Sanitize(err.Error())))
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	if err = t.players.UpdateSubscription(c, args.playerID, args.productID, args.days, args.bump); err != nil {
		t.playerError(chatId, "/subscription", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Subscription updated\\.\nPlayer: `%s`\nProduct: `%s`\nDuration: %d days",
		Sanitize(args.playerID), Sanitize(args.productID), args.days))
	return nil
}

func (t *TgBot) copySave(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.playersOnly(chatId) {
		return nil
	}

	args, err := parseCopySave(commandArgs(ctx.EffectiveMessage.Text))
	if err != nil {
		t.plainResponse(chatId, fmt.Sprintf("%s\nUsage: `/copysave <toPlayerId> <fromPlayerId> <saveCountIncrease>`", Sanitize(err.Error())))
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	old, err := t.players.CopySaveData(c, args.toPlayer, args.fromPlayer, args.bump)
	if err != nil {
		t.playerError(chatId, "/copysave", err)
		return nil
	}
	// the replaced save goes back to the admin
	if err = t.sendJSON(c, chatId, saveFileName(args.toPlayer), old); err != nil {
		t.log.Warn("sending replaced save", sl.Err(err))
	}
	t.plainResponse(chatId, fmt.Sprintf("Save data copied to player `%s` from player `%s`\\. The old save is attached above\\.",
		Sanitize(args.toPlayer), Sanitize(args.fromPlayer)))
	return nil
}

func saveFileName(playerID string) string {
	return fmt.Sprintf("save_data_%s.json", playerID)
}

// sendJSON uploads v as an indented JSON document.
func (t *TgBot) sendJSON(ctx context.Context, chatId int64, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err = t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = t.api.SendDocumentWithContext(ctx, chatId, tgbotapi.InputFileByReader(name, bytes.NewReader(data)), nil)
	if err != nil {
		return fmt.Errorf("sending %s: %w", name, err)
	}
	return nil
}
