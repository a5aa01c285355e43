package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"giftbot/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const commandTimeout = 30 * time.Second

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// commandArgs returns the message text after the command word.
func commandArgs(text string) string {
	_, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(args)
}

// parseDraft decodes the /addcode argument, a JSON object.
func parseDraft(args string) (*entity.GiftCodeDraft, error) {
	if args == "" {
		return nil, errors.New("missing gift code JSON")
	}
	decoder := json.NewDecoder(strings.NewReader(args))
	decoder.DisallowUnknownFields()
	var draft entity.GiftCodeDraft
	if err := decoder.Decode(&draft); err != nil {
		return nil, fmt.Errorf("decoding gift code JSON: %w", err)
	}
	return &draft, nil
}

// adminOnly replies and returns false when the sender is not a configured admin.
func (t *TgBot) adminOnly(chatId int64) bool {
	if !t.isAdmin(chatId) {
		t.plainResponse(chatId, "Admin access required\\.")
		return false
	}
	if t.admin == nil {
		t.plainResponse(chatId, "Gift code service is not available\\.")
		return false
	}
	return true
}

func (t *TgBot) addCode(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	draft, err := parseDraft(commandArgs(ctx.EffectiveMessage.Text))
	if err != nil {
		t.plainResponse(chatId, fmt.Sprintf("%s\nUsage: `/addcode {\"title\":\"...\",\"subtitle\":\"...\",\"amount\":10,\"duration\":7,\"rewards\":{...}}`", Sanitize(err.Error())))
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	code, err := t.admin.Create(c, draft)
	switch {
	case errors.Is(err, entity.ErrCodeLimit), errors.Is(err, entity.ErrInvalidGiftCode):
		t.plainResponse(chatId, Sanitize(err.Error()))
		return nil
	case err != nil:
		t.reportError(chatId, "/addcode", err)
		return nil
	}

	header := "Gift code added\\!"
	if draft.Test {
		header = "Test gift code:"
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"%s\nTitle: %s\nCode: `%s`\nExpires: %s\nAmount: %d\nRewards: %s",
		header,
		Sanitize(code.Title),
		code.Key,
		Sanitize(code.ExpiredAt.Format(time.RFC3339)),
		code.Amount,
		Sanitize(rewardsSummary(code.Rewards)),
	))
	return nil
}

func (t *TgBot) removeCode(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	key := commandArgs(ctx.EffectiveMessage.Text)
	if key == "" {
		t.plainResponse(chatId, "Usage: `/removecode <code>`")
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	err := t.admin.Remove(c, key)
	switch {
	case errors.Is(err, entity.ErrInvalidCodeKey):
		t.plainResponse(chatId, "Invalid gift code format\\.")
	case errors.Is(err, entity.ErrCodeNotFound):
		t.plainResponse(chatId, fmt.Sprintf("Gift code `%s` not found\\.", Sanitize(key)))
	case err != nil:
		t.reportError(chatId, "/removecode", err)
	default:
		t.plainResponse(chatId, fmt.Sprintf("Gift code `%s` deleted\\.", key))
	}
	return nil
}

func (t *TgBot) purgeCodes(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	removed, err := t.admin.RemoveStale(c)
	if err != nil && len(removed) == 0 {
		t.reportError(chatId, "/purgecodes", err)
		return nil
	}
	if len(removed) == 0 {
		t.plainResponse(chatId, "No stale gift codes found\\.")
		return nil
	}

	var sb strings.Builder
	for _, key := range removed {
		sb.WriteString(fmt.Sprintf("Deleted gift code: `%s`\n", key))
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("\nStopped on error: %s", Sanitize(err.Error())))
	}
	for _, part := range splitMessage(sb.String(), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

func (t *TgBot) listCodes(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	list, err := t.admin.List(c)
	if err != nil {
		t.reportError(chatId, "/codes", err)
		return nil
	}
	if len(list) == 0 {
		t.plainResponse(chatId, "No active gift codes\\.")
		return nil
	}

	now := t.clock.Now()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Gift codes* \\(%d\\)\n", len(list)))
	for _, code := range list {
		state := "active"
		switch {
		case code.Amount <= 0:
			state = "exhausted"
		case code.ExpiredAt.Before(now):
			state = "expired"
		}
		sb.WriteString(fmt.Sprintf("`%s` %s \\| left %d/%d \\| redeemed %d \\| %s \\| %s\n",
			code.Key,
			Sanitize(code.Title),
			code.Amount,
			code.Issued,
			code.Redeemed,
			Sanitize(code.ExpiredAt.Format(expiryLayout)),
			state,
		))
	}
	for _, part := range splitMessage(sb.String(), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

func (t *TgBot) audit(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	key := commandArgs(ctx.EffectiveMessage.Text)
	if key == "" {
		t.plainResponse(chatId, "Usage: `/audit <code>`")
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	report, err := t.admin.Audit(c, key)
	switch {
	case errors.Is(err, entity.ErrInvalidCodeKey):
		t.plainResponse(chatId, "Invalid gift code format\\.")
		return nil
	case errors.Is(err, entity.ErrCodeNotFound):
		t.plainResponse(chatId, fmt.Sprintf("Gift code `%s` not found\\.", Sanitize(key)))
		return nil
	case err != nil:
		t.reportError(chatId, "/audit", err)
		return nil
	}

	msg := fmt.Sprintf(
		"*Audit* `%s`\n"+
			"Issued: `%d`\n"+
			"Redeemed: `%d`\n"+
			"Stored: `%d`\n"+
			"Expected: `%d`\n"+
			"Corrected: `%t`",
		report.Key,
		report.Issued,
		report.Redeemed,
		report.Stored,
		report.Expected,
		report.Corrected,
	)
	if report.Note != "" {
		msg += "\nNote: " + Sanitize(report.Note)
	}
	t.plainResponse(chatId, msg)
	return nil
}

func (t *TgBot) reload(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id
	if !t.adminOnly(chatId) {
		return nil
	}

	c, cancel := commandContext()
	defer cancel()
	n, err := t.admin.Reload(c)
	if err != nil {
		t.reportError(chatId, "/reload", err)
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Index reloaded: %d gift codes\\.", n))
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveUser.Id

	var sb strings.Builder
	sb.WriteString("*Available Commands*\n\n")
	sb.WriteString("`/help` \\- Show this help\n")
	sb.WriteString("\nPress *Get Code* under a gift code post to receive a code in this chat\\.\n")

	if t.isAdmin(chatId) {
		sb.WriteString("\n*Admin Commands:*\n")
		sb.WriteString("`/addcode <json>` \\- Create and publish a gift code\n")
		sb.WriteString("`/removecode <code>` \\- Delete a gift code\n")
		sb.WriteString("`/purgecodes` \\- Delete expired and exhausted codes\n")
		sb.WriteString("`/codes` \\- List active gift codes\n")
		sb.WriteString("`/audit <code>` \\- Check remaining quantity against redemptions\n")
		sb.WriteString("`/reload` \\- Reload the gift code index\n")
		if t.players != nil {
			sb.WriteString("\n*Player Data:*\n")
			sb.WriteString("`/gameversion <version> <ios|android> <true|false>` \\- Set the required game version\n")
			sb.WriteString("`/savedata <playerId>` \\- Download a player's save\n")
			sb.WriteString("`/subscription <playerId> <productId> <days> <n>` \\- Extend a subscription\n")
			sb.WriteString("`/copysave <toPlayerId> <fromPlayerId> <n>` \\- Copy a save between players\n")
		}
	}

	t.plainResponse(chatId, sb.String())
	return nil
}

func rewardsSummary(r entity.GiftCodeReward) string {
	var parts []string
	for _, c := range r.CurrencyRewards {
		parts = append(parts, fmt.Sprintf("%s x%d", c.Name, c.CurrencyAmount))
	}
	if r.XpReward > 0 {
		parts = append(parts, "XP x"+formatXP(r.XpReward))
	}
	for _, i := range r.ItemRewards {
		parts = append(parts, i.Name)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
