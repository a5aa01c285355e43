package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"giftbot/entity"
	"giftbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const (
	divider       = "➖➖➖➖➖"
	expiryLayout  = "January 02, 2006"
	expiryMaxShow = 180 * 24 * time.Hour
)

// giftCodeMessage renders the broadcast text in MarkdownV2. The expiration
// line is shown only when the expiry is at least an hour and under 180 days away.
func giftCodeMessage(code *entity.GiftCode, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\n", Sanitize(code.Title)))
	if code.Subtitle != "" {
		sb.WriteString(Sanitize(code.Subtitle) + "\n")
	}
	sb.WriteString("\n" + divider + "\n")

	var headline []string
	for _, currency := range code.Rewards.CurrencyRewards {
		headline = append(headline, fmt.Sprintf("*%s*", Sanitize(currency.Name)))
	}
	if code.Rewards.XpReward > 0 {
		headline = append(headline, fmt.Sprintf("*XP x %s*", Sanitize(formatXP(code.Rewards.XpReward))))
	}
	if len(headline) > 0 {
		sb.WriteString(strings.Join(headline, "     ") + "\n")
	}
	for _, item := range code.Rewards.ItemRewards {
		sb.WriteString(Sanitize(item.Name) + "\n")
	}

	sb.WriteString(divider + "\n\n")
	sb.WriteString(fmt.Sprintf("Remaining Gift Codes: %d\n", max(code.Amount, 0)))

	left := code.ExpiredAt.Sub(now)
	if left >= time.Hour && left < expiryMaxShow {
		sb.WriteString(fmt.Sprintf("Expiration: %s\n", Sanitize(code.ExpiredAt.UTC().Format(expiryLayout))))
	}
	return sb.String()
}

// formatXP shows experience points in thousands with three decimals, 1500 -> 1.500.
func formatXP(xp int) string {
	return strconv.FormatFloat(float64(xp)/1000, 'f', 3, 64)
}

func giftCodeKeyboard(code *entity.GiftCode) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{Text: "🎁 Get Code", CallbackData: cbGiftCode + code.ButtonID}},
		},
	}
}

// PublishGiftCode posts the broadcast with its redeem button to code.ChannelID
// and returns the message id.
func (t *TgBot) PublishGiftCode(ctx context.Context, code *entity.GiftCode) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	msg, err := t.api.SendMessage(code.ChannelID, giftCodeMessage(code, t.clock.Now()), &tgbotapi.SendMessageOpts{
		ParseMode:   "MarkdownV2",
		ReplyMarkup: giftCodeKeyboard(code),
	})
	if err != nil {
		return "", fmt.Errorf("sending broadcast: %w", err)
	}
	t.log.With(
		sl.Channel(code.ChannelID),
		slog.Int64("message_id", msg.MessageId),
	).Debug("gift code published")
	return strconv.FormatInt(msg.MessageId, 10), nil
}
