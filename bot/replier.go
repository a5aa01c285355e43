package bot

import (
	"context"
	"fmt"

	"giftbot/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// clickReplier answers a single button press. The acknowledgment is the
// callback answer; the follow-up goes to the user's private chat with the bot,
// which only the clicking user can read.
type clickReplier struct {
	bot   *TgBot
	query *tgbotapi.CallbackQuery
}

func newClickReplier(t *TgBot, cq *tgbotapi.CallbackQuery) *clickReplier {
	return &clickReplier{bot: t, query: cq}
}

func (r *clickReplier) Ack(_ context.Context) error {
	_, err := r.query.Answer(r.bot.api, &tgbotapi.AnswerCallbackQueryOpts{
		Text: "Checking your gift code...",
	})
	if err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

func (r *clickReplier) Reply(ctx context.Context, text string) error {
	if err := r.bot.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := r.bot.api.SendMessage(r.query.From.Id, text, &tgbotapi.SendMessageOpts{})
	if err != nil {
		return fmt.Errorf("sending private reply: %w", err)
	}
	return nil
}

func (r *clickReplier) EditBroadcast(ctx context.Context, code *entity.GiftCode) error {
	msg := r.query.Message
	if msg == nil {
		return nil
	}
	if err := r.bot.limiter.Wait(ctx); err != nil {
		return err
	}
	_, _, err := r.bot.api.EditMessageText(giftCodeMessage(code, r.bot.clock.Now()), &tgbotapi.EditMessageTextOpts{
		ChatId:      msg.GetChat().Id,
		MessageId:   msg.GetMessageId(),
		ParseMode:   "MarkdownV2",
		ReplyMarkup: giftCodeKeyboard(code),
	})
	if err != nil {
		return fmt.Errorf("editing broadcast: %w", err)
	}
	return nil
}
