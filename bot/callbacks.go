package bot

import (
	"log/slog"
	"strings"

	"giftbot/entity"
	"giftbot/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Callback data prefix for the redeem button.
// Telegram limits callback data to 64 bytes; a uuid button id fits.
const cbGiftCode = "gc:" // gc:<button_id>

// onGiftCodeCallback turns a redeem button press into a click for the
// channel's listener. The query is answered by the coordinator, except when
// the click cannot be queued.
func (t *TgBot) onGiftCodeCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	if cq.Message == nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "This button is no longer available"})
		return nil
	}

	click := entity.Click{
		UserID:    cq.From.Id,
		ButtonID:  strings.TrimPrefix(cq.Data, cbGiftCode),
		ChannelID: cq.Message.GetChat().Id,
		Replier:   newClickReplier(t, cq),
	}

	if !t.hub.Publish(click) {
		t.log.With(
			sl.Channel(click.ChannelID),
			sl.User(click.UserID),
			slog.Int("pending", t.hub.Pending(click.ChannelID)),
		).Warn("click not queued")
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Busy right now, please try again", ShowAlert: true})
	}
	return nil
}
