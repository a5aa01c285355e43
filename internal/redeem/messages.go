package redeem

import "giftbot/entity"

var outcomeText = map[entity.Outcome]string{
	entity.OutcomeRedeemed:        "Congratulations! You have redeemed the gift code.",
	entity.OutcomeAlreadyRedeemed: "Sorry, you already redeemed this gift code. Your previous code was:",
	entity.OutcomeExpired:         "Sorry, this gift code has expired.",
	entity.OutcomeExhausted:       "Sorry, there are no more gift codes available.",
	entity.OutcomeFailed:          "Sorry, something went wrong while redeeming the gift code. Please try again.",
}

// Message is the private follow-up text for an outcome; the code key is
// appended on its own line when the outcome reveals it.
func Message(outcome entity.Outcome, codeKey string) string {
	text, ok := outcomeText[outcome]
	if !ok {
		text = outcomeText[entity.OutcomeFailed]
	}
	if outcome.RevealsCode() {
		text += "\n" + codeKey
	}
	return text
}
