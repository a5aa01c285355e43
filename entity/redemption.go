package entity

import (
	"context"
	"time"
)

// Outcome is the result of a redemption attempt reported to the user.
type Outcome string

const (
	OutcomeRedeemed        Outcome = "REDEEMED"
	OutcomeAlreadyRedeemed Outcome = "ALREADY_REDEEMED"
	OutcomeExpired         Outcome = "EXPIRED"
	OutcomeExhausted       Outcome = "EXHAUSTED"
	OutcomeFailed          Outcome = "FAILED"
)

// RevealsCode reports whether the follow-up carries the code key.
func (o Outcome) RevealsCode() bool {
	return o == OutcomeRedeemed || o == OutcomeAlreadyRedeemed
}

// Redemption is a ledger row; one per (user, code), never updated.
type Redemption struct {
	UserID     int64     `json:"user_id" bson:"user_id" db:"user_id"`
	CodeKey    string    `json:"gift_code_key" bson:"gift_code_key" db:"gift_code_key"`
	RedeemedAt time.Time `json:"redeemed_at" bson:"redeemed_at" db:"redeemed_at"`
}

// Replier talks back to the clicking user and to the broadcast message.
// Implementations are bound to a single click.
type Replier interface {
	Ack(ctx context.Context) error
	Reply(ctx context.Context, text string) error
	EditBroadcast(ctx context.Context, code *GiftCode) error
}

// Click is one button press delivered by the gateway.
type Click struct {
	UserID    int64
	ButtonID  string
	ChannelID int64
	Replier   Replier
}
