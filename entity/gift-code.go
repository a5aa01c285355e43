package entity

import (
	"net/http"
	"time"

	"giftbot/lib/validate"
)

// GiftCode is the record kept in the inventory under its code key.
// Amount is the remaining quantity and never goes below zero. ButtonID is the
// opaque token attached to the broadcast button; clicks carry it back.
type GiftCode struct {
	Key       string         `json:"-" bson:"_id"`
	Title     string         `json:"title" bson:"title"`
	Subtitle  string         `json:"subtitle" bson:"subtitle"`
	Amount    int            `json:"amount" bson:"amount"`
	Issued    int            `json:"issued,omitempty" bson:"issued"`
	Duration  int            `json:"duration" bson:"duration"`
	ExpiredAt time.Time      `json:"expiredAt" bson:"expired_at"`
	Rewards   GiftCodeReward `json:"rewards" bson:"rewards"`
	ChannelID int64          `json:"channelId" bson:"channel_id"`
	MessageID string         `json:"messageId" bson:"message_id"`
	ButtonID  string         `json:"buttonId" bson:"button_id"`
	Revision  int64          `json:"revision,omitempty" bson:"revision"`
}

type CurrencyReward struct {
	Name           string `json:"name" bson:"name" validate:"required"`
	CurrencyType   int    `json:"currencyType" bson:"currency_type"`
	CurrencyAmount int    `json:"currencyAmount" bson:"currency_amount"`
}

type ItemReward struct {
	Name                  string `json:"name" bson:"name" validate:"required"`
	ItemID                int    `json:"itemId" bson:"item_id"`
	ItemGrade             int    `json:"itemGrade" bson:"item_grade"`
	UpgradeLevel          int    `json:"upgradeLevel" bson:"upgrade_level"`
	ItemRefinementQuality int    `json:"itemRefinementQuality" bson:"item_refinement_quality"`
}

// GiftCodeReward is opaque to redemption; it is only rendered on the broadcast.
type GiftCodeReward struct {
	CurrencyRewards []CurrencyReward `json:"currencyRewards" bson:"currency_rewards" validate:"dive"`
	ItemRewards     []ItemReward     `json:"itemRewards" bson:"item_rewards" validate:"dive"`
	XpReward        int              `json:"xpReward" bson:"xp_reward" validate:"gte=0"`
}

func (r GiftCodeReward) IsEmpty() bool {
	return len(r.CurrencyRewards) == 0 && len(r.ItemRewards) == 0 && r.XpReward == 0
}

// IsExpired reports whether the expiry instant is strictly before now.
func (g *GiftCode) IsExpired(now time.Time) bool {
	return g.ExpiredAt.Before(now)
}

func (g *GiftCode) IsExhausted() bool {
	return g.Amount <= 0
}

// IsStale reports whether the code can be swept by the cleanup command.
func (g *GiftCode) IsStale(now time.Time) bool {
	return g.IsExhausted() || g.IsExpired(now)
}

func (g *GiftCode) Clone() *GiftCode {
	if g == nil {
		return nil
	}
	c := *g
	c.Rewards.CurrencyRewards = append([]CurrencyReward(nil), g.Rewards.CurrencyRewards...)
	c.Rewards.ItemRewards = append([]ItemReward(nil), g.Rewards.ItemRewards...)
	return &c
}

// GiftCodeDraft is the admin input for a new gift code.
type GiftCodeDraft struct {
	Title    string         `json:"title" validate:"required"`
	Subtitle string         `json:"subtitle" validate:"required"`
	Amount   int            `json:"amount" validate:"required,gte=1"`
	Duration int            `json:"duration" validate:"required,gte=1"`
	Rewards  GiftCodeReward `json:"rewards"`
	Test     bool           `json:"test"`
	Hidden   bool           `json:"hidden"`
}

func (d *GiftCodeDraft) Bind(_ *http.Request) error {
	return d.Validate()
}

func (d *GiftCodeDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Rewards.IsEmpty() {
		return ErrEmptyRewards
	}
	return nil
}
