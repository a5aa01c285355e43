package entity

import "errors"

var (
	ErrCodeNotFound    = errors.New("gift code not found")
	ErrAlreadyRedeemed = errors.New("gift code already redeemed by user")
	ErrInvalidCodeKey  = errors.New("invalid gift code format")
	ErrInvalidGiftCode = errors.New("invalid gift code")
	ErrEmptyRewards    = errors.New("rewards cannot be empty")
	ErrCodeLimit       = errors.New("gift code limit reached")

	ErrPlayerNotFound  = errors.New("player save data not found")
	ErrInvalidPlatform = errors.New("invalid platform name")
	ErrUnknownProduct  = errors.New("invalid product id")
	ErrSaveCountBump   = errors.New("save count increase must be greater than 0")
	ErrSaveDataShape   = errors.New("unexpected save data layout")
)
