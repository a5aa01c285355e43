package codekey

import (
	"errors"
	"strings"
	"testing"

	"giftbot/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := Generate()
		require.NoError(t, err)
		assert.Len(t, key, Length)
		assert.True(t, Valid(key), key)
		assert.NotContains(t, key, "O")
		assert.NotContains(t, key, "0")
		assert.Equal(t, strings.ToUpper(key), key)
		seen[key] = true
	}
	assert.Len(t, seen, 200)
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"well formed", "ABCDEFGH12345678", true},
		{"too short", "ABCDEFGH1234567", false},
		{"too long", "ABCDEFGH123456789", false},
		{"lower case", "abcdefgh12345678", false},
		{"contains O", "ABCDEFGHO2345678", false},
		{"contains zero", "ABCDEFGH02345678", false},
		{"punctuation", "ABCDEFGH1234567-", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.key))
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("ABCDEFGH12345678"))
	err := Check("nope")
	assert.True(t, errors.Is(err, entity.ErrInvalidCodeKey))
}
