// Package codekey generates and validates the 16-character keys handed out to users.
package codekey

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"giftbot/entity"
)

const (
	Length = 16
	// alphabet is upper-case letters and digits without the easily confused 'O' and '0'
	alphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"
)

// Generate returns a new random code key.
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code key: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Valid reports whether key has the code key shape.
func Valid(key string) bool {
	if len(key) != Length {
		return false
	}
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(alphabet, key[i]) < 0 {
			return false
		}
	}
	return true
}

// Check returns entity.ErrInvalidCodeKey when key is malformed.
func Check(key string) error {
	if key == "" || !Valid(key) {
		return fmt.Errorf("%w: %q", entity.ErrInvalidCodeKey, key)
	}
	return nil
}
