package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("IoS")
	require.NoError(t, err)
	assert.Equal(t, PlatformIOS, p)

	p, err = ParsePlatform("android")
	require.NoError(t, err)
	assert.Equal(t, PlatformAndroid, p)

	_, err = ParsePlatform("switch")
	assert.ErrorIs(t, err, ErrInvalidPlatform)
}
