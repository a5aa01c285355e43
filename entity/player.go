package entity

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformAndroid Platform = "Android"
)

// ParsePlatform accepts the platform name in any letter case.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios":
		return PlatformIOS, nil
	case "android":
		return PlatformAndroid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
}

// GameVersion is the minimum client version stored per platform.
type GameVersion struct {
	VersionNumber string `json:"versionNumber" validate:"required"`
	ForceUpdate   bool   `json:"forceUpdate"`
}

// SaveData is a player's save document. Only a few fields are interpreted;
// the rest is carried through unchanged.
type SaveData map[string]interface{}
