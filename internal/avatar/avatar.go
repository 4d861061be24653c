// Package avatar builds Gravatar identicon URLs for chat users.
package avatar

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/jon4hz/parley/internal/config"
	"github.com/samber/lo"
)

const baseURL = "https://www.gravatar.com/avatar/"

// URL returns the avatar URL for a username.
// Users have no email address, so the username is hashed instead, which
// makes Gravatar fall back to the generated default image.
// Returns an empty string if avatars are disabled or the username is empty.
func URL(username string, cfg *config.AvatarConfig) string {
	if cfg == nil || !cfg.Enabled {
		return ""
	}
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(username))
	u := fmt.Sprintf("%s%x", baseURL, hash)

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Add("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Add("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Add("s", fmt.Sprintf("%d", cfg.Size))
	}

	if len(params) > 0 {
		u = u + "?" + params.Encode()
	}
	return u
}

// Styles are the generated default images. Usernames never match a
// Gravatar account, so every avatar is one of these.
var Styles = []string{"identicon", "monsterid", "wavatar", "retro", "robohash"}

var ratings = []string{"g", "pg", "r", "x"}

const maxSize = 2048

// Validate checks an enabled avatar configuration.
func Validate(cfg *config.AvatarConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.DefaultImage != "" && !lo.Contains(Styles, cfg.DefaultImage) {
		return fmt.Errorf("invalid avatar style %q, must be one of %s", cfg.DefaultImage, strings.Join(Styles, ", "))
	}
	if cfg.Rating != "" && !lo.Contains(ratings, cfg.Rating) {
		return fmt.Errorf("invalid avatar rating %q", cfg.Rating)
	}
	if cfg.Size < 0 || cfg.Size > maxSize {
		return fmt.Errorf("avatar size must be between 1 and %d, got %d", maxSize, cfg.Size)
	}
	return nil
}
