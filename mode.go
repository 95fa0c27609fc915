package extractor

import (
	"fmt"
	"strings"

	"github.com/alanbriolat/extractor/generic"
)

// Mode selects which validator and which backend operation a submission uses.
type Mode string

const (
	ModeTwitter Mode = "twitter"
	ModeYouTube Mode = "youtube"
)

// DefaultMode is the mode a fresh controller starts in.
const DefaultMode = ModeTwitter

var knownModes = generic.NewSet(ModeTwitter, ModeYouTube)

// Valid returns true for the modes the backend knows how to process.
func (m Mode) Valid() bool {
	return knownModes.Contains(m)
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}
