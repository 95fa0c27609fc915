package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kkdai/youtube/v2"

	"github.com/alanbriolat/extractor/generic"
)

var (
	twitterPattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,15}$`)
	// Optional scheme, optional www./m. subdomain, youtube.com or youtu.be, optional path prefix, then the video id.
	// The tail excludes Unicode spaces, \v and BOM as well as ASCII whitespace.
	youtubePattern = regexp.MustCompile(`^((?:https?:)?//)?((?:www|m)\.)?((?:youtube\.com|youtu\.be))(/(?:[\w-]+\?v=|embed/|v/)?)([\w-]+)([^\s\v\x{FEFF}\p{Z}]+)?$`)
)

// Payload is the normalized result of accepted input; exactly one of the fields is set, depending on the Mode.
type Payload struct {
	Username string
	URLs     []string
}

// Validate classifies text for the given mode. The Result is either Ok(payload) or Err(reason), where the reason is
// ErrInvalidTwitterInput, ErrInvalidYoutubeInput or ErrUnknownMode.
func Validate(mode Mode, text string) generic.Result[Payload] {
	switch mode {
	case ModeTwitter:
		return ValidateTwitter(text)
	case ModeYouTube:
		return ValidateYouTube(text)
	default:
		return generic.Err[Payload](fmt.Errorf("%w: %q", ErrUnknownMode, mode))
	}
}

// ValidateTwitter accepts a handle of 4-15 letters, digits or underscores, ignoring surrounding whitespace.
func ValidateTwitter(text string) generic.Result[Payload] {
	username := strings.TrimSpace(text)
	if !twitterPattern.MatchString(username) {
		return generic.Err[Payload](ErrInvalidTwitterInput)
	}
	return generic.Ok(Payload{Username: username})
}

// ValidateYouTube accepts the trimmed comma-separated segments that look like YouTube URLs, in input order. Other
// segments are dropped; if nothing is left the input is rejected.
func ValidateYouTube(text string) generic.Result[Payload] {
	urls, _ := MatchYouTubeURLs(text)
	if len(urls) == 0 {
		return generic.Err[Payload](ErrInvalidYoutubeInput)
	}
	return generic.Ok(Payload{URLs: urls})
}

// MatchYouTubeURLs splits text on commas and returns the segments matching the YouTube URL pattern, plus an error
// describing every dropped segment (nil if none were dropped).
func MatchYouTubeURLs(text string) ([]string, error) {
	var urls []string
	var dropped error
	for i, segment := range strings.Split(text, ",") {
		segment = strings.TrimSpace(segment)
		if youtubePattern.MatchString(segment) {
			urls = append(urls, segment)
		} else {
			dropped = multierror.Append(dropped, fmt.Errorf("segment %d %q: not a youtube url", i, segment))
		}
	}
	return urls, dropped
}

// VideoID extracts the video id from an accepted YouTube URL.
func VideoID(url string) (string, error) {
	id, err := youtube.ExtractVideoID(url)
	if err != nil {
		return "", fmt.Errorf("failed to extract video id from %q: %w", url, err)
	}
	return id, nil
}
