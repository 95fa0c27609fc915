package extractor

import "errors"

var (
	// ErrInvalidTwitterInput means the text is not a plausible Twitter handle.
	ErrInvalidTwitterInput = errors.New("invalid twitter username")
	// ErrInvalidYoutubeInput means no comma-separated segment was a YouTube URL.
	ErrInvalidYoutubeInput = errors.New("no valid youtube url")
	// ErrRequestFailed wraps any transport or backend failure of a submission.
	ErrRequestFailed = errors.New("unable to process request")
	ErrUnknownMode   = errors.New("unknown mode")
)

// Message keys for user-visible notifications, resolved by the localization layer.
const (
	KeyInvalidTwitterInput = "extractor.invalidTwitterInput"
	KeyInvalidYoutubeInput = "extractor.invalidYoutubeInput"
	KeyRequestFailed       = "extractor.requestFailed"
)

// NotificationKey maps an error to the message key shown to the user for it.
func NotificationKey(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTwitterInput):
		return KeyInvalidTwitterInput
	case errors.Is(err, ErrInvalidYoutubeInput):
		return KeyInvalidYoutubeInput
	default:
		return KeyRequestFailed
	}
}
