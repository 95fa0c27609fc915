package controller

import "github.com/alanbriolat/extractor"

type Event interface {
	// The submission attempt this event relates to (empty if not attempt-specific).
	AttemptID() string
}

type attemptEvent struct {
	attemptID string
}

func (e attemptEvent) AttemptID() string {
	return e.attemptID
}

// StateChanged is sent after every visible change to the controller State. Progress-only changes may be coalesced.
type StateChanged struct {
	attemptEvent
	OldState State
	NewState State
}

// Notification is a transient user-visible message, identified by a localization key.
type Notification struct {
	attemptEvent
	Key string
	Err error
}

type SubmissionStarted struct {
	attemptEvent
	Request extractor.Request
}

type SubmissionFinished struct {
	attemptEvent
	Outcome      Outcome
	DownloadLink string
	Err          error
}
