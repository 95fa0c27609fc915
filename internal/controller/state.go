package controller

import (
	"fmt"

	"github.com/alanbriolat/extractor"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
)

// Outcome is the terminal result of one submission attempt; either way the controller returns to PhaseIdle.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Display is which of the three views the UI should render for a State.
type Display string

const (
	DisplayForm     Display = "form"
	DisplayProgress Display = "progress"
	DisplayDownload Display = "download"
)

// State is everything the UI renders. It only holds comparable fields, so states can be compared with ==.
type State struct {
	Mode        extractor.Mode
	Input       string
	Diarization bool
	Phase       Phase
	// Upload progress of the current attempt, in [0, 100].
	Progress int
	// Set by a successful attempt, cleared by Acknowledge.
	DownloadLink string
	// Identifies the in-flight attempt, empty when idle.
	AttemptID string
}

func newState() State {
	return State{
		Mode:  extractor.DefaultMode,
		Phase: PhaseIdle,
	}
}

// IsSubmitting returns true while a request is in flight; submissions and mode changes are refused meanwhile.
func (s State) IsSubmitting() bool {
	return s.Phase == PhaseSubmitting
}

// CanSubmit mirrors the enabled state of the submit button.
func (s State) CanSubmit() bool {
	return !s.IsSubmitting() && s.DownloadLink == "" && s.Input != ""
}

func (s State) Display() Display {
	switch {
	case s.DownloadLink != "":
		return DisplayDownload
	case s.IsSubmitting():
		return DisplayProgress
	default:
		return DisplayForm
	}
}

func (s State) String() string {
	return fmt.Sprintf("State{Mode:%s, Phase:%s, Progress:%d, Input:%q, DownloadLink:%q}", s.Mode, s.Phase, s.Progress, s.Input, s.DownloadLink)
}
