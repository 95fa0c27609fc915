// Package controller owns the state of the extraction form and drives at most one backend request at a time.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alanbriolat/extractor"
	"github.com/alanbriolat/extractor/generic"
	"github.com/alanbriolat/extractor/internal/pubsub"
	"github.com/alanbriolat/extractor/internal/sync_"
)

var (
	// ErrBusy is returned for any change attempted while a submission is in flight.
	ErrBusy = errors.New("submission in progress")
	// ErrDownloadPending is returned by Submit until the previous download link has been acknowledged.
	ErrDownloadPending = errors.New("download link not yet acknowledged")
	ErrEmptyInput      = errors.New("empty input")
	ErrClosed          = errors.New("controller closed")
)

type Config struct {
	// Minimum interval between StateChanged events caused by progress alone.
	ProgressUpdateInterval time.Duration
}

// Drain only keeps the most recent notifications.
const maxPendingNotifications = 16

var DefaultConfig = Config{
	ProgressUpdateInterval: extractor.DefaultConfig.ProgressUpdateInterval,
}

type Controller struct {
	config    Config
	submitter extractor.Submitter
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	// mu guards state; emitMu is taken before mu is released so events go out in the order of the changes.
	mu              sync.Mutex
	emitMu          sync.Mutex
	state           State
	closed          bool
	progressLimiter *rate.Limiter
	// Notifications not yet collected by Drain, oldest first.
	notifications []Notification

	events   pubsub.Publisher[Event]
	idle     *sync_.Event
	inflight sync.WaitGroup
}

// New creates a Controller in the idle phase. Requests run under ctx, so cancelling it (or calling Close) aborts
// an in-flight request; there is no other way to cancel one.
func New(ctx context.Context, config Config, submitter extractor.Submitter) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		config:    config,
		submitter: submitter,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       extractor.Logger(ctx).Sugar().Named("controller"),
		state:     newState(),
		events:    pubsub.NewPublisher[Event](),
		idle:      sync_.NewEvent(),
	}
	// rate.Every(0) is unlimited
	c.progressLimiter = rate.NewLimiter(rate.Every(config.ProgressUpdateInterval), 1)
	c.idle.Set()
	return c
}

// Subscribe returns a stream of events. Subscribers must keep receiving until the stream closes, or the controller
// will stall.
func (c *Controller) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return c.events.Subscribe()
}

// AddSubscriber attaches an existing sender (e.g. a filtered one) to the event stream.
func (c *Controller) AddSubscriber(s pubsub.SenderCloser[Event]) error {
	return c.events.AddSubscriber(s, true)
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMode switches between Twitter and YouTube. Switching to a different mode clears the input.
func (c *Controller) SetMode(mode extractor.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", extractor.ErrUnknownMode, mode)
	}
	return c.update(func(s *State) ([]Event, error) {
		if s.IsSubmitting() {
			return nil, ErrBusy
		}
		if s.Mode != mode {
			s.Mode = mode
			s.Input = ""
		}
		return nil, nil
	})
}

func (c *Controller) SetInput(text string) error {
	return c.update(func(s *State) ([]Event, error) {
		if s.IsSubmitting() {
			return nil, ErrBusy
		}
		s.Input = text
		return nil, nil
	})
}

func (c *Controller) SetDiarization(enabled bool) error {
	return c.update(func(s *State) ([]Event, error) {
		if s.IsSubmitting() {
			return nil, ErrBusy
		}
		s.Diarization = enabled
		return nil, nil
	})
}

// Submit validates the input and, if it is acceptable, starts a request in the background. Invalid input produces
// a Notification and leaves the controller idle. While a request is in flight, Submit does nothing and returns
// ErrBusy.
func (c *Controller) Submit() error {
	var req extractor.Request
	var attemptID string
	err := c.update(func(s *State) ([]Event, error) {
		switch {
		case s.IsSubmitting():
			return nil, ErrBusy
		case s.DownloadLink != "":
			return nil, ErrDownloadPending
		case s.Input == "":
			return nil, ErrEmptyInput
		}
		payload, err := extractor.Validate(s.Mode, s.Input).Parts()
		if err != nil {
			return []Event{Notification{Key: extractor.NotificationKey(err), Err: err}}, err
		}
		if dropped := droppedSegments(s.Mode, s.Input); dropped != nil {
			c.log.Debugf("ignoring input segments: %v", dropped)
		}
		req = extractor.NewRequest(s.Mode, payload, s.Diarization)
		attemptID = uuid.NewString()
		s.Phase = PhaseSubmitting
		s.Progress = 0
		s.Input = ""
		s.AttemptID = attemptID
		c.idle.Clear()
		c.inflight.Add(1)
		return []Event{SubmissionStarted{attemptEvent{attemptID}, req}}, nil
	})
	if err != nil {
		return err
	}
	go c.run(attemptID, req)
	return nil
}

// Drain returns the current state together with the notifications raised since the previous Drain. Both are taken
// under the same lock, so a state that reflects a rejected or failed submission always comes with its notification.
func (c *Controller) Drain() (State, []Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	notifications := c.notifications
	c.notifications = nil
	return c.state, notifications
}

// Acknowledge hands over the download link from the last successful submission, clearing it from the state.
func (c *Controller) Acknowledge() generic.Option[string] {
	link := generic.None[string]()
	_ = c.update(func(s *State) ([]Event, error) {
		if s.DownloadLink != "" {
			link = generic.Some(s.DownloadLink)
			s.DownloadLink = ""
		}
		return nil, nil
	})
	return link
}

// Wait blocks until no submission is in flight, or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.idle.Wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts any in-flight request, waits for it to finish, and closes all subscriptions.
func (c *Controller) Close() {
	c.ctxCancel()
	c.inflight.Wait()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.events.Close()
}

func (c *Controller) run(attemptID string, req extractor.Request) {
	defer c.inflight.Done()
	log := c.log.With("attempt_id", attemptID)
	if req.Mode == extractor.ModeYouTube {
		log = log.With("video_ids", req.VideoIDs())
	}
	log.Infof("submitting %v", req)

	resp, err := c.submitter.Submit(c.ctx, req, func(loaded int64, total int64) {
		c.progress(attemptID, loaded, total)
	})
	if err != nil {
		log.Errorf("submission failed: %v", err)
		c.finish(attemptID, extractor.Response{}, fmt.Errorf("%w: %v", extractor.ErrRequestFailed, err))
		return
	}
	log.Infof("submission succeeded, download link %q", resp.DownloadLink)
	c.finish(attemptID, resp, nil)
}

func (c *Controller) progress(attemptID string, loaded int64, total int64) {
	c.mu.Lock()
	if c.closed || !c.state.IsSubmitting() || c.state.AttemptID != attemptID {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state.Progress = extractor.Percent(loaded, total)
	if c.state == old || (c.state.Progress < 100 && !c.progressLimiter.Allow()) {
		c.mu.Unlock()
		return
	}
	c.emitAndUnlock(old, nil)
}

func (c *Controller) finish(attemptID string, resp extractor.Response, err error) {
	_ = c.update(func(s *State) ([]Event, error) {
		if s.AttemptID != attemptID {
			return nil, nil
		}
		s.Phase = PhaseIdle
		s.AttemptID = ""
		c.idle.Set()
		e := attemptEvent{attemptID}
		if err != nil {
			s.Progress = 0
			return []Event{
				Notification{e, extractor.KeyRequestFailed, err},
				SubmissionFinished{e, OutcomeFailed, "", err},
			}, nil
		}
		s.DownloadLink = resp.DownloadLink
		return []Event{SubmissionFinished{e, OutcomeSucceeded, resp.DownloadLink, nil}}, nil
	})
}

// update runs f with the state locked, then publishes a StateChanged (if anything changed) followed by the events f
// returned. Events are published even when f returns an error. Notifications are also queued for Drain.
func (c *Controller) update(f func(s *State) ([]Event, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	old := c.state
	events, err := f(&c.state)
	for _, e := range events {
		if n, ok := e.(Notification); ok {
			c.notifications = append(c.notifications, n)
		}
	}
	if extra := len(c.notifications) - maxPendingNotifications; extra > 0 {
		c.notifications = append([]Notification(nil), c.notifications[extra:]...)
	}
	c.emitAndUnlock(old, events)
	return err
}

// emitAndUnlock must be called with c.mu held; it releases c.mu before sending anything.
func (c *Controller) emitAndUnlock(old State, events []Event) {
	current := c.state
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	if current != old {
		attemptID := current.AttemptID
		if attemptID == "" {
			attemptID = old.AttemptID
		}
		c.events.Send(StateChanged{attemptEvent{attemptID}, old, current})
	}
	for _, e := range events {
		c.events.Send(e)
	}
}

func droppedSegments(mode extractor.Mode, input string) error {
	if mode != extractor.ModeYouTube {
		return nil
	}
	_, dropped := extractor.MatchYouTubeURLs(input)
	return dropped
}
