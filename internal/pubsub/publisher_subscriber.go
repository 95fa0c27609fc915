package pubsub

import (
	"errors"
	"sync"

	"github.com/alanbriolat/extractor/internal/sync_"
)

const (
	DefaultPublisherBufSize  = 1
	DefaultSubscriberBufSize = 1
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

type Publisher[T any] interface {
	SenderCloser[T]
	// AddSubscriber attaches s; if closeWithPublisher is set, s is closed when the publisher closes.
	AddSubscriber(s SenderCloser[T], closeWithPublisher bool) error
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type subscribers[T any] map[SenderCloser[T]]bool

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // Goroutines in progress
	pending     sync.WaitGroup // Messages not yet sent to all subscribers
	subscribers *sync_.Mutexed[subscribers[T]]
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherBufSize[T](DefaultPublisherBufSize)
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](bufSize),
		subscribers: sync_.NewMutexed(make(subscribers[T])),
	}
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		for v := range p.ch.Receive() {
			// Copy the subscriber list so that a slow subscriber doesn't block new subscriptions
			for _, s := range p.snapshot() {
				if ok := s.Send(v); !ok {
					p.unsubscribe(s)
				}
			}
			p.pending.Done()
		}
	}()
	return p
}

// Send will publish the value to all subscribers.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	s := NewChannel[T](bufSize)
	if err := p.AddSubscriber(s, true); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *publisher[T]) AddSubscriber(s SenderCloser[T], closeWithPublisher bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.subscribers.Locked(func(subs *subscribers[T]) error {
		(*subs)[s] = closeWithPublisher
		return nil
	})
}

func (p *publisher[T]) snapshot() []SenderCloser[T] {
	var list []SenderCloser[T]
	_ = p.subscribers.Locked(func(subs *subscribers[T]) error {
		list = make([]SenderCloser[T], 0, len(*subs))
		for s := range *subs {
			list = append(list, s)
		}
		return nil
	})
	return list
}

func (p *publisher[T]) unsubscribe(s SenderCloser[T]) {
	_ = p.subscribers.Locked(func(subs *subscribers[T]) error {
		delete(*subs, s)
		return nil
	})
}

// Close idempotently shuts down the publisher, closing subscribers that asked to be closed with it.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// Flush everything already accepted by Send before touching subscribers
	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()
	old := p.subscribers.Swap(make(subscribers[T]))
	for s, closeWithPublisher := range old {
		if closeWithPublisher {
			s.Close()
		}
	}
	p.closed = true
}

func (p *publisher[T]) Closed() <-chan struct{} {
	return p.ch.Closed()
}
