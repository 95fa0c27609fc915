package pubsub

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

var _ Publisher[int] = &publisher[int]{}

func TestPublisher(t *testing.T) {
	assert := assert_.New(t)
	pub := NewPublisher[int]().(*publisher[int])

	// Sending to a publisher with no subscribers should just succeed
	assert.True(pub.Send(1))
	pub.pending.Wait()

	s1, err := pub.Subscribe()
	assert.Nil(err)
	select {
	case <-s1.Receive():
		assert.Fail("subscriber should be waiting")
	default:
	}
	assert.True(pub.Send(2))
	assert.Equal(2, <-s1.Receive())
	pub.pending.Wait()

	// Both subscribers see the same value
	s2, err := pub.Subscribe()
	assert.Nil(err)
	var wg sync.WaitGroup
	var v1, v2 int
	wg.Add(2)
	go func() { v1 = <-s1.Receive(); wg.Done() }()
	go func() { v2 = <-s2.Receive(); wg.Done() }()
	assert.True(pub.Send(3))
	wg.Wait()
	assert.Equal(3, v1)
	assert.Equal(3, v2)
	pub.pending.Wait()

	// A closed subscriber is dropped, the other keeps receiving
	s1.Close()
	assert.True(pub.Send(4))
	assert.Equal(4, <-s2.Receive())
	pub.pending.Wait()

	pub.Close()
	_, err = pub.Subscribe()
	assert.Equal(ErrPublisherClosed, err)
	assert.False(pub.Send(5))
	_, ok := <-s2.Receive()
	assert.False(ok, "expected subscriber to be closed by publisher")
	// Closing should be idempotent
	pub.Close()
}

func TestPublisher_AddSubscriber_Close(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	c1 := NewChannel[int](1)
	c2 := NewChannel[int](1)
	assert.Nil(pub.AddSubscriber(c1, true))
	assert.Nil(pub.AddSubscriber(c2, false))
	pub.Close()
	assert.False(c1.Send(1), "expected closeWithPublisher subscriber to be closed")
	assert.True(c2.Send(1), "expected other subscriber to stay open")
}
