package pubsub

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestFilteredSender_Send(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[string](10)
	filtered := NewFilteredSender[string](ch, func(v string) bool { return v != "progress" })

	// Every message is accepted, no indication of filtering
	assert.True(filtered.Send("started"))
	assert.True(filtered.Send("progress"))
	assert.True(filtered.Send("finished"))
	// However, only the filtered messages are received
	assert.Equal("started", <-ch.Receive())
	assert.Equal("finished", <-ch.Receive())
}

func TestFilteredSender_Close(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[string](10)
	filtered := NewFilteredSender[string](ch, nil)
	filtered.Close()
	<-ch.Closed()
	assert.False(filtered.Send("started"))

	ch2 := NewChannel[string](10)
	filtered2 := NewFilteredSender[string](ch2, nil)
	ch2.Close()
	<-filtered2.Closed()
	assert.False(filtered2.Send("started"))
}

func TestFilteredSender_Publisher(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[int]()
	ch := NewChannel[int](1)
	filtered := NewFilteredSender[int](ch, func(v int) bool { return v%2 == 0 })
	assert.Nil(pub.AddSubscriber(filtered, true))

	var received []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range ch.Receive() {
			received = append(received, v)
		}
	}()
	for i := 0; i < 10; i++ {
		pub.Send(i)
	}
	pub.Close()
	<-done
	assert.Equal([]int{0, 2, 4, 6, 8}, received)
}
