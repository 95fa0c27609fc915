package sync_

import (
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestMutexed(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed("abcd")
	assert.Equal("abcd", m.Get())
	assert.Equal("abcd", m.Swap("efgh"))
	m.Set("ijkl")
	assert.Equal("ijkl", m.Get())
}

func TestMutexedRace(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed(0)
	start := NewEvent()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start.Wait()
			for j := 0; j < 50; j++ {
				_ = m.Locked(func(v *int) error {
					*v++
					return nil
				})
			}
		}()
	}

	start.Set()
	wg.Wait()
	assert.Equal(2500, m.Get())
}
