package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, int64(2), clock.Readings())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Readings())
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines = 50
	const calls = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*calls), clock.Readings())
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "run-1", NewFixedIDGenerator("run-1").Generate())
	assert.Equal(t, "test-run-default", NewFixedIDGenerator("").Generate())
}
