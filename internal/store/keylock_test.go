package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	t.Parallel()
	k := newKeyLock()

	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			defer unlock()
			assert.Equal(t, int32(1), atomic.AddInt32(&inside, 1))
			time.Sleep(time.Microsecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Zero(t, k.size())
}

func TestKeyLockDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()
	k := newKeyLock()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	assert.Zero(t, k.size())
}
