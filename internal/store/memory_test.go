package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ashureev/companion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetOrCreateDefaults(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	none, err := s.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Nil(t, none)

	sess, err := s.GetOrCreate(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageMainMenu, sess.Stage)
	assert.Equal(t, domain.ModeTranslate, sess.Mode)
	assert.Equal(t, domain.DefaultTargetLanguage, sess.TargetLanguage)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryUpdateCommitsOnlyOnSuccess(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "u", func(sess *domain.Session) error {
		sess.AddTask("first")
		return nil
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, "u", func(sess *domain.Session) error {
		sess.AddTask("second")
		sess.Stage = domain.StageTaskInput
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = s.Update(ctx, "u", func(sess *domain.Session) error {
			sess.AddTask("third")
			panic("collaborator exploded")
		})
	})

	sess, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, sess.DailyTasks)
	assert.Equal(t, domain.StageMainMenu, sess.Stage)

	// The lock must have been released by the panicking call.
	require.NoError(t, s.Update(ctx, "u", func(*domain.Session) error { return nil }))
}

func TestMemorySnapshotsAreIsolated(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	snap, err := s.GetOrCreate(ctx, "u")
	require.NoError(t, err)
	snap.AddTask("leaked")

	sess, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, sess.DailyTasks)
}

func TestMemoryConcurrentUpdatesSameUser(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	const writers = 100
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Update(ctx, "shared", func(sess *domain.Session) error {
				sess.AddTask(fmt.Sprintf("task-%d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, sess.DailyTasks, writers)
	assert.Zero(t, s.keys.size())
}

func TestMemoryConcurrentUsersAreIndependent(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 20; u++ {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(u int) {
				defer wg.Done()
				_ = s.Update(ctx, fmt.Sprintf("user-%d", u), func(sess *domain.Session) error {
					sess.AddStressSample(float64(u))
					return nil
				})
			}(u)
		}
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	for u := 0; u < 20; u++ {
		sess, err := s.Get(ctx, fmt.Sprintf("user-%d", u))
		require.NoError(t, err)
		assert.Len(t, sess.StressSamples, 10)
	}
}

func TestMemoryClosed(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
	_, err := s.GetOrCreate(ctx, "u")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryCanceledContext(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, "u", func(*domain.Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
