package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/companion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "sessions.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, path := newTestSQLite(t)
	ctx := context.Background()

	err := s.Update(ctx, "tg:42", func(sess *domain.Session) error {
		sess.Mode = domain.ModeTranslate
		sess.TargetLanguage = "ru"
		p := sess.EnsureProfile()
		p.Gender = domain.GenderFemale
		require.NoError(t, p.SetWeight(60))
		require.NoError(t, p.SetHeight(165))
		require.NoError(t, p.SetAge(28))
		sess.AddTask("walk")
		sess.AddTask("read")
		if _, err := sess.CompleteTask(1); err != nil {
			return err
		}
		sess.AddStressSample(6)
		return sess.MoveTo(domain.StageStressInput)
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Get(ctx, "tg:42")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, domain.ModeTranslate, sess.Mode)
	assert.Equal(t, domain.StageStressInput, sess.Stage)
	assert.Equal(t, "ru", sess.TargetLanguage)
	require.NotNil(t, sess.Profile)
	assert.Equal(t, domain.GenderFemale, sess.Profile.Gender)
	assert.Equal(t, 60.0, sess.Profile.WeightKg)
	assert.Equal(t, 28, sess.Profile.Age)
	assert.Equal(t, []string{"walk", "read"}, sess.DailyTasks)
	assert.True(t, sess.IsTaskCompleted("read"))
	assert.False(t, sess.IsTaskCompleted("walk"))
	assert.Equal(t, []float64{6}, sess.StressSamples)
}

func TestSQLiteGetMissing(t *testing.T) {
	s, _ := newTestSQLite(t)
	sess, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSQLiteUpdateErrorLeavesRowUntouched(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "u")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, "u", func(sess *domain.Session) error {
		sess.AddTask("never stored")
		return boom
	})
	require.ErrorIs(t, err, boom)

	sess, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, sess.DailyTasks)
	assert.Nil(t, sess.Profile)
}

func TestSQLiteConcurrentUpdatesSameUser(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "shared", func(sess *domain.Session) error {
				sess.AddStressSample(1)
				return nil
			}))
		}()
	}
	wg.Wait()

	sess, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, sess.StressSamples, writers)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLitePing(t *testing.T) {
	s, _ := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy text", errors.New("exec: SQLITE_BUSY"), true},
		{"locked text", fmt.Errorf("save: %w", errors.New("database is locked (5)")), true},
		{"other", errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConflict(tt.err))
		})
	}
}
