package xhealth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestState_Transitions(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	var changes []Snapshot
	s := New(
		WithClock(func() time.Time { return now }),
		WithOnChange(func(snap Snapshot) { changes = append(changes, snap) }),
	)
	assert.False(t, s.IsFailing())
	assert.Equal(t, "ok", s.Snapshot().Status())

	errDown := errors.New("store down")
	now = now.Add(time.Minute)
	assert.True(t, s.SetFailing(errDown))
	assert.False(t, s.SetFailing(errors.New("still down")))
	assert.True(t, s.IsFailing())
	assert.EqualError(t, s.Err(), "still down")

	snap := s.Snapshot()
	assert.Equal(t, "failing", snap.Status())
	assert.Equal(t, now, snap.Since)
	assert.Equal(t, int64(1), snap.Flips)

	assert.True(t, s.Recover())
	assert.False(t, s.Recover())
	assert.NoError(t, s.Err())

	assert.Len(t, changes, 2)
	assert.True(t, changes[0].Failing)
	assert.ErrorIs(t, changes[0].Err, errDown)
	assert.False(t, changes[1].Failing)
}

func TestState_ConcurrentSetFailingFlipsOnce(t *testing.T) {
	var mu sync.Mutex
	flips := 0
	s := New(WithOnChange(func(Snapshot) {
		mu.Lock()
		flips++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetFailing(errors.New("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, flips)
}

func TestState_SharedOwners(t *testing.T) {
	var changes []Snapshot
	s := New(WithOnChange(func(snap Snapshot) { changes = append(changes, snap) }))
	errTodo := errors.New("todo store down")
	errSub := errors.New("subscription store down")

	assert.True(t, s.SetFailingFor("todo", errTodo))
	assert.True(t, s.SetFailingFor("subscriptions", errSub))
	assert.False(t, s.SetFailingFor("todo", errTodo))
	assert.Len(t, changes, 1)

	snap := s.Snapshot()
	assert.True(t, snap.Failing)
	assert.Equal(t, []string{"subscriptions", "todo"}, snap.Owners)
	assert.ErrorIs(t, snap.Err, errTodo)

	assert.False(t, s.RecoverFor("other"))
	assert.True(t, s.RecoverFor("todo"))
	assert.True(t, s.IsFailing())
	assert.False(t, s.IsFailingFor("todo"))
	assert.True(t, s.IsFailingFor("subscriptions"))
	assert.ErrorIs(t, s.Err(), errSub)
	assert.Len(t, changes, 1)

	assert.True(t, s.RecoverFor("subscriptions"))
	assert.False(t, s.IsFailing())
	assert.NoError(t, s.Err())
	assert.Empty(t, s.Snapshot().Owners)
	require.Len(t, changes, 2)
	assert.False(t, changes[1].Failing)
	assert.Equal(t, int64(2), s.Snapshot().Flips)
}
