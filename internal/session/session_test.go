package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/okulov/OTPKeeper/internal/pin"
	"github.com/okulov/OTPKeeper/internal/secrets"
)

const testPIN = "4711"

func newController(t *testing.T, onLock func()) *Controller {
	t.Helper()
	gate := pin.NewGate(secrets.NewMemory(), "OTPKeeper_Lock_Test")
	require.NoError(t, gate.Set(testPIN))
	c := New(gate, 3, zap.NewNop(), onLock)
	t.Cleanup(c.Close)
	return c
}

// fixedPrompt returns the given answers in order; "" means cancel.
func fixedPrompt(answers ...string) PromptFunc {
	i := 0
	return func(attemptsLeft int) (string, error) {
		if i >= len(answers) {
			return "", ErrCancelled
		}
		a := answers[i]
		i++
		if a == "" {
			return "", ErrCancelled
		}
		return a, nil
	}
}

func TestUnlockFirstTry(t *testing.T) {
	c := newController(t, nil)
	require.NoError(t, c.Unlock(fixedPrompt(testPIN), true))
	assert.True(t, c.Unlocked())
	assert.NotEmpty(t, c.SessionID())
}

func TestUnlockSucceedsWithinCap(t *testing.T) {
	c := newController(t, nil)
	require.NoError(t, c.Unlock(fixedPrompt("0000", "9999", testPIN), true))
	assert.True(t, c.Unlocked())
}

func TestUnlockAttemptCap(t *testing.T) {
	c := newController(t, nil)
	attempts := 0
	prompt := func(attemptsLeft int) (string, error) {
		attempts++
		return "wrong", nil
	}
	err := c.Unlock(prompt, true)
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 3, attempts, "exactly three attempts are offered")
	assert.False(t, c.Unlocked())
}

func TestAttemptCounterResetsPerUnlock(t *testing.T) {
	c := newController(t, nil)

	require.ErrorIs(t, c.Unlock(fixedPrompt("a", "b", "c"), true), ErrAccessDenied)

	// A new unlock run gets the full budget again.
	require.NoError(t, c.Unlock(fixedPrompt("x", "y", testPIN), true))
	assert.True(t, c.Unlocked())
}

func TestMandatoryCancelDeniesAccess(t *testing.T) {
	c := newController(t, nil)
	err := c.Unlock(fixedPrompt(""), true)
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.False(t, c.Unlocked())
}

func TestVoluntaryCancelJustAborts(t *testing.T) {
	c := newController(t, nil)
	err := c.Unlock(fixedPrompt(""), false)
	require.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.False(t, c.Unlocked())
}

func TestLockStopsSession(t *testing.T) {
	var locked atomic.Int32
	c := newController(t, func() { locked.Add(1) })
	require.NoError(t, c.Unlock(fixedPrompt(testPIN), true))

	c.Lock()
	assert.False(t, c.Unlocked())
	assert.Equal(t, int32(1), locked.Load())

	// Locking again is a no-op.
	c.Lock()
	assert.Equal(t, int32(1), locked.Load())
}

func TestAutoLockFiresOncePerIdlePeriod(t *testing.T) {
	var locked atomic.Int32
	c := newController(t, func() { locked.Add(1) })
	require.NoError(t, c.Unlock(fixedPrompt(testPIN), true))

	c.SetTimeout(30 * time.Millisecond)

	require.Eventually(t, func() bool { return !c.Unlocked() },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), locked.Load())

	// Locked and idle: no further transitions.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), locked.Load())
}

func TestActivityResetsCountdown(t *testing.T) {
	var locked atomic.Int32
	c := newController(t, func() { locked.Add(1) })
	require.NoError(t, c.Unlock(fixedPrompt(testPIN), true))

	c.SetTimeout(60 * time.Millisecond)
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		c.Activity()
	}
	assert.True(t, c.Unlocked(), "steady activity keeps the session open")
	assert.Equal(t, int32(0), locked.Load())
}

func TestZeroTimeoutDisablesAutoLock(t *testing.T) {
	var locked atomic.Int32
	c := newController(t, func() { locked.Add(1) })
	require.NoError(t, c.Unlock(fixedPrompt(testPIN), true))

	c.SetTimeout(0)
	time.Sleep(60 * time.Millisecond)
	assert.True(t, c.Unlocked(), "timeout 0 never schedules a lock")
	assert.Equal(t, int32(0), locked.Load())
}
