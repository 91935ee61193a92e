// Package session orchestrates the locked/unlocked state of the
// application: the bounded-attempt unlock protocol, the inactivity
// auto-lock timer, and the timed clipboard clear.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okulov/OTPKeeper/internal/pin"
)

var (
	// ErrAccessDenied means the unlock protocol terminally failed:
	// attempts exhausted, or a mandatory prompt was cancelled. The
	// protected session must end.
	ErrAccessDenied = errors.New("session: access denied")
	// ErrCancelled is returned by a PromptFunc when the user dismisses
	// the prompt, and by Unlock when a voluntary unlock is aborted.
	ErrCancelled = errors.New("session: cancelled")
)

// PromptFunc asks the user for their PIN. attemptsLeft counts the
// remaining tries including this one. Return ErrCancelled if the user
// dismisses the prompt.
type PromptFunc func(attemptsLeft int) (string, error)

// Controller gates access to the vault behind the PIN and owns the
// inactivity timer. All methods are safe for the interleaved-callback
// model: timer callbacks run on their own goroutines.
type Controller struct {
	gate *pin.Gate
	log  *zap.Logger

	maxAttempts int

	mu        sync.Mutex
	unlocked  bool
	sessionID string
	timeout   time.Duration
	timer     *time.Timer
	onLock    func()
	closed    bool
}

// New constructs a locked Controller. onLock is invoked (on a timer
// goroutine) when the inactivity timeout expires; it must not block.
func New(gate *pin.Gate, maxAttempts int, log *zap.Logger, onLock func()) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{gate: gate, maxAttempts: maxAttempts, log: log, onLock: onLock}
}

// Unlocked reports whether the session currently has access.
func (c *Controller) Unlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocked
}

// SessionID identifies the current unlocked session in logs.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Unlock runs the bounded-attempt protocol: up to maxAttempts prompts
// through prompt. mandatory marks startup or lock-screen checks, where
// cancelling the prompt equals access denied; a cancelled voluntary
// re-lock just aborts with ErrCancelled and the session stays locked.
func (c *Controller) Unlock(prompt PromptFunc, mandatory bool) error {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		entered, err := prompt(c.maxAttempts - attempt)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				if mandatory {
					c.log.Info("mandatory PIN prompt cancelled")
					return ErrAccessDenied
				}
				return ErrCancelled
			}
			return err
		}

		ok, err := c.gate.Verify(entered)
		if err != nil {
			return err
		}
		if ok {
			c.grant()
			return nil
		}
		c.log.Info("PIN verification failed", zap.Int("attempts_left", c.maxAttempts-attempt-1))
	}
	c.log.Warn("maximum PIN attempts reached")
	return ErrAccessDenied
}

func (c *Controller) grant() {
	c.mu.Lock()
	c.unlocked = true
	c.sessionID = uuid.NewString()
	id := c.sessionID
	c.mu.Unlock()
	c.log.Info("session unlocked", zap.String("session_id", id))
	c.Activity()
}

// Lock transitions to locked and cancels the inactivity timer. Safe to
// call when already locked.
func (c *Controller) Lock() {
	c.mu.Lock()
	wasUnlocked := c.unlocked
	c.unlocked = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	id := c.sessionID
	c.mu.Unlock()
	if wasUnlocked {
		c.log.Info("session locked", zap.String("session_id", id))
		if c.onLock != nil {
			c.onLock()
		}
	}
}

// SetTimeout updates the inactivity timeout and restarts the countdown.
// Zero disables auto-lock entirely.
func (c *Controller) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
	c.Activity()
}

// Activity records user input: it restarts the single inactivity
// countdown. No-op while locked or when auto-lock is disabled.
func (c *Controller) Activity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.unlocked || c.timeout <= 0 || c.closed {
		return
	}
	c.timer = time.AfterFunc(c.timeout, func() {
		c.log.Info("inactivity timeout expired")
		c.Lock()
	})
}

// Close cancels outstanding timers; the controller is unusable after.
// Must run before teardown so no callback acts on destroyed state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}
