package session

import (
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard abstracts the system clipboard so tests can run headless.
type Clipboard interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemClipboard is the real clipboard via atotto/clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (SystemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }

// CodeCopier copies OTP codes to the clipboard and clears them after a
// delay. The clear is conditional: it only happens while the clipboard
// still holds the copied code, so a value the user copied in the
// meantime is never clobbered.
type CodeCopier struct {
	clip  Clipboard
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewCodeCopier builds a copier clearing after delay. clip defaults to
// the system clipboard.
func NewCodeCopier(clip Clipboard, delay time.Duration) *CodeCopier {
	if clip == nil {
		clip = SystemClipboard{}
	}
	return &CodeCopier{clip: clip, delay: delay}
}

// Copy puts code on the clipboard and schedules the conditional clear.
// A re-copy cancels the previous clear timer.
func (cc *CodeCopier) Copy(code string) error {
	if err := cc.clip.WriteAll(code); err != nil {
		return err
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.timer != nil {
		cc.timer.Stop()
	}
	cc.timer = time.AfterFunc(cc.delay, func() {
		current, err := cc.clip.ReadAll()
		if err == nil && current == code {
			_ = cc.clip.WriteAll("")
		}
	})
	return nil
}

// Close cancels a pending clear. Call on view teardown and shutdown.
func (cc *CodeCopier) Close() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.timer != nil {
		cc.timer.Stop()
		cc.timer = nil
	}
}
