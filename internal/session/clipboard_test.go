package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClipboard is an in-memory Clipboard for headless tests.
type fakeClipboard struct {
	mu      sync.Mutex
	content string
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = text
	return nil
}

func (f *fakeClipboard) ReadAll() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content, nil
}

func TestCopyClearsAfterDelay(t *testing.T) {
	clip := &fakeClipboard{}
	cc := NewCodeCopier(clip, 20*time.Millisecond)
	defer cc.Close()

	require.NoError(t, cc.Copy("123456"))
	got, _ := clip.ReadAll()
	assert.Equal(t, "123456", got)

	require.Eventually(t, func() bool {
		got, _ := clip.ReadAll()
		return got == ""
	}, time.Second, 5*time.Millisecond)
}

func TestClearOnlyIfStillMatching(t *testing.T) {
	clip := &fakeClipboard{}
	cc := NewCodeCopier(clip, 20*time.Millisecond)
	defer cc.Close()

	require.NoError(t, cc.Copy("123456"))
	// User copies something else before the timer fires.
	require.NoError(t, clip.WriteAll("unrelated"))

	time.Sleep(60 * time.Millisecond)
	got, _ := clip.ReadAll()
	assert.Equal(t, "unrelated", got, "foreign clipboard content is never clobbered")
}

func TestRecopyCancelsPreviousTimer(t *testing.T) {
	clip := &fakeClipboard{}
	cc := NewCodeCopier(clip, 40*time.Millisecond)
	defer cc.Close()

	require.NoError(t, cc.Copy("first"))
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, cc.Copy("second"))

	// The first timer's deadline passes; the second copy must survive it.
	time.Sleep(25 * time.Millisecond)
	got, _ := clip.ReadAll()
	assert.Equal(t, "second", got)

	require.Eventually(t, func() bool {
		got, _ := clip.ReadAll()
		return got == ""
	}, time.Second, 5*time.Millisecond)
}

func TestCloseCancelsPendingClear(t *testing.T) {
	clip := &fakeClipboard{}
	cc := NewCodeCopier(clip, 20*time.Millisecond)

	require.NoError(t, cc.Copy("123456"))
	cc.Close()

	time.Sleep(60 * time.Millisecond)
	got, _ := clip.ReadAll()
	assert.Equal(t, "123456", got, "teardown cancels the clear instead of racing it")
}

func TestRefresherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	done := StartRefresher(ctx, 10*time.Millisecond, func(time.Time) {
		ticks.Add(1)
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after cancel")
	}

	final := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, final, ticks.Load(), "no ticks after teardown")
}
