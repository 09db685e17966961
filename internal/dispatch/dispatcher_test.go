package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/s3mirror/internal/logging"
	"github.com/dmitrijs2005/s3mirror/internal/upload"
	"github.com/dmitrijs2005/s3mirror/internal/watch"
)

// fakeSubmitter records submitted tasks and verifies that no two tasks for
// the same remote key ever run concurrently.
type fakeSubmitter struct {
	mu        sync.Mutex
	tasks     []upload.Task
	running   map[string]int
	violation bool
	delay     time.Duration
	block     chan struct{} // when non-nil, Submit waits on it
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{running: map[string]int{}}
}

func (f *fakeSubmitter) Submit(ctx context.Context, task upload.Task) upload.Outcome {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.running[task.RemoteKey]++
	if f.running[task.RemoteKey] > 1 {
		f.violation = true
	}
	block := f.block
	delay := f.delay
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.running[task.RemoteKey]--
	f.mu.Unlock()

	return upload.Outcome{Task: task, Status: upload.StatusSuccess, Attempts: 1}
}

func (f *fakeSubmitter) submitted() []upload.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upload.Task(nil), f.tasks...)
}

func (f *fakeSubmitter) sawConcurrentKey() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.violation
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type harness struct {
	events    chan watch.Event
	submitter *fakeSubmitter
	outcomes  chan upload.Outcome
	done      chan struct{}
	cancel    context.CancelFunc
}

func startDispatcher(t *testing.T, submitter *fakeSubmitter, window time.Duration, concurrency int64) *harness {
	t.Helper()

	events := make(chan watch.Event, 64)
	outcomes := make(chan upload.Outcome, 256)
	d := New(events, submitter, discardLogger(), Options{
		Prefix:      "up/",
		Window:      window,
		Concurrency: concurrency,
	}, func(out upload.Outcome) { outcomes <- out })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("dispatcher did not stop")
		}
	})

	return &harness{events: events, submitter: submitter, outcomes: outcomes, done: done, cancel: cancel}
}

func (h *harness) waitOutcome(t *testing.T) upload.Outcome {
	t.Helper()
	select {
	case out := <-h.outcomes:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return upload.Outcome{}
	}
}

func tempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDispatcher_SingleEventProducesOneTask(t *testing.T) {
	submitter := newFakeSubmitter()
	h := startDispatcher(t, submitter, 30*time.Millisecond, 4)

	path := tempFile(t, t.TempDir(), "a.txt", "hi")
	h.events <- watch.Event{Path: path, Kind: watch.KindCreated, ObservedAt: time.Now()}

	out := h.waitOutcome(t)
	assert.Equal(t, "up/a.txt", out.Task.RemoteKey)
	assert.Equal(t, path, out.Task.LocalPath)
	assert.Equal(t, 0, out.Task.Attempt)
	assert.Len(t, submitter.submitted(), 1)
}

func TestDispatcher_BurstWithinWindowCoalesces(t *testing.T) {
	submitter := newFakeSubmitter()
	h := startDispatcher(t, submitter, 80*time.Millisecond, 4)

	path := tempFile(t, t.TempDir(), "a.txt", "hi")
	now := time.Now()
	for i := 0; i < 5; i++ {
		h.events <- watch.Event{Path: path, Kind: watch.KindModified, ObservedAt: now}
		time.Sleep(5 * time.Millisecond)
	}

	out := h.waitOutcome(t)
	assert.Equal(t, "up/a.txt", out.Task.RemoteKey)

	// no second task may arrive
	select {
	case extra := <-h.outcomes:
		t.Fatalf("burst produced a second task: %+v", extra.Task)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Len(t, submitter.submitted(), 1, "a save-burst must coalesce into one upload")
}

func TestDispatcher_DistinctKeysUploadIndependently(t *testing.T) {
	submitter := newFakeSubmitter()
	h := startDispatcher(t, submitter, 20*time.Millisecond, 4)

	dir := t.TempDir()
	pathB := tempFile(t, dir, "b.json", `{}`)
	pathC := tempFile(t, dir, "c.png", "png-bytes")
	h.events <- watch.Event{Path: pathB, Kind: watch.KindCreated, ObservedAt: time.Now()}
	h.events <- watch.Event{Path: pathC, Kind: watch.KindCreated, ObservedAt: time.Now()}

	keys := map[string]bool{}
	for i := 0; i < 2; i++ {
		out := h.waitOutcome(t)
		keys[out.Task.RemoteKey] = true
	}
	assert.True(t, keys["up/b.json"])
	assert.True(t, keys["up/c.png"])
}

func TestDispatcher_InFlightCoalescing(t *testing.T) {
	submitter := newFakeSubmitter()
	submitter.block = make(chan struct{})
	h := startDispatcher(t, submitter, 20*time.Millisecond, 4)

	path := tempFile(t, t.TempDir(), "a.txt", "v1")
	h.events <- watch.Event{Path: path, Kind: watch.KindCreated, ObservedAt: time.Now()}

	// wait until the first upload is running (and blocked)
	require.Eventually(t, func() bool {
		return len(submitter.submitted()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// change the file while its key is in flight
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	h.events <- watch.Event{Path: path, Kind: watch.KindModified, ObservedAt: time.Now()}
	time.Sleep(100 * time.Millisecond) // let the debounce window elapse

	// still exactly one submission: the follow-up is parked, not run
	assert.Len(t, submitter.submitted(), 1)

	close(submitter.block)

	first := h.waitOutcome(t)
	second := h.waitOutcome(t)
	assert.Equal(t, first.Task.RemoteKey, second.Task.RemoteKey)
	assert.Equal(t, 0, second.Task.Attempt, "re-upload must start with a fresh attempt budget")
	assert.NotEqual(t, first.Task.ID, second.Task.ID)
	assert.False(t, submitter.sawConcurrentKey())
}

func TestDispatcher_NoConcurrentUploadsPerKeyUnderRandomInjection(t *testing.T) {
	submitter := newFakeSubmitter()
	submitter.delay = 2 * time.Millisecond
	h := startDispatcher(t, submitter, 5*time.Millisecond, 8)

	dir := t.TempDir()
	paths := make([]string, 5)
	for i := range paths {
		paths[i] = tempFile(t, dir, fmt.Sprintf("f%d.txt", i), "x")
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p := paths[rng.Intn(len(paths))]
		kind := watch.KindModified
		if rng.Intn(4) == 0 {
			kind = watch.KindCreated
		}
		h.events <- watch.Event{Path: p, Kind: kind, ObservedAt: time.Now()}
		if rng.Intn(3) == 0 {
			time.Sleep(time.Duration(rng.Intn(8)) * time.Millisecond)
		}
	}

	// let everything flush and finish
	require.Eventually(t, func() bool {
		return len(submitter.submitted()) > 0
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	assert.False(t, submitter.sawConcurrentKey(),
		"two uploads for the same key must never run concurrently")
}

func TestDispatcher_VanishedSourceDropped(t *testing.T) {
	submitter := newFakeSubmitter()
	h := startDispatcher(t, submitter, 50*time.Millisecond, 4)

	dir := t.TempDir()
	path := tempFile(t, dir, "gone.txt", "x")
	h.events <- watch.Event{Path: path, Kind: watch.KindCreated, ObservedAt: time.Now()}
	require.NoError(t, os.Remove(path))

	select {
	case out := <-h.outcomes:
		t.Fatalf("vanished source should not produce an outcome, got %+v", out)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Empty(t, submitter.submitted())
}

func TestDispatcher_DrainAwaitsInFlight(t *testing.T) {
	submitter := newFakeSubmitter()
	submitter.block = make(chan struct{})
	h := startDispatcher(t, submitter, 10*time.Millisecond, 4)

	path := tempFile(t, t.TempDir(), "a.txt", "hi")
	h.events <- watch.Event{Path: path, Kind: watch.KindCreated, ObservedAt: time.Now()}

	require.Eventually(t, func() bool {
		return len(submitter.submitted()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.cancel()

	// Run must not return while the upload is still in flight
	select {
	case <-h.done:
		t.Fatal("dispatcher stopped before in-flight upload finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(submitter.block)

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after upload finished")
	}

	out := h.waitOutcome(t)
	assert.Equal(t, upload.StatusSuccess, out.Status)
}

func TestDispatcher_EventChannelCloseStopsRun(t *testing.T) {
	submitter := newFakeSubmitter()
	h := startDispatcher(t, submitter, 10*time.Millisecond, 4)

	close(h.events)

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop when event stream ended")
	}
}
