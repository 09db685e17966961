// Package dispatch turns raw file events into upload tasks. It debounces
// editor save-bursts, keeps at most one upload in flight per remote key,
// and feeds a bounded worker pool.
package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/s3mirror/internal/logging"
	"github.com/dmitrijs2005/s3mirror/internal/upload"
	"github.com/dmitrijs2005/s3mirror/internal/watch"
)

// Submitter executes one task to a terminal outcome. Implemented by
// upload.Uploader.
type Submitter interface {
	Submit(ctx context.Context, task upload.Task) upload.Outcome
}

// Options configures a Dispatcher.
type Options struct {
	// Prefix is prepended to the base name of each changed file to form
	// the remote key. Same local path, same key: uploads are
	// overwrite-idempotent.
	Prefix string
	// Window is the debounce quiet period per remote key.
	Window time.Duration
	// Concurrency bounds the number of uploads running at once.
	Concurrency int64
}

// pending is a debounced change waiting for its quiet period to elapse, or
// a change parked while its key is in flight.
type pending struct {
	path        string
	firstSeenAt time.Time
	timer       *time.Timer
}

// Dispatcher owns all coalescing state. Every map below is touched only by
// the Run goroutine; timers and workers communicate with it through
// channels, so no lock is needed.
type Dispatcher struct {
	events    <-chan watch.Event
	submitter Submitter
	logger    logging.Logger
	onOutcome func(upload.Outcome)

	prefix string
	window time.Duration
	sem    *semaphore.Weighted

	debounced map[string]*pending
	inflight  map[string]struct{}
	reupload  map[string]pending

	flushCh chan string
	results chan upload.Outcome
	done    chan struct{}
}

// New builds a Dispatcher consuming events. onOutcome is invoked on the
// dispatcher goroutine for every terminal outcome; it may be nil.
func New(events <-chan watch.Event, submitter Submitter, logger logging.Logger, opts Options, onOutcome func(upload.Outcome)) *Dispatcher {
	return &Dispatcher{
		events:    events,
		submitter: submitter,
		logger:    logger.With("module", "dispatch"),
		onOutcome: onOutcome,
		prefix:    opts.Prefix,
		window:    opts.Window,
		sem:       semaphore.NewWeighted(opts.Concurrency),
		debounced: make(map[string]*pending),
		inflight:  make(map[string]struct{}),
		reupload:  make(map[string]pending),
		flushCh:   make(chan string),
		results:   make(chan upload.Outcome, opts.Concurrency),
		done:      make(chan struct{}),
	}
}

// Run consumes events until ctx is canceled or the event channel closes,
// then drains: debounce timers are stopped, no new tasks are dispatched,
// and in-flight uploads are awaited to completion.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case e, ok := <-d.events:
			if !ok {
				d.drain(ctx)
				return
			}
			d.observe(ctx, e)
		case key := <-d.flushCh:
			d.flush(ctx, key)
		case out := <-d.results:
			d.complete(ctx, out)
		case <-ctx.Done():
			d.drain(ctx)
			return
		}
	}
}

// observe folds an event into the debounce state. A second event for the
// same key within the window supersedes the first: only the latest file
// state is uploaded.
func (d *Dispatcher) observe(ctx context.Context, e watch.Event) {
	key := d.remoteKey(e.Path)

	if p, ok := d.debounced[key]; ok {
		p.path = e.Path
		p.timer.Reset(d.window)
		d.logger.Debug(ctx, "event superseded within debounce window",
			"remote_key", key, "kind", e.Kind.String())
		return
	}

	p := &pending{path: e.Path, firstSeenAt: e.ObservedAt}
	p.timer = time.AfterFunc(d.window, func() {
		select {
		case d.flushCh <- key:
		case <-d.done:
		}
	})
	d.debounced[key] = p
	d.logger.Debug(ctx, "change observed",
		"remote_key", key, "kind", e.Kind.String(), "path", e.Path)
}

// flush runs when a key's quiet period elapses. If that key is already in
// flight the change is parked for re-upload on completion, preserving the
// one-in-flight-per-key invariant.
func (d *Dispatcher) flush(ctx context.Context, key string) {
	p, ok := d.debounced[key]
	if !ok {
		return
	}
	delete(d.debounced, key)

	if _, busy := d.inflight[key]; busy {
		d.reupload[key] = pending{path: p.path, firstSeenAt: p.firstSeenAt}
		d.logger.Debug(ctx, "upload in flight, change parked for re-upload", "remote_key", key)
		return
	}

	d.start(ctx, key, p.path, p.firstSeenAt)
}

// start dispatches one fresh task to the worker pool. Sources that vanished
// between event and dispatch are dropped here, not charged to the store.
func (d *Dispatcher) start(ctx context.Context, key, path string, firstSeenAt time.Time) {
	if _, err := os.Stat(path); err != nil {
		d.logger.Info(ctx, "source vanished before dispatch, dropping",
			"remote_key", key, "path", path)
		return
	}

	task := upload.NewTask(path, key, firstSeenAt)
	d.inflight[key] = struct{}{}

	go func() {
		// uploads ride their own context: a stop request must let
		// in-flight work finish, bounded by the retry ceiling
		uploadCtx := context.Background()
		if err := d.sem.Acquire(uploadCtx, 1); err != nil {
			d.results <- upload.Outcome{Task: task, Status: upload.StatusExhausted, Err: err}
			return
		}
		defer d.sem.Release(1)
		d.results <- d.submitter.Submit(uploadCtx, task)
	}()
}

// complete clears the in-flight mark and, if a change was parked while this
// key was busy, immediately dispatches it as a new task with a fresh
// attempt budget.
func (d *Dispatcher) complete(ctx context.Context, out upload.Outcome) {
	key := out.Task.RemoteKey
	delete(d.inflight, key)
	d.emit(out)

	if p, ok := d.reupload[key]; ok {
		delete(d.reupload, key)
		d.start(ctx, key, p.path, p.firstSeenAt)
	}
}

// drain stops the debounce timers, discards parked work, and waits for
// every in-flight upload to report. Nothing new is dispatched.
func (d *Dispatcher) drain(ctx context.Context) {
	for key, p := range d.debounced {
		p.timer.Stop()
		delete(d.debounced, key)
	}
	for key := range d.reupload {
		delete(d.reupload, key)
	}

	for len(d.inflight) > 0 {
		out := <-d.results
		delete(d.inflight, out.Task.RemoteKey)
		d.emit(out)
	}
	d.logger.Info(ctx, "dispatcher drained")
}

func (d *Dispatcher) emit(out upload.Outcome) {
	if d.onOutcome != nil {
		d.onOutcome(out)
	}
}

func (d *Dispatcher) remoteKey(path string) string {
	return d.prefix + filepath.Base(path)
}
