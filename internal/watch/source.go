// Package watch turns platform filesystem notifications into a stream of
// create/modify events for regular files. Directory events are used only to
// extend the watch when running recursively; they are never emitted.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrijs2005/s3mirror/internal/logging"
)

// SetupError reports that a watch could not be established on the root
// path. It is fatal: the monitor cannot start without a valid root.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("cannot watch %s: %v", e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

var errNotDirectory = errors.New("not a directory")

// Source produces Events for a directory tree until closed. The event
// sequence is not restartable: once Close is called the Events channel is
// closed for good.
type Source struct {
	watcher   *fsnotify.Watcher
	events    chan Event
	logger    logging.Logger
	recursive bool
	done      chan struct{}
	closeOnce sync.Once
}

// New validates root, registers the platform watch (recursively when
// requested) and starts event production. Validation happens here, not
// lazily: a missing or non-directory root returns a *SetupError.
func New(root string, recursive bool, logger logging.Logger) (*Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &SetupError{Path: root, Err: errNotDirectory}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SetupError{Path: root, Err: err}
	}

	s := &Source{
		watcher:   watcher,
		events:    make(chan Event, 16),
		logger:    logger.With("module", "watch"),
		recursive: recursive,
		done:      make(chan struct{}),
	}

	if err := s.addTree(root); err != nil {
		_ = watcher.Close()
		return nil, &SetupError{Path: root, Err: err}
	}

	go s.run()
	return s, nil
}

// Events returns the stream of file changes. The channel is closed when the
// source shuts down.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Close releases the platform watch unconditionally and stops event
// production. Safe to call more than once.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}

// addTree registers root and, in recursive mode, every directory below it.
func (s *Source) addTree(root string) error {
	if err := s.watcher.Add(root); err != nil {
		return err
	}
	if !s.recursive {
		return nil
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		return s.watcher.Add(path)
	})
}

func (s *Source) run() {
	defer close(s.events)

	ctx := context.Background()
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ctx, event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn(ctx, "watch error", "error", err)
		case <-s.done:
			return
		}
	}
}

func (s *Source) handle(ctx context.Context, event fsnotify.Event) {
	var kind Kind
	switch {
	case event.Op.Has(fsnotify.Create):
		kind = KindCreated
	case event.Op.Has(fsnotify.Write):
		kind = KindModified
	default:
		// renames, removals and chmods produce nothing to upload
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// the path vanished between notification and stat
		s.logger.Debug(ctx, "stat failed, skipping event", "path", event.Name, "error", err)
		return
	}

	if info.IsDir() {
		if kind == KindCreated && s.recursive {
			if err := s.addTree(event.Name); err != nil {
				s.logger.Warn(ctx, "cannot watch new directory", "path", event.Name, "error", err)
			} else {
				s.logger.Debug(ctx, "watching new directory", "path", event.Name)
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	e := Event{Path: event.Name, Kind: kind, ObservedAt: time.Now().UTC()}
	select {
	case s.events <- e:
	case <-s.done:
	}
}
