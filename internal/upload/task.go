// Package upload moves single files into the object store. A Task describes
// one pending transfer; the Uploader executes it with bounded retry and
// reports a terminal Outcome.
package upload

import (
	"time"

	"github.com/google/uuid"
)

// Task describes one pending transfer. A Task is created by the dispatcher
// and owned exclusively by the Uploader once handed off; it is destroyed on
// terminal success or terminal failure.
type Task struct {
	ID          string
	LocalPath   string
	RemoteKey   string
	ContentType string
	Attempt     int
	FirstSeenAt time.Time
}

// NewTask builds a fresh Task with attempt zero. The content type is
// resolved at submit time, not here, so a task always uploads with metadata
// matching the file it actually reads.
func NewTask(localPath, remoteKey string, firstSeenAt time.Time) Task {
	return Task{
		ID:          uuid.NewString(),
		LocalPath:   localPath,
		RemoteKey:   remoteKey,
		FirstSeenAt: firstSeenAt,
	}
}

// Status is the terminal state of a submitted task.
type Status int

const (
	// StatusSuccess: the store accepted the write.
	StatusSuccess Status = iota
	// StatusSourceVanished: the local file disappeared between the event
	// and the read. Not an error against the store.
	StatusSourceVanished
	// StatusFatal: the store rejected the write permanently; no retries
	// were spent.
	StatusFatal
	// StatusExhausted: every allowed submission failed transiently.
	// Future changes to the same file get a fresh attempt budget.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSourceVanished:
		return "source_vanished"
	case StatusFatal:
		return "fatal"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome reports how a task ended. Attempts counts store submissions
// actually made.
type Outcome struct {
	Task     Task
	Status   Status
	Attempts int
	Err      error
}
