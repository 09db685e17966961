package journal

import (
	"context"
	"time"
)

// Entry is one recorded upload outcome.
type Entry struct {
	TaskID     string
	RemoteKey  string
	LocalPath  string
	Status     string
	Attempts   int
	Detail     string
	RecordedAt time.Time
}

// Repository describes the operations the monitor needs from the journal.
type Repository interface {
	// Record appends one terminal outcome.
	Record(ctx context.Context, e *Entry) error

	// Recent returns the newest entries, most recent first, up to limit.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}
