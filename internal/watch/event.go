package watch

import "time"

// Kind discriminates what happened to a file.
type Kind int

const (
	KindCreated Kind = iota
	KindModified
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event represents a single filesystem change to a regular file. Events are
// transient: they are produced by a Source and consumed immediately, never
// persisted.
type Event struct {
	Path       string
	Kind       Kind
	ObservedAt time.Time
}
