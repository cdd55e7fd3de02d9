package model

import "time"

type EventKind string

const (
	EventCreated  EventKind = "CREATED"
	EventModified EventKind = "MODIFIED"
	EventDeleted  EventKind = "DELETED"
)

// IsUpload reports whether events of this kind lead to a transfer.
func (k EventKind) IsUpload() bool {
	return k == EventCreated || k == EventModified
}

type ChangeEvent struct {
	Path      string
	Kind      EventKind
	Timestamp time.Time
}
