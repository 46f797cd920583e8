package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one completed user turn: the utterance, the rendered
// response, and whether the plan ran to completion.
type Interaction struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Completed bool      `json:"completed"`
}

// Metadata is one record accepted by the metadata sink. Keyed by filename;
// a re-upload for the same filename replaces the earlier record.
type Metadata struct {
	Filename   string    `json:"filename"`
	Label      string    `json:"label"`
	Content    string    `json:"content"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
}
