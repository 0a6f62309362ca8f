package domain

import "time"

// Snapshot is the original override-file content captured by a session, plus
// whether blocking was active (file modified) the last time it was recorded.
type Snapshot struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	TakenAt time.Time `json:"taken_at"`
	Active  bool      `json:"active"`
	Content []byte    `json:"-"`
}
