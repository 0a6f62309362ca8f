package domain

import "errors"

var (
	// ErrInvalidTarget is returned when a URL or address cannot be a block target.
	ErrInvalidTarget = errors.New("invalid block target")
	// ErrInvalidKeyword is returned for empty keywords or categories.
	ErrInvalidKeyword = errors.New("invalid keyword")
	// ErrRead wraps failures reading the override file or keyword file.
	ErrRead = errors.New("read failed")
	// ErrWrite wraps failures writing the override file or keyword file.
	ErrWrite = errors.New("write failed")
	// ErrRestoreIntegrity means the override file no longer matches the original
	// snapshot after a restore. The host is left in a modified state.
	ErrRestoreIntegrity = errors.New("override file not restored to original content")
	// ErrNoSnapshot is returned by recovery when no pending snapshot exists.
	ErrNoSnapshot = errors.New("no pending snapshot")
)
