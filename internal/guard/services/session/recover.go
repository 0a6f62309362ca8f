package session

import (
	"bytes"
	"fmt"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// Recover restores the override file from a journal snapshot left active by a
// process that exited without disabling. It returns domain.ErrNoSnapshot when
// nothing is pending. Call it before New so the new session captures the
// restored content.
func Recover(path string, fs FileSystem, j Journal, logger logpkg.Logger) (domain.Snapshot, error) {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	snap, found, err := j.Pending(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read journal: %w", err)
	}
	if !found {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}

	if err := fs.WriteFile(path, snap.Content); err != nil {
		return snap, fmt.Errorf("%w: %s: %v", domain.ErrWrite, path, err)
	}
	got, err := fs.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("%w: verify read %s: %v", domain.ErrRestoreIntegrity, path, err)
	}
	if !bytes.Equal(bytes.TrimSpace(got), bytes.TrimSpace(snap.Content)) {
		return snap, fmt.Errorf("%w: %s", domain.ErrRestoreIntegrity, path)
	}
	if err := j.SetActive(path, false); err != nil {
		logger.Warn(map[string]any{"path": path, "error": err}, "journal_update_failed")
	}
	logger.Warn(map[string]any{"path": path, "snapshot": snap.ID, "taken_at": snap.TakenAt}, "override_file_recovered")
	return snap, nil
}
