package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/repos/hosts"
)

// Options configures a Session. Path and FS are required.
type Options struct {
	Path    string
	FS      FileSystem
	Flusher Flusher // optional; nil disables cache invalidation
	Journal Journal // optional; nil disables crash recovery
	Logger  logpkg.Logger
}

// Session owns the enable/disable lifecycle of the override file.
//
// The original file content is captured once by New. Disable writes it back
// and rebuilds the entry model from what is then on disk. All methods are
// serialized by one mutex, including the restore/verify pair.
type Session struct {
	mu       sync.Mutex
	path     string
	fs       FileSystem
	flusher  Flusher
	journal  Journal
	logger   logpkg.Logger
	original []byte
	hosts    *hosts.Manager
	active   bool
}

// New reads the override file, keeps its content as the rollback snapshot and
// parses the entry model from it. The session starts Inactive.
func New(opts Options) (*Session, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("override file path is required")
	}
	if opts.FS == nil {
		return nil, fmt.Errorf("file system is required")
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}

	original, err := opts.FS.ReadFile(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRead, opts.Path, err)
	}
	model, err := hosts.Parse(bytes.NewReader(original), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrRead, opts.Path, err)
	}

	s := &Session{
		path:     opts.Path,
		fs:       opts.FS,
		flusher:  opts.Flusher,
		journal:  opts.Journal,
		logger:   opts.Logger,
		original: original,
		hosts:    model,
	}
	if s.journal != nil {
		snap, err := s.journal.Record(s.path, original)
		if err != nil {
			s.logger.Warn(map[string]any{"path": s.path, "error": err}, "journal_record_failed")
		} else {
			s.logger.Debug(map[string]any{"path": s.path, "snapshot": snap.ID}, "journal_recorded")
		}
	}
	s.logger.Info(map[string]any{"path": s.path, "bytes": len(original), "blocked": len(model.List())}, "session_created")
	return s, nil
}

// Path returns the override file path.
func (s *Session) Path() string { return s.path }

// Active reports whether blocking is enabled.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// List returns the names currently mapped to the loopback address.
func (s *Session) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts.List()
}

// Enable writes the entry model to the override file and becomes Active.
// On a write failure the session stays Inactive. Cache invalidation is best effort.
func (s *Session) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setJournalActive(true)
	if err := s.write(s.hosts.Bytes()); err != nil {
		if !s.active {
			s.setJournalActive(false)
		}
		return err
	}
	s.active = true
	s.logger.Info(map[string]any{"path": s.path, "blocked": len(s.hosts.List())}, "blocking_enabled")
	s.flush(ctx)
	return nil
}

// Disable restores the original snapshot, re-parses the model from the restored
// file and becomes Inactive. It returns domain.ErrRestoreIntegrity when the file
// read back does not match the snapshot (ignoring surrounding whitespace).
func (s *Session) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(s.original); err != nil {
		return err
	}

	restored, readErr := s.fs.ReadFile(s.path)
	source := restored
	if readErr != nil {
		source = s.original
	}
	model, err := hosts.Parse(bytes.NewReader(source), s.logger)
	if err != nil {
		model, _ = hosts.Parse(bytes.NewReader(s.original), s.logger)
	}
	s.hosts = model
	s.active = false
	s.flush(ctx)

	if readErr != nil {
		s.logger.Error(map[string]any{"path": s.path, "error": readErr}, "restore_verify_read_failed")
		return fmt.Errorf("%w: verify read %s: %v", domain.ErrRestoreIntegrity, s.path, readErr)
	}
	if !bytes.Equal(bytes.TrimSpace(restored), bytes.TrimSpace(s.original)) {
		s.logger.Error(map[string]any{"path": s.path, "want_bytes": len(s.original), "got_bytes": len(restored)}, "restore_mismatch")
		return fmt.Errorf("%w: %s", domain.ErrRestoreIntegrity, s.path)
	}
	s.setJournalActive(false)
	s.logger.Info(map[string]any{"path": s.path}, "blocking_disabled")
	return nil
}

// Block adds target to the model. When Active the file is rewritten at once;
// otherwise the change waits for the next Enable.
func (s *Session) Block(ctx context.Context, target domain.BlockTarget) error {
	return s.mutate(ctx, "block", target, (*hosts.Manager).Add)
}

// Unblock removes target (and its www./bare counterpart) from the model.
func (s *Session) Unblock(ctx context.Context, target domain.BlockTarget) error {
	return s.mutate(ctx, "unblock", target, (*hosts.Manager).Remove)
}

// mutate applies op to the model and, when Active, writes it through. A failed
// write rolls the model back so it keeps mirroring the file.
func (s *Session) mutate(ctx context.Context, op string, target domain.BlockTarget, apply func(*hosts.Manager, domain.BlockTarget) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.hosts.Bytes()
	changed := apply(s.hosts, target)
	fields := map[string]any{"target": target.Name, "kind": target.Kind.String(), "changed": changed, "active": s.active}
	if !changed || !s.active {
		s.logger.Info(fields, op)
		return nil
	}
	if err := s.write(s.hosts.Bytes()); err != nil {
		if model, perr := hosts.Parse(bytes.NewReader(prev), s.logger); perr == nil {
			s.hosts = model
		}
		return err
	}
	s.logger.Info(fields, op)
	s.flush(ctx)
	return nil
}

func (s *Session) write(data []byte) error {
	if err := s.fs.WriteFile(s.path, data); err != nil {
		s.logger.Error(map[string]any{"path": s.path, "error": err}, "override_write_failed")
		return fmt.Errorf("%w: %s: %v", domain.ErrWrite, s.path, err)
	}
	return nil
}

func (s *Session) flush(ctx context.Context) {
	if s.flusher == nil {
		return
	}
	if err := s.flusher.Flush(ctx); err != nil {
		s.logger.Warn(map[string]any{"error": err}, "dns_flush_failed")
	}
}

func (s *Session) setJournalActive(active bool) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SetActive(s.path, active); err != nil {
		s.logger.Warn(map[string]any{"path": s.path, "active": active, "error": err}, "journal_update_failed")
	}
}
