package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/hostguard/internal/guard/common/clock"
	"github.com/haukened/hostguard/internal/guard/domain"
)

var (
	bucketContent = []byte("content")
	bucketMeta    = []byte("meta")
)

// Journal persists snapshots across process restarts so that an override file
// left modified by a crashed process can be restored.
type Journal struct {
	db    *bbolt.DB
	clock clock.Clock
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

func ensureBuckets(tx bucketCreator) error {
	if _, err := tx.CreateBucketIfNotExists(bucketContent); err != nil {
		return err
	}
	if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
		return err
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// Open opens (or creates) a journal database at path and ensures buckets exist.
func Open(path string, clk clock.Clock) (*Journal, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, clock: clk}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores content as the original snapshot for path and returns its ID.
// If a snapshot for path is still marked active, the file on disk is not the
// original; the existing snapshot is kept and returned instead.
func (j *Journal) Record(path string, content []byte) (domain.Snapshot, error) {
	var out domain.Snapshot
	err := j.db.Update(func(tx *bbolt.Tx) error {
		meta, err := readMeta(tx, path)
		if err != nil {
			return err
		}
		if meta != nil && meta.Active {
			meta.Content = copyBytes(tx.Bucket(bucketContent).Get([]byte(path)))
			out = *meta
			return nil
		}
		out = domain.Snapshot{
			ID:      uuid.NewString(),
			Path:    path,
			TakenAt: j.clock.Now().UTC(),
			Content: copyBytes(content),
		}
		if err := tx.Bucket(bucketContent).Put([]byte(path), content); err != nil {
			return err
		}
		return writeMeta(tx, out)
	})
	return out, err
}

// SetActive flips the active flag of the snapshot for path.
func (j *Journal) SetActive(path string, active bool) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		meta, err := readMeta(tx, path)
		if err != nil {
			return err
		}
		if meta == nil {
			return fmt.Errorf("no snapshot recorded for %s", path)
		}
		meta.Active = active
		return writeMeta(tx, *meta)
	})
}

// Pending returns the snapshot for path if it is still marked active.
func (j *Journal) Pending(path string) (domain.Snapshot, bool, error) {
	var (
		out   domain.Snapshot
		found bool
	)
	err := j.db.View(func(tx *bbolt.Tx) error {
		meta, err := readMeta(tx, path)
		if err != nil || meta == nil || !meta.Active {
			return err
		}
		meta.Content = copyBytes(tx.Bucket(bucketContent).Get([]byte(path)))
		out, found = *meta, true
		return nil
	})
	return out, found, err
}

func readMeta(tx *bbolt.Tx, path string) (*domain.Snapshot, error) {
	v := tx.Bucket(bucketMeta).Get([]byte(path))
	if v == nil {
		return nil, nil
	}
	var s domain.Snapshot
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot meta: %w", err)
	}
	return &s, nil
}

func writeMeta(tx *bbolt.Tx, s domain.Snapshot) error {
	v, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put([]byte(s.Path), v)
}

// copyBytes detaches a value from the bbolt mmap, which is only valid inside the transaction.
func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
