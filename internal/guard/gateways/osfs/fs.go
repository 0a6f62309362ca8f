package osfs

import (
	"os"
)

// defaultMode is used when the target file does not exist yet.
const defaultMode os.FileMode = 0o644

// FS reads and writes the live override file.
//
// Writes truncate the file in place instead of renaming a temp file over it:
// the hosts file is frequently a bind mount (containers) or carries ACLs
// (Windows) that a rename would break.
type FS struct{}

// New returns the OS-backed file system.
func New() FS { return FS{} }

func (FS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (FS) WriteFile(path string, data []byte) error {
	mode := defaultMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
