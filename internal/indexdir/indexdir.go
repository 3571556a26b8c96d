// Package indexdir implements the Index Directory Manager (spec §4.I):
// the four-step create/preserve/delete-with-size-guard contract applied
// to one flavor's output directory, guarded by an exclusive lock file so
// two builds never race against the same directory.
package indexdir

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/textcorpus/posindex/internal/errs"
)

const lockFileName = ".posindex.lock"

// Options controls the directory-preparation policy.
type Options struct {
	PreserveExisting bool
	SizeThresholdBytes int64
	ConfirmDelete      bool
}

// Manager prepares and guards one flavor's output directory.
type Manager struct {
	dir  string
	lock *flock.Flock
}

// Prepare acquires the directory's exclusive lock and applies the
// four-step contract:
//  1. if absent, create it
//  2. else if PreserveExisting, keep it
//  3. else if size >= SizeThresholdBytes, refuse unless ConfirmDelete
//  4. else delete recursively and recreate
//
// Callers must call Release when the run reaches DONE or ABORTED.
func Prepare(dir string, opts Options) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "creating parent of index directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "creating index directory")
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "acquiring index directory lock")
	}
	if !locked {
		return nil, errs.New(errs.KindConfig, "index directory is locked by another concurrent build")
	}

	m := &Manager{dir: dir, lock: lock}
	if err := m.applyPolicy(opts); err != nil {
		m.Release()
		return nil, err
	}
	return m, nil
}

func (m *Manager) applyPolicy(opts Options) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errs.Wrap(err, errs.KindConfig, "reading index directory")
	}
	// Only the lock file present counts as "absent" for policy purposes.
	if len(entries) == 0 || (len(entries) == 1 && entries[0].Name() == lockFileName) {
		return nil
	}
	if opts.PreserveExisting {
		return nil
	}

	size, err := dirSize(m.dir)
	if err != nil {
		return err
	}
	if size >= opts.SizeThresholdBytes && !opts.ConfirmDelete {
		return errs.New(errs.KindConfig, "index directory exceeds size_threshold_bytes; pass --confirm-delete to replace it")
	}

	for _, e := range entries {
		if e.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dir, e.Name())); err != nil {
			return errs.Wrap(err, errs.KindConfig, "clearing existing index directory")
		}
	}
	return nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(err, errs.KindConfig, "measuring index directory size")
	}
	return total, nil
}

// Dir returns the prepared directory path.
func (m *Manager) Dir() string { return m.dir }

// Release unlocks the directory, removing the lock file. Safe to call
// once per Manager; idempotent on error.
func (m *Manager) Release() error {
	if err := m.lock.Unlock(); err != nil {
		return errs.Wrap(err, errs.KindConfig, "releasing index directory lock")
	}
	_ = os.Remove(m.lock.Path())
	return nil
}
