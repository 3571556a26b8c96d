package pipeline

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/spill"
)

// workDir is a uuid-tagged scratch directory for one run's spill files,
// removed on normal completion and best-effort on SIGINT/SIGTERM so an
// interrupted build doesn't strand spill files (spec §4.F's "try/finally-
// equivalent" cleanup requirement).
type workDir struct {
	path      string
	log       *logging.Logger
	stopHook  func()
	spillsMu  sync.Mutex
	spillList []string
}

// newWorkDir creates base/posindex-<uuid>/ and installs a signal hook
// that removes it on interrupt.
func newWorkDir(base string, log *logging.Logger) (*workDir, error) {
	path := filepath.Join(base, "posindex-"+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.KindSpill, "creating pipeline work directory")
	}
	w := &workDir{path: path, log: log}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			log.Warn("received interrupt, cleaning up spill files", "dir", path)
			w.removeAll()
		case <-done:
		}
	}()
	w.stopHook = func() {
		close(done)
		signal.Stop(sigCh)
	}
	return w, nil
}

// register records path as one this run's spill files, for cleanup.
func (w *workDir) register(path string) {
	w.spillsMu.Lock()
	defer w.spillsMu.Unlock()
	w.spillList = append(w.spillList, path)
}

func (w *workDir) removeAll() {
	w.spillsMu.Lock()
	paths := append([]string(nil), w.spillList...)
	w.spillsMu.Unlock()
	spill.RemoveAll(w.log, paths)
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		w.log.Warn("failed to remove pipeline work directory", "dir", w.path, "err", err)
	}
}

// close stops the signal hook and removes the directory tree. Safe to
// call after removeAll has already fired from the signal handler.
func (w *workDir) close() {
	w.stopHook()
	w.removeAll()
}
