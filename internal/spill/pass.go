package spill

import (
	"fmt"
	"path/filepath"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/mathutil"
	"github.com/textcorpus/posindex/internal/position"
)

// DefaultFanIn is the number of spill runs merged together at once, per
// spec §4.E. Wider fan-in trades peak open-file-descriptor count for fewer
// merge passes.
const DefaultFanIn = 10

// MultiPass reduces an arbitrary number of sorted spill files down to at
// most fanIn runs, writing intermediate merged spills under workDir, then
// returns a Merger over the final, unmaterialized pass: callers drain it
// via Next() instead of paying for one more round-trip through disk.
//
// The returned Merger (and its intermediate files, tracked in the returned
// cleanup) must be closed/invoked by the caller once draining is done.
// passes reports how many intermediate merge rounds actually ran (0 when
// len(spills) already fit within one fan-in window).
func MultiPass(log *logging.Logger, workDir string, spills []string, fanIn int, dedup position.DedupMode, opts position.SerializeOptions) (merger *Merger, cleanup func(), passes int, err error) {
	if fanIn <= 1 {
		fanIn = DefaultFanIn
	}
	current := spills
	var intermediates []string
	estimated := 0
	for runs := len(spills); runs > fanIn; runs = mathutil.CeilDiv(runs, fanIn) {
		estimated++
	}
	log.Info("external merge starting", "runs", len(spills), "fan_in", fanIn, "estimated_passes", estimated)

	for len(current) > fanIn {
		var next []string
		for i := 0; i < len(current); i += fanIn {
			end := i + fanIn
			if end > len(current) {
				end = len(current)
			}
			chunk := current[i:end]
			outPath := filepath.Join(workDir, fmt.Sprintf("merge-pass%d-%d.spill", passes, i/fanIn))
			if mergeErr := mergeChunkToFile(log, chunk, outPath, dedup, opts); mergeErr != nil {
				RemoveAll(log, intermediates)
				return nil, nil, passes, mergeErr
			}
			next = append(next, outPath)
			intermediates = append(intermediates, outPath)
		}
		current = next
		passes++
		log.Info("external merge pass complete", "pass", passes, "runs_remaining", len(current))
	}

	merger, err = NewMerger(log, current, dedup)
	if err != nil {
		RemoveAll(log, intermediates)
		return nil, nil, passes, err
	}
	cleanup = func() {
		merger.Close()
		RemoveAll(log, intermediates)
	}
	return merger, cleanup, passes, nil
}

// mergeChunkToFile merges chunk's spill files into one new sorted spill at
// outPath, used for every pass but the final one.
func mergeChunkToFile(log *logging.Logger, chunk []string, outPath string, dedup position.DedupMode, opts position.SerializeOptions) error {
	merger, err := NewMerger(log, chunk, dedup)
	if err != nil {
		return err
	}
	defer merger.Close()

	w, err := Create(outPath)
	if err != nil {
		return err
	}
	for {
		group, ok, err := merger.Next()
		if err != nil {
			w.Close()
			return err
		}
		if !ok {
			break
		}
		if err := w.WriteRecord(group.Key, group.List, opts); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(err, errs.KindSpill, fmt.Sprintf("closing intermediate merge spill %s", outPath))
	}
	return nil
}
