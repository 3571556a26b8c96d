// Package spill implements the line-oriented spill file format (spec
// §4.D) and the K-way external merge over sorted spill runs (spec §4.E).
package spill

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/position"
)

// Writer appends records to one spill file. Records must be written in
// ascending key order (the producer's sorted accumulator guarantees this;
// see internal/pipeline).
type Writer struct {
	f   *os.File
	buf *bufio.Writer
}

// Create opens a new spill file for writing at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindSpill, fmt.Sprintf("creating spill file %s", path))
	}
	return &Writer{f: f, buf: bufio.NewWriterSize(f, 64*1024)}, nil
}

// WriteRecord serializes list and appends one "key\tbase64\n" line.
func (w *Writer) WriteRecord(key string, list *position.PositionList, opts position.SerializeOptions) error {
	data, err := list.Serialize(opts)
	if err != nil {
		return errs.Wrap(err, errs.KindSpill, "serializing position list for spill")
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if strings.ContainsAny(key, "\t\n") {
		return errs.New(errs.KindSpill, fmt.Sprintf("key %q contains a reserved spill delimiter byte", key))
	}
	if _, err := w.buf.WriteString(key); err != nil {
		return errs.Wrap(err, errs.KindSpill, "writing spill key")
	}
	if err := w.buf.WriteByte('\t'); err != nil {
		return errs.Wrap(err, errs.KindSpill, "writing spill separator")
	}
	if _, err := w.buf.WriteString(encoded); err != nil {
		return errs.Wrap(err, errs.KindSpill, "writing spill value")
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return errs.Wrap(err, errs.KindSpill, "writing spill newline")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return errs.Wrap(err, errs.KindSpill, "flushing spill file")
	}
	if err := w.f.Close(); err != nil {
		return errs.Wrap(err, errs.KindSpill, "closing spill file")
	}
	return nil
}

// RemoveAll deletes every path in paths, logging (not failing) on errors,
// matching spec §4.F's try/finally-equivalent spill cleanup.
func RemoveAll(log *logging.Logger, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove spill file", "path", p, "err", err)
		}
	}
}

// parseLine splits one spill line into its key and raw base64 value.
// Lines whose split yields fewer than two parts are skipped with a
// warning, per spec §4.D.
func parseLine(log *logging.Logger, source string, line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '\t')
	if idx < 0 {
		log.Warn("skipping malformed spill line (no delimiter)", "source", source)
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

func decodeRecord(keyRaw, valueRaw string) (*position.PositionList, error) {
	data, err := base64.StdEncoding.DecodeString(valueRaw)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("base64-decoding spill value for key %q", keyRaw))
	}
	list, err := position.Deserialize(data)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("deserializing position list for key %q", keyRaw))
	}
	return list, nil
}
