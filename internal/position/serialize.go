package position

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/pfor"
)

// Codec names the outer, general-purpose byte compressor optionally
// applied over the binary block (spec §3: "may then pass through a
// general-purpose byte compressor (deflate)").
type Codec uint8

const (
	CodecNone Codec = iota
	CodecDeflate
	CodecSnappy
)

// SerializeOptions controls the outer compression pass. The zero value
// disables outer compression entirely (CodecNone).
type SerializeOptions struct {
	Codec            Codec
	CompressMinBytes int // payloads smaller than this are never compressed
}

const (
	outerNone    byte = 0
	outerDeflate byte = 1
	outerSnappy  byte = 2
)

// Serialize produces the binary block described in spec §3. An empty list
// yields a zero-length payload. Serialize always sorts (exact-dedup) first,
// per the contract that consumers rely on sorted output.
func (l *PositionList) Serialize(opts SerializeOptions) ([]byte, error) {
	sorted := sortDedup(l.positions, DedupExact)
	if len(sorted) == 0 {
		return nil, nil
	}

	block := encodeBlock(sorted)

	if opts.Codec == CodecNone || len(block) < opts.CompressMinBytes {
		return append([]byte{outerNone}, block...), nil
	}

	switch opts.Codec {
	case CodecDeflate:
		var buf bytes.Buffer
		buf.WriteByte(outerDeflate)
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "building deflate writer")
		}
		if _, err := w.Write(block); err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "deflating position block")
		}
		if err := w.Close(); err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "closing deflate writer")
		}
		return buf.Bytes(), nil
	case CodecSnappy:
		dst := make([]byte, snappy.MaxEncodedLen(len(block)))
		encoded := snappy.Encode(dst, block)
		full := make([]byte, 1+len(encoded))
		full[0] = outerSnappy
		copy(full[1:], encoded)
		return full, nil
	default:
		return nil, fmt.Errorf("position: unknown codec %d", opts.Codec)
	}
}

// Deserialize parses the binary block produced by Serialize. It tolerates
// both raw and compressed column encodings and fails with a CorruptPayload
// error on codec errors, truncation, or implausible counts.
func Deserialize(data []byte) (*PositionList, error) {
	if len(data) == 0 {
		return &PositionList{}, nil
	}

	outer := data[0]
	payload := data[1:]
	var block []byte
	switch outer {
	case outerNone:
		block = payload
	case outerDeflate:
		r := flate.NewReader(bytes.NewReader(payload))
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "inflating position block")
		}
		block = b
	case outerSnappy:
		b, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "snappy-decoding position block")
		}
		block = b
	default:
		return nil, errs.New(errs.KindCorruptPayload, fmt.Sprintf("unknown outer codec byte %d", outer))
	}

	return decodeBlock(block)
}

func encodeBlock(sorted []Position) []byte {
	n := len(sorted)
	doc := make([]int32, n)
	sent := make([]int32, n)
	begin := make([]int32, n)
	end := make([]int32, n)
	dates := make([]int64, n)
	hasExt := false
	for i, p := range sorted {
		doc[i], sent[i], begin[i], end[i] = p.DocumentID, p.SentenceID, p.BeginChar, p.EndChar
		dates[i] = p.Date
		if p.HasExtension {
			hasExt = true
		}
	}

	var buf bytes.Buffer
	writeInt32(&buf, int32(n))
	buf.Write(pfor.EncodeColumn(doc))
	buf.Write(pfor.EncodeColumn(sent))
	buf.Write(pfor.EncodeColumn(begin))
	buf.Write(pfor.EncodeColumn(end))
	for _, d := range dates {
		writeInt64(&buf, d)
	}

	if hasExt {
		buf.WriteByte(1)
		synIDs := make([]int32, n)
		for i, p := range sorted {
			synIDs[i] = p.SynonymID
		}
		buf.Write(pfor.EncodeColumn(synIDs))
		for _, p := range sorted {
			buf.WriteByte(byte(p.AnnotationKind))
		}
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

func decodeBlock(block []byte) (*PositionList, error) {
	if len(block) == 0 {
		return &PositionList{}, nil
	}
	r := bytes.NewReader(block)

	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "reading position count")
	}
	if n < 0 || n > 1<<28 {
		return nil, errs.New(errs.KindCorruptPayload, fmt.Sprintf("implausible position count %d", n))
	}

	doc, err := pfor.DecodeColumn(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "decoding document column")
	}
	sent, err := pfor.DecodeColumn(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "decoding sentence column")
	}
	begin, err := pfor.DecodeColumn(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "decoding begin column")
	}
	end, err := pfor.DecodeColumn(r)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "decoding end column")
	}
	if len(doc) != int(n) || len(sent) != int(n) || len(begin) != int(n) || len(end) != int(n) {
		return nil, errs.New(errs.KindCorruptPayload, "column length mismatch with declared count")
	}

	dates := make([]int64, n)
	for i := range dates {
		if err := binary.Read(r, binary.LittleEndian, &dates[i]); err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "reading date column")
		}
	}

	extFlag, err := r.ReadByte()
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, "reading extension flag")
	}

	positions := make([]Position, n)
	for i := range positions {
		positions[i] = Position{
			DocumentID: doc[i], SentenceID: sent[i], BeginChar: begin[i], EndChar: end[i], Date: dates[i],
		}
	}

	if extFlag == 1 {
		synIDs, err := pfor.DecodeColumn(r)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "decoding synonym-id column")
		}
		if len(synIDs) != int(n) {
			return nil, errs.New(errs.KindCorruptPayload, "synonym-id column length mismatch")
		}
		kinds := make([]byte, n)
		if _, err := io.ReadFull(r, kinds); err != nil {
			return nil, errs.Wrap(err, errs.KindCorruptPayload, "reading annotation-kind column")
		}
		for i := range positions {
			positions[i].HasExtension = true
			positions[i].SynonymID = synIDs[i]
			positions[i].AnnotationKind = AnnotationKind(kinds[i])
		}
	}

	return &PositionList{positions: positions}, nil
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}
