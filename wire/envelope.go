package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"

	"nodemirror/mutation"
	"nodemirror/report"
)

// DefaultMaxFrameSize bounds a single envelope on the stream.
const DefaultMaxFrameSize = 16 << 20

// Envelope is one message of the mirror stream: a full report that starts or
// restarts a session, or a batch of mutations.
type Envelope struct {
	// Seq increases by one per envelope within a session. A full report
	// carries the sequence number the next batch continues from.
	Seq uint64
	// Exactly one of FullReport and Mutations is set.
	FullReport *report.NodeReport
	Mutations  []mutation.NodeReportMutation
}

// IsFullReport reports whether e carries a full report.
func (e Envelope) IsFullReport() bool { return e.FullReport != nil }

// EncodeEnvelope returns the wire form of e. It fails only for a mutation
// EncodeMutation refuses.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	var b []byte
	b = appendVarint(b, envelopeSeq, e.Seq)
	if e.FullReport != nil {
		return appendBytes(b, envelopeFullReport, EncodeReport(*e.FullReport)), nil
	}
	var body []byte
	for i, m := range e.Mutations {
		enc, err := EncodeMutation(m)
		if err != nil {
			return nil, fmt.Errorf("envelope %d, mutation %d: %w", e.Seq, i, err)
		}
		body = appendBytes(body, mutationListItem, enc)
	}
	return appendBytes(b, envelopeMutations, body), nil
}

// DecodeEnvelope parses an envelope. A body of unknown kind is
// ErrMalformedUnion.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	fields, err := parseFields(b)
	if err != nil {
		return e, fmt.Errorf("decode envelope: %w", err)
	}
	bodies := 0
	for _, f := range fields {
		switch f.num {
		case envelopeSeq:
			e.Seq, err = f.varint()
		case envelopeFullReport:
			bodies++
			var body []byte
			if body, err = f.bytes(); err == nil {
				var r report.NodeReport
				if r, err = DecodeReport(body); err == nil {
					e.FullReport = &r
				}
			}
		case envelopeMutations:
			bodies++
			var body []byte
			if body, err = f.bytes(); err == nil {
				e.Mutations, err = decodeMutationList(body)
			}
		default:
			bodies++
			err = unknownArm("envelope", f.num)
		}
		if err != nil {
			return Envelope{}, fmt.Errorf("decode envelope: %w", err)
		}
	}
	if bodies != 1 {
		return Envelope{}, fmt.Errorf("decode envelope: %w: %d bodies", ErrMalformedUnion, bodies)
	}
	return e, nil
}

func decodeMutationList(b []byte) ([]mutation.NodeReportMutation, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	out := make([]mutation.NodeReportMutation, 0, len(fields))
	for i, f := range fields {
		if f.num != mutationListItem {
			continue
		}
		body, err := f.bytes()
		if err != nil {
			return nil, err
		}
		m, err := DecodeMutation(body)
		if err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Digest is a BLAKE3 hash of the encoded report. Two mirrors of the same
// node agree on the digest exactly when their reports are equal.
func Digest(r report.NodeReport) [32]byte {
	return blake3.Sum256(EncodeReport(r))
}

// FrameWriter writes envelopes as uvarint length-prefixed frames.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter returns a FrameWriter on w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// Write encodes and writes one envelope.
func (fw *FrameWriter) Write(e Envelope) error {
	payload, err := EncodeEnvelope(e)
	if err != nil {
		return err
	}
	frame := protowire.AppendVarint(make([]byte, 0, len(payload)+binary.MaxVarintLen64), uint64(len(payload)))
	frame = append(frame, payload...)
	_, err = fw.w.Write(frame)
	return err
}

// FrameReader reads envelopes written by FrameWriter.
type FrameReader struct {
	r   *bufio.Reader
	max uint64
}

// NewFrameReader returns a FrameReader on r. A maxFrame of zero uses
// DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxFrame int) *FrameReader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), max: uint64(maxFrame)}
}

// Next reads the next frame and returns its raw payload. It returns io.EOF
// only on a clean frame boundary.
func (fr *FrameReader) Next() ([]byte, error) {
	size, err := binary.ReadUvarint(fr.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: header: %v", ErrFrame, err)
	}
	if size > fr.max {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, size, fr.max)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrFrame, err)
	}
	return payload, nil
}

// Read reads and decodes the next envelope.
func (fr *FrameReader) Read() (Envelope, error) {
	payload, err := fr.Next()
	if err != nil {
		return Envelope{}, err
	}
	return DecodeEnvelope(payload)
}
