package delta

import (
	"bytes"
	"encoding/binary"
)

// Payload format constants. See the package documentation for the full
// layout.
const (
	// Magic is the 8-byte marker at the start of every payload.
	Magic = "SMTDELTA"

	// FormatVersion is the payload format version this engine reads.
	FormatVersion = 1

	// AlgorithmOverwrite reconstructs the output by copying the input
	// and overwriting the byte ranges listed in the records.
	AlgorithmOverwrite = 1

	// HeaderSize is the size of the fixed payload header in bytes.
	HeaderSize = 24

	// recordHeaderSize is the fixed prefix of each record (offset + length).
	recordHeaderSize = 6
)

// Header describes a parsed payload header.
type Header struct {
	// Version is the payload format version
	Version uint16
	// Algorithm identifies the reconstruction algorithm
	Algorithm uint16
	// InputLength is the exact length the input buffer must have
	InputLength uint32
	// OutputLength is the exact length the output buffer will have
	OutputLength uint32
	// RecordCount is the number of diff records that follow the header
	RecordCount uint32
}

// record is a single overwrite range within the output buffer.
type record struct {
	offset uint32
	data   []byte
}

// ParseHeader validates and returns the payload header without reading
// the diff records. Used by the catalog to sanity-check embedded
// payloads at load time.
func ParseHeader(payload []byte) (*Header, error) {
	if len(payload) < HeaderSize {
		return nil, &MalformedPayloadError{Reason: "payload shorter than header"}
	}
	if !bytes.Equal(payload[:8], []byte(Magic)) {
		return nil, &MalformedPayloadError{Reason: "bad magic"}
	}

	h := &Header{
		Version:      binary.BigEndian.Uint16(payload[8:10]),
		Algorithm:    binary.BigEndian.Uint16(payload[10:12]),
		InputLength:  binary.BigEndian.Uint32(payload[12:16]),
		OutputLength: binary.BigEndian.Uint32(payload[16:20]),
		RecordCount:  binary.BigEndian.Uint32(payload[20:24]),
	}

	if h.Version != FormatVersion {
		return nil, &MalformedPayloadError{Reason: "unsupported format version"}
	}
	if h.Algorithm != AlgorithmOverwrite {
		return nil, &MalformedPayloadError{Reason: "unknown algorithm"}
	}
	return h, nil
}

// parseRecords reads and bounds-checks all diff records.
func parseRecords(h *Header, payload []byte) ([]record, error) {
	records := make([]record, 0, h.RecordCount)
	rest := payload[HeaderSize:]

	for i := uint32(0); i < h.RecordCount; i++ {
		if len(rest) < recordHeaderSize {
			return nil, &MalformedPayloadError{Reason: "truncated record"}
		}
		offset := binary.BigEndian.Uint32(rest[0:4])
		length := binary.BigEndian.Uint16(rest[4:6])
		rest = rest[recordHeaderSize:]

		if len(rest) < int(length) {
			return nil, &MalformedPayloadError{Reason: "truncated record data"}
		}
		if uint64(offset)+uint64(length) > uint64(h.OutputLength) {
			return nil, &MalformedPayloadError{Reason: "record exceeds declared output length"}
		}

		records = append(records, record{offset: offset, data: rest[:length]})
		rest = rest[length:]
	}

	if len(rest) != 0 {
		return nil, &MalformedPayloadError{Reason: "trailing bytes after last record"}
	}
	return records, nil
}

// Apply transforms input using payload and returns the reconstructed
// output buffer. The input buffer is never modified; every invocation
// allocates a fresh output.
//
// The payload is fully validated before any transformation starts, so a
// malformed payload never produces partial output.
func Apply(input, payload []byte) ([]byte, error) {
	h, err := ParseHeader(payload)
	if err != nil {
		return nil, err
	}
	records, err := parseRecords(h, payload)
	if err != nil {
		return nil, err
	}

	if len(input) != int(h.InputLength) {
		return nil, &InputLengthError{Declared: int(h.InputLength), Actual: len(input)}
	}

	out := make([]byte, h.OutputLength)
	copy(out, input)
	for _, r := range records {
		copy(out[r.offset:], r.data)
	}

	// The engine contract: output length must match the declaration,
	// whatever algorithm produced it.
	if len(out) != int(h.OutputLength) {
		return nil, &LengthMismatchError{Declared: int(h.OutputLength), Actual: len(out)}
	}
	return out, nil
}
