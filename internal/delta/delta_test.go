package delta

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// testRecord is an overwrite range used to construct test payloads.
type testRecord struct {
	offset uint32
	data   []byte
}

// buildPayload constructs a well-formed payload for tests.
func buildPayload(inLen, outLen uint32, records []testRecord) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	_ = binary.Write(&buf, binary.BigEndian, uint16(FormatVersion))
	_ = binary.Write(&buf, binary.BigEndian, uint16(AlgorithmOverwrite))
	_ = binary.Write(&buf, binary.BigEndian, inLen)
	_ = binary.Write(&buf, binary.BigEndian, outLen)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(records)))
	for _, r := range records {
		_ = binary.Write(&buf, binary.BigEndian, r.offset)
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(r.data)))
		buf.Write(r.data)
	}
	return buf.Bytes()
}

func TestApply(t *testing.T) {
	input := []byte("the quick brown fox jumps over the lazy dog")
	payload := buildPayload(uint32(len(input)), uint32(len(input)), []testRecord{
		{offset: 4, data: []byte("slick")},
		{offset: 35, data: []byte("lazy cat")},
	})

	out, err := Apply(input, payload)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := "the slick brown fox jumps over the lazy cat"
	if string(out) != want {
		t.Errorf("Apply produced %q, want %q", out, want)
	}

	// Input buffer must be untouched
	if string(input) != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("Apply modified the input buffer: %q", input)
	}
}

func TestApplyDeterministic(t *testing.T) {
	input := make([]byte, 4096)
	for i := range input {
		input[i] = byte(i * 7)
	}
	payload := buildPayload(4096, 4096, []testRecord{
		{offset: 0x10, data: []byte{0x04, 0xE0}},
		{offset: 0xFFE, data: []byte{0xDE, 0xAD}},
	})

	first, err := Apply(input, payload)
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Apply(input, payload)
		if err != nil {
			t.Fatalf("Apply #%d failed: %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Apply #%d output differs from first invocation", i)
		}
	}
}

func TestApplyGrowsOutput(t *testing.T) {
	// Output longer than input: the tail is zero-filled before records apply.
	input := []byte{1, 2, 3, 4}
	payload := buildPayload(4, 8, []testRecord{
		{offset: 6, data: []byte{0xAA}},
	})

	out, err := Apply(input, payload)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 0, 0, 0xAA, 0}
	if !bytes.Equal(out, want) {
		t.Errorf("Apply produced %v, want %v", out, want)
	}
}

func TestApplyInputLengthError(t *testing.T) {
	payload := buildPayload(100, 100, nil)

	_, err := Apply(make([]byte, 99), payload)
	lenErr, ok := err.(*InputLengthError)
	if !ok {
		t.Fatalf("expected *InputLengthError, got %T (%v)", err, err)
	}
	if lenErr.Declared != 100 || lenErr.Actual != 99 {
		t.Errorf("unexpected lengths in error: %+v", lenErr)
	}
}

func TestApplyMalformedPayload(t *testing.T) {
	good := buildPayload(8, 8, []testRecord{{offset: 0, data: []byte{0xFF}}})

	badMagic := append([]byte{}, good...)
	copy(badMagic, "NOTDELTA")

	badVersion := append([]byte{}, good...)
	binary.BigEndian.PutUint16(badVersion[8:10], 99)

	badAlgorithm := append([]byte{}, good...)
	binary.BigEndian.PutUint16(badAlgorithm[10:12], 7)

	truncatedRecord := good[:HeaderSize+3]

	truncatedData := append([]byte{}, good[:len(good)-1]...)

	outOfBounds := buildPayload(8, 8, []testRecord{{offset: 7, data: []byte{1, 2}}})

	trailing := append(append([]byte{}, good...), 0x00)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"short header", good[:HeaderSize-1]},
		{"bad magic", badMagic},
		{"unsupported version", badVersion},
		{"unknown algorithm", badAlgorithm},
		{"truncated record", truncatedRecord},
		{"truncated record data", truncatedData},
		{"record out of bounds", outOfBounds},
		{"trailing bytes", trailing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(make([]byte, 8), tt.payload)
			if _, ok := err.(*MalformedPayloadError); !ok {
				t.Errorf("expected *MalformedPayloadError, got %T (%v)", err, err)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	payload := buildPayload(1234, 5678, nil)

	h, err := ParseHeader(payload)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if h.InputLength != 1234 {
		t.Errorf("InputLength = %d, want 1234", h.InputLength)
	}
	if h.OutputLength != 5678 {
		t.Errorf("OutputLength = %d, want 5678", h.OutputLength)
	}
	if h.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", h.Version, FormatVersion)
	}
	if h.Algorithm != AlgorithmOverwrite {
		t.Errorf("Algorithm = %d, want %d", h.Algorithm, AlgorithmOverwrite)
	}
}
