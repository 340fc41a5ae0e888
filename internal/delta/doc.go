// Package delta applies self-describing binary delta payloads to hub
// firmware binaries.
//
// A payload carries everything needed to validate it against an input
// buffer before any byte is transformed: a magic marker, a format
// version, the reconstruction algorithm, the exact input and output
// lengths, and the diff records themselves. The engine is pure and
// deterministic; applying the same payload to the same input always
// yields byte-identical output.
//
// The engine deliberately knows nothing about expected content digests.
// It cannot distinguish "patch applied correctly to the wrong input"
// from "patch applied correctly to the right input", so digest
// verification of both input and output belongs to the caller.
//
// # Payload format
//
// All integers are big-endian.
//
//	offset  size  field
//	0       8     magic "SMTDELTA"
//	8       2     format version (currently 1)
//	10      2     algorithm (1 = overwrite records)
//	12      4     input length
//	16      4     output length
//	20      4     record count
//	24      ...   records
//
// Each record is {offset uint32, length uint16, data [length]byte} and
// overwrites output bytes at the given offset. No trailing bytes are
// permitted after the last record.
package delta
