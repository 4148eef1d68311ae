package decode

import "io"

// bitReader reads an MSB-first bitstream. It backs the hand-rolled,
// UPER-inspired subset used to decode the handful of LTE RRC messages this
// decoder understands (SIB1/SIB6/SIB7 presence, RRCConnectionRelease,
// SecurityModeCommand, Paging). It is not a conformant ASN.1 UPER codec --
// no generator for that exists anywhere in the example pack and hand-rolling
// a spec-complete one is out of scope -- it is a small, self-consistent,
// bit-packed layout documented next to each decodeXxx function in rrc.go.
//
// Every read is bounds-checked; running past the end of the buffer returns
// io.ErrUnexpectedEOF rather than panicking, satisfying the "fail closed"
// requirement in spec.md §4.4/§9.
type bitReader struct {
	data []byte
	pos  int // bit offset from start of data
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// ReadBit returns the next bit (0 or 1).
func (r *bitReader) ReadBit() (uint8, error) {
	byteIdx := r.pos / 8
	if byteIdx >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	bitIdx := 7 - uint(r.pos%8)
	bit := (r.data[byteIdx] >> bitIdx) & 1
	r.pos++
	return bit, nil
}

// ReadUint reads n bits (0 <= n <= 64) as a big-endian unsigned integer.
func (r *bitReader) ReadUint(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for i := 0; i < n; i++ {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | uint64(b)
	}
	return v, nil
}

// ReadBool reads a single presence/flag bit.
func (r *bitReader) ReadBool() (bool, error) {
	b, err := r.ReadBit()
	if err != nil {
		return false, err
	}
	return b == 1, nil
}

// Remaining reports how many whole bits are left unread.
func (r *bitReader) Remaining() int {
	total := len(r.data) * 8
	if r.pos >= total {
		return 0
	}
	return total - r.pos
}
