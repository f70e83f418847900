package bitstream

import "io"

// An lsbWriter packs values least significant bit first.
// bits holds the unwritten bits, with the oldest bit in the lowest position.
type lsbWriter struct {
	out   io.ByteWriter
	bits  uint64
	nbits uint8 // always < 8 between calls
}

func (w *lsbWriter) WriteBits(r uint64, n uint8) error {
	w.bits |= lowOrderBits(r, n) << w.nbits
	w.nbits += n
	for w.nbits >= 8 {
		if err := w.out.WriteByte(byte(w.bits)); err != nil {
			return err
		}
		w.bits >>= 8
		w.nbits -= 8
	}
	return nil
}

// Align writes out a partial byte, zero-padded on the high side.
func (w *lsbWriter) Align() (uint8, error) {
	if w.nbits == 0 {
		return 0, nil
	}
	if err := w.out.WriteByte(byte(w.bits)); err != nil {
		return 0, err
	}
	skipped := 8 - w.nbits
	w.bits, w.nbits = 0, 0
	return skipped, nil
}

type lsbReader struct {
	in    io.ByteReader
	bits  uint64
	nbits uint8
}

func (r *lsbReader) ReadBits(n uint8) (uint64, error) {
	for r.nbits < n {
		c, err := r.in.ReadByte()
		if err != nil {
			return 0, err
		}
		r.bits |= uint64(c) << r.nbits
		r.nbits += 8
	}
	u := lowOrderBits(r.bits, n)
	r.bits >>= n
	r.nbits -= n
	return u, nil
}

// lowOrderBits returns the n low-order bits of u.
func lowOrderBits(u uint64, n uint8) uint64 {
	return u & ((uint64(1) << n) - 1)
}
