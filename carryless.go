// Package carryless provides an order-0 entropy coder built on the carryless range coder of Dmitry Subbotin (1999).
//
// A message is coded in three parts:
// a header of NumSymbols frequencies, FrequencyBits bits each,
// the range coded body,
// and a four byte trailer flushed from the encoder's low bound.
// The header carries the whole model, so a decoder needs nothing but the bits and the number of bytes to decode.
// The message has no magic number or length, see Compress for a self-describing container.
//
// Below is an example of compressing Lincoln's Gettysburg address:
//
//	go run compress/main.go -verbose gettysburg.txt > gettys.rco
//	cat gettys.rco | go run decompress/main.go > gettys.drco
//	diff gettysburg.txt gettys.drco
//
// Reference:
// D. Subbotin, Carryless Rangecoder, 1999.
package carryless

import (
	"github.com/pkg/errors"
)

// EncodeMessage writes the header and the range coded body of src to w.
// An empty src produces a header and nothing else.
func EncodeMessage(w Pusher, src []byte) {
	freq := BuildFrequencyTable(src)
	WriteHeader(w, &freq)
	cum := freq.Cumulative()
	total := cum.Total()

	enc := NewEncoder(w)
	defer enc.Flush()
	for _, c := range src {
		start, width := cum.Interval(c)
		enc.Encode(start, width, total)
	}
}

// DecodeMessage fills dst with the bytes of a message written by EncodeMessage.
// The caller must size dst to the length of the original input.
func DecodeMessage(r Popper, dst []byte) error {
	md, err := newMessageDecoder(r)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := md.decode(dst); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// A messageDecoder decodes the body of a message in consecutive pieces.
type messageDecoder struct {
	r   Popper
	cum CumulativeTable

	// dec is primed by the first non-empty piece, so an empty message reads nothing past its header.
	dec *Decoder

	// pos is the number of bytes decoded so far.
	pos int
}

func newMessageDecoder(r Popper) (*messageDecoder, error) {
	freq, err := ReadHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &messageDecoder{r: r, cum: freq.Cumulative()}, nil
}

// decode fills dst with the next len(dst) bytes of the message.
func (md *messageDecoder) decode(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if md.dec == nil {
		dec, err := NewDecoder(md.r)
		if err != nil {
			return errors.Wrap(err, "")
		}
		md.dec = dec
	}

	total := md.cum.Total()
	for i := range dst {
		f := md.dec.CurrentFrequency(total)
		sym, start, width, err := md.cum.Lookup(f)
		if err != nil {
			return errors.Wrapf(err, "byte %d", md.pos)
		}
		if err := md.dec.Decode(start, width, total); err != nil {
			return errors.Wrapf(err, "byte %d", md.pos)
		}
		dst[i] = sym
		md.pos++
	}
	return nil
}
