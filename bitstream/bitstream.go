// Package bitstream provides the packetized bit transport the range coder writes to and reads from.
//
// A PushStream packs values of up to 32 bits into bytes, gathers the bytes into fixed size packets
// and hands every completed packet to a caller supplied handler.
// A PopStream performs the inverse, pulling packets from a handler whenever it runs out of bits.
// The same Direction must be used on both ends.
package bitstream

import (
	"fmt"
	"io"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// DefaultPacketSize is the packet size in bytes used when a PushConfig does not specify one.
const DefaultPacketSize = 4096

// ErrInsufficientBits is returned by Pop when the input handler runs dry before the requested bits are available.
var ErrInsufficientBits = errors.New("insufficient bits in stream")

// A Direction is the bit ordering of a stream.
type Direction int

const (
	// Forward writes the most significant bit of a value first, filling each byte from its high bit.
	Forward Direction = iota
	// Reverse writes the least significant bit of a value first, filling each byte from its low bit.
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection returns the Direction named by s.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	}
	return 0, errors.Errorf("unknown direction %q", s)
}

// A PushConfig configures a PushStream.
type PushConfig struct {
	// PacketSize is the number of bytes in a completed packet.
	PacketSize int

	// OutputHandler receives every packet. The stream does not retain or modify a packet after handing it over.
	OutputHandler func(packet []byte) error
}

// A PopConfig configures a PopStream.
type PopConfig struct {
	// InputHandler returns the next packet, or io.EOF when there are none left.
	InputHandler func() ([]byte, error)
}

type bitWriter interface {
	WriteBits(r uint64, n uint8) error
	Align() (skipped uint8, err error)
}

type bitReader interface {
	ReadBits(n uint8) (uint64, error)
}

// A PushStream is the writing end of the transport.
// Errors from the output handler are sticky and reported by Flush and Err.
// A PushStream is not safe for concurrent use.
type PushStream struct {
	dir  Direction
	pw   *packetWriter
	w    bitWriter
	size int64
	err  error
}

// NewPushStream returns a PushStream with the given bit ordering.
func NewPushStream(dir Direction, cfg PushConfig) *PushStream {
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = DefaultPacketSize
	}
	pw := &packetWriter{size: cfg.PacketSize, handler: cfg.OutputHandler}
	s := &PushStream{dir: dir, pw: pw}
	switch dir {
	case Reverse:
		s.w = &lsbWriter{out: pw}
	default:
		s.w = bitio.NewWriter(pw)
	}
	return s
}

// Push appends the n low-order bits of value to the stream. n must be in [0, 32].
func (s *PushStream) Push(value uint32, n int) {
	if n < 0 || n > 32 {
		panic(fmt.Sprintf("bitstream: bad number of bits to push: %d", n))
	}
	if s.err != nil || n == 0 {
		return
	}
	if err := s.w.WriteBits(uint64(value), uint8(n)); err != nil {
		s.err = errors.Wrap(err, "push")
		return
	}
	s.size += int64(n)
}

// Flush pads the last partial byte with zero bits and emits the partial packet, if any.
func (s *PushStream) Flush() error {
	if s.err != nil {
		return s.err
	}
	skipped, err := s.w.Align()
	if err != nil {
		s.err = errors.Wrap(err, "flush")
		return s.err
	}
	s.size += int64(skipped)
	if err := s.pw.flush(); err != nil {
		s.err = errors.Wrap(err, "flush")
		return s.err
	}
	return nil
}

// Size returns the number of bits emitted so far, including the padding written by Flush.
func (s *PushStream) Size() int64 {
	return s.size
}

// Direction returns the bit ordering of the stream.
func (s *PushStream) Direction() Direction {
	return s.dir
}

// Err returns the first error encountered by the stream.
func (s *PushStream) Err() error {
	return s.err
}

// A PopStream is the reading end of the transport.
// A PopStream is not safe for concurrent use.
type PopStream struct {
	dir  Direction
	r    bitReader
	size int64
}

// NewPopStream returns a PopStream with the given bit ordering.
func NewPopStream(dir Direction, cfg PopConfig) *PopStream {
	pr := &packetReader{next: cfg.InputHandler}
	s := &PopStream{dir: dir}
	switch dir {
	case Reverse:
		s.r = &lsbReader{in: pr}
	default:
		s.r = bitio.NewReader(pr)
	}
	return s
}

// Pop returns the next n bits of the stream as the low-order bits of the result. n must be in [0, 32].
func (s *PopStream) Pop(n int) (uint32, error) {
	if n < 0 || n > 32 {
		panic(fmt.Sprintf("bitstream: bad number of bits to pop: %d", n))
	}
	if n == 0 {
		return 0, nil
	}
	u, err := s.r.ReadBits(uint8(n))
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, errors.Wrapf(ErrInsufficientBits, "pop %d bits after %d", n, s.size)
		}
		return 0, errors.Wrap(err, "pop")
	}
	s.size += int64(n)
	return uint32(u), nil
}

// Size returns the number of bits popped so far.
func (s *PopStream) Size() int64 {
	return s.size
}

// Direction returns the bit ordering of the stream.
func (s *PopStream) Direction() Direction {
	return s.dir
}

// packetWriter gathers bytes into packets of a fixed size.
type packetWriter struct {
	size    int
	handler func([]byte) error
	buf     []byte
}

func (w *packetWriter) WriteByte(c byte) error {
	if w.buf == nil {
		w.buf = make([]byte, 0, w.size)
	}
	w.buf = append(w.buf, c)
	if len(w.buf) == w.size {
		return w.flush()
	}
	return nil
}

func (w *packetWriter) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := w.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (w *packetWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	packet := w.buf
	w.buf = nil
	if w.handler == nil {
		return nil
	}
	return w.handler(packet)
}

// packetReader serves bytes from packets pulled on demand.
type packetReader struct {
	next func() ([]byte, error)
	buf  []byte
	err  error
}

func (r *packetReader) ReadByte() (byte, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.next == nil {
			r.err = io.EOF
			continue
		}
		r.buf, r.err = r.next()
	}
	c := r.buf[0]
	r.buf = r.buf[1:]
	return c, nil
}

func (r *packetReader) Read(p []byte) (int, error) {
	for i := range p {
		c, err := r.ReadByte()
		if err != nil {
			if i > 0 {
				return i, nil
			}
			return 0, err
		}
		p[i] = c
	}
	return len(p), nil
}
