package carryless

import (
	"fmt"
	"io"

	"github.com/fumin/carryless/bitstream"
	"github.com/pkg/errors"
)

const (
	// top is the weight of the low byte of the leading output digit.
	// When low and low+rng agree above top, the leading byte of low can never change again and is shifted out.
	top uint32 = 1 << 24

	// bot is the precision floor of rng.
	// A range that drops below bot while its bounds still straddle a top boundary is clamped to the next multiple of bot,
	// so a carry can never reach bytes that were already shifted out.
	bot uint32 = 1 << 16

	// MaxTotal is the largest total frequency the coder accepts.
	// After renormalization rng >= bot, so rng/total is never zero.
	MaxTotal = bot
)

// ErrDecodeInsufficientBits is returned when the input ends before the decoder has read all the bits it needs.
var ErrDecodeInsufficientBits = errors.New("insufficient bits sent to decoder")

// A Pusher is the output side of the bit transport.
type Pusher interface {
	// Push appends the n low-order bits of value.
	Push(value uint32, n int)
}

// A Popper is the input side of the bit transport.
type Popper interface {
	// Pop returns the next n bits.
	Pop(n int) (uint32, error)
}

// An Encoder narrows the interval [low, low+rng) once per symbol and pushes its leading bytes as they settle.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w     Pusher
	low   uint32
	rng   uint32
	dirty bool // an Encode happened since the last Flush
}

// NewEncoder returns an Encoder writing to w.
// Callers must Flush the Encoder once all symbols are encoded, typically with a defer right after NewEncoder.
func NewEncoder(w Pusher) *Encoder {
	return &Encoder{w: w, rng: ^uint32(0)}
}

// Encode narrows the current interval to the sub-interval [start, start+width) out of total.
// It panics unless 0 < width, start+width <= total and total <= MaxTotal,
// since such a call would leave the coder in a state no decoder can follow.
func (e *Encoder) Encode(start, width, total uint32) {
	checkInterval(start, width, total)
	e.dirty = true
	e.rng /= total
	e.low += start * e.rng
	e.rng *= width
	for e.renormalize() {
		e.w.Push(e.low>>24, 8)
		e.rng <<= 8
		e.low <<= 8
	}
}

// renormalize reports whether the leading byte of low must be shifted out.
// It is true when low and low+rng share their leading byte,
// or when rng has fallen under bot, in which case rng is first clamped so that low+rng lands on the next multiple of bot.
func (e *Encoder) renormalize() bool {
	if (e.low ^ (e.low + e.rng)) < top {
		return true
	}
	if e.rng < bot {
		e.rng = -e.low & (bot - 1)
		return true
	}
	return false
}

// Flush writes the four bytes of low, most significant first, and resets the Encoder.
// Flush does nothing if there has been no Encode since the last Flush.
func (e *Encoder) Flush() {
	if !e.dirty {
		return
	}
	for i := 0; i < 4; i++ {
		e.w.Push(e.low>>24, 8)
		e.low <<= 8
	}
	e.low = 0
	e.rng = ^uint32(0)
	e.dirty = false
}

// A Decoder follows the interval narrowing of an Encoder and recovers the frequencies it was fed.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r    Popper
	low  uint32
	rng  uint32
	code uint32
}

// NewDecoder returns a Decoder reading from r.
// The first four bytes of r are consumed to prime the code value.
func NewDecoder(r Popper) (*Decoder, error) {
	d := &Decoder{r: r, rng: ^uint32(0)}
	for i := 0; i < 4; i++ {
		if err := d.shiftIn(); err != nil {
			return nil, errors.Wrap(err, "prime")
		}
	}
	return d, nil
}

// CurrentFrequency scales the interval by total and returns the frequency the code value falls on.
// For a valid input the result is less than total.
// Every call must be followed by a Decode with the same total.
func (d *Decoder) CurrentFrequency(total uint32) uint32 {
	if total == 0 || total > MaxTotal {
		panic(fmt.Sprintf("carryless: bad total frequency %d", total))
	}
	d.rng /= total
	return (d.code - d.low) / d.rng
}

// Decode narrows the interval to [start, start+width) using the scale computed by the preceding CurrentFrequency.
func (d *Decoder) Decode(start, width, total uint32) error {
	checkInterval(start, width, total)
	d.low += start * d.rng
	d.rng *= width
	for d.renormalize() {
		if err := d.shiftIn(); err != nil {
			return err
		}
		d.rng <<= 8
		d.low <<= 8
	}
	return nil
}

// renormalize is the decoder's copy of Encoder.renormalize.
func (d *Decoder) renormalize() bool {
	if (d.low ^ (d.low + d.rng)) < top {
		return true
	}
	if d.rng < bot {
		d.rng = -d.low & (bot - 1)
		return true
	}
	return false
}

func (d *Decoder) shiftIn() error {
	c, err := d.r.Pop(8)
	if err != nil {
		return popError(err)
	}
	d.code = d.code<<8 | c
	return nil
}

// popError reports a transport that ran dry as ErrDecodeInsufficientBits.
func popError(err error) error {
	if cause := errors.Cause(err); cause == bitstream.ErrInsufficientBits || cause == io.EOF {
		return errors.Wrap(ErrDecodeInsufficientBits, err.Error())
	}
	return errors.Wrap(err, "")
}

func checkInterval(start, width, total uint32) {
	if total == 0 || total > MaxTotal {
		panic(fmt.Sprintf("carryless: bad total frequency %d", total))
	}
	if width == 0 || start >= total || width > total-start {
		panic(fmt.Sprintf("carryless: bad interval start %d width %d total %d", start, width, total))
	}
}
