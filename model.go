package carryless

import (
	"github.com/pkg/errors"
)

const (
	// NumSymbols is the size of the alphabet, one symbol per byte value.
	NumSymbols = 256

	// MaxCumulativeTotal is the precision budget of a FrequencyTable.
	// A table is rescaled as soon as its sum reaches this value, so a finished table sums to less than it,
	// and the coder's total, one more than the sum, never exceeds it.
	MaxCumulativeTotal = 16384

	// MaxFrequency is the count at which a single symbol forces a rescale.
	// Finished tables hold entries below it, which fit in FrequencyBits bits.
	MaxFrequency = 1023

	// FrequencyBits is the width of one header entry.
	FrequencyBits = 10

	// HeaderBits is the size of a message header.
	HeaderBits = NumSymbols * FrequencyBits
)

// ErrCorrupted is returned when the input holds a header or code value that no encoder could have produced.
var ErrCorrupted = errors.New("corrupted input")

// A FrequencyTable holds the occurrence weight of every byte value.
type FrequencyTable [NumSymbols]uint32

// BuildFrequencyTable counts the bytes of src in one pass, rescaling whenever a count reaches MaxFrequency
// or the running total reaches MaxCumulativeTotal.
func BuildFrequencyTable(src []byte) FrequencyTable {
	var t FrequencyTable
	var total uint32
	for _, c := range src {
		total++
		t[c]++
		if t[c] >= MaxFrequency || total >= MaxCumulativeTotal {
			total = t.Rescale()
		}
	}
	return t
}

// Rescale halves every entry, keeping entries of 1 at 1 so that no symbol seen so far drops to zero.
// It returns the new sum.
func (t *FrequencyTable) Rescale() uint32 {
	var total uint32
	for i, v := range t {
		v /= 2
		if t[i] == 1 {
			v = 1
		}
		t[i] = v
		total += v
	}
	return total
}

// Sum returns the sum of all entries.
func (t *FrequencyTable) Sum() uint32 {
	var total uint32
	for _, v := range t {
		total += v
	}
	return total
}

// Cumulative returns the prefix sums of t.
func (t *FrequencyTable) Cumulative() CumulativeTable {
	var c CumulativeTable
	var total uint32
	for i, v := range t {
		total += v
		c.cum[i] = total
	}
	c.total = total + 1
	return c
}

// WriteHeader pushes the entries of t in symbol order, FrequencyBits bits each.
func WriteHeader(w Pusher, t *FrequencyTable) {
	for _, v := range t {
		w.Push(v, FrequencyBits)
	}
}

// ReadHeader pops a table written by WriteHeader.
// Tables that BuildFrequencyTable cannot produce are rejected with ErrCorrupted.
func ReadHeader(r Popper) (FrequencyTable, error) {
	var t FrequencyTable
	var total uint32
	for i := range t {
		v, err := r.Pop(FrequencyBits)
		if err != nil {
			return FrequencyTable{}, errors.Wrapf(popError(err), "header entry %d", i)
		}
		if v >= MaxFrequency {
			return FrequencyTable{}, errors.Wrapf(ErrCorrupted, "header entry %d is %d", i, v)
		}
		t[i] = v
		total += v
	}
	if total >= MaxCumulativeTotal {
		return FrequencyTable{}, errors.Wrapf(ErrCorrupted, "header total %d", total)
	}
	return t, nil
}

// A CumulativeTable maps symbols to their coding intervals and coded frequencies back to symbols.
// Entry i is the sum of the frequencies of symbols 0 through i.
type CumulativeTable struct {
	cum [NumSymbols]uint32

	// total is one more than cum[NumSymbols-1].
	// The extra unit keeps the last symbol's interval strictly inside the coder's range,
	// and leaves the frequencies in [cum[NumSymbols-1], total) to no symbol.
	total uint32
}

// Total returns the total frequency the coder is driven with.
func (c *CumulativeTable) Total() uint32 {
	return c.total
}

// At returns the cumulative frequency of symbols 0 through sym.
func (c *CumulativeTable) At(sym byte) uint32 {
	return c.cum[sym]
}

// Interval returns the coding interval of sym.
// The width is zero for symbols that never occurred.
func (c *CumulativeTable) Interval(sym byte) (start, width uint32) {
	if sym > 0 {
		start = c.cum[sym-1]
	}
	return start, c.cum[sym] - start
}

// Lookup returns the symbol whose interval contains the frequency f, along with that interval.
// Zero width intervals never contain anything, so symbols that did not occur are never returned.
// A frequency past every interval is reported as ErrCorrupted.
func (c *CumulativeTable) Lookup(f uint32) (sym byte, start, width uint32, err error) {
	// Find the smallest m with cum[m] > f.
	a, b := 0, NumSymbols
	for a < b {
		m := int(uint(a+b) >> 1)
		if c.cum[m] <= f {
			a = m + 1
		} else {
			b = m
		}
	}
	m := a
	if m == NumSymbols {
		return 0, 0, 0, errors.Wrapf(ErrCorrupted, "frequency %d, total %d", f, c.total)
	}
	for m > 0 && c.cum[m-1] == c.cum[m] {
		m--
	}
	sym = byte(m)
	start, width = c.Interval(sym)
	return sym, start, width, nil
}
