package carryless

import (
	"math"
)

// Stats describes one compressed input.
type Stats struct {
	InputBytes     int64
	MessageBits    int64   // header, coded body and trailer
	ContainerBytes int64   // everything written, container header included
	IdealBits      float64 // see IdealBits
}

// Ratio returns the container size as a fraction of the input size.
func (s Stats) Ratio() float64 {
	if s.InputBytes == 0 {
		return math.Inf(1)
	}
	return float64(s.ContainerBytes) / float64(s.InputBytes)
}

// BodyBits returns the size of the message without its header.
func (s Stats) BodyBits() int64 {
	return s.MessageBits - HeaderBits
}

// IdealBits returns the number of bits an exact arithmetic coder would spend on the body of src
// under the model EncodeMessage builds for it, that is the sum of log2(total/width) over the bytes of src.
// The range coded body is never shorter than this, and is usually within a few bytes of it.
func IdealBits(src []byte) float64 {
	freq := BuildFrequencyTable(src)
	cum := freq.Cumulative()
	total := float64(cum.Total())

	var cost [NumSymbols]float64
	for i := range cost {
		_, width := cum.Interval(byte(i))
		if width > 0 {
			cost[i] = math.Log2(total / float64(width))
		}
	}
	var bits float64
	for _, c := range src {
		bits += cost[c]
	}
	return bits
}
