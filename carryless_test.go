package carryless

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/fumin/carryless/bitstream"
	"github.com/pkg/errors"
)

func encodeMessage(t testing.TB, dir bitstream.Direction, packetSize int, src []byte) *bitstream.Queue {
	t.Helper()
	q := bitstream.NewQueue()
	w := bitstream.NewPushStream(dir, bitstream.PushConfig{PacketSize: packetSize, OutputHandler: q.Push})
	EncodeMessage(w, src)
	if err := w.Flush(); err != nil {
		t.Fatalf("%+v", err)
	}
	return q
}

func decodeMessage(dir bitstream.Direction, q *bitstream.Queue, n int) ([]byte, error) {
	r := bitstream.NewPopStream(dir, bitstream.PopConfig{InputHandler: q.Pop})
	dst := make([]byte, n)
	if err := DecodeMessage(r, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func TestRoundTrip(t *testing.T) {
	gettys, err := ioutil.ReadFile("gettysburg.txt")
	if err != nil {
		t.Fatalf("%v", err)
	}
	tests := []struct {
		name string
		src  []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"zero byte", []byte{0x00}},
		{"ff byte", []byte{0xff}},
		{"one symbol", repeat(0x41, 10000)},
		{"two symbols", append(repeat(0x00, 5000), repeat(0xff, 3)...)},
		{"panama", []byte("a man a plan a canal panama")},
		{"all bytes", allBytes()},
		{"skewed", skewed()},
		{"lcg", lcg(1, 20000)},
		{"gettysburg", gettys},
		{"gettysburg x40", bytes.Repeat(gettys, 40)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, dir := range []bitstream.Direction{bitstream.Forward, bitstream.Reverse} {
				for _, packetSize := range []int{1, 13, bitstream.DefaultPacketSize} {
					q := encodeMessage(t, dir, packetSize, tc.src)
					got, err := decodeMessage(dir, q, len(tc.src))
					if err != nil {
						t.Fatalf("%s %d: %+v", dir, packetSize, err)
					}
					if !bytes.Equal(got, tc.src) {
						t.Errorf("%s %d: round trip of %d bytes failed", dir, packetSize, len(tc.src))
					}
					if q.Len() != 0 {
						t.Errorf("%s %d: %d packets left over", dir, packetSize, q.Len())
					}
				}
			}
		})
	}
}

func TestDecodeInPieces(t *testing.T) {
	src := lcg(2, 5000)
	for _, dir := range []bitstream.Direction{bitstream.Forward, bitstream.Reverse} {
		q := encodeMessage(t, dir, 0, src)
		r := bitstream.NewPopStream(dir, bitstream.PopConfig{InputHandler: q.Pop})
		md, err := newMessageDecoder(r)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		got := make([]byte, 0, len(src))
		for _, n := range []int{0, 1, 7, 0, 1000, 3992} {
			piece := make([]byte, n)
			if err := md.decode(piece); err != nil {
				t.Fatalf("%s: %+v", dir, err)
			}
			got = append(got, piece...)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("%s: piecewise decoding differs", dir)
		}
		if q.Len() != 0 {
			t.Errorf("%s: %d packets left over", dir, q.Len())
		}
	}
}

func TestEmptyMessage(t *testing.T) {
	q := encodeMessage(t, bitstream.Forward, 0, nil)
	b := q.Bytes()
	if len(b) != HeaderBits/8 {
		t.Fatalf("%d != %d", len(b), HeaderBits/8)
	}
	for i, c := range b {
		if c != 0 {
			t.Errorf("%d: %#x", i, c)
		}
	}

	got, err := decodeMessage(bitstream.Forward, q, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(got) != 0 {
		t.Errorf("%v", got)
	}
}

func TestRepeatedSize(t *testing.T) {
	src := repeat(0x41, 10000)
	q := encodeMessage(t, bitstream.Forward, 0, src)
	n := len(q.Bytes())
	if n != HeaderBits/8+6 {
		t.Errorf("%d != %d", n, HeaderBits/8+6)
	}
	t.Logf("ratio %f, header share %f", float64(n)/float64(len(src)), float64(HeaderBits/8)/float64(n))
}

// TestTruncated checks that losing the last byte of a message is reported rather than decoded into garbage.
func TestTruncated(t *testing.T) {
	inputs := [][]byte{[]byte("A"), []byte("a man a plan a canal panama"), skewed(), allBytes(), lcg(4, 200), repeat(0x41, 10000)}
	for i, src := range inputs {
		for _, dir := range []bitstream.Direction{bitstream.Forward, bitstream.Reverse} {
			b := encodeMessage(t, dir, 0, src).Bytes()
			q := bitstream.NewQueue(b[:len(b)-1])
			_, err := decodeMessage(dir, q, len(src))
			if errors.Cause(err) != ErrDecodeInsufficientBits {
				t.Errorf("%d %s: %+v", i, dir, err)
			}
		}
	}
}

func TestDecodeCorruptedBody(t *testing.T) {
	// The table of a lone 'A' has total 2, and a code value of all ones lands on the extra unit.
	q := encodeMessage(t, bitstream.Forward, 0, []byte("A"))
	b := q.Bytes()
	for i := HeaderBits / 8; i < len(b); i++ {
		b[i] = 0xff
	}
	_, err := decodeMessage(bitstream.Forward, bitstream.NewQueue(b), 1)
	if errors.Cause(err) != ErrCorrupted {
		t.Errorf("%+v", err)
	}
}

func TestDecodeCorruptedHeader(t *testing.T) {
	b := encodeMessage(t, bitstream.Forward, 0, []byte("a man a plan a canal panama")).Bytes()
	for i := 0; i < HeaderBits/8; i++ {
		b[i] = 0xff
	}
	_, err := decodeMessage(bitstream.Forward, bitstream.NewQueue(b), 27)
	if errors.Cause(err) != ErrCorrupted {
		t.Errorf("%+v", err)
	}
}

func TestWrongDirection(t *testing.T) {
	src := []byte("a man a plan a canal panama")
	q := encodeMessage(t, bitstream.Forward, 0, src)
	got, err := decodeMessage(bitstream.Reverse, q, len(src))
	if err == nil && bytes.Equal(got, src) {
		t.Errorf("decoded with the wrong direction")
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("a"))
	f.Add([]byte("a man a plan a canal panama"))
	f.Add(allBytes())
	f.Add(skewed())
	f.Add(lcg(4, 200))

	f.Fuzz(func(t *testing.T, src []byte) {
		for _, dir := range []bitstream.Direction{bitstream.Forward, bitstream.Reverse} {
			q := encodeMessage(t, dir, 0, src)
			got, err := decodeMessage(dir, q, len(src))
			if err != nil {
				t.Fatalf("%s: %+v", dir, err)
			}
			if !bytes.Equal(got, src) {
				t.Fatalf("%s: %x != %x", dir, got, src)
			}
		}
	})
}

func BenchmarkEncodeMessage(b *testing.B) {
	src := lcg(1, 1<<20)
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		encodeMessage(b, bitstream.Forward, 0, src)
	}
}

func BenchmarkDecodeMessage(b *testing.B) {
	src := lcg(1, 1<<20)
	msg := encodeMessage(b, bitstream.Forward, 0, src).Bytes()
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decodeMessage(bitstream.Forward, bitstream.NewQueue(msg), len(src)); err != nil {
			b.Fatalf("%+v", err)
		}
	}
}
