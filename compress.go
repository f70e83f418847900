package carryless

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"math"

	"github.com/fumin/carryless/bitstream"
	"github.com/pkg/errors"
)

// magic starts every container written by Compress.
const magic = "RCO0"

// maxContainerLen bounds the decoded length a container may claim.
const maxContainerLen = 1 << 40

// decodeChunkSize is the number of bytes Decompress decodes before writing them out.
const decodeChunkSize = 1 << 16

// ErrInvalidMagic is returned by Decompress when its input is not a container written by Compress.
var ErrInvalidMagic = errors.New("not a carryless container")

// Compress compresses the file name and writes the resulting container to w.
func Compress(w io.Writer, name string, dir bitstream.Direction) (Stats, error) {
	src, err := ioutil.ReadFile(name)
	if err != nil {
		return Stats{}, errors.Wrap(err, "")
	}
	return CompressBytes(w, src, dir)
}

// CompressBytes writes a container holding src to w.
// A container is the magic "RCO0", one byte naming the bit direction, the length of src as a uvarint,
// and the message written by EncodeMessage.
func CompressBytes(w io.Writer, src []byte, dir bitstream.Direction) (Stats, error) {
	bw := bufio.NewWriter(w)
	var hdr [len(magic) + 1 + binary.MaxVarintLen64]byte
	n := copy(hdr[:], magic)
	hdr[n] = byte(dir)
	n++
	n += binary.PutUvarint(hdr[n:], uint64(len(src)))
	if _, err := bw.Write(hdr[:n]); err != nil {
		return Stats{}, errors.Wrap(err, "")
	}

	stream := bitstream.NewPushStream(dir, bitstream.PushConfig{
		OutputHandler: func(packet []byte) error {
			_, err := bw.Write(packet)
			return err
		},
	})
	EncodeMessage(stream, src)
	if err := stream.Flush(); err != nil {
		return Stats{}, errors.Wrap(err, "")
	}
	if err := bw.Flush(); err != nil {
		return Stats{}, errors.Wrap(err, "")
	}

	stats := Stats{
		InputBytes:     int64(len(src)),
		MessageBits:    stream.Size(),
		ContainerBytes: int64(n) + (stream.Size()+7)/8,
		IdealBits:      IdealBits(src),
	}
	return stats, nil
}

// Decompress reads a container written by Compress from r and writes the original bytes to w.
// Output is written in chunks as it is decoded, so on error w may hold a prefix of the original bytes.
func Decompress(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)
	dir, size, err := readContainerHeader(br)
	if err != nil {
		return errors.Wrap(err, "")
	}

	buf := make([]byte, bitstream.DefaultPacketSize)
	stream := bitstream.NewPopStream(dir, bitstream.PopConfig{
		InputHandler: func() ([]byte, error) {
			n, err := br.Read(buf)
			if n > 0 {
				return buf[:n], nil
			}
			return nil, err
		},
	})
	md, err := newMessageDecoder(stream)
	if err != nil {
		return errors.Wrap(err, "")
	}
	chunk := make([]byte, min(size, decodeChunkSize))
	for size > 0 {
		n := min(size, len(chunk))
		if err := md.decode(chunk[:n]); err != nil {
			return errors.Wrap(err, "")
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return errors.Wrap(err, "")
		}
		size -= n
	}
	return nil
}

// DecompressBytes returns the original bytes of the container b.
func DecompressBytes(b []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := Decompress(&out, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readContainerHeader(br *bufio.Reader) (bitstream.Direction, int, error) {
	var m [len(magic)]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, errors.Wrap(ErrInvalidMagic, err.Error())
		}
		return 0, 0, errors.Wrap(err, "")
	}
	if string(m[:]) != magic {
		return 0, 0, errors.Wrapf(ErrInvalidMagic, "magic %q", m[:])
	}
	d, err := br.ReadByte()
	if err != nil {
		return 0, 0, errors.Wrap(ErrDecodeInsufficientBits, "direction")
	}
	dir := bitstream.Direction(d)
	if dir != bitstream.Forward && dir != bitstream.Reverse {
		return 0, 0, errors.Wrapf(ErrCorrupted, "direction %d", d)
	}
	size, err := binary.ReadUvarint(br)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, 0, errors.Wrap(ErrDecodeInsufficientBits, "length")
		}
		return 0, 0, errors.Wrapf(ErrCorrupted, "length: %v", err)
	}
	if size > maxContainerLen || size > math.MaxInt {
		return 0, 0, errors.Wrapf(ErrCorrupted, "length %d", size)
	}
	return dir, int(size), nil
}
