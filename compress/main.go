package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/fumin/carryless"
	"github.com/fumin/carryless/bitstream"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var reverse = flag.Bool("reverse", false, "pack bits least significant first")
var verbose = flag.Bool("verbose", false, "verbosity")
var validate = flag.Bool("validate", false, "decompress the output in memory and compare it with the input")
var compare = flag.Bool("compare", false, "also report the zstd compressed size of the input")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(name); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(name string) error {
	dir := bitstream.Forward
	if *reverse {
		dir = bitstream.Reverse
	}
	src, err := ioutil.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "")
	}

	buf := bytes.NewBuffer(nil)
	start := time.Now()
	stats, err := carryless.CompressBytes(buf, src, dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	elapsed := time.Since(start)

	if *validate {
		decom, err := carryless.DecompressBytes(buf.Bytes())
		if err != nil {
			return errors.Wrap(err, "validate")
		}
		if !bytes.Equal(decom, src) {
			return errors.Errorf("validate: decompressed %d bytes differ from the %d input bytes", len(decom), len(src))
		}
		log.Printf("range coder output validated")
	}

	if *verbose {
		mbps := float64(stats.InputBytes) / 1e6 / elapsed.Seconds()
		log.Printf("%s: %d -> %d bytes, ratio %f, %s direction, %.2f MB/s", name, stats.InputBytes, stats.ContainerBytes, stats.Ratio(), dir, mbps)
		log.Printf("body %d bits, ideal %.1f bits, header %d bits", stats.BodyBits(), stats.IdealBits, carryless.HeaderBits)
	}

	if *compare {
		size, err := zstdSize(src)
		if err != nil {
			return errors.Wrap(err, "")
		}
		log.Printf("zstd %d bytes, carryless %d bytes", size, stats.ContainerBytes)
	}

	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func zstdSize(src []byte) (int, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	defer enc.Close()
	return len(enc.EncodeAll(src, nil)), nil
}
