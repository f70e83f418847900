package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/fumin/carryless"
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	w := bufio.NewWriter(os.Stdout)
	if err := carryless.Decompress(w, os.Stdin); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("%+v", err)
	}
}
