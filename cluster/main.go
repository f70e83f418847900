// Command cluster prints the normalized compression distance between every pair of files in a directory.
//
// The distance of x and y is (C(xy) - min(C(x), C(y))) / max(C(x), C(y)),
// where C is the compressed size under the chosen compressor.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"io/ioutil"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fumin/carryless"
	"github.com/fumin/carryless/bitstream"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var (
	flagConfig = flag.String("c", `{
		"Data": "mammals10",
		"Intelligence": "carryless",
		"Workers": 4,
		"CacheSize": 1024
		}`, "configuration")
)

// Config is the JSON configuration passed in the -c flag.
type Config struct {
	// Data is the directory holding the files to compare.
	Data string
	// Intelligence is the compressor estimating complexity, "carryless" or "zstd".
	Intelligence string
	// Workers is the number of file pairs compared concurrently.
	Workers int
	// CacheSize is the number of single file complexities kept in the LRU cache.
	CacheSize int
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	var config Config
	if err := json.Unmarshal([]byte(*flagConfig), &config); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, ""))
	}
	if err := run(config); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(config Config) error {
	data, err := listFiles(config.Data)
	if err != nil {
		return errors.Wrap(err, "")
	}
	est, err := newEstimator(config)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer est.close()
	distMat, err := distanceMatrix(est, config.Workers, data)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := display(data, distMat); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func display(data []string, distMat []float64) error {
	// Print data as a comma separated array.
	buf := bytes.NewBuffer(nil)
	for i, fpath := range data {
		name := filepath.Base(fpath)
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := buf.WriteString(strconv.Quote(base)); err != nil {
			return errors.Wrap(err, "")
		}
		if i == len(data)-1 {
			break
		}
		if err := buf.WriteByte(','); err != nil {
			return errors.Wrap(err, "")
		}
	}
	log.Printf("[%s]", buf.Bytes())

	// Print distance matrix as a comma separated array.
	buf.Reset()
	for i, f := range distMat {
		if _, err := buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64)); err != nil {
			return errors.Wrap(err, "")
		}
		if i == len(distMat)-1 {
			break
		}
		if err := buf.WriteByte(','); err != nil {
			return errors.Wrap(err, "")
		}
	}
	log.Printf("[%s]", buf.Bytes())

	return nil
}

// An estimator measures complexity as compressed size.
// It is safe for concurrent use.
type estimator struct {
	intelligence string
	zenc         *zstd.Encoder

	// cache holds the complexity of single files, keyed by path.
	cache *lru.Cache[string, float64]
}

func newEstimator(config Config) (*estimator, error) {
	est := &estimator{intelligence: config.Intelligence}
	switch config.Intelligence {
	case "carryless":
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		est.zenc = enc
	default:
		return nil, errors.Errorf("unknown intelligence %q", config.Intelligence)
	}

	size := config.CacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	est.cache = cache
	return est, nil
}

func (est *estimator) close() {
	if est.zenc != nil {
		est.zenc.Close()
	}
}

func (est *estimator) complexity(b []byte) (float64, error) {
	if est.zenc != nil {
		return float64(len(est.zenc.EncodeAll(b, nil))), nil
	}
	stats, err := carryless.CompressBytes(io.Discard, b, bitstream.Forward)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	return float64(stats.ContainerBytes), nil
}

func (est *estimator) fileComplexity(fpath string, b []byte) (float64, error) {
	if size, ok := est.cache.Get(fpath); ok {
		return size, nil
	}
	size, err := est.complexity(b)
	if err != nil {
		return -1, errors.Wrap(err, fpath)
	}
	est.cache.Add(fpath, size)
	return size, nil
}

func (est *estimator) distance(x, y string) (float64, error) {
	bx, err := ioutil.ReadFile(x)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	by, err := ioutil.ReadFile(y)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}

	xy := make([]byte, 0, len(bx)+len(by))
	xy = append(xy, bx...)
	xy = append(xy, by...)
	kxy, err := est.complexity(xy)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	kx, err := est.fileComplexity(x, bx)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	ky, err := est.fileComplexity(y, by)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}

	minxy, maxxy := kx, ky
	if ky < kx {
		minxy, maxxy = ky, kx
	}
	dist := (kxy - minxy) / maxxy
	return dist, nil
}

// distanceMatrix returns the upper triangle of the distance matrix of data, row by row.
func distanceMatrix(est *estimator, workers int, data []string) ([]float64, error) {
	type pair struct{ i, j int }
	n := len(data)
	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}
	if workers <= 0 {
		workers = 1
	}

	mat := make([]float64, len(pairs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				dx, dy := data[pairs[k].i], data[pairs[k].j]
				dist, err := est.distance(dx, dy)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = errors.Wrapf(err, "%s %s", dx, dy)
					}
					mu.Unlock()
					continue
				}
				mat[k] = dist
				log.Printf("%q-%q: %f", dx, dy, dist)
			}
		}()
	}
	for k := range pairs {
		jobs <- k
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return mat, nil
}

func listFiles(dir string) ([]string, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	data := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		fpath := filepath.Join(dir, f.Name())
		data = append(data, fpath)
	}
	return data, nil
}
