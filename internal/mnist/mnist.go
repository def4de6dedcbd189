// Package mnist loads the MNIST handwritten digit dataset from its four gzipped IDX
// files, downloading and verifying them when they are missing.
package mnist

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ImgSize is the side of an MNIST image.
const ImgSize = 28

// DefaultDir is where the dataset files are looked for and downloaded to.
const DefaultDir = "/tmp/mnist/"

const (
	trainSetImg = "train-images-idx3-ubyte.gz"
	trainSetVal = "train-labels-idx1-ubyte.gz"
	inferSetImg = "t10k-images-idx3-ubyte.gz"
	inferSetVal = "t10k-labels-idx1-ubyte.gz"
)

// digests are the sha256 sums of the published files.
var digests = map[string]string{
	trainSetImg: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainSetVal: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	inferSetImg: "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	inferSetVal: "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Files lists the dataset file names.
func Files() []string {
	return []string{trainSetImg, trainSetVal, inferSetImg, inferSetVal}
}

// TestFiles lists the files of the test partition only.
func TestFiles() []string {
	return []string{inferSetImg, inferSetVal}
}

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// Set is one partition of the dataset. Images are stored back to back, one byte
// per pixel in row-major order.
type Set struct {
	Images []byte
	Labels []byte
}

// Len is the number of samples.
func (s *Set) Len() int {
	return len(s.Labels)
}

// Image returns the raw pixels of sample i.
func (s *Set) Image(i int) []byte {
	const size = ImgSize * ImgSize
	return s.Images[i*size : (i+1)*size]
}

// Label returns the digit of sample i.
func (s *Set) Label(i int) int {
	return int(s.Labels[i])
}

// Sample writes the pixels of sample i scaled to [0,1] into dst and returns its label.
func (s *Set) Sample(i int, dst []float64) int {
	for p, v := range s.Image(i) {
		dst[p] = float64(v) / 255
	}
	return s.Label(i)
}

// Load reads the train and test partitions from dir, verifying every file against
// its published digest.
func Load(dir string) (train, test *Set, err error) {
	if err := verifyAll(dir, Files()); err != nil {
		return nil, nil, err
	}
	train, err = readSet(filepath.Join(dir, trainSetImg), filepath.Join(dir, trainSetVal))
	if err != nil {
		return nil, nil, errors.Wrap(err, "error loading train set")
	}
	test, err = readTest(dir)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// LoadTest reads only the test partition from dir. The train files need not exist.
func LoadTest(dir string) (*Set, error) {
	if err := verifyAll(dir, TestFiles()); err != nil {
		return nil, err
	}
	return readTest(dir)
}

func readTest(dir string) (*Set, error) {
	test, err := readSet(filepath.Join(dir, inferSetImg), filepath.Join(dir, inferSetVal))
	if err != nil {
		return nil, errors.Wrap(err, "error loading test set")
	}
	return test, nil
}

func verifyAll(dir string, names []string) error {
	for _, name := range names {
		if err := verify(filepath.Join(dir, name), digests[name]); err != nil {
			return err
		}
	}
	return nil
}

func verify(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open file to check file '%s'", path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(err, "cannot hash file '%s'", path)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return errors.Errorf("file hash for file '%s' is incorrect: %s", path, got)
	}
	return nil
}

func readSet(imgPath, lblPath string) (*Set, error) {
	img, err := ungzip(imgPath)
	if err != nil {
		return nil, err
	}
	lbl, err := ungzip(lblPath)
	if err != nil {
		return nil, err
	}

	if len(img) < 16 || binary.BigEndian.Uint32(img) != imagesMagic {
		return nil, errors.Errorf("'%s' is not an IDX image file", imgPath)
	}
	count := int(binary.BigEndian.Uint32(img[4:]))
	rows, cols := binary.BigEndian.Uint32(img[8:]), binary.BigEndian.Uint32(img[12:])
	if rows != ImgSize || cols != ImgSize {
		return nil, errors.Errorf("'%s' holds %dx%d images, want %dx%d", imgPath, rows, cols, ImgSize, ImgSize)
	}
	img = img[16:]
	if len(img) != count*ImgSize*ImgSize {
		return nil, errors.Errorf("'%s' is truncated: %d bytes for %d images", imgPath, len(img), count)
	}

	if len(lbl) < 8 || binary.BigEndian.Uint32(lbl) != labelsMagic {
		return nil, errors.Errorf("'%s' is not an IDX label file", lblPath)
	}
	lbl = lbl[8:]
	if len(lbl) != count {
		return nil, errors.Errorf("'%s' has %d labels for %d images", lblPath, len(lbl), count)
	}
	for i, l := range lbl {
		if l > 9 {
			return nil, errors.Errorf("'%s': label %d of sample %d out of range", lblPath, l, i)
		}
	}
	return &Set{Images: img, Labels: lbl}, nil
}

func ungzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open '%s'", path)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "gzip file '%s'", path)
	}
	defer gz.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(gz); err != nil {
		return nil, errors.Wrapf(err, "buffering file '%s'", path)
	}
	return buf.Bytes(), nil
}
