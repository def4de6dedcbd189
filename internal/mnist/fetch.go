package mnist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMirror serves the original gzipped IDX files.
const DefaultMirror = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// Fetch downloads every dataset file missing from dir. Downloads are checked against
// the published digests before they are moved into place.
func Fetch(ctx context.Context, client *http.Client, dir, mirror string, logger *zap.Logger) error {
	return FetchFiles(ctx, client, dir, mirror, Files(), logger)
}

// FetchFiles downloads the named dataset files that are missing from dir.
func FetchFiles(ctx context.Context, client *http.Client, dir, mirror string, names []string, logger *zap.Logger) error {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "error creating dataset directory %s", dir)
	}
	for _, name := range names {
		digest, ok := digests[name]
		if !ok {
			return errors.Errorf("unknown dataset file '%s'", name)
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "error checking if file '%s' exists", path)
		}
		url := strings.TrimSuffix(mirror, "/") + "/" + name
		n, err := download(ctx, client, url, path, digest)
		if err != nil {
			return err
		}
		logger.Info("downloaded dataset file", zap.String("url", url), zap.String("size", humanize.Bytes(uint64(n))))
	}
	return nil
}

// LoadOrFetch fetches any missing files into dir, then loads them.
func LoadOrFetch(ctx context.Context, dir, mirror string, logger *zap.Logger) (train, test *Set, err error) {
	if err := Fetch(ctx, nil, dir, mirror, logger); err != nil {
		return nil, nil, err
	}
	return Load(dir)
}

// LoadTestOrFetch fetches the test files into dir if missing, then loads the test
// partition alone.
func LoadTestOrFetch(ctx context.Context, dir, mirror string, logger *zap.Logger) (*Set, error) {
	if err := FetchFiles(ctx, nil, dir, mirror, TestFiles(), logger); err != nil {
		return nil, err
	}
	return LoadTest(dir)
}

func download(ctx context.Context, client *http.Client, url, path, digest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "error building request for %s", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "error downloading %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("error downloading %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, errors.Wrapf(err, "error creating %s", path)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Wrapf(err, "error writing %s", path)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != digest {
		return n, errors.Errorf("download of %s has hash %s, want %s", url, got, digest)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, errors.Wrapf(err, "error moving download into %s", path)
	}
	return n, nil
}
