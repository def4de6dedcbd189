package mnist

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, header []uint32, body []byte) []byte {
	var raw bytes.Buffer
	for _, v := range header {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write(body)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// fakeFiles builds a tiny dataset of count images where image i is filled with i.
func fakeFiles(t *testing.T, count int) map[string][]byte {
	pixels := make([]byte, 0, count*ImgSize*ImgSize)
	labels := make([]byte, count)
	for i := 0; i < count; i++ {
		pixels = append(pixels, bytes.Repeat([]byte{byte(i)}, ImgSize*ImgSize)...)
		labels[i] = byte(i % 10)
	}
	imgs := gzipped(t, []uint32{imagesMagic, uint32(count), ImgSize, ImgSize}, pixels)
	lbls := gzipped(t, []uint32{labelsMagic, uint32(count)}, labels)
	return map[string][]byte{
		trainSetImg: imgs,
		trainSetVal: lbls,
		inferSetImg: imgs,
		inferSetVal: lbls,
	}
}

func writeFiles(t *testing.T, dir string, files map[string][]byte) {
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}

// useDigests points the package digests at files for the duration of a test.
func useDigests(t *testing.T, files map[string][]byte) {
	saved := digests
	digests = map[string]string{}
	for name, data := range files {
		sum := sha256.Sum256(data)
		digests[name] = hex.EncodeToString(sum[:])
	}
	t.Cleanup(func() { digests = saved })
}

func TestReadSet(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, fakeFiles(t, 12))

	set, err := readSet(filepath.Join(dir, trainSetImg), filepath.Join(dir, trainSetVal))
	require.NoError(t, err)
	require.Equal(t, 12, set.Len())
	assert.Equal(t, 1, set.Label(11))
	assert.Equal(t, bytes.Repeat([]byte{11}, ImgSize*ImgSize), set.Image(11))

	dst := make([]float64, ImgSize*ImgSize)
	label := set.Sample(5, dst)
	assert.Equal(t, 5, label)
	assert.InDelta(t, 5.0/255, dst[100], 1e-12)
}

func TestReadSetRejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	files := fakeFiles(t, 3)
	files[trainSetVal] = gzipped(t, []uint32{labelsMagic, 2}, []byte{1, 2})
	files[inferSetImg] = gzipped(t, []uint32{labelsMagic, 3}, []byte{1, 2, 3})
	writeFiles(t, dir, files)

	_, err := readSet(filepath.Join(dir, trainSetImg), filepath.Join(dir, trainSetVal))
	assert.Error(t, err, "label count mismatch")

	_, err = readSet(filepath.Join(dir, inferSetImg), filepath.Join(dir, inferSetVal))
	assert.Error(t, err, "wrong magic")
}

func TestLoadVerifiesDigests(t *testing.T) {
	dir := t.TempDir()
	files := fakeFiles(t, 4)
	writeFiles(t, dir, files)

	_, _, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect")

	useDigests(t, files)
	train, test, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, train.Len())
	assert.Equal(t, 4, test.Len())
}

func TestLoadTestIgnoresTrainFiles(t *testing.T) {
	files := fakeFiles(t, 5)
	delete(files, trainSetImg)
	delete(files, trainSetVal)
	useDigests(t, files)

	dir := t.TempDir()
	writeFiles(t, dir, files)

	test, err := LoadTest(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, test.Len())

	_, _, err = Load(dir)
	assert.Error(t, err, "full load needs the train files")
}

func TestFetchTestFilesOnly(t *testing.T) {
	files := fakeFiles(t, 3)
	useDigests(t, files)

	var (
		mu        sync.Mutex
		requested []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		mu.Lock()
		requested = append(requested, name)
		mu.Unlock()
		w.Write(files[name])
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, FetchFiles(context.Background(), srv.Client(), dir, srv.URL, TestFiles(), nil))
	mu.Lock()
	assert.ElementsMatch(t, TestFiles(), requested)
	mu.Unlock()

	test, err := LoadTest(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, test.Len())

	_, err = os.Stat(filepath.Join(dir, trainSetImg))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, FetchFiles(context.Background(), srv.Client(), dir, srv.URL, []string{"README"}, nil))
}

func TestFetchDownloadsMissingFiles(t *testing.T) {
	files := fakeFiles(t, 4)
	useDigests(t, files)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/mnist/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, trainSetImg), files[trainSetImg], 0644))

	require.NoError(t, Fetch(context.Background(), srv.Client(), dir, srv.URL+"/mnist/", nil))
	train, _, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, train.Len())
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits), "existing file is not downloaded again")
}

func TestFetchRejectsCorruptDownload(t *testing.T) {
	files := fakeFiles(t, 2)
	useDigests(t, files)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not the file you want"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	err := Fetch(context.Background(), srv.Client(), dir, srv.URL, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "corrupt downloads are discarded")
}
