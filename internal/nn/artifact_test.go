package nn

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadPreservesPredictions(t *testing.T) {
	n := tinyNet(t, 21)
	path := filepath.Join(t.TempDir(), "model", "tiny.model")

	size, err := n.Save(path)
	require.NoError(t, err)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), size)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, n.Specs(), loaded.Specs())
	assert.Equal(t, n.InputShape(), loaded.InputShape())

	input := randomInput(rand.New(rand.NewSource(1)), n.InputShape().Size())
	want, err := n.Predict(input)
	require.NoError(t, err)
	got, err := loaded.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadRejectsForeignFiles(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("PK\x03\x04 definitely not a model")))
	assert.Error(t, err)

	_, err = Read(bytes.NewReader([]byte("DIG")))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.model"))
	assert.Error(t, err)
}
