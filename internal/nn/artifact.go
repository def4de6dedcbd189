package nn

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// artifactMagic prefixes every saved network.
const artifactMagic = "DIGITNN1"

type artifact struct {
	Input  Shape
	Layers []layerRecord
}

type layerRecord struct {
	Spec   Spec
	Params [][]float64
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serializes the architecture and weights.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, artifactMagic); err != nil {
		return cw.n, errors.Wrap(err, "error writing artifact header")
	}
	a := artifact{Input: n.input}
	for _, l := range n.layers {
		a.Layers = append(a.Layers, layerRecord{Spec: l.Spec(), Params: l.Params()})
	}
	sw := snappy.NewBufferedWriter(cw)
	if err := gob.NewEncoder(sw).Encode(&a); err != nil {
		return cw.n, errors.Wrap(err, "error encoding network")
	}
	if err := sw.Close(); err != nil {
		return cw.n, errors.Wrap(err, "error flushing artifact")
	}
	return cw.n, nil
}

// Save writes the network to path, creating parent directories. The file is
// replaced atomically so readers never observe a partial artifact.
func (n *Network) Save(path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrapf(err, "error creating directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrapf(err, "error creating %s", path)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	size, err := n.WriteTo(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return size, errors.Wrapf(err, "error writing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return size, errors.Wrapf(err, "error moving artifact into %s", path)
	}
	return size, nil
}

// Read deserializes a network written by WriteTo.
func Read(r io.Reader) (*Network, error) {
	header := make([]byte, len(artifactMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "error reading artifact header")
	}
	if string(header) != artifactMagic {
		return nil, errors.Errorf("not a network artifact (header %q)", header)
	}

	var a artifact
	if err := gob.NewDecoder(snappy.NewReader(r)).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "error decoding network")
	}

	specs := make([]Spec, len(a.Layers))
	for i, rec := range a.Layers {
		specs[i] = rec.Spec
	}
	n, err := Sequential(a.Input, 0, specs...)
	if err != nil {
		return nil, errors.Wrap(err, "error rebuilding network")
	}
	for i, l := range n.layers {
		params, saved := l.Params(), a.Layers[i].Params
		if len(params) != len(saved) {
			return nil, errors.Errorf("layer %d: %d parameter vectors, artifact has %d", i, len(params), len(saved))
		}
		for j := range params {
			if len(params[j]) != len(saved[j]) {
				return nil, errors.Errorf("layer %d param %d: size %d, artifact has %d", i, j, len(params[j]), len(saved[j]))
			}
			copy(params[j], saved[j])
		}
	}
	return n, nil
}

// Load reads a network from a file written by Save.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening model %s", path)
	}
	defer f.Close()
	n, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "error loading model %s", path)
	}
	return n, nil
}
