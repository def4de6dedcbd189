package model

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	lru "github.com/hashicorp/golang-lru"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

// Cached memoizes predictions of a deterministic classifier, keyed by a hash of the
// preprocessed tensor.
type Cached struct {
	Classifier
	cache *lru.Cache
	key   []byte
}

// NewCached keeps up to size predictions of c.
func NewCached(c Classifier, size int) (*Cached, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "error creating prediction cache")
	}
	key := make([]byte, highwayhash.Size)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "error generating cache key")
	}
	return &Cached{Classifier: c, cache: cache, key: key}, nil
}

func (c *Cached) Predict(input preprocess.Tensor) (*Prediction, error) {
	buf := make([]byte, 4*len(input))
	for i, v := range input {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	k := highwayhash.Sum128(buf, c.key)
	if p, ok := c.cache.Get(k); ok {
		return clone(p.(*Prediction)), nil
	}
	p, err := c.Classifier.Predict(input)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, clone(p))
	return p, nil
}

// clone copies p including its probabilities, so callers never share the cached slice.
func clone(p *Prediction) *Prediction {
	cp := *p
	cp.Probabilities = append([]float32(nil), p.Probabilities...)
	return &cp
}

// Len is the number of cached predictions.
func (c *Cached) Len() int {
	return c.cache.Len()
}
