package nn

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDataset struct {
	x [][]float64
	y []int
}

func (d *memDataset) Len() int { return len(d.y) }

func (d *memDataset) Sample(i int, dst []float64) int {
	copy(dst, d.x[i])
	return d.y[i]
}

// quadrants is an 8x8 dataset where the label is the bright quadrant.
func quadrants(n int, seed int64) *memDataset {
	rng := rand.New(rand.NewSource(seed))
	d := &memDataset{}
	for i := 0; i < n; i++ {
		label := i % 4
		img := make([]float64, 64)
		for p := range img {
			img[p] = 0.2 * rng.Float64()
		}
		oy, ox := (label/2)*4, (label%2)*4
		for y := oy; y < oy+4; y++ {
			for x := ox; x < ox+4; x++ {
				img[y*8+x] = 0.7 + 0.3*rng.Float64()
			}
		}
		d.x = append(d.x, img)
		d.y = append(d.y, label)
	}
	return d
}

func quadrantNet(t *testing.T, seed int64) *Network {
	n, err := Sequential(Shape{H: 8, W: 8, C: 1}, seed,
		Conv2D(4, 3, ReLU),
		MaxPool2D(2),
		Flatten(),
		Dense(16, ReLU),
		Dense(4, Softmax),
	)
	require.NoError(t, err)
	return n
}

func quadrantConfig() Config {
	return Config{
		Epochs:          10,
		BatchSize:       8,
		ValidationSplit: 0.25,
		LearningRate:    0.01,
		Seed:            3,
		Workers:         3,
	}
}

func TestFitLearnsSeparableData(t *testing.T) {
	ds := quadrants(160, 1)
	n := quadrantNet(t, 2)

	history, err := n.Fit(context.Background(), ds, quadrantConfig(), nil)
	require.NoError(t, err)
	require.Len(t, history, 10)

	last := history[len(history)-1]
	assert.Less(t, last.Loss, history[0].Loss)
	assert.GreaterOrEqual(t, last.ValAccuracy, 0.9)

	ev := n.Evaluate(quadrants(40, 99), 2)
	assert.GreaterOrEqual(t, ev.Accuracy, 0.9)
}

func TestFitIsReproducible(t *testing.T) {
	ds := quadrants(64, 1)
	cfg := quadrantConfig()
	cfg.Epochs = 2

	a, b := quadrantNet(t, 2), quadrantNet(t, 2)
	ha, err := a.Fit(context.Background(), ds, cfg, nil)
	require.NoError(t, err)
	hb, err := b.Fit(context.Background(), ds, cfg, nil)
	require.NoError(t, err)

	for i := range ha {
		assert.Equal(t, ha[i].Loss, hb[i].Loss)
		assert.Equal(t, ha[i].ValAccuracy, hb[i].ValAccuracy)
	}
	for i, l := range a.Layers() {
		assert.Equal(t, l.Params(), b.Layers()[i].Params())
	}
}

func TestFitDoesNotDependOnWorkerCount(t *testing.T) {
	ds := quadrants(64, 1)
	serial, wide := quadrantConfig(), quadrantConfig()
	serial.Epochs, wide.Epochs = 2, 2
	serial.Workers, wide.Workers = 1, 5

	a, b := quadrantNet(t, 2), quadrantNet(t, 2)
	ha, err := a.Fit(context.Background(), ds, serial, nil)
	require.NoError(t, err)
	hb, err := b.Fit(context.Background(), ds, wide, nil)
	require.NoError(t, err)

	for i := range ha {
		assert.Equal(t, ha[i].Loss, hb[i].Loss)
		assert.Equal(t, ha[i].ValLoss, hb[i].ValLoss)
	}
	for i, l := range a.Layers() {
		assert.Equal(t, l.Params(), b.Layers()[i].Params())
	}
}

func TestFitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quadrantNet(t, 2).Fit(ctx, quadrants(32, 1), quadrantConfig(), nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestFitRequiresSoftmaxOutput(t *testing.T) {
	n, err := Sequential(Shape{H: 1, W: 1, C: 4}, 1, Dense(2, Linear))
	require.NoError(t, err)
	_, err = n.Fit(context.Background(), quadrants(8, 1), quadrantConfig(), nil)
	assert.Error(t, err)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	n := quadrantNet(t, 4)
	ds := quadrants(50, 8)

	one := n.Evaluate(ds, 1)
	many := n.Evaluate(ds, 7)
	assert.Equal(t, one, many)
	assert.True(t, one.Accuracy >= 0 && one.Accuracy <= 1)
}

func TestValidationSplitTakesTail(t *testing.T) {
	ds := quadrants(10, 1)
	train, val := ValidationSplit(ds, 0.1)
	require.Equal(t, 9, train.Len())
	require.Equal(t, 1, val.Len())

	dst := make([]float64, 64)
	assert.Equal(t, ds.y[9], val.Sample(0, dst))
	assert.Equal(t, ds.x[9], dst)
}
