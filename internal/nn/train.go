package nn

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Brownie44l1/digit-api/internal/parallel"
)

// Training literals.
const (
	Epochs         = 5
	ValidationFrac = 0.1
	BatchSize      = 32
	LearningRate   = 0.001
	DefaultSeed    = 42

	// GradientShards is the number of partial gradients each batch is split into.
	// It is independent of Config.Workers so the summation order, and with it the
	// trained weights, depend only on the seed.
	GradientShards = 8
)

// Config controls Fit.
type Config struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	Seed            int64

	// Workers bounds the goroutines computing gradient shards and evaluating the
	// validation split. It does not affect the result.
	Workers int
}

// DefaultConfig returns the fixed training setup.
func DefaultConfig() Config {
	return Config{
		Epochs:          Epochs,
		BatchSize:       BatchSize,
		ValidationSplit: ValidationFrac,
		LearningRate:    LearningRate,
		Seed:            DefaultSeed,
		Workers:         runtime.NumCPU(),
	}
}

// EpochStats summarizes one pass over the training data.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Duration    time.Duration
}

// History is the per-epoch record of a Fit call.
type History []EpochStats

type shard struct {
	trace   *trace
	grads   [][][]float64
	input   []float64
	loss    float64
	correct int
}

// Fit trains the network with Adam on softmax cross-entropy, holding out the last
// cfg.ValidationSplit of ds for validation. Training order is reshuffled every epoch.
func (n *Network) Fit(ctx context.Context, ds Dataset, cfg Config, logger *zap.Logger) (History, error) {
	if last := n.layers[len(n.layers)-1].Spec(); last.Activation != Softmax {
		return nil, errors.Errorf("final layer must use softmax, got %q", last.Activation)
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return nil, errors.Errorf("epochs and batch size must be positive, got %d and %d", cfg.Epochs, cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	train, val := ValidationSplit(ds, cfg.ValidationSplit)
	if train.Len() == 0 {
		return nil, errors.New("no training samples left after validation split")
	}

	shards := make([]*shard, GradientShards)
	for i := range shards {
		shards[i] = &shard{
			trace: n.getTrace(),
			grads: n.newGrads(),
			input: make([]float64, n.input.Size()),
		}
	}
	total := n.newGrads()
	opt := newAdam(n, cfg.LearningRate)
	rng := rand.New(rand.NewSource(cfg.Seed))

	logger.Info("training started",
		zap.Int("train_samples", train.Len()),
		zap.Int("val_samples", val.Len()),
		zap.Int("params", n.ParamCount()),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers))

	var history History
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		perm := rng.Perm(train.Len())
		var loss float64
		var correct int

		for b0 := 0; b0 < len(perm); b0 += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, errors.Wrapf(err, "epoch %d", epoch)
			}
			b1 := b0 + cfg.BatchSize
			if b1 > len(perm) {
				b1 = len(perm)
			}
			batch := perm[b0:b1]
			ranges := parallel.Chunks(len(batch), len(shards))
			parallel.ForEach(len(ranges), cfg.Workers, func(i int) {
				n.accumulate(train, shards[i], batch[ranges[i][0]:ranges[i][1]])
			})

			zeroGrads(total)
			for i := range ranges {
				addGrads(total, shards[i].grads)
				loss += shards[i].loss
				correct += shards[i].correct
			}
			scale := 1 / float64(len(batch))
			for _, lg := range total {
				for _, g := range lg {
					floats.Scale(scale, g)
				}
			}
			opt.step(n, total)
		}

		stats := EpochStats{
			Epoch:    epoch,
			Loss:     loss / float64(train.Len()),
			Accuracy: float64(correct) / float64(train.Len()),
		}
		if val.Len() > 0 {
			ev := n.Evaluate(val, cfg.Workers)
			stats.ValLoss, stats.ValAccuracy = ev.Loss, ev.Accuracy
		}
		stats.Duration = time.Since(start)
		history = append(history, stats)

		logger.Info("epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("loss", stats.Loss),
			zap.Float64("accuracy", stats.Accuracy),
			zap.Float64("val_loss", stats.ValLoss),
			zap.Float64("val_accuracy", stats.ValAccuracy),
			zap.Duration("took", stats.Duration))
	}
	return history, nil
}

// accumulate runs forward and backward passes for the given sample indices,
// leaving the summed gradients, loss and hit count in w.
func (n *Network) accumulate(ds Dataset, w *shard, indices []int) {
	zeroGrads(w.grads)
	w.loss, w.correct = 0, 0
	out := w.trace.grads[len(n.layers)]
	for _, i := range indices {
		label := ds.Sample(i, w.input)
		probs := n.forward(w.trace, w.input)
		w.loss += crossEntropy(probs, label)
		if argmax(probs) == label {
			w.correct++
		}
		copy(out, probs)
		out[label]--
		n.backward(w.trace, w.grads)
	}
}
