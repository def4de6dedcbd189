package nn

import (
	"github.com/Brownie44l1/digit-api/internal/parallel"
)

// Evaluation is the result of running a network over a labeled dataset.
type Evaluation struct {
	Loss       float64
	Accuracy   float64
	Labels     []int
	Predicted  []int
	Confidence []float64
}

// Evaluate computes mean cross-entropy and accuracy over ds. Per-sample results are
// kept in sample order, so the aggregate is deterministic for fixed weights.
func (n *Network) Evaluate(ds Dataset, workers int) Evaluation {
	size := ds.Len()
	ev := Evaluation{
		Labels:     make([]int, size),
		Predicted:  make([]int, size),
		Confidence: make([]float64, size),
	}
	if size == 0 {
		return ev
	}
	losses := make([]float64, size)
	ranges := parallel.Chunks(size, workers)
	parallel.ForEach(len(ranges), len(ranges), func(w int) {
		t := n.getTrace()
		defer n.traces.Put(t)
		input := make([]float64, n.input.Size())
		for i := ranges[w][0]; i < ranges[w][1]; i++ {
			label := ds.Sample(i, input)
			probs := n.forward(t, input)
			best := argmax(probs)
			ev.Labels[i] = label
			ev.Predicted[i] = best
			ev.Confidence[i] = probs[best]
			losses[i] = crossEntropy(probs, label)
		}
	})

	var loss float64
	var correct int
	for i := range losses {
		loss += losses[i]
		if ev.Predicted[i] == ev.Labels[i] {
			correct++
		}
	}
	ev.Loss = loss / float64(size)
	ev.Accuracy = float64(correct) / float64(size)
	return ev
}
