package nn

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Classes is the number of digit classes.
const Classes = 10

// InputShape is the shape of one preprocessed digit image.
var InputShape = Shape{H: 28, W: 28, C: 1}

// Architecture is the fixed digit classifier topology: one convolution/pooling stage
// collapsed to a vector, a hidden dense layer and a 10-way softmax.
func Architecture() []Spec {
	return []Spec{
		Conv2D(32, 3, ReLU),
		MaxPool2D(2),
		Flatten(),
		Dense(128, ReLU),
		Dense(Classes, Softmax),
	}
}

// NewCNN builds the digit classifier with freshly initialized weights.
func NewCNN(seed int64) (*Network, error) {
	return Sequential(InputShape, seed, Architecture()...)
}

// Network is a sequential stack of layers. Once built it is only read by Predict, so
// concurrent predictions are safe; training mutates the parameters in place.
type Network struct {
	input  Shape
	layers []Layer
	traces sync.Pool
}

type fanned interface {
	fans() (int, int)
}

// Sequential chains specs starting from the input shape. Weights are Glorot-uniform
// initialized from seed and biases start at zero.
func Sequential(input Shape, seed int64, specs ...Spec) (*Network, error) {
	if len(specs) == 0 {
		return nil, errors.New("network needs at least one layer")
	}
	n := &Network{input: input}
	rng := rand.New(rand.NewSource(seed))
	shape := input
	for i, spec := range specs {
		l, err := newLayer(shape, spec)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if f, ok := l.(fanned); ok {
			fanIn, fanOut := f.fans()
			limit := math.Sqrt(6 / float64(fanIn+fanOut))
			ws := l.Params()[0]
			for j := range ws {
				ws[j] = (2*rng.Float64() - 1) * limit
			}
		}
		n.layers = append(n.layers, l)
		shape = l.OutputShape()
	}
	return n, nil
}

// InputShape is the activation shape the network expects.
func (n *Network) InputShape() Shape {
	return n.input
}

// OutputShape is the shape of the final layer's activation.
func (n *Network) OutputShape() Shape {
	return n.layers[len(n.layers)-1].OutputShape()
}

// Layers returns the network's layers in order.
func (n *Network) Layers() []Layer {
	return n.layers
}

// Specs returns the network's architecture.
func (n *Network) Specs() []Spec {
	specs := make([]Spec, len(n.layers))
	for i, l := range n.layers {
		specs[i] = l.Spec()
	}
	return specs
}

// ParamCount is the number of trainable values.
func (n *Network) ParamCount() int {
	var c int
	for _, l := range n.layers {
		for _, p := range l.Params() {
			c += len(p)
		}
	}
	return c
}

// Predict runs a forward pass and returns a copy of the output distribution.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if len(input) != n.input.Size() {
		return nil, errors.Errorf("input has %d values, network expects %d (%s)", len(input), n.input.Size(), n.input)
	}
	t := n.getTrace()
	defer n.traces.Put(t)
	out := n.forward(t, input)
	return append([]float64(nil), out...), nil
}

// trace holds the per-goroutine buffers for one forward/backward pass.
type trace struct {
	acts  [][]float64 // acts[i] is the input of layer i, acts[len] the output
	aux   [][]int
	grads [][]float64 // gradient w.r.t. acts[i]
}

func (n *Network) getTrace() *trace {
	if t, ok := n.traces.Get().(*trace); ok {
		return t
	}
	t := &trace{
		acts:  make([][]float64, len(n.layers)+1),
		aux:   make([][]int, len(n.layers)),
		grads: make([][]float64, len(n.layers)+1),
	}
	t.acts[0] = make([]float64, n.input.Size())
	for i, l := range n.layers {
		size := l.OutputShape().Size()
		t.acts[i+1] = make([]float64, size)
		t.grads[i+1] = make([]float64, size)
		t.aux[i] = make([]int, l.AuxSize())
	}
	return t
}

func (n *Network) forward(t *trace, input []float64) []float64 {
	copy(t.acts[0], input)
	for i, l := range n.layers {
		l.Forward(t.acts[i], t.acts[i+1], t.aux[i])
	}
	return t.acts[len(n.layers)]
}

// backward accumulates parameter gradients for one sample whose forward pass is in t.
// The output gradient must already be in t.grads[len(layers)].
func (n *Network) backward(t *trace, grads [][][]float64) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]
		l.Backward(t.acts[i], t.acts[i+1], t.grads[i+1], t.grads[i], t.aux[i], grads[i])
	}
}

// newGrads allocates a zeroed gradient buffer matching every layer's parameters.
func (n *Network) newGrads() [][][]float64 {
	grads := make([][][]float64, len(n.layers))
	for i, l := range n.layers {
		for _, p := range l.Params() {
			grads[i] = append(grads[i], make([]float64, len(p)))
		}
	}
	return grads
}

func zeroGrads(grads [][][]float64) {
	for _, lg := range grads {
		for _, g := range lg {
			clear(g)
		}
	}
}

func addGrads(dst, src [][][]float64) {
	for i := range dst {
		for j := range dst[i] {
			floats.Add(dst[i][j], src[i][j])
		}
	}
}

const lossEpsilon = 1e-7

// crossEntropy is the sparse categorical cross-entropy of a probability vector.
func crossEntropy(probs []float64, label int) float64 {
	p := math.Min(math.Max(probs[label], lossEpsilon), 1-lossEpsilon)
	return -math.Log(p)
}

// argmax returns the index of the largest value, the first one on ties.
func argmax(v []float64) int {
	return floats.MaxIdx(v)
}
