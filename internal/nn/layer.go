package nn

import (
	"fmt"
)

// Shape is the height, width and channel count of a layer's activation.
type Shape struct {
	H, W, C int
}

// Size is the number of values in an activation of this shape.
func (s Shape) Size() int {
	return s.H * s.W * s.C
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.H, s.W, s.C)
}

// Activation is applied element-wise (or over the whole vector for Softmax) to a
// layer's output.
type Activation string

// Supported activations.
const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Softmax Activation = "softmax"
)

// Kind names a layer type in a Spec and in the artifact.
type Kind string

// Layer kinds.
const (
	KindConv2D    Kind = "conv2d"
	KindMaxPool2D Kind = "maxpool2d"
	KindFlatten   Kind = "flatten"
	KindDense     Kind = "dense"
)

// Spec describes one layer of a sequential network.
type Spec struct {
	Kind       Kind
	Filters    int
	Kernel     int
	Pool       int
	Units      int
	Activation Activation
}

// Conv2D is a valid (unpadded) stride-1 convolution with a square kernel.
func Conv2D(filters, kernel int, act Activation) Spec {
	return Spec{Kind: KindConv2D, Filters: filters, Kernel: kernel, Activation: act}
}

// MaxPool2D is a non-overlapping square max pooling.
func MaxPool2D(size int) Spec {
	return Spec{Kind: KindMaxPool2D, Pool: size}
}

// Flatten collapses the activation into a vector.
func Flatten() Spec {
	return Spec{Kind: KindFlatten}
}

// Dense is a fully connected layer.
func Dense(units int, act Activation) Spec {
	return Spec{Kind: KindDense, Units: units, Activation: act}
}

// Layer is one stage of a Network. Forward and Backward only touch the buffers they
// are given, so a layer can be shared by concurrent goroutines as long as each one
// brings its own buffers.
type Layer interface {
	Spec() Spec
	InputShape() Shape
	OutputShape() Shape

	// Params returns the trainable parameter vectors, weights first.
	Params() [][]float64

	// AuxSize is the number of ints Forward records for Backward.
	AuxSize() int

	// Forward writes the layer output for in into out.
	Forward(in, out []float64, aux []int)

	// Backward accumulates parameter gradients into grads and, when din is not nil,
	// overwrites din with the gradient with respect to in. dout is the gradient with
	// respect to the layer output, or with respect to the logits for Softmax.
	Backward(in, out, dout, din []float64, aux []int, grads [][]float64)
}

func newLayer(in Shape, spec Spec) (Layer, error) {
	switch spec.Kind {
	case KindConv2D:
		return newConv2D(in, spec)
	case KindMaxPool2D:
		return newMaxPool2D(in, spec)
	case KindFlatten:
		return &flatten{in: in}, nil
	case KindDense:
		return newDense(in, spec)
	default:
		return nil, fmt.Errorf("unknown layer kind %q", spec.Kind)
	}
}

func checkActivation(act Activation) error {
	switch act {
	case Linear, ReLU, Softmax:
		return nil
	case "":
		return nil
	default:
		return fmt.Errorf("unknown activation %q", act)
	}
}
