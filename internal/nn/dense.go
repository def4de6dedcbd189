package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// dense weights are laid out [unit][input].
type dense struct {
	spec    Spec
	in, out Shape
	w, b    []float64
}

func newDense(in Shape, spec Spec) (*dense, error) {
	if spec.Units <= 0 {
		return nil, fmt.Errorf("dense: units must be positive, got %d", spec.Units)
	}
	if in.H != 1 || in.W != 1 {
		return nil, fmt.Errorf("dense: input %s must be flattened first", in)
	}
	if err := checkActivation(spec.Activation); err != nil {
		return nil, err
	}
	return &dense{
		spec: spec,
		in:   in,
		out:  Shape{H: 1, W: 1, C: spec.Units},
		w:    make([]float64, spec.Units*in.C),
		b:    make([]float64, spec.Units),
	}, nil
}

func (l *dense) Spec() Spec          { return l.spec }
func (l *dense) InputShape() Shape   { return l.in }
func (l *dense) OutputShape() Shape  { return l.out }
func (l *dense) Params() [][]float64 { return [][]float64{l.w, l.b} }
func (l *dense) AuxSize() int        { return 0 }
func (l *dense) fans() (int, int)    { return l.in.C, l.out.C }

func (l *dense) Forward(in, out []float64, _ []int) {
	n := l.in.C
	for j := range out {
		out[j] = floats.Dot(l.w[j*n:(j+1)*n], in) + l.b[j]
	}
	activate(l.spec.Activation, out)
}

func (l *dense) Backward(in, out, dout, din []float64, _ []int, grads [][]float64) {
	gw, gb := grads[0], grads[1]
	n := l.in.C
	if din != nil {
		clear(din)
	}
	for j := range out {
		dz := activationGrad(l.spec.Activation, out[j], dout[j])
		if dz == 0 {
			continue
		}
		gb[j] += dz
		floats.AddScaled(gw[j*n:(j+1)*n], dz, in)
		if din != nil {
			floats.AddScaled(din, dz, l.w[j*n:(j+1)*n])
		}
	}
}

func activate(act Activation, v []float64) {
	switch act {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Softmax:
		softmax(v)
	}
}

// activationGrad maps the gradient at an output y back through the activation.
// Softmax is paired with cross-entropy, whose gradient already targets the logits.
func activationGrad(act Activation, y, dy float64) float64 {
	if act == ReLU && y <= 0 {
		return 0
	}
	return dy
}

func softmax(v []float64) {
	top := floats.Max(v)
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - top)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
}
