package nn

import (
	"fmt"
)

// maxPool2D records the input index of each output's maximum in aux.
type maxPool2D struct {
	spec    Spec
	in, out Shape
}

func newMaxPool2D(in Shape, spec Spec) (*maxPool2D, error) {
	if spec.Pool <= 0 {
		return nil, fmt.Errorf("maxpool2d: pool size must be positive, got %d", spec.Pool)
	}
	if spec.Pool > in.H || spec.Pool > in.W {
		return nil, fmt.Errorf("maxpool2d: pool %d larger than input %s", spec.Pool, in)
	}
	return &maxPool2D{
		spec: spec,
		in:   in,
		out:  Shape{H: in.H / spec.Pool, W: in.W / spec.Pool, C: in.C},
	}, nil
}

func (l *maxPool2D) Spec() Spec          { return l.spec }
func (l *maxPool2D) InputShape() Shape   { return l.in }
func (l *maxPool2D) OutputShape() Shape  { return l.out }
func (l *maxPool2D) Params() [][]float64 { return nil }
func (l *maxPool2D) AuxSize() int        { return l.out.Size() }

func (l *maxPool2D) Forward(in, out []float64, aux []int) {
	p := l.spec.Pool
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			for c := 0; c < l.out.C; c++ {
				at := ((oy*p)*l.in.W+ox*p)*l.in.C + c
				best := in[at]
				for py := 0; py < p; py++ {
					for px := 0; px < p; px++ {
						i := ((oy*p+py)*l.in.W+ox*p+px)*l.in.C + c
						if in[i] > best {
							best, at = in[i], i
						}
					}
				}
				o := (oy*l.out.W+ox)*l.out.C + c
				out[o], aux[o] = best, at
			}
		}
	}
}

func (l *maxPool2D) Backward(_, _, dout, din []float64, aux []int, _ [][]float64) {
	if din == nil {
		return
	}
	clear(din)
	for o, i := range aux {
		din[i] += dout[o]
	}
}

type flatten struct {
	in Shape
}

func (l *flatten) Spec() Spec          { return Flatten() }
func (l *flatten) InputShape() Shape   { return l.in }
func (l *flatten) OutputShape() Shape  { return Shape{H: 1, W: 1, C: l.in.Size()} }
func (l *flatten) Params() [][]float64 { return nil }
func (l *flatten) AuxSize() int        { return 0 }

func (l *flatten) Forward(in, out []float64, _ []int) {
	copy(out, in)
}

func (l *flatten) Backward(_, _, dout, din []float64, _ []int, _ [][]float64) {
	if din != nil {
		copy(din, dout)
	}
}
