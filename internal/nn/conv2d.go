package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// conv2D weights are laid out [filter][ky][kx][channel], so for a fixed filter and
// kernel row the weights line up with a contiguous run of the HWC input.
type conv2D struct {
	spec    Spec
	in, out Shape
	w, b    []float64
}

func newConv2D(in Shape, spec Spec) (*conv2D, error) {
	if spec.Filters <= 0 || spec.Kernel <= 0 {
		return nil, fmt.Errorf("conv2d: filters and kernel must be positive, got %d and %d", spec.Filters, spec.Kernel)
	}
	if spec.Kernel > in.H || spec.Kernel > in.W {
		return nil, fmt.Errorf("conv2d: kernel %d larger than input %s", spec.Kernel, in)
	}
	if spec.Activation == Softmax {
		return nil, fmt.Errorf("conv2d: softmax activation is not supported")
	}
	if err := checkActivation(spec.Activation); err != nil {
		return nil, err
	}
	k := spec.Kernel
	return &conv2D{
		spec: spec,
		in:   in,
		out:  Shape{H: in.H - k + 1, W: in.W - k + 1, C: spec.Filters},
		w:    make([]float64, spec.Filters*k*k*in.C),
		b:    make([]float64, spec.Filters),
	}, nil
}

func (l *conv2D) Spec() Spec          { return l.spec }
func (l *conv2D) InputShape() Shape   { return l.in }
func (l *conv2D) OutputShape() Shape  { return l.out }
func (l *conv2D) Params() [][]float64 { return [][]float64{l.w, l.b} }
func (l *conv2D) AuxSize() int        { return 0 }

func (l *conv2D) fans() (int, int) {
	area := l.spec.Kernel * l.spec.Kernel
	return area * l.in.C, area * l.spec.Filters
}

func (l *conv2D) rowLen() int           { return l.spec.Kernel * l.in.C }
func (l *conv2D) kernelLen() int        { return l.spec.Kernel * l.rowLen() }
func (l *conv2D) inOffset(y, x int) int { return (y*l.in.W + x) * l.in.C }

func (l *conv2D) Forward(in, out []float64, _ []int) {
	k, row, kl := l.spec.Kernel, l.rowLen(), l.kernelLen()
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			o := (oy*l.out.W + ox) * l.out.C
			for f := 0; f < l.out.C; f++ {
				sum := l.b[f]
				for ky := 0; ky < k; ky++ {
					src := l.inOffset(oy+ky, ox)
					wo := f*kl + ky*row
					sum += floats.Dot(l.w[wo:wo+row], in[src:src+row])
				}
				out[o+f] = sum
			}
			activate(l.spec.Activation, out[o:o+l.out.C])
		}
	}
}

func (l *conv2D) Backward(in, out, dout, din []float64, _ []int, grads [][]float64) {
	gw, gb := grads[0], grads[1]
	k, row, kl := l.spec.Kernel, l.rowLen(), l.kernelLen()
	if din != nil {
		clear(din)
	}
	for oy := 0; oy < l.out.H; oy++ {
		for ox := 0; ox < l.out.W; ox++ {
			o := (oy*l.out.W + ox) * l.out.C
			for f := 0; f < l.out.C; f++ {
				dz := activationGrad(l.spec.Activation, out[o+f], dout[o+f])
				if dz == 0 {
					continue
				}
				gb[f] += dz
				for ky := 0; ky < k; ky++ {
					src := l.inOffset(oy+ky, ox)
					wo := f*kl + ky*row
					floats.AddScaled(gw[wo:wo+row], dz, in[src:src+row])
					if din != nil {
						floats.AddScaled(din[src:src+row], dz, l.w[wo:wo+row])
					}
				}
			}
		}
	}
}
