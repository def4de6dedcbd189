package nn

import "math"

// adam is the Adam optimizer with Keras' default moments and epsilon.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][][]float64
}

func newAdam(n *Network, lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
		m:     n.newGrads(),
		v:     n.newGrads(),
	}
}

// step applies one update from grads, which hold the batch-mean gradient.
func (a *adam) step(n *Network, grads [][][]float64) {
	a.t++
	t := float64(a.t)
	lr := a.lr * math.Sqrt(1-math.Pow(a.beta2, t)) / (1 - math.Pow(a.beta1, t))
	for i, l := range n.layers {
		for j, p := range l.Params() {
			g, m, v := grads[i][j], a.m[i][j], a.v[i][j]
			for k := range p {
				m[k] = a.beta1*m[k] + (1-a.beta1)*g[k]
				v[k] = a.beta2*v[k] + (1-a.beta2)*g[k]*g[k]
				p[k] -= lr * m[k] / (math.Sqrt(v[k]) + a.eps)
			}
		}
	}
}
