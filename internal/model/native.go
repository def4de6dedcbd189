package model

import (
	"github.com/pkg/errors"

	"github.com/Brownie44l1/digit-api/internal/nn"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

// Native serves a network trained by this repository's trainer.
type Native struct {
	net *nn.Network
}

// NewNative wraps net after checking it consumes preprocessed digits.
func NewNative(net *nn.Network) (*Native, error) {
	want := nn.Shape{H: preprocess.Size, W: preprocess.Size, C: 1}
	if got := net.InputShape(); got != want {
		return nil, errors.Errorf("model expects %s input, preprocessing produces %s", got, want)
	}
	if got := net.OutputShape().Size(); got != nn.Classes {
		return nil, errors.Errorf("model has %d outputs, want %d", got, nn.Classes)
	}
	return &Native{net: net}, nil
}

// LoadNative reads a saved network from path.
func LoadNative(path string) (*Native, error) {
	net, err := nn.Load(path)
	if err != nil {
		return nil, err
	}
	return NewNative(net)
}

func (n *Native) Predict(input preprocess.Tensor) (*Prediction, error) {
	probs, err := n.net.Predict(input.Float64())
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	out := make([]float32, len(probs))
	for i, p := range probs {
		out[i] = float32(p)
	}
	return reduce(out), nil
}

func (n *Native) Close() error {
	return nil
}
