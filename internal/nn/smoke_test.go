package nn_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/digit-api/internal/mnist"
	"github.com/Brownie44l1/digit-api/internal/nn"
)

// TestMNISTSmoke trains on a slice of the real dataset. Set MNIST_DIR to a directory
// holding the four MNIST files to run it.
func TestMNISTSmoke(t *testing.T) {
	dir := os.Getenv("MNIST_DIR")
	if dir == "" || testing.Short() {
		t.Skip("MNIST_DIR not set")
	}
	train, test, err := mnist.Load(dir)
	require.NoError(t, err)

	net, err := nn.NewCNN(nn.DefaultSeed)
	require.NoError(t, err)

	cfg := nn.DefaultConfig()
	cfg.Epochs = 2
	_, err = net.Fit(context.Background(), nn.Slice(train, 0, 20000), cfg, nil)
	require.NoError(t, err)

	ev := net.Evaluate(test, cfg.Workers)
	require.Greater(t, ev.Accuracy, 0.9)

	again := net.Evaluate(test, 1)
	require.Equal(t, ev.Accuracy, again.Accuracy)
}
