package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	arg "github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/logging"
	"github.com/Brownie44l1/digit-api/internal/mnist"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/nn"
)

func main() {
	args := struct {
		DataDir string `arg:"--data-dir,env:MNIST_DIR" help:"directory holding the MNIST files"`
		Mirror  string `arg:"env:MNIST_MIRROR" help:"where missing MNIST files are downloaded from"`
		Model   string `arg:"env:MODEL_PATH" help:"model to evaluate"`
		Index   int    `help:"test sample shown as a single prediction"`
		Workers int
		Debug   bool `arg:"env:DEBUG"`
	}{
		DataDir: mnist.DefaultDir,
		Mirror:  mnist.DefaultMirror,
		Model:   model.DefaultPath,
		Index:   7,
		Workers: runtime.NumCPU(),
	}
	arg.MustParse(&args)

	logger := logging.New(args.Debug)
	defer logger.Sync()

	test, err := mnist.LoadTestOrFetch(context.Background(), args.DataDir, args.Mirror, logger)
	if err != nil {
		logger.Fatal("failed to load dataset", zap.Error(err))
	}
	if args.Index < 0 || args.Index >= test.Len() {
		logger.Fatal("sample index out of range", zap.Int("index", args.Index), zap.Int("samples", test.Len()))
	}

	net, err := nn.Load(args.Model)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}

	ev := net.Evaluate(test, args.Workers)
	fmt.Printf("Test Loss: %.4f\n", ev.Loss)
	fmt.Printf("Test Accuracy: %.2f%%\n", ev.Accuracy*100)

	input := make([]float64, mnist.ImgSize*mnist.ImgSize)
	label := test.Sample(args.Index, input)
	probs, err := net.Predict(input)
	if err != nil {
		logger.Fatal("prediction failed", zap.Error(err))
	}
	fmt.Printf("True Label: %d, Predicted Label: %d\n", label, argmax(probs))

	if err := writeReport(os.Stdout, ev); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
