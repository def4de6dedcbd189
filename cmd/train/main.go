package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
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
		Model   string `arg:"env:MODEL_PATH" help:"where the trained model is written"`
		Seed    int64  `help:"seed for weight initialization and shuffling"`
		Workers int    `help:"goroutines computing gradient shards; does not change the result"`
		Debug   bool   `arg:"env:DEBUG"`
	}{
		DataDir: mnist.DefaultDir,
		Mirror:  mnist.DefaultMirror,
		Model:   model.DefaultPath,
		Seed:    nn.DefaultSeed,
		Workers: runtime.NumCPU(),
	}
	arg.MustParse(&args)

	logger := logging.New(args.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	train, test, err := mnist.LoadOrFetch(ctx, args.DataDir, args.Mirror, logger)
	if err != nil {
		logger.Fatal("failed to load dataset", zap.Error(err))
	}

	net, err := nn.NewCNN(args.Seed)
	if err != nil {
		logger.Fatal("failed to build network", zap.Error(err))
	}

	cfg := nn.DefaultConfig()
	cfg.Seed = args.Seed
	cfg.Workers = args.Workers
	if _, err := net.Fit(ctx, train, cfg, logger); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	ev := net.Evaluate(test, cfg.Workers)
	logger.Info("test set", zap.Float64("loss", ev.Loss), zap.Float64("accuracy", ev.Accuracy))

	size, err := net.Save(args.Model)
	if err != nil {
		logger.Fatal("failed to save model", zap.Error(err))
	}
	logger.Info("model saved", zap.String("path", args.Model), zap.String("size", humanize.Bytes(uint64(size))))
	fmt.Println("Model trained and saved successfully.")
}
