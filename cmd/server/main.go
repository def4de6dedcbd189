package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/handlers"
	"github.com/Brownie44l1/digit-api/internal/logging"
	"github.com/Brownie44l1/digit-api/internal/model"
)

func main() {
	args := struct {
		Port        string `arg:"env:PORT" help:"port to listen on"`
		Model       string `arg:"env:MODEL_PATH" help:"model artifact (.onnx files are served by onnxruntime)"`
		ONNXLibrary string `arg:"--onnx-library,env:ONNXRUNTIME_LIB" help:"path to the onnxruntime shared library"`
		CacheSize   int    `arg:"--cache-size,env:CACHE_SIZE" help:"number of predictions to memoize, 0 disables"`
		Debug       bool   `arg:"env:DEBUG" help:"log debug entries"`
	}{
		Port:      "8080",
		Model:     model.DefaultPath,
		CacheSize: 1024,
	}
	arg.MustParse(&args)

	logger := logging.New(args.Debug)
	defer logger.Sync()

	modelPath := args.Model
	if !filepath.IsAbs(modelPath) {
		execPath, err := os.Getwd()
		if err != nil {
			logger.Fatal("failed to get working directory", zap.Error(err))
		}
		// If running from cmd/server, go up two levels
		if filepath.Base(execPath) == "server" {
			execPath = filepath.Join(execPath, "../..")
		}
		modelPath = filepath.Join(execPath, modelPath)
	}

	modelServer := model.NewServer(logger)
	handler := handlers.NewHandler(modelServer, logger)

	srv := &http.Server{
		Addr:    ":" + args.Port,
		Handler: handlers.AccessLog(logger, handler.Routes()),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()
	logger.Info("server starting", zap.String("port", args.Port),
		zap.Strings("endpoints", []string{"GET /health", "POST /predict", "POST /predict/tensor"}))

	logger.Info("loading model", zap.String("path", modelPath))
	err := modelServer.Load(func() (model.Classifier, error) {
		return model.Open(modelPath, model.Options{
			CacheSize:   args.CacheSize,
			ONNXLibrary: args.ONNXLibrary,
		})
	})
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", modelPath), zap.Error(err))
	}
	logger.Info("model ready", zap.String("path", modelPath))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	if err := modelServer.Close(); err != nil {
		logger.Error("failed to release model", zap.Error(err))
	}
}
