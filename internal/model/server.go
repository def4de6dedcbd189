// Package model holds the inference service context: the loaded classifier, its
// lifecycle and the mapping of failures to client or server errors.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

// DefaultPath is the model artifact shared by the trainer, evaluator and server.
const DefaultPath = "model/mnist_cnn.model"

// Classifier maps a preprocessed image to a class distribution. Implementations must
// allow concurrent Predict calls.
type Classifier interface {
	Predict(input preprocess.Tensor) (*Prediction, error)
	Close() error
}

// Options selects and tunes the backend opened by Open.
type Options struct {
	// CacheSize bounds the prediction cache; zero disables it.
	CacheSize int
	// ONNXLibrary is the onnxruntime shared library used for .onnx models.
	ONNXLibrary string
}

// Open loads the classifier stored at path. Files ending in .onnx are served by
// onnxruntime, everything else is read as a native network.
func Open(path string, opts Options) (Classifier, error) {
	var c Classifier
	var err error
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		c, err = NewONNX(path, opts.ONNXLibrary)
	} else {
		c, err = LoadNative(path)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		cached, err := NewCached(c, opts.CacheSize)
		if err != nil {
			c.Close()
			return nil, err
		}
		return cached, nil
	}
	return c, nil
}

// State is the lifecycle of a Server. It only moves from Loading to Ready.
type State int32

// States.
const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Server owns the loaded classifier and answers predictions for the HTTP layer.
type Server struct {
	logger     *zap.Logger
	state      atomic.Int32
	once       sync.Once
	classifier Classifier
}

// NewServer returns a server in the loading state.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger}
}

// Load installs the classifier returned by open and marks the server ready. Only the
// first call has any effect.
func (s *Server) Load(open func() (Classifier, error)) error {
	err := errors.New("model already loaded")
	s.once.Do(func() {
		var c Classifier
		c, err = open()
		if err != nil {
			return
		}
		s.classifier = c
		s.state.Store(int32(StateReady))
	})
	return err
}

// State reports whether the classifier is loaded.
func (s *Server) State() State {
	return State(s.state.Load())
}

// PredictImage decodes an uploaded image from memory, preprocesses it and classifies it.
func (s *Server) PredictImage(data []byte) (*Prediction, error) {
	if s.State() != StateReady {
		return nil, &Error{Kind: KindUnavailable, Message: MsgNotLoaded}
	}
	img, format, err := preprocess.Decode(data)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: MsgInvalidImage, Err: err}
	}
	s.logger.Debug("decoded image",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return s.predict(preprocess.Image(img))
}

// PredictTensor classifies an already preprocessed image.
func (s *Server) PredictTensor(input preprocess.Tensor) (*Prediction, error) {
	if s.State() != StateReady {
		return nil, &Error{Kind: KindUnavailable, Message: MsgNotLoaded}
	}
	if want := preprocess.Size * preprocess.Size; len(input) != want {
		return nil, &Error{Kind: KindInvalidInput, Message: fmt.Sprintf("Expected %d values, got %d", want, len(input))}
	}
	for i, v := range input {
		if !(v >= 0 && v <= 1) {
			return nil, &Error{Kind: KindInvalidInput, Message: MsgInvalidImage,
				Err: errors.Errorf("value %v at %d outside [0,1]", v, i)}
		}
	}
	return s.predict(input)
}

func (s *Server) predict(input preprocess.Tensor) (*Prediction, error) {
	p, err := s.classifier.Predict(input)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: MsgPredictionFailed, Err: err}
	}
	return p, nil
}

// Close releases the classifier.
func (s *Server) Close() error {
	if s.State() != StateReady {
		return nil
	}
	return s.classifier.Close()
}
