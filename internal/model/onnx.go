package model

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/digit-api/internal/nn"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

// DefaultMetadata matches a Keras digit classifier exported with tf2onnx.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  preprocess.Shape,
		OutputShape: []int64{1, nn.Classes},
		InputName:   "input",
		OutputName:  "output",
		ImageSize:   preprocess.Size,
	}
}

// ONNX serves an exported model through onnxruntime. The session binds a single
// input and output tensor, so runs are serialized.
type ONNX struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// readMetadata loads path+".json" when present and fills unset fields from the defaults.
func readMetadata(modelPath string) (Metadata, error) {
	metadata := DefaultMetadata()
	metaFile, err := os.ReadFile(modelPath + ".json")
	if os.IsNotExist(err) {
		return metadata, nil
	}
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(metaFile, &m); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(m.InputShape) > 0 {
		metadata.InputShape = m.InputShape
	}
	if len(m.OutputShape) > 0 {
		metadata.OutputShape = m.OutputShape
	}
	if m.InputName != "" {
		metadata.InputName = m.InputName
	}
	if m.OutputName != "" {
		metadata.OutputName = m.OutputName
	}
	if m.ImageSize != 0 {
		metadata.ImageSize = m.ImageSize
	}
	metadata.Classes = m.Classes
	return metadata, nil
}

func checkMetadata(m Metadata) error {
	if !reflect.DeepEqual(m.InputShape, preprocess.Shape) {
		return fmt.Errorf("model input shape %v does not match preprocessing shape %v", m.InputShape, preprocess.Shape)
	}
	if m.ImageSize != preprocess.Size {
		return fmt.Errorf("model image size %d does not match preprocessing size %d", m.ImageSize, preprocess.Size)
	}
	outputs := int64(1)
	for _, d := range m.OutputShape {
		outputs *= d
	}
	if outputs != nn.Classes {
		return fmt.Errorf("model output shape %v does not hold %d classes", m.OutputShape, nn.Classes)
	}
	return nil
}

// NewONNX opens modelPath with onnxruntime. sharedLibrary, when set, points at the
// onnxruntime shared library.
func NewONNX(modelPath, sharedLibrary string) (*ONNX, error) {
	metadata, err := readMetadata(modelPath)
	if err != nil {
		return nil, err
	}
	if err := checkMetadata(metadata); err != nil {
		return nil, err
	}

	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNX{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (s *ONNX) Predict(input preprocess.Tensor) (*Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	probs := append([]float32(nil), s.outputTensor.GetData()...)
	return reduce(probs), nil
}

func (s *ONNX) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
