package model

// Metadata describes an ONNX model's tensors. It is read from an optional JSON file
// next to the model.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// Prediction is the classifier's answer for one image.
type Prediction struct {
	Digit         int
	Confidence    float32
	Probabilities []float32
}

// PredictionResponse is the JSON body of a successful prediction.
type PredictionResponse struct {
	Digit      int     `json:"digit"`
	Confidence float32 `json:"confidence"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports the service state.
type HealthResponse struct {
	Status string `json:"status"`
}

// Response reduces a prediction to its wire form.
func (p *Prediction) Response() PredictionResponse {
	return PredictionResponse{Digit: p.Digit, Confidence: p.Confidence}
}

// reduce picks the most probable class of a distribution.
func reduce(probs []float32) *Prediction {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return &Prediction{
		Digit:         best,
		Confidence:    probs[best],
		Probabilities: probs,
	}
}
