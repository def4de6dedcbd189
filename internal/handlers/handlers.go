package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/model"
)

// MaxUploadSize bounds the multipart form parsed by Predict.
const MaxUploadSize = 10 << 20

// Upload failures that are not about the image content.
const (
	MsgImageTooLarge   = "Image too large"
	MsgMalformedUpload = "Malformed upload"
)

type Handler struct {
	modelServer *model.Server
	logger      *zap.Logger
}

func NewHandler(modelServer *model.Server, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		modelServer: modelServer,
		logger:      logger,
	}
}

// Routes registers the endpoints and allows cross-origin requests from any origin.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost)
	r.HandleFunc("/predict/tensor", h.PredictTensor).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return cors(r)
}

// AccessLog logs one entry per request through logger, keeping access lines in the
// same structured stream as the rest of the service.
func AccessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info("request",
			zap.String("method", p.Request.Method),
			zap.String("path", p.URL.Path),
			zap.String("remote", p.Request.RemoteAddr),
			zap.Int("status", p.StatusCode),
			zap.Int("size", p.Size),
			zap.Duration("duration", time.Since(p.TimeStamp)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{Status: h.modelServer.State().String()})
}

// Predict classifies the image uploaded in the multipart field "image".
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.logger.Debug("failed to parse form", zap.Error(err))
		h.uploadError(w, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.uploadError(w, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, model.MsgInvalidImage)
		return
	}
	h.logger.Debug("received file", zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	result, err := h.modelServer.PredictImage(data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Response())
}

// PredictTensorRequest carries an already preprocessed image.
type PredictTensorRequest struct {
	Image []float32 `json:"image"`
}

// PredictTensor classifies a JSON array of 28*28 intensities. The model server
// validates the length and range.
func (h *Handler) PredictTensor(w http.ResponseWriter, r *http.Request) {
	var req PredictTensorRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxUploadSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.modelServer.PredictTensor(req.Image)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Response())
}

// uploadError reports a multipart failure. Only a request without an image part is
// told "No image uploaded".
func (h *Handler) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, MsgImageTooLarge)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary), errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, model.MsgNoImage)
	default:
		writeError(w, http.StatusBadRequest, MsgMalformedUpload)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	msg := model.MsgPredictionFailed
	var e *model.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	switch model.KindOf(err) {
	case model.KindInvalidInput:
		writeError(w, http.StatusBadRequest, msg)
	case model.KindUnavailable:
		writeError(w, http.StatusServiceUnavailable, msg)
	default:
		h.logger.Error("prediction error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}
