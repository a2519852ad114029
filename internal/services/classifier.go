package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// Classifier is the black-box accident model. Detect is assumed to be
// computationally heavy and possibly non-preemptible; callers go through
// the InferenceGateway rather than calling it directly.
type Classifier interface {
	Detect(ctx context.Context, frame models.Frame) (*models.DetectionResult, error)
	Healthy() bool
	Close() error
}

// Виды ошибок инференса.
const (
	ErrKindInvalidInput   = "invalid_input"
	ErrKindTimeout        = "timeout"
	ErrKindModelNotLoaded = "model_not_loaded"
	ErrKindInternal       = "internal"
	ErrKindShuttingDown   = "shutting_down"
)

type InferenceError struct {
	Kind string
	Err  error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference %s: %v", e.Kind, e.Err)
	}
	return "inference " + e.Kind
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// ValidateFrame rejects frames the model cannot possibly decode: empty
// buffers and byte streams that are not a known image format. Runs on the
// caller's goroutine, never occupies a pool slot.
func ValidateFrame(frame models.Frame) error {
	if len(frame.Data) == 0 {
		return &InferenceError{Kind: ErrKindInvalidInput, Err: fmt.Errorf("empty frame buffer")}
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(frame.Data)); err != nil {
		return &InferenceError{Kind: ErrKindInvalidInput, Err: fmt.Errorf("undecodable frame: %w", err)}
	}
	return nil
}
