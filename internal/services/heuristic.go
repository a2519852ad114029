package services

import (
	"bytes"
	"context"
	"image"
	"sync"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// HeuristicClassifier is the FallbackHeuristic variant: a cheap motion
// estimate from luminance deltas between consecutive frames of one source.
// Its results always carry predicted_class="model_not_loaded" so clients
// can tell degraded output from the real model.
type HeuristicClassifier struct {
	mu   sync.Mutex
	prev map[string][]float64
}

func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{prev: make(map[string][]float64)}
}

// Размер сетки для сравнения яркости
const lumaGrid = 16

func (h *HeuristicClassifier) Detect(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
	start := time.Now()

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, &InferenceError{Kind: ErrKindInvalidInput, Err: err}
	}

	luma := sampleLuma(img)

	h.mu.Lock()
	prev, ok := h.prev[frame.SessionID]
	h.prev[frame.SessionID] = luma
	h.mu.Unlock()

	score := 0.0
	if ok {
		score = motionScore(prev, luma)
	}

	return &models.DetectionResult{
		AccidentDetected: false,
		Confidence:       score,
		PredictedClass:   models.ClassModelNotLoaded,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		FrameID:          frame.FrameID,
		Timestamp:        time.Now().UnixMilli(),
	}, nil
}

func (h *HeuristicClassifier) Healthy() bool { return true }

func (h *HeuristicClassifier) Close() error {
	h.mu.Lock()
	h.prev = make(map[string][]float64)
	h.mu.Unlock()
	return nil
}

// Forget drops the stored reference frame for a source. Called when that
// source's session ends.
func (h *HeuristicClassifier) Forget(sessionID string) {
	h.mu.Lock()
	delete(h.prev, sessionID)
	h.mu.Unlock()
}

func sampleLuma(img image.Image) []float64 {
	bounds := img.Bounds()
	w, hgt := bounds.Dx(), bounds.Dy()
	out := make([]float64, 0, lumaGrid*lumaGrid)

	for gy := 0; gy < lumaGrid; gy++ {
		for gx := 0; gx < lumaGrid; gx++ {
			x := bounds.Min.X + gx*w/lumaGrid
			y := bounds.Min.Y + gy*hgt/lumaGrid
			r, g, b, _ := img.At(x, y).RGBA()
			// яркость по ITU-R BT.601
			out = append(out, (0.299*float64(r)+0.587*float64(g)+0.114*float64(b))/65535.0)
		}
	}
	return out
}

func motionScore(prev, cur []float64) float64 {
	if len(prev) != len(cur) || len(cur) == 0 {
		return 0
	}
	sum := 0.0
	for i := range cur {
		d := cur[i] - prev[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	score := sum / float64(len(cur)) * 4.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// StubClassifier is the fully degraded mode: the model failed to load and
// no fallback heuristic was enabled. Every frame comes back as
// model_not_loaded instead of crashing the service.
type StubClassifier struct{}

func (StubClassifier) Detect(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
	return &models.DetectionResult{
		AccidentDetected: false,
		Confidence:       0,
		PredictedClass:   models.ClassModelNotLoaded,
		FrameID:          frame.FrameID,
		Timestamp:        time.Now().UnixMilli(),
	}, nil
}

func (StubClassifier) Healthy() bool { return false }
func (StubClassifier) Close() error  { return nil }
