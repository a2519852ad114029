package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

func solidJPEG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestHeuristicAlwaysReportsModelNotLoaded(t *testing.T) {
	h := NewHeuristicClassifier()
	defer h.Close()

	frame := models.Frame{FrameID: "f1", SessionID: "s1", Data: solidJPEG(t, color.RGBA{0, 0, 0, 255}), ReceivedAt: time.Now()}
	res, err := h.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.PredictedClass != models.ClassModelNotLoaded {
		t.Fatalf("Expected %s, got %s", models.ClassModelNotLoaded, res.PredictedClass)
	}
	if res.AccidentDetected {
		t.Fatal("Heuristic must never claim a confirmed accident")
	}
}

func TestHeuristicMotionScore(t *testing.T) {
	h := NewHeuristicClassifier()
	defer h.Close()

	dark := models.Frame{FrameID: "f1", SessionID: "s1", Data: solidJPEG(t, color.RGBA{10, 10, 10, 255})}
	bright := models.Frame{FrameID: "f2", SessionID: "s1", Data: solidJPEG(t, color.RGBA{240, 240, 240, 255})}

	first, err := h.Detect(context.Background(), dark)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if first.Confidence != 0 {
		t.Fatalf("First frame has no reference, expected score 0, got %f", first.Confidence)
	}

	second, err := h.Detect(context.Background(), bright)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if second.Confidence <= 0.5 {
		t.Fatalf("Dark-to-bright jump should score high, got %f", second.Confidence)
	}

	// После Forget опорный кадр сбрасывается
	h.Forget("s1")
	third, err := h.Detect(context.Background(), dark)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if third.Confidence != 0 {
		t.Fatalf("Expected score 0 after Forget, got %f", third.Confidence)
	}
}

func TestHeuristicInvalidInput(t *testing.T) {
	h := NewHeuristicClassifier()
	defer h.Close()

	_, err := h.Detect(context.Background(), models.Frame{FrameID: "f", SessionID: "s", Data: []byte("junk")})
	if err == nil {
		t.Fatal("Expected error for undecodable frame")
	}
}
