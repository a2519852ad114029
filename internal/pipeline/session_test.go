package pipeline

import (
	"testing"
	"time"
)

func TestAdmitRateLimiting(t *testing.T) {
	interval := 2 * time.Second
	s := NewFrameSession("s1", interval)
	base := time.Now()

	if !s.Admit(base) {
		t.Fatal("First frame must be admitted")
	}
	if s.Admit(base.Add(500 * time.Millisecond)) {
		t.Fatal("Frame 0.5s after the last admitted one must be dropped")
	}
	if s.Admit(base.Add(1900 * time.Millisecond)) {
		t.Fatal("Frame still inside the interval window must be dropped")
	}
	if !s.Admit(base.Add(2100 * time.Millisecond)) {
		t.Fatal("Frame after the interval elapsed must be admitted")
	}
}

func TestAdmitBurstOfFrames(t *testing.T) {
	s := NewFrameSession("s1", 2*time.Second)
	base := time.Now()

	admitted := 0
	// 10 кадров за полсекунды
	for i := 0; i < 10; i++ {
		if s.Admit(base.Add(time.Duration(i) * 50 * time.Millisecond)) {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("Expected exactly 1 admitted frame in a sub-interval burst, got %d", admitted)
	}
}

func TestSessionStats(t *testing.T) {
	s := NewFrameSession("s1", time.Second)

	s.RecordResult(100)
	s.RecordResult(300)

	stats := s.Stats(time.Now())
	if stats.FramesProcessed != 2 {
		t.Fatalf("Expected 2 frames processed, got %d", stats.FramesProcessed)
	}
	if stats.AvgProcessingTimeMs != 200 {
		t.Fatalf("Expected avg 200ms, got %f", stats.AvgProcessingTimeMs)
	}
	if stats.UptimeMs < 0 {
		t.Fatalf("Uptime must be non-negative, got %d", stats.UptimeMs)
	}
}

func TestSessionStatsEmpty(t *testing.T) {
	s := NewFrameSession("s1", time.Second)
	stats := s.Stats(time.Now())
	if stats.FramesProcessed != 0 || stats.AvgProcessingTimeMs != 0 {
		t.Fatalf("Fresh session must report zero stats, got %+v", stats)
	}
}
