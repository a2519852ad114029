package pipeline

import (
	"time"

	"golang.org/x/time/rate"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// FrameSession keeps one producer connection's rate limiter and counters.
// Not safe for concurrent use: a session's frames are processed strictly
// sequentially by its owning connection handler.
type FrameSession struct {
	ID string

	limiter     *rate.Limiter
	connectedAt time.Time

	framesProcessed   int64
	totalProcessingMs float64
	lastFrameAt       time.Time
}

func NewFrameSession(id string, frameInterval time.Duration) *FrameSession {
	return &FrameSession{
		ID:          id,
		limiter:     rate.NewLimiter(rate.Every(frameInterval), 1),
		connectedAt: time.Now(),
	}
}

// Admit reports whether a frame arriving at now may be processed. A frame
// refused here is dropped, not queued: live sources produce frames faster
// than the model can handle and bounded latency wins over completeness.
func (s *FrameSession) Admit(now time.Time) bool {
	if !s.limiter.AllowN(now, 1) {
		return false
	}
	s.lastFrameAt = now
	return true
}

func (s *FrameSession) RecordResult(processingTimeMs float64) {
	s.framesProcessed++
	s.totalProcessingMs += processingTimeMs
}

func (s *FrameSession) Stats(now time.Time) models.SessionStats {
	stats := models.SessionStats{
		FramesProcessed: s.framesProcessed,
		UptimeMs:        now.Sub(s.connectedAt).Milliseconds(),
	}
	if s.framesProcessed > 0 {
		stats.AvgProcessingTimeMs = s.totalProcessingMs / float64(s.framesProcessed)
	}
	return stats
}
