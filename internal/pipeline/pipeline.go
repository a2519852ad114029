package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
	"ACCIDENT_DETECTOR/go-backend/internal/services"
)

// Inferrer is what the pipeline needs from the InferenceGateway.
type Inferrer interface {
	Infer(ctx context.Context, frame models.Frame) (*models.DetectionResult, error)
}

// Store is the persistence collaborator. Failures are logged and swallowed:
// a detection result is always returned to the caller.
type Store interface {
	RecordDetection(ctx context.Context, rec *models.DetectionRecord) (int64, error)
}

// Alerter fans a detection event out to subscribers. Returns the number of
// deliveries that succeeded.
type Alerter interface {
	Broadcast(event models.AlertEvent) int
}

// DetectionPipeline orchestrates one frame's journey: admit -> infer ->
// persist? -> alert? -> stats. It knows nothing about the connection
// protocol; adapters (WebSocket handler, upload handler) call Process.
type DetectionPipeline struct {
	gateway Inferrer
	store   Store
	alerter Alerter
	metrics *services.Metrics

	alertThreshold       float64
	persistenceThreshold float64
}

func NewDetectionPipeline(gateway Inferrer, store Store, alerter Alerter, metrics *services.Metrics, alertThreshold, persistenceThreshold float64) *DetectionPipeline {
	return &DetectionPipeline{
		gateway:              gateway,
		store:                store,
		alerter:              alerter,
		metrics:              metrics,
		alertThreshold:       alertThreshold,
		persistenceThreshold: persistenceThreshold,
	}
}

// Process runs one frame through the pipeline. session may be nil for
// one-shot uploads that have no rate limiting or per-connection stats.
// The returned result is never nil and carries an error tag instead of a
// Go error for every failure mode past admission.
func (p *DetectionPipeline) Process(ctx context.Context, frame models.Frame, session *FrameSession, source models.SourceKind) *models.DetectionResult {
	// 1. Ограничение частоты кадров: лишние кадры молча отбрасываются
	if session != nil && !session.Admit(frame.ReceivedAt) {
		p.metrics.IncrementDropped()
		return &models.DetectionResult{
			Dropped:   true,
			FrameID:   frame.FrameID,
			Timestamp: time.Now().UnixMilli(),
		}
	}

	start := time.Now()
	result, err := p.gateway.Infer(ctx, frame)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	// 2. Любая ошибка инференса возвращается как обычный результат с тегом;
	// такие результаты никогда не сохраняются как подтверждённое "no accident"
	if err != nil {
		p.metrics.IncrementErrors()
		result = errorResult(frame, err, elapsed)
		if session != nil {
			session.RecordResult(elapsed)
		}
		return result
	}

	result.FrameID = frame.FrameID
	result.ProcessingTimeMs = elapsed
	p.metrics.IncrementFrames()
	p.metrics.RecordLatency(time.Since(start))
	if result.AccidentDetected {
		p.metrics.IncrementAccidents()
	}

	// 3. Персистентность: загрузки сохраняются всегда (выше порога),
	// live-stream только при обнаружении аварии
	if p.shouldPersist(result, source) {
		if id, perr := p.persist(ctx, frame, result, source); perr != nil {
			log.Printf("Failed to persist detection for frame %s: %v", frame.FrameID, perr)
		} else {
			result.RecordID = id
		}
	}

	// 4. Оповещение подписчиков
	if result.AccidentDetected && result.Confidence >= p.alertThreshold {
		event := models.AlertEvent{
			ID:              result.RecordID,
			Confidence:      result.Confidence,
			Timestamp:       time.Now().UnixMilli(),
			Severity:        models.SeverityFor(result.Confidence),
			SourceSessionID: frame.SessionID,
		}
		delivered := p.alerter.Broadcast(event)
		p.metrics.IncrementAlerts()
		log.Printf("Accident alert: confidence=%.2f severity=%s delivered=%d", event.Confidence, event.Severity, delivered)
	}

	// 5. Статистика сессии
	if session != nil {
		session.RecordResult(result.ProcessingTimeMs)
	}

	return result
}

func (p *DetectionPipeline) shouldPersist(result *models.DetectionResult, source models.SourceKind) bool {
	if result.IsError() || p.store == nil {
		return false
	}
	switch source {
	case models.SourceLiveStream:
		return result.AccidentDetected
	default:
		return result.Confidence >= p.persistenceThreshold
	}
}

func (p *DetectionPipeline) persist(ctx context.Context, frame models.Frame, result *models.DetectionResult, source models.SourceKind) (int64, error) {
	rec := &models.DetectionRecord{
		FrameID:          frame.FrameID,
		VideoSource:      string(source),
		Confidence:       result.Confidence,
		AccidentDetected: result.AccidentDetected,
		PredictedClass:   result.PredictedClass,
		ProcessingTime:   result.ProcessingTimeMs,
		Status:           models.StatusUnresolved,
		CreatedBy:        frame.SessionID,
	}
	if result.AccidentDetected {
		rec.SeverityEstimate = models.SeverityFor(result.Confidence)
	}
	return p.store.RecordDetection(ctx, rec)
}

func errorResult(frame models.Frame, err error, elapsedMs float64) *models.DetectionResult {
	kind := services.ErrKindInternal
	var ie *services.InferenceError
	if errors.As(err, &ie) {
		kind = ie.Kind
	}

	class := models.ClassError
	switch kind {
	case services.ErrKindTimeout:
		class = models.ClassTimeout
	case services.ErrKindInvalidInput:
		class = models.ClassInvalidInput
	case services.ErrKindModelNotLoaded:
		class = models.ClassModelNotLoaded
	}

	return &models.DetectionResult{
		AccidentDetected: false,
		Confidence:       0,
		PredictedClass:   class,
		ProcessingTimeMs: elapsedMs,
		FrameID:          frame.FrameID,
		ErrorKind:        kind,
		Timestamp:        time.Now().UnixMilli(),
	}
}
