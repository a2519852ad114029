package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
	"ACCIDENT_DETECTOR/go-backend/internal/services"
)

type fakeInferrer struct {
	fn    func(ctx context.Context, frame models.Frame) (*models.DetectionResult, error)
	calls int
}

func (f *fakeInferrer) Infer(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
	f.calls++
	return f.fn(ctx, frame)
}

type fakeStore struct {
	records []*models.DetectionRecord
	err     error
}

func (s *fakeStore) RecordDetection(ctx context.Context, rec *models.DetectionRecord) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.records = append(s.records, rec)
	return int64(len(s.records)), nil
}

type fakeAlerter struct {
	events []models.AlertEvent
}

func (a *fakeAlerter) Broadcast(event models.AlertEvent) int {
	a.events = append(a.events, event)
	return 1
}

func resultInferrer(detected bool, confidence float64) *fakeInferrer {
	class := models.ClassNormal
	if detected {
		class = models.ClassAccident
	}
	return &fakeInferrer{
		fn: func(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
			return &models.DetectionResult{
				AccidentDetected: detected,
				Confidence:       confidence,
				PredictedClass:   class,
			}, nil
		},
	}
}

func newPipeline(inf Inferrer, store Store, alerter Alerter) *DetectionPipeline {
	return NewDetectionPipeline(inf, store, alerter, services.NewMetrics(), 0.7, 0.0)
}

func TestDroppedSentinel(t *testing.T) {
	inf := resultInferrer(false, 0.1)
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	session := NewFrameSession("s1", 2*time.Second)
	base := time.Now()

	first := p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: base}, session, models.SourceLiveStream)
	if first.Dropped {
		t.Fatal("First frame must not be dropped")
	}

	second := p.Process(context.Background(), models.Frame{FrameID: "f2", SessionID: "s1", ReceivedAt: base.Add(500 * time.Millisecond)}, session, models.SourceLiveStream)
	if !second.Dropped {
		t.Fatal("Second frame 0.5s later must return the dropped sentinel")
	}
	if second.IsError() {
		t.Fatal("A dropped frame is not an error")
	}
	if inf.calls != 1 {
		t.Fatalf("Expected exactly 1 inference call, got %d", inf.calls)
	}
}

func TestErrorResultNeverPersisted(t *testing.T) {
	inf := &fakeInferrer{
		fn: func(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
			return nil, &services.InferenceError{Kind: services.ErrKindTimeout, Err: context.DeadlineExceeded}
		},
	}
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	result := p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: time.Now()}, nil, models.SourceUpload)

	if result.PredictedClass != models.ClassTimeout {
		t.Fatalf("Expected predicted_class=timeout, got %s", result.PredictedClass)
	}
	if result.ErrorKind != services.ErrKindTimeout {
		t.Fatalf("Expected error tag timeout, got %q", result.ErrorKind)
	}
	if result.AccidentDetected || result.Confidence != 0 {
		t.Fatal("Error results must report no detection with zero confidence")
	}
	if len(store.records) != 0 {
		t.Fatal("An error result must never reach the store")
	}
	if len(alerter.events) != 0 {
		t.Fatal("An error result must never trigger an alert")
	}
}

func TestInvalidInputErrorTag(t *testing.T) {
	inf := &fakeInferrer{
		fn: func(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
			return nil, &services.InferenceError{Kind: services.ErrKindInvalidInput}
		},
	}
	p := newPipeline(inf, &fakeStore{}, &fakeAlerter{})

	result := p.Process(context.Background(), models.Frame{FrameID: "f1"}, nil, models.SourceUpload)
	if result.PredictedClass != models.ClassInvalidInput {
		t.Fatalf("Expected predicted_class=invalid_input, got %s", result.PredictedClass)
	}
}

func TestGenericErrorTag(t *testing.T) {
	inf := &fakeInferrer{
		fn: func(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
			return nil, errors.New("boom")
		},
	}
	p := newPipeline(inf, &fakeStore{}, &fakeAlerter{})

	result := p.Process(context.Background(), models.Frame{FrameID: "f1"}, nil, models.SourceUpload)
	if result.PredictedClass != models.ClassError {
		t.Fatalf("Expected predicted_class=error, got %s", result.PredictedClass)
	}
	if result.ErrorKind != services.ErrKindInternal {
		t.Fatalf("Expected internal error tag, got %q", result.ErrorKind)
	}
}

func TestLiveStreamAccidentPersistedAndBroadcast(t *testing.T) {
	inf := resultInferrer(true, 0.92)
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	session := NewFrameSession("s1", time.Second)
	result := p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: time.Now()}, session, models.SourceLiveStream)

	if len(store.records) != 1 {
		t.Fatalf("Live-stream accident must be persisted, got %d records", len(store.records))
	}
	rec := store.records[0]
	if rec.Status != models.StatusUnresolved {
		t.Fatalf("New record must be unresolved, got %s", rec.Status)
	}
	if rec.SeverityEstimate != models.SeverityHigh {
		t.Fatalf("Confidence 0.92 must estimate high severity, got %s", rec.SeverityEstimate)
	}
	if rec.VideoSource != string(models.SourceLiveStream) {
		t.Fatalf("Wrong video source: %s", rec.VideoSource)
	}

	if len(alerter.events) != 1 {
		t.Fatalf("Confidence 0.92 >= 0.7 must broadcast, got %d events", len(alerter.events))
	}
	event := alerter.events[0]
	if event.Severity != models.SeverityHigh {
		t.Fatalf("Expected high severity alert, got %s", event.Severity)
	}
	if event.SourceSessionID != "s1" {
		t.Fatalf("Alert must reference the source session, got %s", event.SourceSessionID)
	}
	if event.ID != result.RecordID || result.RecordID == 0 {
		t.Fatalf("Alert id must match the persisted record id (%d vs %d)", event.ID, result.RecordID)
	}

	stats := session.Stats(time.Now())
	if stats.FramesProcessed != 1 {
		t.Fatalf("Session must count the processed frame, got %d", stats.FramesProcessed)
	}
}

func TestUploadLowConfidencePersistedNotBroadcast(t *testing.T) {
	inf := resultInferrer(false, 0.3)
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "u1", ReceivedAt: time.Now()}, nil, models.SourceUpload)

	if len(store.records) != 1 {
		t.Fatalf("Uploads persist always, got %d records", len(store.records))
	}
	if store.records[0].SeverityEstimate != "" {
		t.Fatal("No severity estimate for a negative detection")
	}
	if len(alerter.events) != 0 {
		t.Fatalf("No alert expected for a negative detection, got %d", len(alerter.events))
	}
}

func TestLiveStreamNormalNotPersisted(t *testing.T) {
	inf := resultInferrer(false, 0.6)
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	session := NewFrameSession("s1", time.Second)
	p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: time.Now()}, session, models.SourceLiveStream)

	if len(store.records) != 0 {
		t.Fatalf("Live-stream frames without an accident are not persisted, got %d records", len(store.records))
	}
}

func TestAccidentBelowAlertThresholdNotBroadcast(t *testing.T) {
	inf := resultInferrer(true, 0.65)
	store := &fakeStore{}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	session := NewFrameSession("s1", time.Second)
	p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: time.Now()}, session, models.SourceLiveStream)

	if len(store.records) != 1 {
		t.Fatal("Accident must still be persisted")
	}
	if len(alerter.events) != 0 {
		t.Fatalf("Confidence 0.65 < 0.7 must not broadcast, got %d events", len(alerter.events))
	}
}

func TestStorageFailureSwallowed(t *testing.T) {
	inf := resultInferrer(true, 0.9)
	store := &fakeStore{err: errors.New("connection refused")}
	alerter := &fakeAlerter{}
	p := newPipeline(inf, store, alerter)

	session := NewFrameSession("s1", time.Second)
	result := p.Process(context.Background(), models.Frame{FrameID: "f1", SessionID: "s1", ReceivedAt: time.Now()}, session, models.SourceLiveStream)

	if result.IsError() {
		t.Fatal("Storage failure must not turn the result into an error")
	}
	if result.RecordID != 0 {
		t.Fatalf("No record id on storage failure, got %d", result.RecordID)
	}
	// Оповещение всё равно отправляется, с эфемерным id
	if len(alerter.events) != 1 {
		t.Fatalf("Storage failure must not block the broadcast, got %d events", len(alerter.events))
	}
}
