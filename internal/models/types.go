package models

import "time"

// Классы предсказаний, которые может вернуть пайплайн.
const (
	ClassAccident       = "accident"
	ClassNormal         = "normal"
	ClassTimeout        = "timeout"
	ClassInvalidInput   = "invalid_input"
	ClassModelNotLoaded = "model_not_loaded"
	ClassError          = "error"
)

type SourceKind string

const (
	SourceUpload     SourceKind = "upload"
	SourceLiveStream SourceKind = "live_stream"
)

// Frame is one image buffer travelling through the pipeline. It lives for a
// single Process call and is owned by that call.
type Frame struct {
	FrameID        string
	SessionID      string
	Data           []byte
	ReceivedAt     time.Time
	SequenceNumber int64
}

type DetectionResult struct {
	AccidentDetected bool    `json:"accident_detected"`
	Confidence       float64 `json:"confidence"`
	PredictedClass   string  `json:"predicted_class"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	FrameID          string  `json:"frame_id,omitempty"`
	RecordID         int64   `json:"record_id,omitempty"`
	Dropped          bool    `json:"dropped,omitempty"`
	ErrorKind        string  `json:"error,omitempty"`
	Timestamp        int64   `json:"timestamp"`
}

// IsError reports whether the result carries an error tag. Results with an
// error tag are never persisted as confirmed detections.
func (r *DetectionResult) IsError() bool {
	return r.ErrorKind != ""
}

type AlertEvent struct {
	ID              int64   `json:"id,omitempty"`
	Confidence      float64 `json:"confidence"`
	Location        string  `json:"location,omitempty"`
	Timestamp       int64   `json:"timestamp"`
	Severity        string  `json:"severity"`
	SourceSessionID string  `json:"source_session_id"`
}

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	// confidence >= 0.85 считается high
	highSeverityThreshold = 0.85
)

func SeverityFor(confidence float64) string {
	if confidence >= highSeverityThreshold {
		return SeverityHigh
	}
	return SeverityMedium
}

type SessionStats struct {
	FramesProcessed     int64   `json:"frames_processed"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	UptimeMs            int64   `json:"uptime_ms"`
}

// Сообщения WebSocket протокола.

type ClientMessage struct {
	Type           string `json:"type"`
	Frame          string `json:"frame,omitempty"`
	FrameID        string `json:"frame_id,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	SequenceNumber int64  `json:"sequence_number,omitempty"`
}

type DetectionMessage struct {
	Type string `json:"type"`
	DetectionResult
	ClientID     string       `json:"client_id"`
	SessionStats SessionStats `json:"session_stats"`
}

type PongMessage struct {
	Type              string `json:"type"`
	Timestamp         int64  `json:"timestamp"`
	ActiveConnections int    `json:"active_connections"`
}

type AlertMessage struct {
	Type string     `json:"type"`
	Data AlertEvent `json:"data"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
