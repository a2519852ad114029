package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DetectionRecord is the persisted shape of one detection.
type DetectionRecord struct {
	ID               int64     `json:"id"`
	FrameID          string    `json:"frame_id"`
	VideoSource      string    `json:"video_source"`
	Confidence       float64   `json:"confidence"`
	AccidentDetected bool      `json:"accident_detected"`
	PredictedClass   string    `json:"predicted_class"`
	ProcessingTime   float64   `json:"processing_time"`
	SnapshotURL      string    `json:"snapshot_url,omitempty"`
	Status           string    `json:"status"`
	Location         string    `json:"location,omitempty"`
	SeverityEstimate string    `json:"severity_estimate,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UserID           *int      `json:"user_id,omitempty"`
	CreatedBy        string    `json:"created_by,omitempty"`
}

const (
	StatusUnresolved = "unresolved"
	StatusResolved   = "resolved"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
