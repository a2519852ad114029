package storage

import (
	"context"
	"database/sql"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// DetectionStore persists detection records produced by the pipeline.
type DetectionStore struct {
	db *sql.DB
}

func NewDetectionStore(db *sql.DB) *DetectionStore {
	return &DetectionStore{db: db}
}

func (s *DetectionStore) RecordDetection(ctx context.Context, rec *models.DetectionRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO detections
		 (frame_id, video_source, confidence, accident_detected, predicted_class,
		  processing_time, snapshot_url, status, location, severity_estimate, user_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''))
		 RETURNING id`,
		rec.FrameID, rec.VideoSource, rec.Confidence, rec.AccidentDetected, rec.PredictedClass,
		rec.ProcessingTime, rec.SnapshotURL, rec.Status, rec.Location, rec.SeverityEstimate,
		rec.UserID, rec.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *DetectionStore) LoadRecent(ctx context.Context, limit int) ([]models.DetectionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, frame_id, video_source, confidence, accident_detected, predicted_class,
		        processing_time, COALESCE(snapshot_url, ''), status, COALESCE(location, ''),
		        COALESCE(severity_estimate, ''), created_at, user_id, COALESCE(created_by, '')
		 FROM detections ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DetectionRecord
	for rows.Next() {
		var rec models.DetectionRecord
		var userID sql.NullInt32
		err := rows.Scan(&rec.ID, &rec.FrameID, &rec.VideoSource, &rec.Confidence,
			&rec.AccidentDetected, &rec.PredictedClass, &rec.ProcessingTime, &rec.SnapshotURL,
			&rec.Status, &rec.Location, &rec.SeverityEstimate, &rec.CreatedAt, &userID, &rec.CreatedBy)
		if err != nil {
			continue
		}
		if userID.Valid {
			uid := int(userID.Int32)
			rec.UserID = &uid
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *DetectionStore) Resolve(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`UPDATE detections SET status = $1 WHERE id = $2`,
		models.StatusResolved, id,
	)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
