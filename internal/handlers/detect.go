package handlers

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
	"ACCIDENT_DETECTOR/go-backend/internal/realtime"
)

// Detect runs a single uploaded image through the pipeline. Uploads are not
// rate limited and use the persist-always policy.
func (a *API) Detect(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ClientMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Frame)
	if err != nil {
		data = nil
	}

	frameID := req.FrameID
	if frameID == "" {
		frameID = realtime.NewSessionID()
	}

	frame := models.Frame{
		FrameID:        frameID,
		SessionID:      "upload",
		Data:           data,
		ReceivedAt:     time.Now(),
		SequenceNumber: req.SequenceNumber,
	}

	result := a.pipeline.Process(r.Context(), frame, nil, models.SourceUpload)

	log.Printf("/api/detect frame=%s class=%s confidence=%.2f", frameID, result.PredictedClass, result.Confidence)
	json.NewEncoder(w).Encode(result)
}

// RecentAlerts returns the newest detection records for the dashboard.
func (a *API) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := a.store.LoadRecent(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to load recent detections: %v", err)
		http.Error(w, "Failed to fetch alerts", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.DetectionRecord{}
	}

	json.NewEncoder(w).Encode(records)
}

// ResolveAlert flips a detection's status to resolved.
func (a *API) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, exists := a.userIDFromCookie(r); !exists {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	if err := a.store.Resolve(r.Context(), id); err == sql.ErrNoRows {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("Failed to resolve alert %d: %v", id, err)
		http.Error(w, "Failed to resolve alert", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Alert resolved"))
	log.Printf("Alert resolved: %d", id)
}

// Health reports service liveness and classifier state.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	if !a.gateway.Healthy() {
		status = "degraded"
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          status,
		"model_loaded":    a.gateway.Healthy(),
		"active_clients":  a.registry.Count(),
		"total_processed": a.metrics.GetTotalFrames(),
		"total_errors":    a.metrics.GetTotalErrors(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// MetricsHandler exposes the counter snapshot.
func (a *API) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	a.enableCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := a.metrics.Snapshot()
	snapshot["active_clients"] = a.registry.Count()
	snapshot["inference_in_flight"] = a.gateway.InFlight()
	snapshot["timestamp"] = time.Now().Format(time.RFC3339)

	json.NewEncoder(w).Encode(snapshot)
}
