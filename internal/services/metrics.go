package services

import (
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	totalFrames   atomic.Int64
	totalErrors   atomic.Int64
	totalDropped  atomic.Int64
	totalAlerts   atomic.Int64
	accidents     atomic.Int64
	totalLatency  atomic.Int64
	lastFrameTime atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64

	startedAt time.Time
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = NewMetrics()
	})
	return metricsInstance
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) IncrementDropped() {
	m.totalDropped.Add(1)
}

func (m *Metrics) IncrementAlerts() {
	m.totalAlerts.Add(1)
}

func (m *Metrics) IncrementAccidents() {
	m.accidents.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Milliseconds())
}

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetTotalErrors() int64 {
	return m.totalErrors.Load()
}

func (m *Metrics) GetTotalDropped() int64 {
	return m.totalDropped.Load()
}

func (m *Metrics) GetTotalAlerts() int64 {
	return m.totalAlerts.Load()
}

func (m *Metrics) GetAccidents() int64 {
	return m.accidents.Load()
}

func (m *Metrics) GetAvgLatency() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames)
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startedAt)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

// DecrementWebSocketConnections decrements WebSocket connection count
func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

// GetWebSocketConnections returns current WebSocket connections
func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

// IncrementWebSocketMessages increments WebSocket message count
func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

// GetWebSocketMessages returns total WebSocket messages
func (m *Metrics) GetWebSocketMessages() int64 {
	return m.wsMessages.Load()
}

// IncrementWebSocketErrors increments WebSocket error count
func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

// GetWebSocketErrors returns total WebSocket errors
func (m *Metrics) GetWebSocketErrors() int64 {
	return m.wsErrors.Load()
}

// Snapshot returns all counters for the metrics endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_frames":      m.totalFrames.Load(),
		"total_errors":      m.totalErrors.Load(),
		"dropped_frames":    m.totalDropped.Load(),
		"alerts_sent":       m.totalAlerts.Load(),
		"accidents":         m.accidents.Load(),
		"avg_latency_ms":    m.GetAvgLatency(),
		"ws_connections":    m.wsConnections.Load(),
		"ws_messages":       m.wsMessages.Load(),
		"ws_errors":         m.wsErrors.Load(),
		"system_uptime_sec": int(m.GetUptime().Seconds()),
	}
}
