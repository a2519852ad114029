package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
	"ACCIDENT_DETECTOR/go-backend/internal/pipeline"
	"ACCIDENT_DETECTOR/go-backend/internal/services"
)

// Server is the thin protocol adapter between WebSocket connections and the
// DetectionPipeline. It owns no business logic: frames go in, results and
// alerts go out.
type Server struct {
	registry *Registry
	pipeline *pipeline.DetectionPipeline
	metrics  *services.Metrics

	frameInterval  time.Duration
	idleTimeout    time.Duration
	maxMessageSize int64
}

func NewServer(registry *Registry, detection *pipeline.DetectionPipeline, metrics *services.Metrics, frameInterval, idleTimeout time.Duration, maxMessageSizeMB int) *Server {
	return &Server{
		registry:       registry,
		pipeline:       detection,
		metrics:        metrics,
		frameInterval:  frameInterval,
		idleTimeout:    idleTimeout,
		maxMessageSize: int64(maxMessageSizeMB) * 1024 * 1024,
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	// Каждое подключение получает свежий id — старые id не переиспользуются
	clientID := NewSessionID()
	client := NewClient(conn, clientID, KindProducer)

	s.registry.Register(clientID, client)
	s.metrics.IncrementWebSocketConnections()
	log.Printf("WebSocket client connected: %s", clientID)

	defer func() {
		s.registry.Unregister(clientID)
		client.Close()
		s.metrics.DecrementWebSocketConnections()
		log.Printf("WebSocket client disconnected: %s", clientID)
	}()

	go s.writePump(client)

	client.Send(models.PongMessage{
		Type:              "heartbeat",
		Timestamp:         time.Now().UnixMilli(),
		ActiveConnections: s.registry.Count(),
	})

	s.readPump(client)
}

// Цикл чтения из WebSocket. Кадры одной сессии обрабатываются строго
// последовательно — без конвейеризации внутри соединения.
func (s *Server) readPump(client *Client) {
	session := pipeline.NewFrameSession(client.ID, s.frameInterval)

	client.conn.SetReadLimit(s.maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(2 * s.idleTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(2 * s.idleTimeout))
		return nil
	})

	for {
		var msg models.ClientMessage
		err := client.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", client.ID, err)
				s.metrics.IncrementWebSocketErrors()
			}
			return
		}

		client.conn.SetReadDeadline(time.Now().Add(2 * s.idleTimeout))
		s.metrics.IncrementWebSocketMessages()

		switch msg.Type {
		case "ping":
			client.Send(models.PongMessage{
				Type:              "pong",
				Timestamp:         time.Now().UnixMilli(),
				ActiveConnections: s.registry.Count(),
			})

		case "subscribe":
			client.SetKind(KindSubscriber)
			log.Printf("Client %s subscribed to alerts", client.ID)
			client.Send(models.PongMessage{
				Type:              "heartbeat",
				Timestamp:         time.Now().UnixMilli(),
				ActiveConnections: s.registry.Count(),
			})

		case "frame":
			s.handleFrame(client, session, msg)

		default:
			client.Send(models.ErrorMessage{
				Type:    "error",
				Message: "unknown message type: " + msg.Type,
			})
		}
	}
}

func (s *Server) handleFrame(client *Client, session *pipeline.FrameSession, msg models.ClientMessage) {
	// Битый base64 доходит до шлюза пустым буфером и возвращается
	// результатом invalid_input
	data, err := base64.StdEncoding.DecodeString(msg.Frame)
	if err != nil {
		data = nil
	}

	seq := msg.SequenceNumber
	frameID := msg.FrameID
	if frameID == "" {
		frameID = fmt.Sprintf("%s-%d", client.ID, seq)
	}

	frame := models.Frame{
		FrameID:        frameID,
		SessionID:      client.ID,
		Data:           data,
		ReceivedAt:     time.Now(),
		SequenceNumber: seq,
	}

	result := s.pipeline.Process(context.Background(), frame, session, models.SourceLiveStream)

	client.Send(models.DetectionMessage{
		Type:            "detection_result",
		DetectionResult: *result,
		ClientID:        client.ID,
		SessionStats:    session.Stats(time.Now()),
	})
}

// Цикл отправки в WebSocket.
func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(s.idleTimeout)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			// Простой без сообщений: шлём keepalive вместо закрытия
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if err := client.conn.WriteJSON(models.PongMessage{
				Type:              "heartbeat",
				Timestamp:         time.Now().UnixMilli(),
				ActiveConnections: s.registry.Count(),
			}); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}
