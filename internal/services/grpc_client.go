package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// jsonCodec lets the Go backend talk to the Python model service over gRPC
// without a protoc codegen step on either side.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const detectMethod = "/accident.AccidentDetection/Detect"

type detectRequest struct {
	ImageData      []byte `json:"image_data"`
	FrameID        string `json:"frame_id,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	SequenceNumber int64  `json:"sequence_number,omitempty"`
}

type detectResponse struct {
	AccidentDetected bool    `json:"accident_detected"`
	Confidence       float64 `json:"confidence"`
	PredictedClass   string  `json:"predicted_class"`
	InferenceTimeMs  float64 `json:"inference_time_ms"`
}

// GRPCClassifier is the RealModel variant: a client for the external
// model service.
type GRPCClassifier struct {
	conn   *grpc.ClientConn
	health grpc_health_v1.HealthClient
	url    string
}

func NewGRPCClassifier(url string) (*GRPCClassifier, error) {
	log.Printf("Connecting to model service gRPC at %s", url)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
			grpc.CallContentSubtype("json"),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.Dial(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to model service at %s: %w", url, err)
	}

	// Проверяем, что сервис действительно отвечает
	client := &GRPCClassifier{
		conn:   conn,
		health: grpc_health_v1.NewHealthClient(conn),
		url:    url,
	}
	if !client.Healthy() {
		conn.Close()
		return nil, fmt.Errorf("model service at %s is not healthy", url)
	}

	log.Printf("Connected to model service at %s", url)
	return client, nil
}

func (gc *GRPCClassifier) Detect(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
	req := &detectRequest{
		ImageData:      frame.Data,
		FrameID:        frame.FrameID,
		Timestamp:      frame.ReceivedAt.UnixMilli(),
		SequenceNumber: frame.SequenceNumber,
	}

	var resp detectResponse
	if err := gc.conn.Invoke(ctx, detectMethod, req, &resp); err != nil {
		return nil, fmt.Errorf("model detect call failed: %w", err)
	}

	class := resp.PredictedClass
	if class == "" {
		class = models.ClassNormal
		if resp.AccidentDetected {
			class = models.ClassAccident
		}
	}

	return &models.DetectionResult{
		AccidentDetected: resp.AccidentDetected,
		Confidence:       resp.Confidence,
		PredictedClass:   class,
		ProcessingTimeMs: resp.InferenceTimeMs,
		FrameID:          frame.FrameID,
		Timestamp:        time.Now().UnixMilli(),
	}, nil
}

func (gc *GRPCClassifier) Healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := gc.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return false
	}
	return resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
}

func (gc *GRPCClassifier) Close() error {
	if gc.conn != nil {
		return gc.conn.Close()
	}
	return nil
}
