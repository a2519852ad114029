package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// InferenceGateway bounds concurrent model calls with a fixed pool of slots
// and enforces a wall-clock timeout per call.
//
// Timeout caveat: the gateway cannot preempt the underlying model call. On
// timeout the caller gets InferenceError(timeout) immediately, but the pool
// slot is returned only when the call itself finishes. If the classifier
// honors context cancellation (the gRPC variant does) the slot frees
// promptly; otherwise it stays busy for up to the model's own worst-case
// latency.
type InferenceGateway struct {
	classifier Classifier
	slots      chan struct{}
	timeout    time.Duration
	closed     atomic.Bool
	wg         sync.WaitGroup
}

func NewInferenceGateway(classifier Classifier, poolSize int, timeout time.Duration) *InferenceGateway {
	if poolSize < 1 {
		poolSize = 1
	}
	return &InferenceGateway{
		classifier: classifier,
		slots:      make(chan struct{}, poolSize),
		timeout:    timeout,
	}
}

// Infer runs the frame through the classifier. Malformed input fails
// synchronously without occupying a pool slot; calls beyond pool capacity
// queue until a slot frees or the timeout expires.
func (g *InferenceGateway) Infer(ctx context.Context, frame models.Frame) (*models.DetectionResult, error) {
	if err := ValidateFrame(frame); err != nil {
		return nil, err
	}
	if g.closed.Load() {
		return nil, &InferenceError{Kind: ErrKindShuttingDown}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Очередь за слотом — таймаут покрывает и ожидание
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, &InferenceError{Kind: ErrKindTimeout, Err: ctx.Err()}
	}

	type outcome struct {
		res *models.DetectionResult
		err error
	}
	done := make(chan outcome, 1)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		res, err := g.classifier.Detect(ctx, frame)
		<-g.slots // слот возвращается только после завершения вызова
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			var ie *InferenceError
			if errors.As(out.err, &ie) {
				return nil, ie
			}
			return nil, &InferenceError{Kind: ErrKindInternal, Err: out.err}
		}
		return out.res, nil
	case <-ctx.Done():
		return nil, &InferenceError{Kind: ErrKindTimeout, Err: ctx.Err()}
	}
}

// Healthy reports whether the underlying classifier is usable.
func (g *InferenceGateway) Healthy() bool {
	return !g.closed.Load() && g.classifier.Healthy()
}

// InFlight returns the number of occupied pool slots.
func (g *InferenceGateway) InFlight() int {
	return len(g.slots)
}

// DrainAndClose stops accepting new work and waits up to grace for in-flight
// calls before giving up on them. Used during orderly shutdown.
func (g *InferenceGateway) DrainAndClose(grace time.Duration) error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Inference pool drained")
	case <-time.After(grace):
		log.Printf("Inference pool drain timed out, %d call(s) abandoned", g.InFlight())
	}
	return g.classifier.Close()
}
