package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"agenthost/internal/apperrors"
	"agenthost/internal/observability"
)

// Service drives a Backend on behalf of an external dispatcher.
//
// The Service is stateless apart from remembering that Initialize succeeded.
// Job existence lives in the backend, so several instances can serve the same
// backend. Nothing here retries: every backend error reaches the caller with
// its classification intact.
type Service struct {
	backend     Backend
	metrics     *observability.Metrics
	initialized atomic.Bool
}

// NewService creates a new provisioning service.
func NewService(backend Backend, metrics *observability.Metrics) *Service {
	return &Service{
		backend: backend,
		metrics: metrics,
	}
}

// Initialize prepares the backend. Safe to call more than once.
func (s *Service) Initialize(ctx context.Context) error {
	logger := slog.With("backend", s.backend.Kind())

	start := time.Now()
	err := s.backend.Initialize(ctx)
	s.recordOperation(ctx, "Initialize", start)
	if err != nil {
		logger.Error("Backend initialization failed", "error", err)
		return err
	}

	s.initialized.Store(true)
	if s.metrics != nil {
		s.metrics.RecordBackendInitialized(ctx, s.backend.Kind())
	}
	logger.Info("Backend initialized")
	return nil
}

// Ensure makes sure an agent job exists for the request.
// It creates the job only when the backend does not report it yet.
func (s *Service) Ensure(ctx context.Context, req *Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	requestID := *req.RequestID
	jobName := s.backend.JobName(requestID)
	logger := slog.With("backend", s.backend.Kind(), "requestId", requestID, "jobName", jobName, "pool", req.Pool)

	provisioned, err := s.isProvisioned(ctx, requestID)
	if err != nil {
		logger.Error("Job lookup failed", "error", err)
		return nil, err
	}
	if provisioned {
		logger.Debug("Job already provisioned")
		return &Result{RequestID: requestID, JobName: jobName}, nil
	}

	start := time.Now()
	err = s.backend.StartAgent(ctx, requestID, req.Pool)
	s.recordOperation(ctx, "StartAgent", start)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAgentStartError(ctx, s.backend.Kind(), errorKind(err))
		}
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Warn("Job was created concurrently", "error", err)
		} else {
			logger.Error("Agent failed to start", "error", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAgentStarted(ctx, s.backend.Kind())
	}
	logger.Info("Agent started")

	return &Result{RequestID: requestID, JobName: jobName, Created: true}, nil
}

// Provisioned reports whether the job for requestID exists.
func (s *Service) Provisioned(ctx context.Context, requestID int64) (*Status, error) {
	provisioned, err := s.isProvisioned(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &Status{
		RequestID:   requestID,
		JobName:     s.backend.JobName(requestID),
		Provisioned: provisioned,
	}, nil
}

// Ready reports whether the service can accept provisioning requests.
func (s *Service) Ready(ctx context.Context) error {
	if !s.initialized.Load() {
		return fmt.Errorf("%s backend not initialized", s.backend.Kind())
	}
	if rc, ok := s.backend.(ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

func (s *Service) isProvisioned(ctx context.Context, requestID int64) (bool, error) {
	start := time.Now()
	provisioned, err := s.backend.IsJobProvisioned(ctx, requestID)
	s.recordOperation(ctx, "IsJobProvisioned", start)
	if err != nil {
		return false, err
	}
	if s.metrics != nil {
		s.metrics.RecordProvisionCheck(ctx, s.backend.Kind(), provisioned)
	}
	return provisioned, nil
}

func (s *Service) recordOperation(ctx context.Context, op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordBackendOperation(ctx, s.backend.Kind(), op, time.Since(start).Seconds())
	}
}

// validate validates an ensure request. Does not modify the request.
func validate(req *Request) error {
	if req == nil || req.RequestID == nil {
		return apperrors.Validation("requestId", "requestId is required")
	}
	if req.Pool == "" {
		return apperrors.Validation("pool", "pool is required")
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrInternal):
		return "internal"
	default:
		return "other"
	}
}
