// Package dashboard serves the summary, SLA and sample-data operations
// through the resilient executor.
package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/synth"
)

// Executor runs logical requests. *gateway.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, req api.Request) api.Envelope
}

// Service wraps the dashboard operations.
type Service struct {
	exec   Executor
	logger *zap.Logger
}

// New builds a Service.
func New(exec Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{exec: exec, logger: logger}
}

// Summary returns board statistics. A backend that answers without a
// statistics object yields the placeholder statistics.
func (s *Service) Summary(ctx context.Context) api.DashboardStats {
	env := s.exec.Execute(ctx, api.DashboardSummary())
	if env.Data == nil {
		s.logger.Debug("summary response carried no statistics")
		return *synth.Stats()
	}
	return *env.Data
}

// SLA returns SLA targets and measurements.
func (s *Service) SLA(ctx context.Context) api.SLAMetrics {
	env := s.exec.Execute(ctx, api.SLA())
	if env.Metrics == nil {
		s.logger.Debug("sla response carried no metrics")
		return *synth.SLA()
	}
	return *env.Metrics
}

// AddSampleData asks the backend to seed demo requisitions. It reports
// whether a backend confirmed, and the message it returned.
func (s *Service) AddSampleData(ctx context.Context) (bool, string) {
	env := s.exec.Execute(ctx, api.AddSampleData())
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if !env.Success {
		s.logger.Warn("sample data not confirmed", zap.String("message", msg))
	}
	return env.Success, msg
}
