// Package gateway is the single chokepoint for backend calls. An Executor
// tries the active address, then the alternate once, and finally answers
// with synthetic data, so callers always get an envelope back.
package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/health"
	"github.com/orbitrc/orbit/internal/synth"
)

// Source says where an answer came from.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceAlternate Source = "alternate"
	SourceSynthetic Source = "synthetic"
	SourceOffline   Source = "offline"
	SourceDeveloper Source = "developer"
	// SourceCancelled: the caller's context ended before any backend
	// answered. The envelope is unsuccessful and carries no data.
	SourceCancelled Source = "cancelled"
)

// CancelledMessage is the envelope message for SourceCancelled answers.
const CancelledMessage = "request cancelled"

// Synthetic reports whether the answer was produced locally.
func (s Source) Synthetic() bool {
	return s == SourceSynthetic || s == SourceOffline || s == SourceDeveloper
}

// Endpoints picks addresses. *endpoint.Resolver implements it.
type Endpoints interface {
	Current() string
	AlternateOf(address string) string
	Promote(address string)
}

// Connectivity exposes the health state. *health.Monitor implements it.
type Connectivity interface {
	State() health.State
}

// Options configures an Executor.
type Options struct {
	Transport    api.Transport
	Endpoints    Endpoints
	Connectivity Connectivity
	// DeveloperMode is consulted on every call so toggling it takes effect
	// immediately.
	DeveloperMode func() bool
	// Timeout bounds each of the two attempts.
	Timeout time.Duration
	Metrics *Metrics
	Logger  *zap.Logger
}

// Result is an envelope plus its provenance.
type Result struct {
	Envelope api.Envelope
	Source   Source
	// Address is the backend that answered; empty for synthetic answers.
	Address string
}

// Executor runs logical requests with fallback. It never returns an error.
type Executor struct {
	transport    api.Transport
	endpoints    Endpoints
	connectivity Connectivity
	devMode      func() bool
	timeout      time.Duration
	metrics      *Metrics
	logger       *zap.Logger
}

const defaultTimeout = 8 * time.Second

// NewExecutor builds an Executor.
func NewExecutor(opts Options) *Executor {
	e := &Executor{
		transport:    opts.Transport,
		endpoints:    opts.Endpoints,
		connectivity: opts.Connectivity,
		devMode:      opts.DeveloperMode,
		timeout:      opts.Timeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if e.devMode == nil {
		e.devMode = func() bool { return false }
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Execute returns the envelope for req.
func (e *Executor) Execute(ctx context.Context, req api.Request) api.Envelope {
	return e.Do(ctx, req).Envelope
}

// Do is Execute with provenance. Worst-case latency is two timeouts.
func (e *Executor) Do(ctx context.Context, req api.Request) Result {
	start := time.Now()
	res := e.do(ctx, req)
	e.metrics.observe(string(req.Operation), res.Source, time.Since(start).Seconds())
	return res
}

func (e *Executor) do(ctx context.Context, req api.Request) Result {
	op := string(req.Operation)

	if e.devMode() {
		e.logger.Debug("developer mode, answering locally", zap.String("operation", op))
		return Result{Envelope: synth.For(req.Operation), Source: SourceDeveloper}
	}
	if e.connectivity != nil && e.connectivity.State() == health.Offline {
		e.logger.Warn("offline, answering with synthetic data", zap.String("operation", op))
		return Result{Envelope: synth.For(req.Operation), Source: SourceOffline}
	}

	primary := e.endpoints.Current()
	if env, ok := e.attempt(ctx, primary, req); ok {
		return Result{Envelope: env, Source: SourcePrimary, Address: primary}
	}
	if ctx.Err() != nil {
		return e.cancelled(op, ctx.Err())
	}

	alternate := e.endpoints.AlternateOf(primary)
	if env, ok := e.attempt(ctx, alternate, req); ok {
		e.endpoints.Promote(alternate)
		return Result{Envelope: env, Source: SourceAlternate, Address: alternate}
	}
	if ctx.Err() != nil {
		return e.cancelled(op, ctx.Err())
	}

	e.logger.Warn("all backends failed, answering with synthetic data", zap.String("operation", op))
	return Result{Envelope: synth.For(req.Operation), Source: SourceSynthetic}
}

// cancelled answers a caller that gave up. Synthetic data would be
// mistaken for a degraded backend.
func (e *Executor) cancelled(op string, err error) Result {
	e.logger.Debug("caller cancelled request", zap.String("operation", op), zap.Error(err))
	return Result{Envelope: api.Envelope{Message: CancelledMessage}, Source: SourceCancelled}
}

func (e *Executor) attempt(ctx context.Context, address string, req api.Request) (api.Envelope, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	env, err := e.transport.Do(attemptCtx, address, req)
	if err != nil {
		if ctx.Err() != nil {
			return api.Envelope{}, false
		}
		e.logger.Warn("backend request failed",
			zap.String("operation", string(req.Operation)),
			zap.String("address", address),
			zap.Error(err),
		)
		return api.Envelope{}, false
	}
	return env, true
}
