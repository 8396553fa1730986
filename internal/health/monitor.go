// Package health owns the connectivity state machine. A Monitor probes the
// active backend on a schedule, reacts to local network changes, and tells
// subscribers when the backend comes back after a long outage.
//
// Transitions:
//
//	Checking -> Online | Error
//	Online | Error -> Checking
//	any -> Offline
//	Offline -> Checking
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orbitrc/orbit/internal/netwatch"
	"github.com/orbitrc/orbit/internal/schedule"
)

// ProbeJob is the scheduler job name used by Attach.
const ProbeJob = "health-probe"

const subscriberBuffer = 16

// ErrWakeThrottled is returned by WakeUp when called again within the wake
// delay.
var ErrWakeThrottled = errors.New("wake-up already requested")

// Prober is the part of api.Transport the monitor needs.
type Prober interface {
	Health(ctx context.Context, base string) error
	Nudge(ctx context.Context, base string) error
}

// AddressSource yields the address to probe. *endpoint.Resolver implements
// it.
type AddressSource interface {
	Current() string
}

// Options configures a Monitor. Zero durations take defaults.
type Options struct {
	Prober            Prober
	Addresses         AddressSource
	Local             netwatch.Source
	Clock             schedule.Clock
	Logger            *zap.Logger
	ProbeInterval     time.Duration
	ProbeTimeout      time.Duration
	RecoveryThreshold time.Duration
	WakeDelay         time.Duration
}

// Monitor is the only writer of the connectivity state.
type Monitor struct {
	prober    Prober
	addresses AddressSource
	local     netwatch.Source
	clock     schedule.Clock
	logger    *zap.Logger

	probeInterval     time.Duration
	probeTimeout      time.Duration
	recoveryThreshold time.Duration
	wakeDelay         time.Duration

	mu           sync.Mutex
	state        State
	generation   uint64
	everOnline   bool
	awaySince    time.Time
	subs         map[int]chan Event
	nextSub      int
	wakeAttempts int
	wakeTimer    schedule.Timer
	limiter      *rate.Limiter
	trigger      func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds a Monitor in the Checking state.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		prober:            opts.Prober,
		addresses:         opts.Addresses,
		local:             opts.Local,
		clock:             opts.Clock,
		logger:            opts.Logger,
		probeInterval:     opts.ProbeInterval,
		probeTimeout:      opts.ProbeTimeout,
		recoveryThreshold: opts.RecoveryThreshold,
		wakeDelay:         opts.WakeDelay,
		state:             Checking,
		subs:              make(map[int]chan Event),
	}
	if m.local == nil {
		m.local = netwatch.NewStatic(true)
	}
	if m.clock == nil {
		m.clock = schedule.Real()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.probeInterval <= 0 {
		m.probeInterval = 30 * time.Second
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = 5 * time.Second
	}
	if m.recoveryThreshold <= 0 {
		m.recoveryThreshold = time.Minute
	}
	if m.wakeDelay <= 0 {
		m.wakeDelay = 3 * time.Second
	}
	m.limiter = rate.NewLimiter(rate.Every(m.wakeDelay), 1)
	m.trigger = func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.Probe(context.Background())
		}()
	}
	return m
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WakeAttempts counts WakeUp calls since the backend was last Online.
func (m *Monitor) WakeAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wakeAttempts
}

// Subscribe registers for transitions. Events are dropped for subscribers
// whose buffer is full. The returned func unsubscribes and closes the channel.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Attach registers the periodic probe with s. The first probe runs as soon
// as the scheduler starts; local reconnects trigger an extra one.
func (m *Monitor) Attach(s *schedule.Scheduler) error {
	if err := s.Every(ProbeJob, m.probeInterval, m.Probe, schedule.RunImmediately()); err != nil {
		return err
	}
	m.mu.Lock()
	m.trigger = func() { s.Trigger(ProbeJob) }
	m.mu.Unlock()
	return nil
}

// Start follows the local connectivity source until ctx ends or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	if !m.local.Online() {
		m.markOffline()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		changes := m.local.Changes()
		for {
			select {
			case <-ctx.Done():
				return
			case online := <-changes:
				if !online {
					m.markOffline()
					continue
				}
				m.logger.Info("local network restored, probing backend")
				m.requestProbe()
			}
		}
	}()
}

// Stop ends the local watcher, cancels a pending wake-up re-probe and waits
// for background probes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	if m.wakeTimer != nil {
		m.wakeTimer.Stop()
		m.wakeTimer = nil
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Probe checks the active backend once. A probe started while the local
// network is down only confirms Offline. Results that arrive after the state
// was forced Offline, or after a newer probe started, are discarded.
func (m *Monitor) Probe(ctx context.Context) {
	if !m.local.Online() {
		m.markOffline()
		return
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.transitionLocked(Checking)
	m.mu.Unlock()

	address := m.addresses.Current()
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Health(probeCtx, address)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		m.logger.Debug("discarding stale probe result", zap.String("address", address))
		return
	}
	if err != nil {
		m.logger.Warn("health probe failed", zap.String("address", address), zap.Error(err))
		m.transitionLocked(Error)
		return
	}
	m.transitionLocked(Online)
}

// WakeUp nudges a backend that may be idling, then re-probes after the wake
// delay. Calls closer together than the wake delay return ErrWakeThrottled.
// A failed nudge is returned, but the re-probe is still scheduled.
func (m *Monitor) WakeUp(ctx context.Context) error {
	m.mu.Lock()
	if !m.limiter.AllowN(m.clock.Now(), 1) {
		m.mu.Unlock()
		return ErrWakeThrottled
	}
	m.wakeAttempts++
	attempt := m.wakeAttempts
	if m.wakeTimer != nil {
		m.wakeTimer.Stop()
	}
	m.wakeTimer = m.clock.AfterFunc(m.wakeDelay, m.requestProbe)
	m.mu.Unlock()

	address := m.addresses.Current()
	m.logger.Info("waking backend", zap.String("address", address), zap.Int("attempt", attempt))

	nudgeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	if err := m.prober.Nudge(nudgeCtx, address); err != nil {
		m.logger.Debug("wake-up nudge failed", zap.String("address", address), zap.Error(err))
		return err
	}
	return nil
}

func (m *Monitor) requestProbe() {
	m.mu.Lock()
	trigger := m.trigger
	m.mu.Unlock()
	trigger()
}

func (m *Monitor) markOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	if m.state != Offline {
		m.logger.Warn("local network lost")
	}
	m.transitionLocked(Offline)
}

// transitionLocked must be called with m.mu held.
func (m *Monitor) transitionLocked(next State) {
	prev := m.state
	if prev == next {
		return
	}
	now := m.clock.Now()
	m.state = next

	recovered := false
	switch next {
	case Online:
		if m.everOnline && !m.awaySince.IsZero() {
			outage := now.Sub(m.awaySince)
			if outage > m.recoveryThreshold {
				recovered = true
				m.logger.Info("backend recovered", zap.Duration("outage", outage))
			}
		}
		m.everOnline = true
		m.awaySince = time.Time{}
		m.wakeAttempts = 0
	case Error, Offline:
		if m.everOnline && m.awaySince.IsZero() {
			m.awaySince = now
		}
	}

	m.logger.Debug("connectivity changed", zap.Stringer("from", prev), zap.Stringer("to", next))

	ev := Event{State: next, Previous: prev, Recovered: recovered, At: now}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
