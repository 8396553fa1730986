// Package netwatch reports whether the host has any usable network link.
package netwatch

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Source reports local connectivity. Changes delivers the new value on every
// transition; readers that fall behind only see the latest value.
type Source interface {
	Online() bool
	Changes() <-chan bool
}

// Detector answers whether the host looks connected right now.
type Detector func() (bool, error)

// notifier keeps the current value and publishes transitions.
type notifier struct {
	mu      sync.RWMutex
	online  bool
	changes chan bool
}

func newNotifier(online bool) notifier {
	return notifier{online: online, changes: make(chan bool, 1)}
}

func (n *notifier) Online() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.online
}

func (n *notifier) Changes() <-chan bool { return n.changes }

// set stores online and reports whether it changed.
func (n *notifier) set(online bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.online == online {
		return false
	}
	n.online = online
	select {
	case <-n.changes:
	default:
	}
	n.changes <- online
	return true
}

// InterfaceSource polls the host's network interfaces. Call Poll from a
// scheduler job.
type InterfaceSource struct {
	notifier
	detect Detector
	logger *zap.Logger
}

// Option customises an InterfaceSource.
type Option func(*InterfaceSource)

// WithDetector replaces the interface scan, mostly for tests.
func WithDetector(d Detector) Option {
	return func(s *InterfaceSource) { s.detect = d }
}

// NewInterfaceSource runs one detection immediately so Online is meaningful
// before the first poll. A failed scan counts as online: the health probe
// decides from there.
func NewInterfaceSource(logger *zap.Logger, opts ...Option) *InterfaceSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InterfaceSource{detect: InterfacesUp, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = newNotifier(s.scan())
	return s
}

// Poll rescans and publishes a change if the answer flipped.
func (s *InterfaceSource) Poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	online := s.scan()
	if s.set(online) {
		s.logger.Info("local network changed", zap.Bool("online", online))
	}
}

func (s *InterfaceSource) scan() bool {
	online, err := s.detect()
	if err != nil {
		s.logger.Debug("interface scan failed", zap.Error(err))
		return true
	}
	return online
}

// InterfacesUp reports true when a non-loopback interface is up and carries
// at least one address.
func InterfacesUp() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Static is a Source whose answer only changes through Set.
type Static struct {
	notifier
}

// NewStatic returns a Static source starting at online.
func NewStatic(online bool) *Static {
	return &Static{notifier: newNotifier(online)}
}

// Set updates the answer, publishing a change when it differs.
func (s *Static) Set(online bool) {
	s.set(online)
}

var (
	_ Source = (*InterfaceSource)(nil)
	_ Source = (*Static)(nil)
)
