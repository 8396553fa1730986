// Package prefs handles orbit's per-machine session persistence: the last
// backend address that answered, the developer-mode switch and the UI theme.
// Preferences are stored in ~/.config/orbit/session.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds the persisted session values.
type Prefs struct {
	Theme         string `toml:"theme"`
	ActiveAddress string `toml:"active_address,omitempty"`
	DevMode       bool   `toml:"dev_mode"`
}

const (
	defaultPrefsPath = "~/.config/orbit/session.toml"
	defaultTheme     = "Nightfox"
)

// read loads the file, falling back to defaults when it is missing or
// unreadable.
func read(resolved string) Prefs {
	prefs := Prefs{Theme: defaultTheme}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs
		}
		return prefs // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Prefs{Theme: defaultTheme} // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	prefs.ActiveAddress = strings.TrimSpace(prefs.ActiveAddress)

	return prefs
}

// write replaces the file atomically, creating directories as needed.
func write(resolved string, p Prefs) error {
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// Store is the durable session store shared by the endpoint resolver, the
// gateway and the UI. Writes take an exclusive file lock so a CLI command
// and a running board never interleave partial updates.
type Store struct {
	path string
	lock *flock.Flock

	mu      sync.RWMutex
	current Prefs
}

// Open loads the store at path (empty uses the default location).
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return &Store{
		path:    resolved,
		lock:    flock.New(resolved + ".lock"),
		current: read(resolved),
	}, nil
}

// Path returns the resolved file location.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the in-memory values.
func (s *Store) Snapshot() Prefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ActiveAddress returns the last persisted backend address, or "".
func (s *Store) ActiveAddress() string {
	return s.Snapshot().ActiveAddress
}

// SaveActiveAddress persists the address that last answered.
func (s *Store) SaveActiveAddress(address string) error {
	return s.update(func(p *Prefs) { p.ActiveAddress = strings.TrimSpace(address) })
}

// DevMode reports the persisted developer-mode switch.
func (s *Store) DevMode() bool {
	return s.Snapshot().DevMode
}

// SetDevMode persists the developer-mode switch.
func (s *Store) SetDevMode(enabled bool) error {
	return s.update(func(p *Prefs) { p.DevMode = enabled })
}

// SetTheme persists the UI theme name.
func (s *Store) SetTheme(name string) error {
	return s.update(func(p *Prefs) { p.Theme = name })
}

// update re-reads the file under the lock so fields written by another
// process survive, applies fn and writes the result back.
func (s *Store) update(fn func(*Prefs)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock prefs: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := read(s.path)
	fn(&next)
	if err := write(s.path, next); err != nil {
		return err
	}
	s.current = next
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
