package endpoint

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/orbitrc/orbit/internal/prefs"
)

const (
	primary  = "http://primary:5000"
	fallback = "https://fallback.example.com"
)

type memoryStore struct {
	address string
	saves   int
	err     error
}

func (m *memoryStore) ActiveAddress() string { return m.address }

func (m *memoryStore) SaveActiveAddress(address string) error {
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.address = address
	return nil
}

func TestNewResolver_InitialAddress(t *testing.T) {
	testCases := []struct {
		name  string
		saved string
		want  string
	}{
		{name: "nothing persisted", saved: "", want: primary},
		{name: "fallback persisted", saved: fallback, want: fallback},
		{name: "fallback persisted with different case and slash", saved: "HTTPS://fallback.example.com/", want: fallback},
		{name: "stale address persisted", saved: "http://old-backend", want: primary},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(primary, fallback, &memoryStore{address: tc.saved}, nil)
			assert.Equal(t, tc.want, r.Current())
		})
	}

	assert.Equal(t, primary, NewResolver(primary, fallback, nil, nil).Current())
}

func TestResolver_PromoteOnlyKnownAddresses(t *testing.T) {
	store := &memoryStore{}
	r := NewResolver(primary, fallback, store, nil)

	r.Promote("http://elsewhere")
	assert.Equal(t, primary, r.Current())
	assert.Zero(t, store.saves)

	r.Promote(primary)
	assert.Zero(t, store.saves, "promoting the active address must not write")

	r.Promote(fallback)
	assert.Equal(t, fallback, r.Current())
	assert.Equal(t, fallback, store.address)
	assert.Equal(t, 1, store.saves)
}

func TestResolver_AlternateOf(t *testing.T) {
	r := NewResolver(primary, fallback, nil, nil)

	assert.Equal(t, fallback, r.AlternateOf(primary))
	assert.Equal(t, primary, r.AlternateOf(fallback))
	assert.Equal(t, primary, r.AlternateOf("http://unknown"))
}

func TestResolver_PersistFailureStillSwitches(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &memoryStore{err: errors.New("disk full")}
	r := NewResolver(primary, fallback, store, zap.New(core))

	r.Promote(fallback)

	assert.Equal(t, fallback, r.Current())
	require.Equal(t, 1, logs.FilterMessage("failed to persist active backend").Len())
}

func TestResolver_ResetAndRestartWithPrefsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	store, err := prefs.Open(path)
	require.NoError(t, err)

	r := NewResolver(primary, fallback, store, nil)
	r.Promote(fallback)

	reopened, err := prefs.Open(path)
	require.NoError(t, err)
	restarted := NewResolver(primary, fallback, reopened, nil)
	assert.Equal(t, fallback, restarted.Current())

	restarted.Reset()
	assert.Equal(t, primary, restarted.Current())

	again, err := prefs.Open(path)
	require.NoError(t, err)
	assert.Equal(t, primary, again.ActiveAddress())
}
