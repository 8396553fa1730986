package netwatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_PublishesOnlyTransitions(t *testing.T) {
	s := NewStatic(true)
	assert.True(t, s.Online())

	s.Set(true)
	select {
	case <-s.Changes():
		t.Fatal("no change expected when value is unchanged")
	default:
	}

	s.Set(false)
	require.False(t, <-s.Changes())
	assert.False(t, s.Online())
}

func TestStatic_SlowReaderSeesLatestValue(t *testing.T) {
	s := NewStatic(true)
	s.Set(false)
	s.Set(true)
	s.Set(false)

	assert.False(t, <-s.Changes())
	select {
	case v := <-s.Changes():
		t.Fatalf("unexpected queued change %v", v)
	default:
	}
}

func TestInterfaceSource_PollDetectsFlip(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	s := NewInterfaceSource(nil, WithDetector(func() (bool, error) { return up.Load(), nil }))
	require.True(t, s.Online())

	s.Poll(context.Background())
	select {
	case <-s.Changes():
		t.Fatal("no change expected")
	default:
	}

	up.Store(false)
	s.Poll(context.Background())
	assert.False(t, <-s.Changes())
	assert.False(t, s.Online())
}

func TestInterfaceSource_ScanErrorCountsAsOnline(t *testing.T) {
	s := NewInterfaceSource(nil, WithDetector(func() (bool, error) { return false, errors.New("no netlink") }))
	assert.True(t, s.Online())
}

func TestInterfaceSource_CancelledPollIsIgnored(t *testing.T) {
	calls := 0
	s := NewInterfaceSource(nil, WithDetector(func() (bool, error) { calls++; return true, nil }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Poll(ctx)
	assert.Equal(t, 1, calls, "only the constructor scan should run")
}
