package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orbitrc/orbit/internal/health"
)

const (
	boardRefreshJob  = "board-refresh"
	netwatchJob      = "netwatch"
	netwatchInterval = 5 * time.Second
)

func (rt *Runtime) refreshBoard(ctx context.Context) {
	if _, err := rt.Board.Refresh(ctx); err != nil {
		rt.Logger.Warn("board refresh failed", zap.Error(err))
	}
}

// followHealth refreshes the board whenever the backend becomes reachable
// again, so placeholder data is replaced without waiting a full interval.
func (rt *Runtime) followHealth(ctx context.Context, events <-chan health.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.State != health.Online {
				continue
			}
			if ev.Recovered {
				rt.Logger.Info("backend recovered, refreshing board")
			}
			if ev.Recovered || rt.Board.Snapshot().Synthetic {
				rt.Scheduler.Trigger(boardRefreshJob)
			}
		}
	}
}
