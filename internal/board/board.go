// Package board keeps the authoritative Kanban board: items grouped by
// stage, moved optimistically, and reconciled with whatever the backend
// (or the synthesizer) answers.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/schedule"
)

// ErrUnknownItem is returned by Move for ids not on the board.
var ErrUnknownItem = errors.New("unknown board item")

const warningBuffer = 16

// Executor runs logical requests. *gateway.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, req api.Request) api.Envelope
}

// Options configures a Synchronizer.
type Options struct {
	Executor      Executor
	DeveloperMode func() bool
	// RollbackOnFailure sends unconfirmed moves back to where they came from.
	RollbackOnFailure bool
	// AfterConfirm runs after a backend confirmed a move.
	AfterConfirm func()
	Clock        schedule.Clock
	Logger       *zap.Logger
}

type transition struct {
	token       string
	from        api.Stage
	to          api.Stage
	initiatedAt time.Time
}

// settledMove remembers where a move left an item. loadSeq is the newest
// load that had started when the move settled; loads at or before it may
// carry the pre-move stage.
type settledMove struct {
	stage   api.Stage
	loadSeq uint64
}

// Synchronizer owns the board collection.
type Synchronizer struct {
	exec         Executor
	devMode      func() bool
	rollback     bool
	afterConfirm func()
	clock        schedule.Clock
	logger       *zap.Logger
	loads        singleflight.Group
	warnings     chan Warning

	mu          sync.RWMutex
	items       []api.Item
	filters     api.Filters
	pending     map[string]transition
	unconfirmed map[string]api.Stage
	settled     map[string]settledMove
	loadSeq     uint64
	loaded      bool
	loadedAt    time.Time
}

// New builds an empty, unloaded board.
func New(opts Options) *Synchronizer {
	s := &Synchronizer{
		exec:         opts.Executor,
		devMode:      opts.DeveloperMode,
		rollback:     opts.RollbackOnFailure,
		afterConfirm: opts.AfterConfirm,
		clock:        opts.Clock,
		logger:       opts.Logger,
		warnings:     make(chan Warning, warningBuffer),
		pending:      make(map[string]transition),
		unconfirmed:  make(map[string]api.Stage),
		settled:      make(map[string]settledMove),
	}
	if s.devMode == nil {
		s.devMode = func() bool { return false }
	}
	if s.clock == nil {
		s.clock = schedule.Real()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Warnings delivers moves that ended Unconfirmed or RolledBack. Warnings
// are dropped when nobody reads them.
func (s *Synchronizer) Warnings() <-chan Warning { return s.warnings }

// SetFilters replaces the filters used by later loads.
func (s *Synchronizer) SetFilters(f api.Filters) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
}

// Filters returns the active filters.
func (s *Synchronizer) Filters() api.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Refresh reloads the board.
func (s *Synchronizer) Refresh(ctx context.Context) (Snapshot, error) {
	return s.Load(ctx)
}

// Load fetches the board and replaces the collection. Concurrent calls share
// one request. Moves still in flight, moves settled after the request went
// out, and placements no backend confirmed are laid over the fresh data.
func (s *Synchronizer) Load(ctx context.Context) (Snapshot, error) {
	_, err, _ := s.loads.Do("board", func() (any, error) {
		s.mu.Lock()
		s.loadSeq++
		seq := s.loadSeq
		filters := s.filters
		s.mu.Unlock()

		env := s.exec.Execute(ctx, api.ListBoardItems(filters))
		if !env.Success {
			return nil, fmt.Errorf("list board items: %s", env.Message)
		}
		s.replace(env.Cards, seq)
		return nil, nil
	})
	if err != nil {
		s.logger.Warn("board load failed", zap.Error(err))
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

func (s *Synchronizer) replace(cards []api.Item, seq uint64) {
	items := make([]api.Item, len(cards))
	copy(items, cards)

	s.mu.Lock()
	defer s.mu.Unlock()
	present := make(map[string]struct{}, len(items))
	for i := range items {
		item := &items[i]
		present[item.ID] = struct{}{}
		if !item.Status.Valid() {
			item.Status = api.StageRequested
		}
		if p, ok := s.pending[item.ID]; ok {
			item.Status = p.to
			continue
		}
		if m, ok := s.settled[item.ID]; ok && m.loadSeq >= seq {
			item.Status = m.stage
			continue
		}
		placed, ok := s.unconfirmed[item.ID]
		if !ok {
			continue
		}
		if item.Synthetic {
			item.Status = placed
		} else {
			delete(s.unconfirmed, item.ID)
		}
	}
	for id, m := range s.settled {
		if m.loadSeq < seq {
			delete(s.settled, id)
		}
	}
	for id := range s.unconfirmed {
		if _, ok := present[id]; !ok {
			delete(s.unconfirmed, id)
		}
	}
	s.items = items
	s.loaded = true
	s.loadedAt = s.clock.Now()
	s.logger.Debug("board loaded", zap.Int("items", len(items)))
}

// Snapshot returns a copy of the board grouped by stage.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Columns:  make([]Column, len(api.Stages)),
		Loaded:   s.loaded,
		LoadedAt: s.loadedAt,
	}
	for i, stage := range api.Stages {
		snap.Columns[i] = Column{Stage: stage, Cards: []Card{}}
	}
	for _, item := range s.items {
		idx := item.Status.Index()
		if idx < 0 {
			continue
		}
		_, pending := s.pending[item.ID]
		_, unconfirmed := s.unconfirmed[item.ID]
		snap.Columns[idx].Cards = append(snap.Columns[idx].Cards, Card{
			Item:        item,
			Pending:     pending,
			Unconfirmed: unconfirmed && !pending,
		})
	}
	snap.Synthetic = s.allSyntheticLocked()
	return snap
}

// Move relocates itemID to the end of stage to, then asks the backend to
// confirm. from is what the caller saw; when it equals to, or to is not a
// stage, nothing happens. A newer move of the same item supersedes this one
// and its result is discarded.
func (s *Synchronizer) Move(ctx context.Context, itemID string, from, to api.Stage) (Outcome, error) {
	if from == to || !to.Valid() {
		return Noop, nil
	}

	s.mu.Lock()
	idx := s.indexLocked(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return Noop, fmt.Errorf("move %s: %w", itemID, ErrUnknownItem)
	}
	current := s.items[idx].Status
	if current == to {
		s.mu.Unlock()
		return Noop, nil
	}
	t := transition{
		token:       uuid.NewString(),
		from:        current,
		to:          to,
		initiatedAt: s.clock.Now(),
	}
	if prev, ok := s.pending[itemID]; ok {
		// Keep the last confirmed stage as the rollback target.
		t.from = prev.from
	}
	s.pending[itemID] = t
	s.relocateLocked(idx, to)
	local := s.devMode() || s.allSyntheticLocked()
	s.mu.Unlock()

	if local {
		return s.settle(itemID, t, Accepted), nil
	}

	env := s.exec.Execute(ctx, api.UpdateItemStatus(itemID, to))
	if !env.Success && ctx.Err() != nil {
		// The caller gave up; nobody can tell whether the backend applied it.
		if _, ok := s.resolve(itemID, t, Unconfirmed); !ok {
			return Superseded, nil
		}
		s.logger.Debug("move abandoned by caller", zap.String("item", itemID), zap.Stringer("to", to))
		return Unconfirmed, fmt.Errorf("move %s: %w", itemID, ctx.Err())
	}
	if env.Success {
		outcome := s.settle(itemID, t, Confirmed)
		if outcome == Confirmed && s.afterConfirm != nil {
			s.afterConfirm()
		}
		return outcome, nil
	}
	if s.rollback {
		return s.settle(itemID, t, RolledBack), nil
	}
	return s.settle(itemID, t, Unconfirmed), nil
}

// settle resolves the transition identified by t.token. Superseded
// transitions leave the board alone.
func (s *Synchronizer) settle(itemID string, t transition, outcome Outcome) Outcome {
	p, ok := s.resolve(itemID, t, outcome)
	if !ok {
		s.logger.Debug("dropping superseded move", zap.String("item", itemID), zap.Stringer("to", t.to))
		return Superseded
	}

	switch outcome {
	case Unconfirmed, RolledBack:
		s.logger.Warn("move not confirmed by backend",
			zap.String("item", itemID),
			zap.Stringer("from", p.from),
			zap.Stringer("to", t.to),
			zap.Stringer("outcome", outcome),
			zap.Duration("elapsed", s.clock.Now().Sub(t.initiatedAt)),
		)
		s.warn(Warning{ItemID: itemID, From: p.from, To: t.to, Outcome: outcome, At: s.clock.Now()})
	default:
		s.logger.Debug("move settled", zap.String("item", itemID), zap.Stringer("outcome", outcome))
	}
	return outcome
}

// resolve applies outcome to the board if t is still the item's pending
// transition. It returns the pending entry it replaced.
func (s *Synchronizer) resolve(itemID string, t transition, outcome Outcome) (transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[itemID]
	if !ok || p.token != t.token {
		return transition{}, false
	}
	delete(s.pending, itemID)

	switch outcome {
	case Confirmed:
		delete(s.unconfirmed, itemID)
		s.settled[itemID] = settledMove{stage: t.to, loadSeq: s.loadSeq}
	case Accepted, Unconfirmed:
		delete(s.settled, itemID)
		s.unconfirmed[itemID] = t.to
	case RolledBack:
		delete(s.unconfirmed, itemID)
		s.settled[itemID] = settledMove{stage: p.from, loadSeq: s.loadSeq}
		if idx := s.indexLocked(itemID); idx >= 0 {
			s.relocateLocked(idx, p.from)
		}
	}
	return p, true
}

func (s *Synchronizer) warn(w Warning) {
	select {
	case s.warnings <- w:
	default:
	}
}

func (s *Synchronizer) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// relocateLocked moves items[idx] to the end of the collection so it lands
// last in its new column.
func (s *Synchronizer) relocateLocked(idx int, to api.Stage) {
	item := s.items[idx]
	item.Status = to
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.items = append(s.items, item)
}

func (s *Synchronizer) allSyntheticLocked() bool {
	if len(s.items) == 0 {
		return false
	}
	for _, item := range s.items {
		if !item.Synthetic {
			return false
		}
	}
	return true
}
