package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/schedule"
	"github.com/orbitrc/orbit/internal/synth"
)

type call struct {
	req   api.Request
	reply chan api.Envelope
}

// fakeExec answers board listings from list and hands update requests to
// the test through calls, unless update is set.
type fakeExec struct {
	mu        sync.Mutex
	list      api.Envelope
	lastQuery map[string][]string
	listGate  chan struct{}
	listing   chan struct{}

	update func(api.Request) api.Envelope
	calls  chan call

	listCalls   atomic.Int32
	updateCalls atomic.Int32
}

func newFakeExec(cards ...api.Item) *fakeExec {
	return &fakeExec{
		list:  api.Envelope{Success: true, Cards: cards},
		calls: make(chan call, 8),
	}
}

func (f *fakeExec) setList(cards ...api.Item) {
	f.mu.Lock()
	f.list = api.Envelope{Success: true, Cards: cards}
	f.mu.Unlock()
}

func (f *fakeExec) Execute(ctx context.Context, req api.Request) api.Envelope {
	if req.Operation == api.OpListBoardItems {
		f.listCalls.Add(1)
		if f.listing != nil {
			f.listing <- struct{}{}
		}
		if f.listGate != nil {
			<-f.listGate
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastQuery = req.Query
		out := f.list
		out.Cards = append([]api.Item(nil), f.list.Cards...)
		return out
	}

	f.updateCalls.Add(1)
	if f.update != nil {
		return f.update(req)
	}
	c := call{req: req, reply: make(chan api.Envelope, 1)}
	f.calls <- c
	select {
	case env := <-c.reply:
		return env
	case <-ctx.Done():
		return synth.For(req.Operation)
	}
}

func confirmAll(api.Request) api.Envelope { return api.Envelope{Success: true} }

func refuseAll(req api.Request) api.Envelope { return synth.For(req.Operation) }

func realItems() []api.Item {
	return []api.Item{
		{ID: "RC-3", Status: api.StageApproved},
		{ID: "RC-1", Status: api.StageRequested},
		{ID: "RC-4", Status: api.StageRejected},
		{ID: "RC-2", Status: api.StageRequested},
		{ID: "RC-5", Status: api.StageInReview},
	}
}

func ids(col Column) []string {
	out := make([]string, 0, len(col.Cards))
	for _, c := range col.Cards {
		out = append(out, c.ID)
	}
	return out
}

func loaded(t *testing.T, exec *fakeExec, opts Options) *Synchronizer {
	t.Helper()
	opts.Executor = exec
	s := New(opts)
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s
}

func stageOf(t *testing.T, s *Synchronizer, id string) api.Stage {
	t.Helper()
	card, ok := s.Snapshot().Find(id)
	require.True(t, ok, "item %s missing", id)
	return card.Status
}

func TestLoad_PartitionsByStageInResponseOrder(t *testing.T) {
	s := loaded(t, newFakeExec(realItems()...), Options{})
	snap := s.Snapshot()

	require.Len(t, snap.Columns, len(api.Stages))
	for i, stage := range api.Stages {
		assert.Equal(t, stage, snap.Columns[i].Stage)
	}
	assert.Equal(t, []string{"RC-1", "RC-2"}, ids(snap.Column(api.StageRequested)))
	assert.Equal(t, []string{"RC-5"}, ids(snap.Column(api.StageInReview)))
	assert.Equal(t, []string{"RC-3"}, ids(snap.Column(api.StageApproved)))
	assert.Empty(t, snap.Column(api.StageReceived).Cards)
	assert.Equal(t, 5, snap.Total())
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Synthetic)
}

func TestLoad_SnapshotIsACopy(t *testing.T) {
	s := loaded(t, newFakeExec(realItems()...), Options{})
	snap := s.Snapshot()
	snap.Columns[0].Cards[0].Status = api.StageRejected

	assert.Equal(t, api.StageRequested, stageOf(t, s, "RC-1"))
}

func TestLoad_SendsFilters(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := New(Options{Executor: exec})
	s.SetFilters(api.Filters{Supplier: "ACME", MinValue: 100})

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ACME"}, exec.lastQuery["fornecedor"])
	assert.Equal(t, []string{"100"}, exec.lastQuery["valor_min"])
	assert.Equal(t, "ACME", s.Filters().Supplier)
}

func TestLoad_ConcurrentCallsShareOneRequest(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.listGate = make(chan struct{})
	exec.listing = make(chan struct{}, 8)
	s := New(Options{Executor: exec})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 5, snap.Total())
		}()
	}
	<-exec.listing
	time.Sleep(20 * time.Millisecond)
	close(exec.listGate)
	wg.Wait()

	assert.EqualValues(t, 1, exec.listCalls.Load())
}

func TestLoad_StaleListingKeepsConfirmedMove(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = confirmAll
	s := loaded(t, exec, Options{})

	exec.listGate = make(chan struct{})
	exec.listing = make(chan struct{}, 8)
	loadDone := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background())
		loadDone <- err
	}()
	<-exec.listing

	outcome, err := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageApproved)
	require.NoError(t, err)
	require.Equal(t, Confirmed, outcome)

	// The listing went out before the move and still reports Requested.
	close(exec.listGate)
	require.NoError(t, <-loadDone)
	assert.Equal(t, api.StageApproved, stageOf(t, s, "RC-1"))

	// Loads issued after the move trust the backend again.
	items := realItems()
	items[1].Status = api.StageApproved
	exec.setList(items...)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StageApproved, stageOf(t, s, "RC-1"))
	assert.Empty(t, s.settled)
}

func TestLoad_ListingAfterConfirmedMoveIsAuthoritative(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = confirmAll
	s := loaded(t, exec, Options{})

	_, err := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageApproved)
	require.NoError(t, err)

	// Someone else moved it back on the server after our move.
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StageRequested, stageOf(t, s, "RC-1"))
}

func TestLoad_DropsPlacementsForItemsNoLongerListed(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = refuseAll
	s := loaded(t, exec, Options{})

	outcome, err := s.Move(context.Background(), "RC-5", api.StageInReview, api.StageApproved)
	require.NoError(t, err)
	require.Equal(t, Unconfirmed, outcome)
	require.Contains(t, s.unconfirmed, "RC-5")

	exec.setList(synth.Items()...)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	_, ok := s.Snapshot().Find("RC-5")
	assert.False(t, ok)
	assert.NotContains(t, s.unconfirmed, "RC-5")

	exec.setList(realItems()...)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StageInReview, stageOf(t, s, "RC-5"))
}

func TestLoad_CancelledListingKeepsBoard(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{})
	exec.list = api.Envelope{Message: "request cancelled"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Load(ctx)

	require.Error(t, err)
	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Total())
	assert.False(t, snap.Synthetic)
}

func TestMove_NoopCases(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{})

	outcome, err := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageRequested)
	require.NoError(t, err)
	assert.Equal(t, Noop, outcome)

	outcome, err = s.Move(context.Background(), "RC-1", api.StageRequested, api.Stage(0))
	require.NoError(t, err)
	assert.Equal(t, Noop, outcome, "cancelled drop")

	assert.Zero(t, exec.updateCalls.Load())
	assert.Equal(t, api.StageRequested, stageOf(t, s, "RC-1"))
}

func TestMove_UnknownItem(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{})
	before := s.Snapshot()

	_, err := s.Move(context.Background(), "RC-404", api.StageRequested, api.StageApproved)

	assert.True(t, errors.Is(err, ErrUnknownItem))
	assert.Equal(t, before, s.Snapshot())
	assert.Zero(t, exec.updateCalls.Load())
}

func TestMove_ConfirmedAppendsToTarget(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = confirmAll
	var confirmed atomic.Int32
	s := loaded(t, exec, Options{AfterConfirm: func() { confirmed.Add(1) }})

	outcome, err := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageApproved)
	require.NoError(t, err)

	assert.Equal(t, Confirmed, outcome)
	snap := s.Snapshot()
	assert.Equal(t, []string{"RC-3", "RC-1"}, ids(snap.Column(api.StageApproved)))
	assert.Equal(t, []string{"RC-2"}, ids(snap.Column(api.StageRequested)))
	card, _ := snap.Find("RC-1")
	assert.False(t, card.Pending)
	assert.False(t, card.Unconfirmed)
	assert.EqualValues(t, 1, confirmed.Load())
}

func TestMove_OptimisticPlacementWhilePending(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{})

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageReceived)
		done <- outcome
	}()
	c := <-exec.calls

	card, ok := s.Snapshot().Find("RC-1")
	require.True(t, ok)
	assert.Equal(t, api.StageReceived, card.Status)
	assert.True(t, card.Pending)

	// A reload that still reports the old stage must not undo the move.
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StageReceived, stageOf(t, s, "RC-1"))

	c.reply <- api.Envelope{Success: true}
	assert.Equal(t, Confirmed, <-done)
}

func TestMove_BackAndForthEndsWhereLastDropped(t *testing.T) {
	for _, name := range []string{"first answered first", "second answered first"} {
		t.Run(name, func(t *testing.T) {
			exec := newFakeExec(realItems()...)
			s := loaded(t, exec, Options{})

			first := make(chan Outcome, 1)
			go func() {
				outcome, _ := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageInReview)
				first <- outcome
			}()
			c1 := <-exec.calls

			second := make(chan Outcome, 1)
			go func() {
				outcome, _ := s.Move(context.Background(), "RC-1", api.StageInReview, api.StageRequested)
				second <- outcome
			}()
			c2 := <-exec.calls

			if name == "first answered first" {
				c1.reply <- api.Envelope{Success: true}
				assert.Equal(t, Superseded, <-first)
				c2.reply <- api.Envelope{Success: true}
				assert.Equal(t, Confirmed, <-second)
			} else {
				c2.reply <- api.Envelope{Success: true}
				assert.Equal(t, Confirmed, <-second)
				c1.reply <- api.Envelope{Success: true}
				assert.Equal(t, Superseded, <-first)
			}

			assert.Equal(t, api.StageRequested, stageOf(t, s, "RC-1"))
			card, _ := s.Snapshot().Find("RC-1")
			assert.False(t, card.Pending)
		})
	}
}

func TestMove_DegradedKeepsPlacementAndWarns(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = refuseAll
	s := loaded(t, exec, Options{})

	outcome, err := s.Move(context.Background(), "RC-5", api.StageInReview, api.StageApproved)
	require.NoError(t, err)

	assert.Equal(t, Unconfirmed, outcome)
	card, _ := s.Snapshot().Find("RC-5")
	assert.Equal(t, api.StageApproved, card.Status)
	assert.True(t, card.Unconfirmed)

	select {
	case w := <-s.Warnings():
		assert.Equal(t, Warning{ItemID: "RC-5", From: api.StageInReview, To: api.StageApproved, Outcome: Unconfirmed, At: w.At}, w)
	default:
		t.Fatal("expected a warning")
	}

	// Real data is authoritative once the backend answers again.
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	card, _ = s.Snapshot().Find("RC-5")
	assert.Equal(t, api.StageInReview, card.Status)
	assert.False(t, card.Unconfirmed)
}

func TestMove_WarningLogsTimeSpentWaiting(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	clock := schedule.NewFake(time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC))
	exec := newFakeExec(realItems()...)
	exec.update = func(req api.Request) api.Envelope {
		clock.Advance(3 * time.Second)
		return refuseAll(req)
	}
	s := loaded(t, exec, Options{Clock: clock, Logger: zap.New(core)})

	outcome, err := s.Move(context.Background(), "RC-5", api.StageInReview, api.StageApproved)
	require.NoError(t, err)
	require.Equal(t, Unconfirmed, outcome)

	entries := logs.FilterMessage("move not confirmed by backend").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 3*time.Second, entries[0].ContextMap()["elapsed"])
}

func TestMove_CancelledCallerIsNotWarned(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := s.Move(ctx, "RC-2", api.StageRequested, api.StageReceived)
		done <- result{outcome, err}
	}()
	<-exec.calls
	cancel()

	res := <-done
	assert.Equal(t, Unconfirmed, res.outcome)
	assert.ErrorIs(t, res.err, context.Canceled)
	card, _ := s.Snapshot().Find("RC-2")
	assert.Equal(t, api.StageReceived, card.Status)
	assert.False(t, card.Pending)

	select {
	case w := <-s.Warnings():
		t.Fatalf("unexpected warning %+v", w)
	default:
	}
}

func TestMove_RollbackMode(t *testing.T) {
	exec := newFakeExec(realItems()...)
	exec.update = refuseAll
	s := loaded(t, exec, Options{RollbackOnFailure: true})

	outcome, err := s.Move(context.Background(), "RC-5", api.StageInReview, api.StageApproved)
	require.NoError(t, err)

	assert.Equal(t, RolledBack, outcome)
	assert.Equal(t, api.StageInReview, stageOf(t, s, "RC-5"))
	w := <-s.Warnings()
	assert.Equal(t, RolledBack, w.Outcome)
}

func TestMove_RollbackReturnsToLastConfirmedStage(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{RollbackOnFailure: true})

	first := make(chan Outcome, 1)
	go func() {
		outcome, _ := s.Move(context.Background(), "RC-1", api.StageRequested, api.StageInReview)
		first <- outcome
	}()
	c1 := <-exec.calls
	second := make(chan Outcome, 1)
	go func() {
		outcome, _ := s.Move(context.Background(), "RC-1", api.StageInReview, api.StageApproved)
		second <- outcome
	}()
	c2 := <-exec.calls

	c2.reply <- synth.For(api.OpUpdateItemStatus)
	assert.Equal(t, RolledBack, <-second)
	c1.reply <- api.Envelope{Success: true}
	assert.Equal(t, Superseded, <-first)

	assert.Equal(t, api.StageRequested, stageOf(t, s, "RC-1"))
}

func TestMove_SyntheticBoardIsAcceptedLocally(t *testing.T) {
	exec := newFakeExec(synth.Items()...)
	s := loaded(t, exec, Options{})
	require.True(t, s.Snapshot().Synthetic)

	outcome, err := s.Move(context.Background(), "RC-1001 (Mock)", api.StageRequested, api.StageReceived)
	require.NoError(t, err)
	assert.Equal(t, Accepted, outcome)
	assert.Zero(t, exec.updateCalls.Load())

	// The periodic refresh keeps answering with placeholders; the move sticks.
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StageReceived, stageOf(t, s, "RC-1001 (Mock)"))

	select {
	case w := <-s.Warnings():
		t.Fatalf("unexpected warning %+v", w)
	default:
	}
}

func TestMove_DeveloperModeMakesNoCalls(t *testing.T) {
	exec := newFakeExec(realItems()...)
	s := loaded(t, exec, Options{DeveloperMode: func() bool { return true }})

	outcome, err := s.Move(context.Background(), "RC-2", api.StageRequested, api.StageRejected)
	require.NoError(t, err)

	assert.Equal(t, Accepted, outcome)
	assert.Zero(t, exec.updateCalls.Load())
	assert.Equal(t, api.StageRejected, stageOf(t, s, "RC-2"))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "rolled back", RolledBack.String())
	assert.Equal(t, "superseded", Superseded.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
