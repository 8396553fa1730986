package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/board"
	"github.com/orbitrc/orbit/internal/health"
)

// Board is the part of *board.Synchronizer the UI drives.
type Board interface {
	Snapshot() board.Snapshot
	Refresh(ctx context.Context) (board.Snapshot, error)
	Move(ctx context.Context, itemID string, from, to api.Stage) (board.Outcome, error)
	Warnings() <-chan board.Warning
}

// Connectivity is the part of *health.Monitor the UI drives.
type Connectivity interface {
	State() health.State
	Subscribe() (<-chan health.Event, func())
	WakeUp(ctx context.Context) error
	WakeAttempts() int
}

// Options configures the UI.
type Options struct {
	Context       context.Context
	Board         Board
	Health        Connectivity
	ActiveAddress func() string
	DeveloperMode func() bool
	ThemeName     string
	// SaveTheme persists the theme chosen with the cycle key.
	SaveTheme func(name string) error
	// Tick is how often the board snapshot is re-read.
	Tick   time.Duration
	Logger *zap.Logger
}

const (
	defaultTick    = time.Second
	noticeLifetime = 6 * time.Second
)

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeWarning
	noticeDanger
)

type notice struct {
	text    string
	level   noticeLevel
	expires time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	board     Board
	health    Connectivity
	address   func() string
	devMode   func() bool
	saveTheme func(string) error
	tick      time.Duration
	logger    *zap.Logger

	events   <-chan health.Event
	warnings <-chan board.Warning

	keys   keyMap
	help   help.Model
	theme  Theme
	width  int
	height int
	ready  bool

	snapshot board.Snapshot
	conn     health.State
	col      int
	row      int
	notice   notice
	showHelp bool
	now      func() time.Time
}

// New creates the board model. events may be nil when no subscription is
// wanted.
func New(opts Options, events <-chan health.Event) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	address := opts.ActiveAddress
	if address == nil {
		address = func() string { return "" }
	}
	devMode := opts.DeveloperMode
	if devMode == nil {
		devMode = func() bool { return false }
	}

	m := Model{
		ctx:       ctx,
		board:     opts.Board,
		health:    opts.Health,
		address:   address,
		devMode:   devMode,
		saveTheme: opts.SaveTheme,
		tick:      tick,
		logger:    logger,
		events:    events,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(opts.ThemeName),
		now:       time.Now,
	}
	if opts.Board != nil {
		m.warnings = opts.Board.Warnings()
		m.snapshot = opts.Board.Snapshot()
	}
	if opts.Health != nil {
		m.conn = opts.Health.State()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	if m.warnings != nil {
		cmds = append(cmds, waitForWarning(m.warnings))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		m.readSnapshot()
		if m.health != nil {
			m.conn = m.health.State()
		}
		return m, tickCmd(m.tick)

	case healthMsg:
		return m.handleHealth(health.Event(msg))

	case warningMsg:
		w := board.Warning(msg)
		if w.Outcome == board.RolledBack {
			m.setNotice(fmt.Sprintf("%s returned to %s: backend did not confirm", w.ItemID, w.From.Label()), noticeDanger)
		} else {
			m.setNotice(fmt.Sprintf("%s moved to %s locally: backend did not confirm", w.ItemID, w.To.Label()), noticeWarning)
		}
		m.readSnapshot()
		return m, waitForWarning(m.warnings)

	case moveDoneMsg:
		m.readSnapshot()
		switch {
		case errors.Is(msg.err, board.ErrUnknownItem):
			m.setNotice(fmt.Sprintf("%s is no longer on the board", msg.id), noticeWarning)
		case msg.err != nil:
			m.setNotice(msg.err.Error(), noticeDanger)
		case msg.outcome == board.Confirmed:
			m.setNotice(fmt.Sprintf("%s moved to %s", msg.id, msg.to.Label()), noticeSuccess)
		case msg.outcome == board.Accepted:
			m.setNotice(fmt.Sprintf("%s moved to %s (local data)", msg.id, msg.to.Label()), noticeInfo)
		}
		return m, nil

	case refreshDoneMsg:
		m.readSnapshot()
		if msg.err != nil {
			m.setNotice("refresh failed: "+msg.err.Error(), noticeDanger)
		}
		return m, nil

	case wakeDoneMsg:
		switch {
		case errors.Is(msg.err, health.ErrWakeThrottled):
			m.setNotice("wake-up already requested, hold on", noticeInfo)
		case msg.err != nil:
			m.setNotice(fmt.Sprintf("wake-up attempt %d sent, backend still silent", msg.attempt), noticeWarning)
		default:
			m.setNotice(fmt.Sprintf("wake-up attempt %d sent, rechecking shortly", msg.attempt), noticeInfo)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
	case key.Matches(msg, m.keys.Refresh):
		m.setNotice("refreshing board", noticeInfo)
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.WakeUp):
		return m, m.wakeCmd()
	case key.Matches(msg, m.keys.MoveLeft):
		return m.moveSelected(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.moveSelected(1)
	case key.Matches(msg, m.keys.Left):
		m.selectColumn(m.col - 1)
	case key.Matches(msg, m.keys.Right):
		m.selectColumn(m.col + 1)
	case key.Matches(msg, m.keys.Up):
		m.selectRow(m.row - 1)
	case key.Matches(msg, m.keys.Down):
		m.selectRow(m.row + 1)
	case key.Matches(msg, m.keys.Top):
		m.selectRow(0)
	case key.Matches(msg, m.keys.Bottom):
		m.selectRow(len(m.currentColumn().Cards) - 1)
	}
	return m, nil
}

func (m Model) handleHealth(ev health.Event) (tea.Model, tea.Cmd) {
	m.conn = ev.State
	switch {
	case ev.Recovered:
		m.setNotice("backend is back online", noticeSuccess)
	case ev.State == health.Offline:
		m.setNotice("no network: showing local data", noticeWarning)
	case ev.State == health.Error && ev.Previous != health.Error:
		m.setNotice("backend unreachable: press w to wake it", noticeDanger)
	}
	return m, waitForEvent(m.events)
}

// moveSelected moves the selected card one stage left or right. The cursor
// follows the card.
func (m Model) moveSelected(delta int) (tea.Model, tea.Cmd) {
	card, ok := m.selectedCard()
	if !ok {
		return m, nil
	}
	target := m.col + delta
	if target < 0 || target >= len(api.Stages) {
		return m, nil
	}
	from := card.Status
	to := api.Stages[target]

	b := m.board
	ctx := m.ctx
	id := card.ID
	cmd := func() tea.Msg {
		outcome, err := b.Move(ctx, id, from, to)
		return moveDoneMsg{id: id, to: to, outcome: outcome, err: err}
	}

	// Optimistic placement is visible as soon as Move has relocated the
	// item; follow it on the next snapshot.
	m.col = target
	m.row = len(m.snapshot.Column(to).Cards)
	return m, cmd
}

func (m *Model) readSnapshot() {
	if m.board == nil {
		return
	}
	m.snapshot = m.board.Snapshot()
	m.clampCursor()
}

func (m *Model) selectColumn(col int) {
	m.col = clamp(col, 0, len(api.Stages)-1)
	m.clampCursor()
}

func (m *Model) selectRow(row int) {
	m.row = row
	m.clampCursor()
}

func (m *Model) clampCursor() {
	m.col = clamp(m.col, 0, len(api.Stages)-1)
	m.row = clamp(m.row, 0, len(m.currentColumn().Cards)-1)
}

func (m Model) currentColumn() board.Column {
	return m.snapshot.Column(api.Stages[clamp(m.col, 0, len(api.Stages)-1)])
}

func (m Model) selectedCard() (board.Card, bool) {
	cards := m.currentColumn().Cards
	if m.row < 0 || m.row >= len(cards) {
		return board.Card{}, false
	}
	return cards[m.row], true
}

func (m *Model) cycleTheme() {
	next := NextTheme(m.theme.Name)
	m.theme = GetTheme(next)
	if m.saveTheme == nil {
		return
	}
	if err := m.saveTheme(next); err != nil {
		m.logger.Warn("failed to save theme", zap.String("theme", next), zap.Error(err))
	}
}

func (m *Model) setNotice(text string, level noticeLevel) {
	m.notice = notice{text: text, level: level, expires: m.now().Add(noticeLifetime)}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.board == nil {
		return nil
	}
	b := m.board
	ctx := m.ctx
	return func() tea.Msg {
		_, err := b.Refresh(ctx)
		return refreshDoneMsg{err: err}
	}
}

func (m Model) wakeCmd() tea.Cmd {
	if m.health == nil {
		return nil
	}
	h := m.health
	ctx := m.ctx
	return func() tea.Msg {
		err := h.WakeUp(ctx)
		return wakeDoneMsg{attempt: h.WakeAttempts(), err: err}
	}
}

// Messages

type tickMsg time.Time

type healthMsg health.Event

type warningMsg board.Warning

type moveDoneMsg struct {
	id      string
	to      api.Stage
	outcome board.Outcome
	err     error
}

type refreshDoneMsg struct{ err error }

type wakeDoneMsg struct {
	attempt int
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(ch <-chan health.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return healthMsg(ev)
	}
}

func waitForWarning(ch <-chan board.Warning) tea.Cmd {
	return func() tea.Msg {
		w, ok := <-ch
		if !ok {
			return nil
		}
		return warningMsg(w)
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// ends.
func Run(opts Options) error {
	var events <-chan health.Event
	if opts.Health != nil {
		ch, cancel := opts.Health.Subscribe()
		defer cancel()
		events = ch
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(New(opts, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
