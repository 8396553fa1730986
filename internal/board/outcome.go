package board

import (
	"time"

	"github.com/orbitrc/orbit/internal/api"
)

// Outcome is the final result of a Move.
type Outcome uint8

const (
	// Noop: same stage, or the drop was cancelled.
	Noop Outcome = iota
	// Accepted: placed locally without asking a backend (developer mode or
	// a synthetic board).
	Accepted
	// Confirmed: the backend acknowledged the transition.
	Confirmed
	// Unconfirmed: no backend confirmed; the item stays where it was dropped.
	Unconfirmed
	// RolledBack: no backend confirmed and the item went back.
	RolledBack
	// Superseded: a newer move of the same item replaced this one.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Noop:
		return "noop"
	case Accepted:
		return "accepted"
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	case RolledBack:
		return "rolled back"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Warning reports a move the backend never confirmed.
type Warning struct {
	ItemID  string
	From    api.Stage
	To      api.Stage
	Outcome Outcome
	At      time.Time
}

// Card is a board item plus its local sync status.
type Card struct {
	api.Item
	// Pending is set while a move of this item awaits its backend answer.
	Pending bool
	// Unconfirmed is set when the item sits where it was dropped without any
	// backend having confirmed it.
	Unconfirmed bool
}

// Column holds the cards of one stage in display order.
type Column struct {
	Stage api.Stage
	Cards []Card
}

// Snapshot is a copy of the board. Columns always lists every stage in
// order, empty ones included.
type Snapshot struct {
	Columns []Column
	// Synthetic is set when every item on the board is a placeholder.
	Synthetic bool
	Loaded    bool
	LoadedAt  time.Time
}

// Column returns the column for stage.
func (s Snapshot) Column(stage api.Stage) Column {
	for _, col := range s.Columns {
		if col.Stage == stage {
			return col
		}
	}
	return Column{Stage: stage}
}

// Find returns the card with id.
func (s Snapshot) Find(id string) (Card, bool) {
	for _, col := range s.Columns {
		for _, card := range col.Cards {
			if card.ID == id {
				return card, true
			}
		}
	}
	return Card{}, false
}

// Total counts all cards.
func (s Snapshot) Total() int {
	n := 0
	for _, col := range s.Columns {
		n += len(col.Cards)
	}
	return n
}
