package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage is one of the five fixed board columns. The zero value is not a
// stage; it stands for "no destination" (a cancelled drop).
type Stage uint8

const (
	StageRequested Stage = iota + 1
	StageInReview
	StageApproved
	StageReceived
	StageRejected
)

// Stages lists every stage in column order.
var Stages = []Stage{
	StageRequested,
	StageInReview,
	StageApproved,
	StageReceived,
	StageRejected,
}

var stageLabels = map[Stage]string{
	StageRequested: "Solicitado",
	StageInReview:  "Em Análise",
	StageApproved:  "Aprovado",
	StageReceived:  "Recebido",
	StageRejected:  "Rejeitado",
}

var stageNames = map[Stage]string{
	StageRequested: "Requested",
	StageInReview:  "In Review",
	StageApproved:  "Approved",
	StageReceived:  "Received",
	StageRejected:  "Rejected",
}

var stageAliases = map[string]Stage{
	"solicitado":  StageRequested,
	"requested":   StageRequested,
	"pending":     StageRequested,
	"em análise":  StageInReview,
	"em analise":  StageInReview,
	"in review":   StageInReview,
	"in_review":   StageInReview,
	"in_progress": StageInReview,
	"aprovado":    StageApproved,
	"approved":    StageApproved,
	"recebido":    StageReceived,
	"received":    StageReceived,
	"rejeitado":   StageRejected,
	"rejected":    StageRejected,
}

// Valid reports whether s is one of the five stages.
func (s Stage) Valid() bool {
	return s >= StageRequested && s <= StageRejected
}

// Label returns the backend wire label.
func (s Stage) Label() string {
	return stageLabels[s]
}

// String returns the English display name.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "none"
}

// Index returns the zero-based column position, or -1 for the zero stage.
func (s Stage) Index() int {
	if !s.Valid() {
		return -1
	}
	return int(s) - 1
}

// Progress returns the display percentage used on cards. Rejected items
// have no progress.
func (s Stage) Progress() int {
	switch s {
	case StageRequested:
		return 25
	case StageInReview:
		return 50
	case StageApproved:
		return 75
	case StageReceived:
		return 100
	default:
		return 0
	}
}

// ParseStage maps a wire label, English name or legacy alias to a Stage.
// Blank input maps to StageRequested, which is where the backend puts
// requisitions without a status.
func ParseStage(value string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return StageRequested, nil
	}
	if s, ok := stageAliases[key]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown stage %q", value)
}

// MarshalJSON encodes the wire label.
func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal stage: invalid value %d", s)
	}
	return json.Marshal(s.Label())
}

// UnmarshalJSON accepts labels, names and aliases; null decodes as blank.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode stage: %w", err)
	}
	value := ""
	if raw != nil {
		value = *raw
	}
	parsed, err := ParseStage(value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
