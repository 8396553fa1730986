package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operation is the stable key naming a logical backend call. It selects the
// synthetic substitute when no backend answers.
type Operation string

const (
	OpListBoardItems   Operation = "list_board_items"
	OpUpdateItemStatus Operation = "update_item_status"
	OpDashboardSummary Operation = "dashboard_summary"
	OpSLAMetrics       Operation = "sla_metrics"
	OpAddSampleData    Operation = "add_sample_data"
)

// Request describes one logical operation independent of the base address
// it will be sent to.
type Request struct {
	Operation Operation
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// Envelope is the single response shape shared by every operation.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Cards   []Item          `json:"cards,omitempty"`
	Data    *DashboardStats `json:"data,omitempty"`
	Metrics *SLAMetrics     `json:"metrics,omitempty"`
}

// Item is a requisition card on the board.
type Item struct {
	ID             string  `json:"ID_RC"`
	Status         Stage   `json:"Status"`
	Title          string  `json:"title,omitempty"`
	CreatedBy      string  `json:"Criado_Por,omitempty"`
	EstimatedValue float64 `json:"Valor_Estimado,omitempty"`
	RequestType    string  `json:"Tipo_Requisicao,omitempty"`
	Supplier       string  `json:"Fornecedor_Sugerido,omitempty"`
	CreatedAt      string  `json:"Data_Criacao,omitempty"`

	// Synthetic marks items produced locally while no backend was reachable.
	Synthetic bool `json:"-"`
}

// ParsedCreatedAt returns the parsed creation timestamp.
func (i Item) ParsedCreatedAt() time.Time {
	return parseTime(i.CreatedAt)
}

// DashboardStats mirrors /api/dashboard-stats.
type DashboardStats struct {
	TotalRequisitions  int            `json:"total_requisicoes"`
	TotalValue         float64        `json:"valor_total"`
	StatusDistribution map[string]int `json:"status_distribution"`

	Synthetic bool `json:"-"`
}

// UnmarshalJSON tolerates non-object payloads; some endpoints answer with
// `"data": []`.
func (d *DashboardStats) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		*d = DashboardStats{}
		return nil
	}
	type plain DashboardStats
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*d = DashboardStats(out)
	return nil
}

// SLAMetrics mirrors /api/sla.
type SLAMetrics struct {
	Targets     map[string]SLATarget      `json:"sla_targets"`
	Performance map[string]SLAPerformance `json:"current_performance"`
	Deadlines   map[string]string         `json:"deadlines"`

	Synthetic bool `json:"-"`
}

// SLATarget is the agreed turnaround for one process step.
type SLATarget struct {
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
}

// SLAPerformance is the measured turnaround for one process step.
type SLAPerformance struct {
	Average    float64 `json:"average"`
	Compliance float64 `json:"compliance"`
}

// Filters narrows the board listing.
type Filters struct {
	RequestType string
	CreatedBy   string
	Supplier    string
	MinValue    float64
	MaxValue    float64
}

// Values encodes the filters using the backend's query parameter names.
func (f Filters) Values() url.Values {
	values := url.Values{}
	if v := strings.TrimSpace(f.RequestType); v != "" {
		values.Set("tipo_requisicao", v)
	}
	if v := strings.TrimSpace(f.CreatedBy); v != "" {
		values.Set("criado_por", v)
	}
	if v := strings.TrimSpace(f.Supplier); v != "" {
		values.Set("fornecedor", v)
	}
	if f.MinValue > 0 {
		values.Set("valor_min", strconv.FormatFloat(f.MinValue, 'f', -1, 64))
	}
	if f.MaxValue > 0 {
		values.Set("valor_max", strconv.FormatFloat(f.MaxValue, 'f', -1, 64))
	}
	return values
}

// ListBoardItems builds the board listing request.
func ListBoardItems(filters Filters) Request {
	return Request{
		Operation: OpListBoardItems,
		Method:    http.MethodGet,
		Path:      "/api/cards",
		Query:     filters.Values(),
	}
}

// UpdateItemStatus builds the status transition request.
func UpdateItemStatus(itemID string, status Stage) Request {
	return Request{
		Operation: OpUpdateItemStatus,
		Method:    http.MethodPost,
		Path:      "/api/update-card-status",
		Body: struct {
			CardID    string `json:"cardId"`
			NewStatus Stage  `json:"newStatus"`
		}{CardID: itemID, NewStatus: status},
	}
}

// DashboardSummary builds the summary statistics request.
func DashboardSummary() Request {
	return Request{Operation: OpDashboardSummary, Method: http.MethodGet, Path: "/api/dashboard-stats"}
}

// SLA builds the SLA metrics request.
func SLA() Request {
	return Request{Operation: OpSLAMetrics, Method: http.MethodGet, Path: "/api/sla"}
}

// AddSampleData builds the sample-data seeding request.
func AddSampleData() Request {
	return Request{Operation: OpAddSampleData, Method: http.MethodPost, Path: "/api/add-sample-data"}
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
