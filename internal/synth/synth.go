// Package synth produces the canned payloads orbit shows when no backend
// answers. Output depends only on the operation key and every call returns
// fresh values, so callers may mutate what they get.
package synth

import "github.com/orbitrc/orbit/internal/api"

// NoConfirmation is the message carried by synthesized mutations.
const NoConfirmation = "no backend confirmation"

// GenericMessage is the message for operations without a dedicated payload.
const GenericMessage = "synthetic data"

// For returns the substitute envelope for op. It never fails.
func For(op api.Operation) api.Envelope {
	switch op {
	case api.OpListBoardItems:
		return api.Envelope{Success: true, Cards: Items()}
	case api.OpDashboardSummary:
		return api.Envelope{Success: true, Data: Stats()}
	case api.OpSLAMetrics:
		return api.Envelope{Success: true, Metrics: SLA()}
	case api.OpUpdateItemStatus, api.OpAddSampleData:
		return api.Envelope{Success: false, Message: NoConfirmation}
	default:
		return api.Envelope{Success: true, Message: GenericMessage}
	}
}

// Items returns the placeholder board: seven requisitions spread over all
// five stages.
func Items() []api.Item {
	items := []api.Item{
		{ID: "RC-1001 (Mock)", Status: api.StageRequested, CreatedBy: "CARLOS RAMOS", EstimatedValue: 3383.18},
		{ID: "RC-1004 (Mock)", Status: api.StageRequested, CreatedBy: "JOANA SILVA", EstimatedValue: 1250.00},
		{ID: "RC-1002 (Mock)", Status: api.StageInReview, CreatedBy: "MARIA LIMA", EstimatedValue: 752.66},
		{ID: "RC-1005 (Mock)", Status: api.StageInReview, CreatedBy: "PEDRO SANTOS", EstimatedValue: 4200.00},
		{ID: "RC-1003 (Mock)", Status: api.StageApproved, CreatedBy: "JOSÉ PEREIRA", EstimatedValue: 1890.25},
		{ID: "RC-1006 (Mock)", Status: api.StageReceived, CreatedBy: "ANA OLIVEIRA", EstimatedValue: 3750.50},
		{ID: "RC-1007 (Mock)", Status: api.StageRejected, CreatedBy: "ROBERTO ALVES", EstimatedValue: 980.30},
	}
	for i := range items {
		items[i].Synthetic = true
	}
	return items
}

// Stats returns placeholder dashboard statistics.
func Stats() *api.DashboardStats {
	return &api.DashboardStats{
		TotalRequisitions: 100,
		TotalValue:        250000,
		StatusDistribution: map[string]int{
			api.StageRequested.Label(): 25,
			api.StageInReview.Label():  30,
			api.StageApproved.Label():  20,
			api.StageReceived.Label():  15,
			api.StageRejected.Label():  10,
		},
		Synthetic: true,
	}
}

// SLA returns placeholder SLA targets and measurements.
func SLA() *api.SLAMetrics {
	return &api.SLAMetrics{
		Targets: map[string]api.SLATarget{
			"requisicao_compra":    {Target: 2, Unit: "dias"},
			"aprovacao_requisicao": {Target: 4, Unit: "dias"},
			"lancamento_nf":        {Target: 2, Unit: "dias"},
		},
		Performance: map[string]api.SLAPerformance{
			"requisicao_compra":    {Average: 1.8, Compliance: 95},
			"aprovacao_requisicao": {Average: 3.2, Compliance: 88},
			"lancamento_nf":        {Average: 1.5, Compliance: 98},
		},
		Deadlines: map[string]string{
			"nf_mercadoria": "Último dia útil do mês",
			"nf_servico":    "Dia 24 de cada mês",
		},
		Synthetic: true,
	}
}
