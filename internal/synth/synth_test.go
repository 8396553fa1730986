package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitrc/orbit/internal/api"
)

func TestFor_BoardCoversEveryStage(t *testing.T) {
	env := For(api.OpListBoardItems)
	require.True(t, env.Success)
	require.Len(t, env.Cards, 7)

	seen := map[api.Stage]int{}
	ids := map[string]bool{}
	for _, item := range env.Cards {
		assert.True(t, item.Synthetic, "item %s", item.ID)
		assert.True(t, item.Status.Valid())
		assert.False(t, ids[item.ID], "duplicate id %s", item.ID)
		ids[item.ID] = true
		seen[item.Status]++
	}
	for _, stage := range api.Stages {
		assert.NotZero(t, seen[stage], "stage %s has no placeholder", stage)
	}
}

func TestFor_MutationsAreNeverConfirmed(t *testing.T) {
	for _, op := range []api.Operation{api.OpUpdateItemStatus, api.OpAddSampleData} {
		env := For(op)
		assert.False(t, env.Success, "%s", op)
		assert.Equal(t, NoConfirmation, env.Message)
	}
}

func TestFor_SummaryAndSLA(t *testing.T) {
	summary := For(api.OpDashboardSummary)
	require.NotNil(t, summary.Data)
	assert.True(t, summary.Data.Synthetic)
	assert.Equal(t, 100, summary.Data.TotalRequisitions)
	total := 0
	for _, n := range summary.Data.StatusDistribution {
		total += n
	}
	assert.Equal(t, summary.Data.TotalRequisitions, total)

	sla := For(api.OpSLAMetrics)
	require.NotNil(t, sla.Metrics)
	assert.True(t, sla.Metrics.Synthetic)
	assert.Len(t, sla.Metrics.Targets, 3)
}

func TestFor_UnknownOperation(t *testing.T) {
	env := For("export_report")
	assert.True(t, env.Success)
	assert.Equal(t, GenericMessage, env.Message)
	assert.Empty(t, env.Cards)
}

func TestFor_ReturnsFreshCopies(t *testing.T) {
	first := For(api.OpListBoardItems)
	first.Cards[0].Status = api.StageRejected
	first.Cards = first.Cards[:1]

	second := For(api.OpListBoardItems)
	assert.Len(t, second.Cards, 7)
	assert.Equal(t, api.StageRequested, second.Cards[0].Status)
}
