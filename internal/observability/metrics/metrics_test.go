package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConciergeMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConciergeMetrics(reg)

	m.ObserveIntervention("self_harm", "critical")
	m.ObserveIntervention("self_harm", "critical")
	m.ObserveVeto()
	m.ObserveMedicalRedirect("diagnosis")
	m.ObserveSpecialistError("coach")
	m.ObserveAuditFailure()
	m.ObserveTurnDuration(0.25)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	interventions := byName["vitracka_concierge_safety_interventions_total"]
	require.NotNil(t, interventions)
	assert.Equal(t, float64(2), interventions.GetMetric()[0].GetCounter().GetValue())

	vetoes := byName["vitracka_concierge_response_vetoes_total"]
	require.NotNil(t, vetoes)
	assert.Equal(t, float64(1), vetoes.GetMetric()[0].GetCounter().GetValue())
}

func TestConciergeMetricsNilSafe(t *testing.T) {
	var m *ConciergeMetrics
	m.ObserveIntervention("self_harm", "high")
	m.ObserveVeto()
	m.ObserveMedicalRedirect("treatment")
	m.ObserveSpecialistError("coach")
	m.ObserveAuditFailure()
	m.ObserveTurnDuration(0.1)
}
