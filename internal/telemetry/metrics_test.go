package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveCycleRecordsDurationAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveCycle(5 * time.Millisecond)
	m.ObserveCycle(10 * time.Millisecond)

	var counter dto.Metric
	require.NoError(t, m.CyclesTotal.Write(&counter))
	require.Equal(t, float64(2), counter.GetCounter().GetValue())

	var hist dto.Metric
	require.NoError(t, m.CycleDuration.Write(&hist))
	require.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestObserveCycleOnNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() { m.ObserveCycle(time.Millisecond) })
}

func TestQueueDepthAndPresetAppliesAreLabeled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.QueueDepth.WithLabelValues("midi_in").Set(3)
	m.PresetApplies.WithLabelValues("dual").Inc()

	var depth dto.Metric
	require.NoError(t, m.QueueDepth.WithLabelValues("midi_in").Write(&depth))
	require.Equal(t, float64(3), depth.GetGauge().GetValue())

	var applies dto.Metric
	require.NoError(t, m.PresetApplies.WithLabelValues("dual").Write(&applies))
	require.Equal(t, float64(1), applies.GetCounter().GetValue())
}
