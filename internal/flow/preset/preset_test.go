package preset

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/currawong-project/libcw-sub004/internal/flow/classdict"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/network"
	"github.com/currawong-project/libcw-sub004/internal/flow/procs"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

func gainNetwork(t *testing.T) *network.Network {
	t.Helper()
	d := classdict.New()
	require.NoError(t, d.Register(procs.Gain()))
	n := network.New(d, nil)
	_, err := n.AddProcedure("gain", "gain", 0, nil, "")
	require.NoError(t, err)
	require.NoError(t, n.Validate())
	return n
}

func TestScenario5DualPresetInterpolation(t *testing.T) {
	n := gainNetwork(t)

	p0 := &ValueListPreset{Label: "P0", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "k", Channel: graph.AnyChannel}, Value: value.Double(0.0)},
	}}
	p1 := &ValueListPreset{Label: "P1", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "k", Channel: graph.AnyChannel}, Value: value.Double(1.0)},
	}}
	dual := &DualPreset{Label: "dual", Primary: p0, Secondary: p1, Coeff: 0.25}

	e := NewEngine(nil, PolicyWarn)
	require.NoError(t, e.ApplyDual(n, dual))

	gainProc, _ := n.Procedure("gain")
	k, _ := gainProc.Find("k", "", graph.AnyChannel)
	require.InDelta(t, 0.25, k.Value().AsDouble(), 1e-9)
}

func TestApplyValueListIdempotent(t *testing.T) {
	n := gainNetwork(t)
	p := &ValueListPreset{Label: "flat", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "k", Channel: graph.AnyChannel}, Value: value.Double(3.5)},
	}}
	e := NewEngine(nil, PolicyWarn)
	require.NoError(t, e.ApplyValueList(n, p))
	require.NoError(t, e.ApplyValueList(n, p))

	gainProc, _ := n.Procedure("gain")
	k, _ := gainProc.Find("k", "", graph.AnyChannel)
	require.InDelta(t, 3.5, k.Value().AsDouble(), 1e-9)
}

func TestApplyValueListMissingTargetWarnsAndContinues(t *testing.T) {
	n := gainNetwork(t)
	p := &ValueListPreset{Label: "partial", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "nope", Channel: graph.AnyChannel}, Value: value.Double(1.0)},
		{Target: Target{Procedure: "gain", Label: "k", Channel: graph.AnyChannel}, Value: value.Double(9.0)},
	}}
	e := NewEngine(nil, PolicyWarn)
	require.NoError(t, e.ApplyValueList(n, p))

	gainProc, _ := n.Procedure("gain")
	k, _ := gainProc.Find("k", "", graph.AnyChannel)
	require.InDelta(t, 9.0, k.Value().AsDouble(), 1e-9)
}

func TestApplyValueListMissingTargetErrorsUnderPolicyError(t *testing.T) {
	n := gainNetwork(t)
	p := &ValueListPreset{Label: "partial", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "nope", Channel: graph.AnyChannel}, Value: value.Double(1.0)},
	}}
	e := NewEngine(nil, PolicyError)
	err := e.ApplyValueList(n, p)
	require.Error(t, err)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// TestApplyCountsByKind confirms both preset kinds increment the shared
// preset_applies_total counter under their own "kind" label (spec §7's
// composite-operation bookkeeping), rather than the collector sitting
// unread.
func TestApplyCountsByKind(t *testing.T) {
	n := gainNetwork(t)
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	e := NewEngine(nil, PolicyWarn)
	e.SetMetrics(m)

	p := &ValueListPreset{Label: "flat", Entries: []Entry{
		{Target: Target{Procedure: "gain", Label: "k", Channel: graph.AnyChannel}, Value: value.Double(1.0)},
	}}
	require.NoError(t, e.ApplyValueList(n, p))
	require.Equal(t, float64(1), counterValue(t, m.PresetApplies.WithLabelValues("value_list")))

	dual := &DualPreset{Label: "dual", Primary: p, Secondary: p, Coeff: 0.5}
	require.NoError(t, e.ApplyDual(n, dual))
	require.Equal(t, float64(1), counterValue(t, m.PresetApplies.WithLabelValues("dual")))
	require.Equal(t, float64(1), counterValue(t, m.PresetApplies.WithLabelValues("value_list")))
}
