// Package preset implements the Flow engine's two preset kinds — value
// list and dual interpolation (spec §4.5) — applied against a network
// and serialized onto the cycle boundary by the scheduler. Grounded on
// the teacher's session.Session snapshot/restore shape (a named, ordered
// set of (target, value) writes applied atomically-per-entry) and
// original_source/cwIoFlowCtl.cpp's preset value-list/dual application.
package preset

import (
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/network"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// Target identifies one variable a preset entry writes to.
type Target struct {
	Procedure string
	Label     string
	Sfx       string
	Channel   int
}

// Entry is one (target, value) pair in a value-list preset.
type Entry struct {
	Target Target
	Value  value.Value
}

// ValueListPreset is an ordered list of (procedure, variable, channel,
// value) tuples (spec §4.5 "Value-list"). Applying it calls Set on each
// entry in list order; per-entry errors do not abort the list.
type ValueListPreset struct {
	Label   string
	Entries []Entry
}

// DualPreset interpolates between two underlying value-list presets by
// coefficient (spec §4.5 "Dual"). Variables present in both primary and
// secondary are applied as pri + coeff*(sec-pri); variables present in
// only one side are applied verbatim.
type DualPreset struct {
	Label     string
	Primary   *ValueListPreset
	Secondary *ValueListPreset
	Coeff     float64 // in [0,1]
}

// MissingTargetPolicy controls how Apply handles a preset entry whose
// target variable doesn't exist on any procedure (spec §9 Open
// Question: "the current behavior is to log and continue... expose the
// choice via configuration"). This resolves that question by making the
// choice a field on Engine rather than hardcoding either behavior.
type MissingTargetPolicy int

const (
	PolicyWarn MissingTargetPolicy = iota
	PolicyError
)

// Engine applies presets against a network.
type Engine struct {
	Policy  MissingTargetPolicy
	log     *telemetry.Logger
	metrics *telemetry.Metrics
}

// NewEngine creates a preset engine logging through log (may be nil).
func NewEngine(log *telemetry.Logger, policy MissingTargetPolicy) *Engine {
	return &Engine{Policy: policy, log: log}
}

// SetMetrics attaches a collector so every ApplyValueList/ApplyDual call
// is counted by kind. A nil metrics (the default) disables counting.
func (e *Engine) SetMetrics(m *telemetry.Metrics) { e.metrics = m }

func (e *Engine) resolve(net *network.Network, t Target) (graph.Owner, *graph.Variable, error) {
	proc, ok := net.Procedure(t.Procedure)
	if !ok {
		return nil, nil, ferr.New(ferr.EleNotFound, "preset target: no such procedure %q", t.Procedure)
	}
	v, ok := proc.Find(t.Label, t.Sfx, t.Channel)
	if !ok {
		return nil, nil, ferr.New(ferr.EleNotFound, "preset target: procedure %q has no variable %s:%s[%d]", t.Procedure, t.Label, t.Sfx, t.Channel)
	}
	return proc, v, nil
}

// ApplyValueList applies p against net. Per-entry failures are logged
// (or returned as the aggregate error under PolicyError) and do not
// abort the remaining entries (spec §4.5, §7 "composite operations log
// and return the first error" — here Apply continues and reports the
// first error at the end, matching the value-list's own "errors are
// per-entry and do not abort the list").
func (e *Engine) ApplyValueList(net *network.Network, p *ValueListPreset) error {
	if e.metrics != nil {
		e.metrics.PresetApplies.WithLabelValues("value_list").Inc()
	}
	return e.applyEntries(net, p.Label, p.Entries)
}

func (e *Engine) applyEntries(net *network.Network, label string, entries []Entry) error {
	var firstErr error
	for _, entry := range entries {
		owner, v, err := e.resolve(net, entry.Target)
		if err != nil {
			e.reportMissing(label, entry.Target, err)
			if firstErr == nil && e.Policy == PolicyError {
				firstErr = err
			}
			continue
		}
		if err := graph.Set(owner, v, entry.Value); err != nil {
			if e.log != nil {
				e.log.Errorf("preset %q: set %s:%s[%d] failed", label, entry.Target.Label, entry.Target.Sfx, entry.Target.Channel)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) reportMissing(presetLabel string, t Target, err error) {
	if e.log == nil {
		return
	}
	if e.Policy == PolicyError {
		e.log.Errorf("preset %q: target %s.%s:%s[%d] missing: %v", presetLabel, t.Procedure, t.Label, t.Sfx, t.Channel, err)
	} else {
		e.log.Warnf("preset %q: target %s.%s:%s[%d] missing, skipping", presetLabel, t.Procedure, t.Label, t.Sfx, t.Channel)
	}
}

// ApplyDual applies d against net: for every target present in both
// Primary and Secondary, writes pri + coeff*(sec-pri); targets present
// in only one side are applied verbatim from that side.
func (e *Engine) ApplyDual(net *network.Network, d *DualPreset) error {
	if e.metrics != nil {
		e.metrics.PresetApplies.WithLabelValues("dual").Inc()
	}
	merged := mergeDual(d)
	return e.applyEntries(net, d.Label, merged)
}

func mergeDual(d *DualPreset) []Entry {
	secByTarget := make(map[Target]value.Value, len(d.Secondary.Entries))
	for _, e := range d.Secondary.Entries {
		secByTarget[e.Target] = e.Value
	}

	seen := make(map[Target]bool, len(d.Primary.Entries))
	out := make([]Entry, 0, len(d.Primary.Entries)+len(d.Secondary.Entries))

	for _, pe := range d.Primary.Entries {
		seen[pe.Target] = true
		if sv, ok := secByTarget[pe.Target]; ok {
			out = append(out, Entry{Target: pe.Target, Value: interpolate(pe.Value, sv, d.Coeff)})
		} else {
			out = append(out, pe)
		}
	}
	for _, se := range d.Secondary.Entries {
		if !seen[se.Target] {
			out = append(out, se)
		}
	}
	return out
}

// interpolate computes pri + coeff*(sec-pri) for numeric scalar kinds,
// evaluated in double precision and coerced back to pri's kind (spec
// §4.5: "the numeric interpolation ... evaluated per scalar type").
func interpolate(pri, sec value.Value, coeff float64) value.Value {
	priD, err := pri.CoerceTo(value.KindDouble)
	if err != nil {
		return pri
	}
	secD, err := sec.CoerceTo(value.KindDouble)
	if err != nil {
		return pri
	}
	result := priD.AsDouble() + coeff*(secD.AsDouble()-priD.AsDouble())
	out, err := value.Double(result).CoerceTo(pri.Kind())
	if err != nil {
		return pri
	}
	return out
}
