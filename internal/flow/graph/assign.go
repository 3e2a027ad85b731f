package graph

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
)

// Logger is the minimal surface graph needs for channelize's best-match
// warning. telemetry.Logger satisfies it without graph importing
// telemetry directly.
type Logger interface {
	Warnf(format string, args ...any)
}

// UIDescriptor decorates a variable with the identifiers the UI Bridge
// needs to route change notifications to a widget (spec §4.7: "widget
// id, container id, label id, and a user-supplied callback argument").
// It lives in graph, not uibridge, because the bridge reads it directly
// off the variable during broadcast; a separate side-table keyed by
// variable identity would just reintroduce the same lookup graph
// already provides for free.
type UIDescriptor struct {
	WidgetID    uint32
	ContainerID uint32
	LabelID     uint32
	Arg         any

	Enabled bool
	Visible bool
}

// Set is the assignment protocol (spec §4.3 "assignment"): coerce the
// candidate value to the variable's pinned (or descriptor-admitted)
// kind, stage it in the next ring slot as a trial, give the owning
// class a chance to reject it via its value callback, and on acceptance
// broadcast to every variable directly connected downstream — iteratively,
// not recursively, since a fan-out chain can be arbitrarily long (spec
// §9 "broadcast must not recurse per destination; use a work queue").
//
// Set must only be called on a variable with no source: a connected
// variable's value is an alias of its source's (spec §3 invariant) and
// is never assigned directly — assign to the source instead.
func Set(owner Owner, v *Variable, newVal value.Value) error {
	if v.IsConnected() {
		return ferr.New(ferr.InvalidState, "variable %s:%s[%d] is connected; assign its source instead", v.Label, v.Sfx, v.Chan)
	}

	dstKind := v.kind
	if dstKind == value.KindInvalid {
		if t, ok := v.Desc.SingleType(); ok {
			dstKind = t
		} else {
			dstKind = value.KindInvalid // adopt newVal's kind
		}
	}

	coerced, err := newVal.CoerceTo(dstKind)
	if err != nil {
		return err
	}
	if v.Desc != nil && !v.Desc.IsRuntime() && !v.Desc.Admits(coerced.Kind()) {
		return ferr.New(ferr.TypeMismatch, "variable %s:%s[%d] does not admit type %s", v.Label, v.Sfx, v.Chan, coerced.Kind())
	}

	priorIdx := v.ringIdx
	priorKind := v.kind
	trialIdx := (priorIdx + 1) % RingCapacity
	v.ring[trialIdx] = coerced
	v.ringIdx = trialIdx
	v.kind = coerced.Kind()

	if owner.PostCreateReady() {
		if cbErr := owner.InvokeValueCallback(v); cbErr != nil {
			v.ringIdx = priorIdx
			v.kind = priorKind
			return cbErr
		}
	}

	return broadcast(v)
}

// broadcast walks the destination graph reachable from v breadth-first
// using an explicit work queue, invoking each destination's owning
// class's value callback. Since a destination's active value already
// aliases its source (Variable.Value forwards through src), there is no
// local copy to push — broadcast only needs to fire notifications.
//
// A destination's callback rejection is logged and does not abort the
// walk: the variable that was actually assigned (v, in Set) has already
// committed, so broadcast's job from here on is best-effort fan-out, not
// a transaction (spec §4.3 step 5: "broadcast failures are logged; the
// update is not rolled back further"). A rejected destination also isn't
// expanded further, since its own value didn't change.
func broadcast(v *Variable) error {
	queue := v.Destinations()
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		if d.Owner != nil && d.Owner.PostCreateReady() {
			if err := d.Owner.InvokeValueCallback(d); err != nil {
				if log := d.Owner.Logger(); log != nil {
					log.Warnf("broadcast: downstream variable %s:%s[%d] rejected assignment: %v", d.Label, d.Sfx, d.Chan, err)
				}
				continue
			}
		}
		queue = append(queue, d.Destinations()...)
	}
	return nil
}

// valueFromConfig converts a parsed configuration scalar into a Value,
// used when a variable descriptor's default or an instance's override
// supplies a literal from a cfg file (spec §4.3 step 1, §6).
func valueFromConfig(n *config.Node) (value.Value, error) {
	switch n.Kind {
	case config.KindBool:
		return value.Bool(n.Bool), nil
	case config.KindInt:
		return value.Int(n.Int), nil
	case config.KindUint:
		return value.Uint(n.Uint), nil
	case config.KindFloat:
		return value.Float(n.Float), nil
	case config.KindDouble:
		return value.Double(n.Double), nil
	case config.KindString, config.KindIdent:
		return value.String(n.Str), nil
	default:
		return value.CfgRef(n), nil
	}
}
