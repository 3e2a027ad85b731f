// Package classdict implements the Class Dictionary — the registry of
// class descriptors a network is built from (spec §4.2). Grounded on
// the teacher's plugin-chain registration style (plugins.go's catalog of
// named AVAudioUnit factories, looked up by identifier at graph-build
// time) and original_source/cwFlowTypes.h's class_members_t callback
// table.
//
// Lifecycle callbacks are typed against graph.Owner and graph.Variable,
// not a concrete network.Procedure, so this package never imports
// network: network imports classdict (to look up descriptors while
// building a Procedure), and network.Procedure implements graph.Owner,
// so a cycle through classdict -> network -> classdict never forms.
package classdict

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
)

// VariableDescriptor is a class's declaration of one variable it exposes
// (spec §3 "Variable Descriptor"). It is graph.Descriptor verbatim: the
// graph package already owns the type set/flags/default-config shape a
// variable needs, and classdict just assembles a set of them per class.
type VariableDescriptor = graph.Descriptor

// PresetDescriptor names one of a class's built-in presets (spec §4.5).
// It carries only a label and a Ref key; it does not record the preset's
// kind, and nothing in the network or preset packages looks Ref up — the
// preset Engine applies ValueListPreset/DualPreset values handed to it
// directly.
type PresetDescriptor struct {
	Label string
	Ref   string // key into the preset package's registry for this class
}

// CreateFunc runs when a procedure instance is constructed: it declares
// the procedure's variables via graph.Register/graph.Create against o.
type CreateFunc func(o graph.Owner, argCfg *config.Node) error

// DestroyFunc runs when a procedure instance is torn down, releasing any
// class-private state (e.g. a wavetable handle, a device binding).
type DestroyFunc func(o graph.Owner) error

// ValueFunc is invoked whenever a trial assignment lands on one of the
// class's variables (spec §4.3 step 4), before or after channel-chain
// broadcast depending on which variable changed. Returning a non-nil
// error rejects the trial value and rolls it back.
type ValueFunc func(o graph.Owner, v *graph.Variable) error

// ExecFunc runs once per scheduler cycle for each live procedure
// instance of the class, in the network's topological order (spec §4.4).
type ExecFunc func(o graph.Owner) error

// ReportFunc produces a short diagnostic dump of a procedure instance's
// internal state, used by introspection tooling (spec §7 "report
// callback", supplementing the distilled spec from the original's
// class_members_t.report). Optional: nil means the class has nothing to
// report beyond its variable values.
type ReportFunc func(o graph.Owner) string

// ClassDescriptor is the static definition of a procedure class (spec
// §3 "Class", §4.2).
type ClassDescriptor struct {
	Label    string
	VarDescs []VariableDescriptor
	Presets  []PresetDescriptor

	Create  CreateFunc
	Destroy DestroyFunc
	Value   ValueFunc
	Exec    ExecFunc
	Report  ReportFunc // optional
}

// VarDesc looks up one of the class's declared variable descriptors by
// (label, sfx).
func (c *ClassDescriptor) VarDesc(label, sfx string) (*VariableDescriptor, bool) {
	for i := range c.VarDescs {
		if c.VarDescs[i].Label == label && c.VarDescs[i].Sfx == sfx {
			return &c.VarDescs[i], true
		}
	}
	return nil, false
}

// Preset looks up one of the class's built-in preset descriptors by
// label.
func (c *ClassDescriptor) Preset(label string) (*PresetDescriptor, bool) {
	for i := range c.Presets {
		if c.Presets[i].Label == label {
			return &c.Presets[i], true
		}
	}
	return nil, false
}
