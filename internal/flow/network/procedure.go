// Package network implements the Procedure and Network types — the
// Flow engine's assembled dataflow graph (spec §3, §4.4). Grounded on
// the teacher's engine.Engine/plugin-chain construction order (resolve
// catalog entry, instantiate, wire, validate) and
// original_source/cwIoFlowCtl.cpp's instance_t/flow_t layout.
package network

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/classdict"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// vidChan is the flat map's key: a (vid, channel) pair.
type vidChan struct {
	vid uint32
	ch  int
}

// Procedure is a stateful node in the dataflow graph, an instance of a
// class descriptor (spec §3 "Procedure"). It implements graph.Owner so
// the graph package's operations can run against it without importing
// this package.
type Procedure struct {
	label     string
	sfxID     uint32
	class     *classdict.ClassDescriptor
	argCfg    *config.Node
	presetLbl string

	net *Network
	log *telemetry.Logger

	varsHead *Variable
	varsTail *Variable

	flatMap map[vidChan]*graph.Variable
	ready   bool // true once flatMap is built (post-create / post-validate)

	State any // user state blob the class's callbacks may stash private data in

	Subnetwork *Network // optional nested subnetwork (spec §3 "optional nested subnetwork")
}

// Variable is a local alias so callers reading this package's API don't
// need a second import just to name the graph's variable type.
type Variable = graph.Variable

// Label identifies the procedure (graph.Owner).
func (p *Procedure) Label() string { return p.label }

// SfxID returns the procedure's suffix/instance id, disambiguating
// multiple instances of the same class within a network.
func (p *Procedure) SfxID() uint32 { return p.sfxID }

// Class returns the procedure's class descriptor.
func (p *Procedure) Class() *classdict.ClassDescriptor { return p.class }

// ArgConfig returns the construction-time argument config passed to the
// class's create callback.
func (p *Procedure) ArgConfig() *config.Node { return p.argCfg }

// PresetLabel returns the procedure-scoped default preset label, if any
// (matches original_source's instance_t.preset_label, spec §7
// supplemented features).
func (p *Procedure) PresetLabel() string { return p.presetLbl }

// VarsHead returns the head of the owned variable list (graph.Owner).
func (p *Procedure) VarsHead() *Variable { return p.varsHead }

// AppendVar appends v to the tail of the procedure's variable list
// (graph.Owner).
func (p *Procedure) AppendVar(v *Variable) {
	if p.varsHead == nil {
		p.varsHead = v
	} else {
		p.varsTail.Next = v
	}
	p.varsTail = v
}

// PostCreateReady reports whether the flat vid->var map has been built
// (graph.Owner) — controls whether Set invokes the value callback.
func (p *Procedure) PostCreateReady() bool { return p.ready }

// InvokeValueCallback runs the class's value callback for v, logging and
// propagating any rejection (graph.Owner).
func (p *Procedure) InvokeValueCallback(v *Variable) error {
	if p.class.Value != nil {
		if err := p.class.Value(p, v); err != nil {
			if p.log != nil {
				p.log.WithProcedure(p.label).WithVariable(v.Label).Errorf("value callback rejected assignment: %v", err)
			}
			return err
		}
	}
	if p.net != nil && p.net.uiHook != nil {
		p.net.uiHook(v)
	}
	return nil
}

// VidLookup is the O(1) (vid, channel) -> variable lookup once the flat
// map is built (graph.Owner).
func (p *Procedure) VidLookup(vid uint32, channel int) (*Variable, bool) {
	if p.flatMap == nil {
		return nil, false
	}
	v, ok := p.flatMap[vidChan{vid, channel}]
	return v, ok
}

// Logger returns the procedure's logger, or nil if none was configured
// (graph.Owner). telemetry.Logger's Warnf satisfies graph.Logger
// directly.
func (p *Procedure) Logger() graph.Logger {
	if p.log == nil {
		return nil
	}
	return p.log.WithProcedure(p.label)
}

// Register declares a variable on this procedure, per spec §4.3
// "register" — called from inside a class's create callback.
func (p *Procedure) Register(desc *graph.Descriptor, label, sfx string, vid uint32, channel int, valueCfg *config.Node) (*Variable, error) {
	return graph.Register(p, desc, label, sfx, vid, channel, valueCfg)
}

// Find looks up one of the procedure's own variables by (label, sfx,
// channel), per spec §4.3 "find".
func (p *Procedure) Find(label, sfx string, channel int) (*Variable, bool) {
	return graph.Find(p, label, sfx, channel)
}

// FindByVid looks up one of the procedure's own variables by (vid,
// channel), per spec §4.3 "find".
func (p *Procedure) FindByVid(vid uint32, channel int) (*Variable, bool) {
	return graph.FindByVid(p, vid, channel)
}

// buildFlatMap constructs the vid->var flat map sized to
// max-vid * (max-channel+1) as a Go map (spec §4.4 step 5 — a Go map is
// the idiomatic equivalent of the original's dense array, since vids are
// assigned at class-registration time and are not guaranteed densely
// packed across every class in a dictionary).
func (p *Procedure) buildFlatMap() {
	p.flatMap = make(map[vidChan]*graph.Variable)
	for v := p.varsHead; v != nil; v = v.Next {
		p.flatMap[vidChan{v.Vid, v.Chan}] = v
	}
	p.ready = true
}

// validate implements spec §4.4 step 4: every variable must have a
// non-null active value with exactly one set type, and (when locally
// valued) a type admitted by its descriptor.
func (p *Procedure) validate() error {
	for v := p.varsHead; v != nil; v = v.Next {
		val := v.Value()
		if val.Kind() == 0 { // value.KindInvalid
			return ferr.New(ferr.InvalidState, "procedure %q variable %s:%s[%d] has no value after construction", p.label, v.Label, v.Sfx, v.Chan)
		}
		if v.Desc != nil && !v.Desc.IsRuntime() && !v.IsConnected() && !v.Desc.Admits(v.CurrentKind()) {
			return ferr.New(ferr.TypeMismatch, "procedure %q variable %s:%s[%d] has type %s not admitted by its descriptor", p.label, v.Label, v.Sfx, v.Chan, v.CurrentKind())
		}
	}
	return nil
}

func (p *Procedure) exec() error {
	if p.class.Exec == nil {
		return nil
	}
	return p.class.Exec(p)
}
