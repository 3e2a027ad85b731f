package graph

import (
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
)

// Owner is the minimal surface a Variable's owning procedure exposes to
// the graph operations in this package. network.Procedure implements it.
// Splitting this interface out of the network package (rather than graph
// importing network directly) keeps graph free of any dependency on the
// class-dictionary/network layers above it.
type Owner interface {
	// Label identifies the owning procedure, for error messages and logs.
	Label() string

	// VarsHead returns the head of the procedure's owned variable list
	// (tail-append order, per spec §3 Procedure "head of the owned
	// variable list").
	VarsHead() *Variable

	// AppendVar appends v to the tail of the procedure's owned variable
	// list, setting v.Next.
	AppendVar(v *Variable)

	// PostCreateReady reports whether the procedure has completed its
	// create phase (its vid->var flat map is populated). Controls
	// whether Set invokes the class's value callback (spec §4.3 step 4).
	PostCreateReady() bool

	// InvokeValueCallback invokes the owning class's `value` callback for
	// v. Set and broadcast call it only once PostCreateReady() is true;
	// the method itself does not check readiness.
	InvokeValueCallback(v *Variable) error

	// VidLookup performs the O(1) (vid, channel) -> *Variable lookup once
	// the flat map is built; ok is false before the map exists or on miss,
	// in which case callers fall back to a linear scan over VarsHead().
	VidLookup(vid uint32, channel int) (v *Variable, ok bool)

	// Logger returns the owner's logger, or nil if it has none. broadcast
	// uses it to report a downstream value-callback rejection without
	// aborting the rest of the fan-out (spec §4.3 step 5: "broadcast
	// failures are logged; the update is not rolled back further").
	Logger() Logger
}

// Variable is a runtime instance of a Descriptor on a specific procedure
// (spec §3 "Variable").
type Variable struct {
	Owner Owner

	Label string
	Sfx   string
	Vid   uint32
	Chan  int // AnyChannel, or a concrete channel index

	Desc *Descriptor

	kind Kind

	ring    [RingCapacity]value.Value
	ringIdx int

	// src is non-nil when this variable is connected to a source: its
	// active value aliases src's value (spec §3 invariant: "src != null
	// => value == src.value"). Mutually exclusive with local valuation.
	src *Variable
	dst []*Variable

	// ChanLink threads all same-(label,sfx) variables on the owning
	// procedure in ascending channel order, any-channel variable first
	// (spec §3 "a channel-link chain").
	ChanLink *Variable

	// Next threads the owning procedure's full variable list in
	// tail-append (declaration) order (spec §3 "next-variable link on
	// the owning procedure").
	Next *Variable

	UI *UIDescriptor // optional UI Bridge decoration (spec §4.7)
}

// Kind is a local alias so callers don't need to import the value
// package just to read a variable's current type flag.
type Kind = value.Kind

// CurrentKind returns the variable's current type flag (KindInvalid if
// not yet pinned by a first assignment).
func (v *Variable) CurrentKind() Kind { return v.kind }

// IsConnected reports whether v is wired to an upstream source.
func (v *Variable) IsConnected() bool { return v.src != nil }

// Source returns v's upstream source variable, or nil if locally valued.
func (v *Variable) Source() *Variable { return v.src }

// Destinations returns the variables fed by v (read-only snapshot).
func (v *Variable) Destinations() []*Variable {
	out := make([]*Variable, len(v.dst))
	copy(out, v.dst)
	return out
}

// Value returns v's current active value: the source's value if
// connected, else the local ring's active slot (spec §3 invariant).
func (v *Variable) Value() value.Value {
	if v.src != nil {
		return v.src.Value()
	}
	return v.ring[v.ringIdx]
}

// IsAnyChannel reports whether v is the any-channel base variable.
func (v *Variable) IsAnyChannel() bool { return v.Chan == AnyChannel }

// channelChainVars walks the channel-link chain starting at the
// any-channel base, returning every variable in ascending channel order
// (the base itself first).
func channelChainVars(base *Variable) []*Variable {
	var out []*Variable
	for v := base; v != nil; v = v.ChanLink {
		out = append(out, v)
	}
	return out
}

// isBaseOf reports whether v is an any-channel base whose channel-link
// chain contains other (v itself included). Since ChanLink only points
// forward, finding the base of an arbitrary variable goes through the
// owner's lookup instead (Find by label/sfx with channel AnyChannel).
func (v *Variable) isBaseOf(other *Variable) bool {
	if !v.IsAnyChannel() {
		return false
	}
	for c := v; c != nil; c = c.ChanLink {
		if c == other {
			return true
		}
	}
	return false
}
