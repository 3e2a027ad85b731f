// Package graph implements the Variable Graph — the Flow engine's core
// wiring layer (spec §4.3): variables with channel lists, source/
// destination edges, and broadcast. Grounded on the teacher's
// engine/channel.BaseChannel (sends/routing bookkeeping, connect/
// disconnect idempotence) and original_source/cwFlowTypes.h's
// variable_t/var_desc_t layout.
package graph

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
)

// AnyChannel is the wildcard channel index: the "any-channel" base
// variable that every (label, sfx) pair carries, and that channelized
// variants are inserted after (spec §3 Variable invariants).
const AnyChannel = -1

// RingCapacity is the local-value ring size (spec §3 "a small ring of
// local value slots (capacity ≥ 2)"; §9 design note: preserve the prior
// value during a trial assignment so a value callback can diff old vs
// candidate, with no cross-call aliasing pointers — just a fixed array
// and a rotation index).
const RingCapacity = 2

// Flag is a bitset of variable-descriptor behavioral flags (spec §3
// "Variable Descriptor").
type Flag uint32

const (
	FlagIsSource Flag = 1 << iota
	FlagIsSourceOptional
	FlagNoSource
	FlagInitOnly
	FlagMultAllowed
	FlagSubnetOutput
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Descriptor is the static schema of a variable on a class (spec §3
// "Variable Descriptor"). Types may include value.KindInvalid as a
// stand-in for the "runtime" sentinel meaning "deferred until first
// assignment" (spec: "may be a union including a runtime sentinel").
type Descriptor struct {
	Label       string
	Sfx         string
	Types       []value.Kind // permitted type set; empty or containing KindInvalid => runtime-deferred
	Flags       Flag
	DefaultCfg  *config.Node
	Doc         string
}

// IsRuntime reports whether d permits the type to be decided on first
// assignment rather than fixed by the descriptor.
func (d *Descriptor) IsRuntime() bool {
	if len(d.Types) == 0 {
		return true
	}
	for _, k := range d.Types {
		if k == value.KindInvalid {
			return true
		}
	}
	return false
}

// SingleType reports the descriptor's one admissible type, if it admits
// exactly one (spec §4.3 step 2: "if the class descriptor admits exactly
// one type, use that").
func (d *Descriptor) SingleType() (value.Kind, bool) {
	if len(d.Types) == 1 && d.Types[0] != value.KindInvalid {
		return d.Types[0], true
	}
	return value.KindInvalid, false
}

// Admits reports whether k is in the descriptor's allowed type set.
func (d *Descriptor) Admits(k value.Kind) bool {
	if d.IsRuntime() {
		return true
	}
	for _, t := range d.Types {
		if t == k {
			return true
		}
	}
	return false
}

// Intersect returns the subset of d's allowed types present in ks. If d
// is runtime-deferred, every candidate in ks is admissible.
func (d *Descriptor) Intersect(ks []value.Kind) []value.Kind {
	if d.IsRuntime() {
		return ks
	}
	var out []value.Kind
	for _, t := range d.Types {
		for _, k := range ks {
			if t == k {
				out = append(out, t)
			}
		}
	}
	return out
}
