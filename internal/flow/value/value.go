// Package value implements the Flow engine's tagged dynamic Value type
// and its typed audio/spectrum/MIDI buffers (spec §3 "Value", §4.1
// "Value System"). Grounded on the teacher's Value-adjacent conventions
// (engine/channel mixer getters/setters coerce float32 consistently) and
// original_source/cwFlowTypes.h's value_t tagged union.
package value

import (
	"fmt"

	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// Kind is the active tag of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindUint
	KindInt
	KindFloat
	KindDouble
	KindString
	KindCfgRef
	KindAudio
	KindSpectrum
	KindMIDI
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindCfgRef:
		return "cfg-ref"
	case KindAudio:
		return "audio"
	case KindSpectrum:
		return "spectrum"
	case KindMIDI:
		return "midi"
	default:
		return "invalid"
	}
}

// IsScalar reports whether k is one of the primitive scalar kinds.
func (k Kind) IsScalar() bool {
	switch k {
	case KindBool, KindUint, KindInt, KindFloat, KindDouble, KindString, KindCfgRef:
		return true
	default:
		return false
	}
}

// IsBuffer reports whether k is one of the buffer kinds.
func (k Kind) IsBuffer() bool {
	switch k {
	case KindAudio, KindSpectrum, KindMIDI:
		return true
	default:
		return false
	}
}

// Value is a tagged union holding exactly one of a scalar, a string, a
// cfg-reference, or an audio/spectrum/MIDI buffer (spec §3). Once typed,
// it coerces rather than replaces its Kind — see CoerceTo.
type Value struct {
	kind Kind

	b bool
	u uint64
	i int64
	f float32
	d float64
	s string // owned copy for KindString

	cfg *config.Node // non-owning borrow for KindCfgRef

	audio    *AudioBuffer
	spectrum *SpectrumBuffer
	midi     *MIDIBuffer
}

// Kind returns the value's active type tag.
func (v Value) Kind() Kind { return v.kind }

func Invalid() Value { return Value{kind: KindInvalid} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Uint(u uint64) Value { return Value{kind: KindUint, u: u} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }
func Double(d float64) Value { return Value{kind: KindDouble, d: d} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func CfgRef(n *config.Node) Value { return Value{kind: KindCfgRef, cfg: n} }
func Audio(a *AudioBuffer) Value { return Value{kind: KindAudio, audio: a} }
func Spectrum(sp *SpectrumBuffer) Value { return Value{kind: KindSpectrum, spectrum: sp} }
func MIDI(m *MIDIBuffer) Value { return Value{kind: KindMIDI, midi: m} }

func (v Value) AsBool() bool                  { return v.b }
func (v Value) AsUint() uint64                { return v.u }
func (v Value) AsInt() int64                  { return v.i }
func (v Value) AsFloat() float32              { return v.f }
func (v Value) AsDouble() float64             { return v.d }
func (v Value) AsString() string              { return v.s }
func (v Value) AsCfgRef() *config.Node        { return v.cfg }
func (v Value) AsAudio() *AudioBuffer         { return v.audio }
func (v Value) AsSpectrum() *SpectrumBuffer   { return v.spectrum }
func (v Value) AsMIDI() *MIDIBuffer           { return v.midi }

// numeric returns v's scalar payload as a float64, for the numeric
// promotion lattice. Only valid for numeric kinds.
func (v Value) numeric() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindUint:
		return float64(v.u)
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return float64(v.f)
	case KindDouble:
		return v.d
	default:
		return 0
	}
}

// CoerceTo converts v to the destination kind per spec §4.1's coercion
// rules: numeric narrowing between scalars via static cast, bool<->int
// via !=0/0|1, buffer<->scalar always fails, buffers of different sort
// fail, cfg-reference is opaque, and an invalid/null destination kind
// simply adopts the source's kind.
func (v Value) CoerceTo(dst Kind) (Value, error) {
	if dst == KindInvalid {
		return v, nil
	}
	if v.kind == dst {
		return v, nil
	}

	// buffer <-> scalar, or across buffer sorts: always a type mismatch.
	if v.kind.IsBuffer() || dst.IsBuffer() {
		if v.kind.IsBuffer() && dst.IsBuffer() {
			return Value{}, ferr.New(ferr.TypeMismatch, "cannot coerce %s buffer to %s buffer", v.kind, dst)
		}
		return Value{}, ferr.New(ferr.TypeMismatch, "cannot coerce between %s and %s", v.kind, dst)
	}

	if v.kind == KindCfgRef || dst == KindCfgRef {
		if v.kind == KindCfgRef && dst == KindCfgRef {
			return v, nil
		}
		return Value{}, ferr.New(ferr.TypeMismatch, "cfg-reference is opaque: cannot coerce %s to %s", v.kind, dst)
	}

	if v.kind == KindString || dst == KindString {
		if v.kind == KindString && dst == KindString {
			return v, nil
		}
		return Value{}, ferr.New(ferr.TypeMismatch, "cannot coerce between %s and %s", v.kind, dst)
	}

	n := v.numeric()
	switch dst {
	case KindBool:
		return Bool(n != 0), nil
	case KindUint:
		return Uint(uint64(n)), nil
	case KindInt:
		return Int(int64(n)), nil
	case KindFloat:
		return Float(float32(n)), nil
	case KindDouble:
		return Double(n), nil
	default:
		return Value{}, ferr.New(ferr.TypeMismatch, "unsupported coercion target %s", dst)
	}
}

// Equal reports value equality for scalar kinds; buffer kinds compare by
// pointer identity (buffer contents are not ordinarily value-compared).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindUint:
		return v.u == o.u
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindDouble:
		return v.d == o.d
	case KindString:
		return v.s == o.s
	case KindCfgRef:
		return v.cfg == o.cfg
	case KindAudio:
		return v.audio == o.audio
	case KindSpectrum:
		return v.spectrum == o.spectrum
	case KindMIDI:
		return v.midi == o.midi
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("bool(%v)", v.b)
	case KindUint:
		return fmt.Sprintf("uint(%d)", v.u)
	case KindInt:
		return fmt.Sprintf("int(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.f)
	case KindDouble:
		return fmt.Sprintf("double(%g)", v.d)
	case KindString:
		return fmt.Sprintf("string(%q)", v.s)
	case KindCfgRef:
		return "cfg-ref"
	case KindAudio:
		return "audio-buffer"
	case KindSpectrum:
		return "spectrum-buffer"
	case KindMIDI:
		return "midi-buffer"
	default:
		return "invalid"
	}
}
