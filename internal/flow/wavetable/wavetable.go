// Package wavetable implements the Flow engine's Wave-Table Bank (spec
// §4.9): a read-only, pitch/velocity-indexed multi-channel sample store
// consumed by synthesis procedures. Grounded on
// original_source/cwWaveTableBank.cpp's per-channel attack+loop table
// layout and guard-pad invariant, packaged the way the teacher's
// avaudio buffer types wrap a raw []float32 with format metadata.
package wavetable

import (
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// Wavetable is one attack or loop table in a channel's sequence (spec
// §4.9, §9 "Wave-table pad"). Prefix/Suffix are guard pads built once at
// load time: Prefix mirrors the tail of Body, Suffix mirrors its head,
// so a reader advancing past either boundary can interpolate without a
// branch.
type Wavetable struct {
	Fundamental  float64 // Hz
	RMS          float64
	SampleRate   float64
	SrcPos       int64 // source-position index this table was sampled from
	IsAttack     bool  // one-shot (true) vs. loop (false)
	PadN         int
	Prefix, Body, Suffix []float32
}

// Full returns the table's samples as one contiguous slice: pad prefix,
// loop body, pad suffix. Readers that need branch-free interpolation
// across a loop boundary index into this slice directly.
func (w *Wavetable) Full() []float32 {
	out := make([]float32, 0, len(w.Prefix)+len(w.Body)+len(w.Suffix))
	out = append(out, w.Prefix...)
	out = append(out, w.Body...)
	out = append(out, w.Suffix...)
	return out
}

// NewWavetable builds a table from a loop body and pad width n,
// deriving Prefix/Suffix per the guard-pad invariant: Prefix is the last
// n samples of body, Suffix is the first n samples of body. Fails if
// body is shorter than n (there aren't enough samples to mirror).
func NewWavetable(body []float32, n int, fundamental, rms, sampleRate float64, srcPos int64, isAttack bool) (*Wavetable, error) {
	if n > 0 && len(body) < n {
		return nil, ferr.New(ferr.InvalidArgument, "wavetable: loop body of %d samples too short for a %d-sample guard pad", len(body), n)
	}
	w := &Wavetable{
		Fundamental: fundamental,
		RMS:         rms,
		SampleRate:  sampleRate,
		SrcPos:      srcPos,
		IsAttack:    isAttack,
		PadN:        n,
		Body:        append([]float32(nil), body...),
	}
	if n > 0 {
		w.Prefix = append([]float32(nil), body[len(body)-n:]...)
		w.Suffix = append([]float32(nil), body[:n]...)
	}
	return w, nil
}

// CheckPadInvariant verifies Prefix/Suffix still mirror Body exactly —
// used by tests and by Bank.Load's post-construction assertion (spec §9:
// "this holds by construction at load time and is never mutated
// afterward").
func (w *Wavetable) CheckPadInvariant() error {
	n := w.PadN
	if n == 0 {
		return nil
	}
	if len(w.Body) < n {
		return ferr.New(ferr.InvalidState, "wavetable: body shorter than guard pad width %d", n)
	}
	wantPrefix := w.Body[len(w.Body)-n:]
	wantSuffix := w.Body[:n]
	for i := 0; i < n; i++ {
		if w.Prefix[i] != wantPrefix[i] {
			return ferr.New(ferr.InvalidState, "wavetable: prefix[%d] does not mirror tail of loop body", i)
		}
		if w.Suffix[i] != wantSuffix[i] {
			return ferr.New(ferr.InvalidState, "wavetable: suffix[%d] does not mirror head of loop body", i)
		}
	}
	return nil
}

// WavetableSequence is one channel's ordered attack-then-loop table list
// for a given (instrument, pitch, velocity) (spec §4.9 "multi-channel
// wavetable sequence"). Channels is indexed by channel number.
type WavetableSequence struct {
	Channels [][]*Wavetable
}

// Attack returns channel ch's attack table, if its sequence leads with
// one.
func (s *WavetableSequence) Attack(ch int) (*Wavetable, bool) {
	if ch < 0 || ch >= len(s.Channels) || len(s.Channels[ch]) == 0 {
		return nil, false
	}
	if t := s.Channels[ch][0]; t.IsAttack {
		return t, true
	}
	return nil, false
}

// LoopTables returns channel ch's loop (non-attack) tables in order.
func (s *WavetableSequence) LoopTables(ch int) []*Wavetable {
	if ch < 0 || ch >= len(s.Channels) {
		return nil
	}
	tabs := s.Channels[ch]
	if len(tabs) > 0 && tabs[0].IsAttack {
		return tabs[1:]
	}
	return tabs
}
