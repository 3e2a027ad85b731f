package wavetable

import (
	"sort"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// Key identifies one bank entry before velocity-gap filling (spec §4.9
// "indexed by (instrument, pitch, velocity)").
type Key struct {
	Instrument string
	Pitch      uint8
	Velocity   uint8
}

// instPitch groups the dense per-velocity lookup table built for one
// (instrument, pitch) pair.
type instPitch struct {
	Instrument string
	Pitch      uint8
}

// Bank is a read-only store of wavetable sequences. Entries are loaded
// sparsely (only the velocities actually sampled) and then densified:
// Load builds a [128]*WavetableSequence lookup per (instrument, pitch)
// by midpoint-mapping the gaps between sampled velocities, so every
// MIDI velocity 0-127 resolves to a sequence (spec §4.9 "Velocity gaps
// are filled by midpoint mapping so every MIDI velocity resolves to a
// wavetable").
type Bank struct {
	dense map[instPitch]*[128]*WavetableSequence
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{dense: make(map[instPitch]*[128]*WavetableSequence)}
}

// Entry is one sparsely-sampled (instrument, pitch, velocity) point fed
// to Load.
type Entry struct {
	Key      Key
	Sequence *WavetableSequence
}

// Load replaces the bank's contents with entries, densified per
// (instrument, pitch) group by velocity-gap midpoint mapping. Every
// wavetable in every entry must already satisfy its guard-pad invariant
// (spec §9: "this holds by construction at load time") — Load verifies
// this and fails rather than silently accepting a malformed table.
func (b *Bank) Load(entries []Entry) error {
	groups := make(map[instPitch][]Entry)
	for _, e := range entries {
		for ch, tabs := range e.Sequence.Channels {
			for _, w := range tabs {
				if err := w.CheckPadInvariant(); err != nil {
					return ferr.Wrap(ferr.InvalidArgument, err, "wavetable bank load: %s pitch %d velocity %d channel %d", e.Key.Instrument, e.Key.Pitch, e.Key.Velocity, ch)
				}
			}
		}
		ip := instPitch{e.Key.Instrument, e.Key.Pitch}
		groups[ip] = append(groups[ip], e)
	}

	dense := make(map[instPitch]*[128]*WavetableSequence, len(groups))
	for ip, es := range groups {
		sort.Slice(es, func(i, j int) bool { return es[i].Key.Velocity < es[j].Key.Velocity })
		var table [128]*WavetableSequence
		for i, e := range es {
			lo := 0
			if i > 0 {
				lo = midpoint(es[i-1].Key.Velocity, e.Key.Velocity)
			}
			hi := 127
			if i < len(es)-1 {
				hi = midpoint(e.Key.Velocity, es[i+1].Key.Velocity) - 1
			}
			for v := lo; v <= hi; v++ {
				table[v] = e.Sequence
			}
		}
		dense[ip] = &table
	}

	b.dense = dense
	return nil
}

// midpoint returns the velocity boundary between two sampled points: the
// lower point owns velocities strictly below the midpoint, the upper
// point owns the rest.
func midpoint(lo, hi uint8) int {
	return (int(lo) + int(hi) + 1) / 2
}

// Lookup resolves (instrument, pitch, velocity) to a wavetable sequence,
// per the densified per-(instrument, pitch) table built by Load.
func (b *Bank) Lookup(instrument string, pitch, velocity uint8) (*WavetableSequence, bool) {
	table, ok := b.dense[instPitch{instrument, pitch}]
	if !ok {
		return nil, false
	}
	seq := table[velocity]
	return seq, seq != nil
}
