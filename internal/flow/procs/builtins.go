// Package procs implements the Flow engine's built-in procedure classes:
// the minimal set spec §8's scenarios exercise (const_float, gain,
// midi_in/midi_out, audio_in/audio_out). Grounded on the teacher's
// engine/channel package for gain/mix math and engine/channel/input for
// the audio-in passthrough shape, and original_source/cwIoFlowCtl.cpp
// for midi_in/midi_out's buffer-binding behavior.
package procs

import (
	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/classdict"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
)

func cfgFloat(n *config.Node, dflt float64) *config.Node {
	if n != nil {
		return n
	}
	d := &config.Node{Kind: config.KindDouble, Double: dflt}
	return d
}

// ConstFloat registers the "const_float" class: a single output "out"
// defaulted from its arg-config's "value" key (default 0.0). It never
// changes after construction — there is no exec callback.
func ConstFloat() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "const_float",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "out", Types: []value.Kind{value.KindDouble}},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			var init *config.Node
			if argCfg != nil {
				init, _ = argCfg.Get("value")
			}
			_, err := graph.Register(o, &graph.Descriptor{Label: "out", Types: []value.Kind{value.KindDouble}}, "out", "", 1, graph.AnyChannel, cfgFloat(init, 0))
			return err
		},
	}
}

// Gain registers the "gain" class: out = in * k. "k" defaults to 1.0
// and may be overridden per channel. Exec recomputes "out" from the
// current "in"/"k" for the any-channel base and every channelized
// variant present, per spec §4.4 "exec reads inputs via find+get,
// writes outputs via set".
func Gain() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "gain",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "in", Types: []value.Kind{value.KindDouble}, Flags: graph.FlagIsSource},
			{Label: "k", Types: []value.Kind{value.KindDouble}},
			{Label: "out", Types: []value.Kind{value.KindDouble}},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			var kInit *config.Node
			if argCfg != nil {
				kInit, _ = argCfg.Get("k")
			}
			if _, err := graph.Register(o, &graph.Descriptor{Label: "in", Types: []value.Kind{value.KindDouble}, Flags: graph.FlagIsSource}, "in", "", 1, graph.AnyChannel, cfgFloat(nil, 0)); err != nil {
				return err
			}
			if _, err := graph.Register(o, &graph.Descriptor{Label: "k", Types: []value.Kind{value.KindDouble}}, "k", "", 2, graph.AnyChannel, cfgFloat(kInit, 1)); err != nil {
				return err
			}
			_, err := graph.Register(o, &graph.Descriptor{Label: "out", Types: []value.Kind{value.KindDouble}}, "out", "", 3, graph.AnyChannel, cfgFloat(nil, 0))
			return err
		},
		Exec: func(o graph.Owner) error {
			base, ok := graph.Find(o, "out", "", graph.AnyChannel)
			if !ok {
				return nil
			}
			for out := base; out != nil; out = out.ChanLink {
				ch := out.Chan
				in, ok := graph.Find(o, "in", "", ch)
				if !ok {
					in, ok = graph.Find(o, "in", "", graph.AnyChannel)
				}
				if !ok {
					continue
				}
				k, ok := graph.Find(o, "k", "", ch)
				if !ok {
					k, _ = graph.Find(o, "k", "", graph.AnyChannel)
				}
				product := in.Value().AsDouble() * k.Value().AsDouble()
				if err := graph.Set(o, out, value.Double(product)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// MIDIIn registers the "midi_in" class: a single output MIDI buffer
// bound each cycle to the scheduler's shared incoming message array
// (spec §4.6 step 1). The procedure itself does not own message
// storage — Scheduler.fillInMIDI rewires the buffer's view each cycle.
func MIDIIn() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "midi_in",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "out", Types: []value.Kind{value.KindMIDI}},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			empty := value.MIDI(value.NewMIDIBuffer(nil))
			v, err := graph.Register(o, &graph.Descriptor{Label: "out", Types: []value.Kind{value.KindMIDI}}, "out", "", 1, graph.AnyChannel, nil)
			if err != nil {
				return err
			}
			return graph.Set(o, v, empty)
		},
	}
}

// MIDIOut registers the "midi_out" class: a single input MIDI buffer,
// passed through unmodified (its value aliases its source's buffer
// pointer once connected, per the graph invariant).
func MIDIOut() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "midi_out",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "in", Types: []value.Kind{value.KindMIDI}, Flags: graph.FlagIsSource},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			_, err := graph.Register(o, &graph.Descriptor{Label: "in", Types: []value.Kind{value.KindMIDI}, Flags: graph.FlagIsSource}, "in", "", 1, graph.AnyChannel, nil)
			return err
		},
	}
}

// AudioIn registers the "audio_in" class: a single output audio buffer
// bound each cycle to the scheduler's device input (spec §4.6 step 2).
func AudioIn() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "audio_in",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "out", Types: []value.Kind{value.KindAudio}},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			v, err := graph.Register(o, &graph.Descriptor{Label: "out", Types: []value.Kind{value.KindAudio}}, "out", "", 1, graph.AnyChannel, nil)
			if err != nil {
				return err
			}
			// Typed as audio with no buffer yet; the scheduler's fill-in
			// step allocates the buffer on the first cycle.
			return graph.Set(o, v, value.Audio(nil))
		},
	}
}

// AudioOut registers the "audio_out" class: a single input audio buffer,
// read by the scheduler's drain step and copied to the device output
// (spec §4.6 step 4).
func AudioOut() *classdict.ClassDescriptor {
	return &classdict.ClassDescriptor{
		Label: "audio_out",
		VarDescs: []classdict.VariableDescriptor{
			{Label: "in", Types: []value.Kind{value.KindAudio}, Flags: graph.FlagIsSource},
		},
		Create: func(o graph.Owner, argCfg *config.Node) error {
			_, err := graph.Register(o, &graph.Descriptor{Label: "in", Types: []value.Kind{value.KindAudio}, Flags: graph.FlagIsSource}, "in", "", 1, graph.AnyChannel, nil)
			return err
		},
	}
}

// ClampedGain registers a "clamped_gain" class used to exercise spec §8
// Scenario 3 (assignment rollback): identical to Gain, but its value
// callback rejects any candidate "in" greater than 1.0.
func ClampedGain() *classdict.ClassDescriptor {
	base := Gain()
	base.Label = "clamped_gain"
	base.Value = func(o graph.Owner, v *graph.Variable) error {
		if v.Label == "in" && v.Value().AsDouble() > 1.0 {
			return ferr.New(ferr.OpFailure, "clamped_gain: input %v exceeds 1.0", v.Value().AsDouble())
		}
		return nil
	}
	return base
}
