// Package scheduler implements the Flow engine's per-cycle fill-in/exec/
// drain/clear sequence and the external-device bridging boundary (spec
// §4.6). Grounded on the teacher's engine.Engine cycle-driving loop
// (AVAudioEngine render callback shape: pull inputs, run the graph, push
// outputs) and original_source/cwIoFlowCtl.cpp's device fill/drain steps.
package scheduler

import (
	"time"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/network"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// Direction flags an external device's data flow (spec §4.6 "direction
// flags (in/out)").
type Direction int

const (
	DirIn Direction = 1 << iota
	DirOut
)

// Kind discriminates an external device's payload shape (spec §4.6
// "kind (serial/socket/MIDI/audio)").
type Kind int

const (
	KindAudio Kind = iota
	KindMIDI
	KindSerial
	KindSocket
)

// AudioDevice is the collaborator boundary for an audio-capable external
// device (spec §4.6 "for audio, the payload is the Flow audio buffer").
// The scheduler never depends on a concrete driver; the device driver is
// an external collaborator per spec §1's non-goals.
type AudioDevice interface {
	Label() string
	Direction() Direction
	// Buffer returns the device's shared channel-major sample buffer.
	// For a DirIn device the scheduler reads it; for DirOut it writes.
	Buffer() *value.AudioBuffer
}

// MIDIDevice is the collaborator boundary for a MIDI-capable external
// device (spec §4.6 "a message-array pointer with a max-message-count
// and a sender callback").
type MIDIDevice interface {
	Label() string
	PortLabel() string
	Direction() Direction
	// Incoming returns the device's aggregated incoming-message buffer
	// for this cycle (DirIn); Send transmits a message (DirOut).
	Incoming() []value.MIDIMessage
	Send(msg value.MIDIMessage) error
	ClearIncoming()
}

// Binding wires an external device to a named procedure's variable
// (spec §4.6: "points its MIDI buffer's msgA/msgN at the shared array").
type Binding struct {
	ProcedureLabel string
	VarLabel       string
	VarSfx         string
	Channel        int
}

// AudioGroup binds a set of audio-in/audio-out devices to procedures
// that are filled/drained together each cycle (spec §4.6 step 2: "for
// each audio group").
type AudioGroup struct {
	In  []boundAudioDevice
	Out []boundAudioDevice
}

type boundAudioDevice struct {
	Device  AudioDevice
	Binding Binding
}

// Scheduler drives one Network through the fill-in/exec/drain/clear
// sequence of spec §4.6.
type Scheduler struct {
	net     *network.Network
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	midiIn  []boundMIDIDevice
	midiOut []boundMIDIDevice
	groups  []AudioGroup

	completed bool
}

type boundMIDIDevice struct {
	Device  MIDIDevice
	Binding Binding
}

// New creates a scheduler driving net.
func New(net *network.Network, log *telemetry.Logger) *Scheduler {
	return &Scheduler{net: net, log: log}
}

// SetMetrics attaches a collector so every RunCycle records its
// wall-clock duration. A nil metrics (the default) disables recording.
func (s *Scheduler) SetMetrics(m *telemetry.Metrics) { s.metrics = m }

// BindMIDIIn registers dev as an incoming-MIDI source bound to binding.
func (s *Scheduler) BindMIDIIn(dev MIDIDevice, binding Binding) {
	s.midiIn = append(s.midiIn, boundMIDIDevice{Device: dev, Binding: binding})
}

// BindMIDIOut registers dev as an outgoing-MIDI sink bound to binding.
func (s *Scheduler) BindMIDIOut(dev MIDIDevice, binding Binding) {
	s.midiOut = append(s.midiOut, boundMIDIDevice{Device: dev, Binding: binding})
}

// AddAudioGroup registers a set of audio devices filled/drained together.
func (s *Scheduler) AddAudioGroup(g AudioGroup) {
	s.groups = append(s.groups, g)
}

// RunCycle implements spec §4.6's per-cycle sequence: fill-in MIDI and
// audio inputs, run exec_cycle, drain audio outputs, clear drained MIDI.
// Once the network reaches end-of-stream, further calls fail with
// InvalidState — the caller is expected to unload and reload (spec §4.6
// "End-of-stream handling").
func (s *Scheduler) RunCycle() error {
	if s.completed {
		return ferr.New(ferr.InvalidState, "scheduler has reached end-of-stream; reload to run further cycles")
	}

	start := time.Now()
	err := s.runCycle()
	if s.metrics != nil {
		s.metrics.ObserveCycle(time.Since(start))
	}
	if err != nil && s.log != nil {
		cl := s.log.WithCycle(s.net.CycleIndex())
		if ferr.Is(err, ferr.EndOfStream) {
			cl.Infof("cycle reached end-of-stream")
		} else {
			cl.Error("cycle failed", err)
		}
	}
	return err
}

func (s *Scheduler) runCycle() error {
	if err := s.fillInMIDI(); err != nil {
		return err
	}
	if err := s.fillInAudio(); err != nil {
		return err
	}

	if err := s.net.ExecCycle(); err != nil {
		if ferr.Is(err, ferr.EndOfStream) {
			s.completed = true
		}
		return err
	}

	if err := s.drainAudio(); err != nil {
		return err
	}
	s.clearMIDI()
	return nil
}

func (s *Scheduler) findBoundVar(b Binding) (graph.Owner, *graph.Variable, error) {
	proc, ok := s.net.Procedure(b.ProcedureLabel)
	if !ok {
		return nil, nil, ferr.New(ferr.EleNotFound, "device binding: no such procedure %q", b.ProcedureLabel)
	}
	v, ok := proc.Find(b.VarLabel, b.VarSfx, b.Channel)
	if !ok {
		return nil, nil, ferr.New(ferr.EleNotFound, "device binding: procedure %q has no variable %s:%s[%d]", b.ProcedureLabel, b.VarLabel, b.VarSfx, b.Channel)
	}
	return proc, v, nil
}

// fillInMIDI implements spec §4.6 step 1.
func (s *Scheduler) fillInMIDI() error {
	for _, bm := range s.midiIn {
		owner, v, err := s.findBoundVar(bm.Binding)
		if err != nil {
			return err
		}
		msgs := bm.Device.Incoming()
		if err := graph.Set(owner, v, value.MIDI(value.NewMIDIBuffer(msgs))); err != nil {
			return err
		}
	}
	return nil
}

// fillInAudio implements spec §4.6 step 2's input half: copy device
// input samples into the bound Flow audio buffer, or zero an audio-out
// binding's buffer ahead of this cycle's exec.
func (s *Scheduler) fillInAudio() error {
	for _, g := range s.groups {
		for _, bd := range g.In {
			owner, v, err := s.findBoundVar(bd.Binding)
			if err != nil {
				return err
			}
			src := bd.Device.Buffer()
			dst := v.Value().AsAudio()
			if dst == nil {
				dst = value.NewAudioBuffer(src.SampleRate, src.ChannelCount, src.FrameCount)
				if err := graph.Set(owner, v, value.Audio(dst)); err != nil {
					return err
				}
			}
			copy(dst.Samples, src.Samples)
		}
		for _, bd := range g.Out {
			_, v, err := s.findBoundVar(bd.Binding)
			if err != nil {
				return err
			}
			// A connected audio-out variable aliases its upstream
			// source's buffer (passthrough wiring); zeroing it here
			// would clobber what fillInAudio just copied in. Only a
			// standalone (unconnected) output buffer — written by its
			// own exec callback rather than graph aliasing — needs a
			// fresh zeroed slate before this cycle's exec.
			if v.IsConnected() {
				continue
			}
			if buf := v.Value().AsAudio(); buf != nil {
				buf.Zero()
			}
		}
	}
	return nil
}

// drainAudio implements spec §4.6 step 4: copy each audio-out binding's
// Flow buffer to its device's output buffer.
func (s *Scheduler) drainAudio() error {
	for _, g := range s.groups {
		for _, bd := range g.Out {
			_, v, err := s.findBoundVar(bd.Binding)
			if err != nil {
				return err
			}
			src := v.Value().AsAudio()
			dst := bd.Device.Buffer()
			if src != nil && dst != nil {
				copy(dst.Samples, src.Samples)
			}
		}
	}
	return nil
}

// clearMIDI implements spec §4.6 step 5: clear drained MIDI messages
// from each bound device's shared incoming buffer.
func (s *Scheduler) clearMIDI() {
	for _, bm := range s.midiIn {
		bm.Device.ClearIncoming()
	}
}
