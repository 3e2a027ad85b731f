package scheduler

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/currawong-project/libcw-sub004/internal/flow/classdict"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/network"
	"github.com/currawong-project/libcw-sub004/internal/flow/procs"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

type fakeMIDIDevice struct {
	label, port string
	dir         Direction
	pending     []value.MIDIMessage
	sent        []value.MIDIMessage
	cleared     bool
}

func (d *fakeMIDIDevice) Label() string        { return d.label }
func (d *fakeMIDIDevice) PortLabel() string     { return d.port }
func (d *fakeMIDIDevice) Direction() Direction  { return d.dir }
func (d *fakeMIDIDevice) Incoming() []value.MIDIMessage { return d.pending }
func (d *fakeMIDIDevice) Send(msg value.MIDIMessage) error {
	d.sent = append(d.sent, msg)
	return nil
}
func (d *fakeMIDIDevice) ClearIncoming() { d.pending = nil; d.cleared = true }

type fakeAudioDevice struct {
	label string
	dir   Direction
	buf   *value.AudioBuffer
}

func (d *fakeAudioDevice) Label() string       { return d.label }
func (d *fakeAudioDevice) Direction() Direction { return d.dir }
func (d *fakeAudioDevice) Buffer() *value.AudioBuffer { return d.buf }

func TestScenario4MIDIPassthrough(t *testing.T) {
	d := classdict.New()
	require.NoError(t, d.Register(procs.MIDIIn()))
	require.NoError(t, d.Register(procs.MIDIOut()))
	n := network.New(d, nil)

	_, err := n.AddProcedure("min", "midi_in", 0, nil, "")
	require.NoError(t, err)
	_, err = n.AddProcedure("mout", "midi_out", 0, nil, "")
	require.NoError(t, err)
	require.NoError(t, n.ConnectRef("mout", "in", "", graph.AnyChannel, "min.out"))
	require.NoError(t, n.Validate())

	dev := &fakeMIDIDevice{label: "dev", dir: DirIn, pending: []value.MIDIMessage{
		{Status: 0x90, Channel: 0, Data0: 60, Data1: 100},
		{Status: 0x90, Channel: 0, Data0: 64, Data1: 100},
		{Status: 0x90, Channel: 0, Data0: 67, Data1: 100},
	}}

	s := New(n, nil)
	s.BindMIDIIn(dev, Binding{ProcedureLabel: "min", VarLabel: "out", Channel: graph.AnyChannel})

	require.NoError(t, s.RunCycle())

	moutProc, _ := n.Procedure("mout")
	moutIn, _ := moutProc.Find("in", "", graph.AnyChannel)
	require.Equal(t, 3, moutIn.Value().AsMIDI().Count)

	dev.pending = nil
	require.NoError(t, s.RunCycle())
	require.Equal(t, 0, moutIn.Value().AsMIDI().Count)
}

func TestScenario6AudioPassthrough(t *testing.T) {
	d := classdict.New()
	require.NoError(t, d.Register(procs.AudioIn()))
	require.NoError(t, d.Register(procs.AudioOut()))
	n := network.New(d, nil)

	_, err := n.AddProcedure("ain", "audio_in", 0, nil, "")
	require.NoError(t, err)
	_, err = n.AddProcedure("aout", "audio_out", 0, nil, "")
	require.NoError(t, err)
	require.NoError(t, n.ConnectRef("aout", "in", "", graph.AnyChannel, "ain.out"))
	require.NoError(t, n.Validate())

	const frames = 64
	inDev := &fakeAudioDevice{label: "in", dir: DirIn, buf: value.NewAudioBuffer(48000, 2, frames)}
	outDev := &fakeAudioDevice{label: "out", dir: DirOut, buf: value.NewAudioBuffer(48000, 2, frames)}
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < frames; i++ {
			inDev.buf.Set(ch, i, float32(i)/float32(frames))
		}
	}

	s := New(n, nil)
	s.AddAudioGroup(AudioGroup{
		In:  []boundAudioDevice{{Device: inDev, Binding: Binding{ProcedureLabel: "ain", VarLabel: "out", Channel: graph.AnyChannel}}},
		Out: []boundAudioDevice{{Device: outDev, Binding: Binding{ProcedureLabel: "aout", VarLabel: "in", Channel: graph.AnyChannel}}},
	})

	require.NoError(t, s.RunCycle())

	for ch := 0; ch < 2; ch++ {
		for i := 0; i < frames; i++ {
			require.InDelta(t, inDev.buf.At(ch, i), outDev.buf.At(ch, i), 1e-9)
		}
	}
}

// TestRunCycleRecordsMetrics confirms RunCycle actually observes the
// cycle-duration histogram and bumps the cycle counter instead of the
// collector sitting unread.
func TestRunCycleRecordsMetrics(t *testing.T) {
	d := classdict.New()
	require.NoError(t, d.Register(procs.ConstFloat()))
	n := network.New(d, nil)
	_, err := n.AddProcedure("c", "const_float", 0, nil, "")
	require.NoError(t, err)
	require.NoError(t, n.Validate())

	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	s := New(n, telemetry.NewLogger(log.InfoLevel))
	s.SetMetrics(m)

	require.NoError(t, s.RunCycle())
	require.NoError(t, s.RunCycle())

	var mm dto.Metric
	require.NoError(t, m.CyclesTotal.Write(&mm))
	require.Equal(t, float64(2), mm.GetCounter().GetValue())

	mm = dto.Metric{}
	require.NoError(t, m.CycleDuration.Write(&mm))
	require.Equal(t, uint64(2), mm.GetHistogram().GetSampleCount())
}
