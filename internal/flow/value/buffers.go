package value

// AudioBuffer is a fixed-extent, channel-major sample buffer (spec §3
// "Audio Buffer"). At(ch, i) == Samples[ch*FrameCount+i].
type AudioBuffer struct {
	SampleRate   float64
	ChannelCount int
	FrameCount   int
	Samples      []float32
}

// NewAudioBuffer allocates a zeroed buffer of the given extent. Extent is
// fixed at creation per spec.
func NewAudioBuffer(sampleRate float64, channelCount, frameCount int) *AudioBuffer {
	return &AudioBuffer{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		FrameCount:   frameCount,
		Samples:      make([]float32, channelCount*frameCount),
	}
}

func (a *AudioBuffer) At(ch, i int) float32 {
	return a.Samples[ch*a.FrameCount+i]
}

func (a *AudioBuffer) Set(ch, i int, v float32) {
	a.Samples[ch*a.FrameCount+i] = v
}

// Channel returns the sub-slice of Samples for channel ch, channel-major.
func (a *AudioBuffer) Channel(ch int) []float32 {
	start := ch * a.FrameCount
	return a.Samples[start : start+a.FrameCount]
}

// Zero clears all samples to 0.
func (a *AudioBuffer) Zero() {
	for i := range a.Samples {
		a.Samples[i] = 0
	}
}

// SpectrumBuffer holds per-channel magnitude/phase/Hz bin vectors (spec §3
// "Spectrum Buffer"). Storage is either owned (Mag/Phase/Hz slices backed
// by this buffer's own allocation) or proxied (slices aliasing another
// buffer's storage) — both are represented uniformly as [][]float32 since
// Go slices are themselves non-owning views over a backing array.
type SpectrumBuffer struct {
	SampleRate    float64
	ChannelCount  int
	MaxBinCount   int
	BinCount      int
	HopSampleCount int

	Mag   [][]float32
	Phase [][]float32
	Hz    [][]float32

	Ready []bool // per-channel: is this cycle's analysis frame valid
}

// NewSpectrumBuffer allocates owned per-channel bin storage.
func NewSpectrumBuffer(sampleRate float64, channelCount, maxBinCount, hopSampleCount int) *SpectrumBuffer {
	sb := &SpectrumBuffer{
		SampleRate:     sampleRate,
		ChannelCount:   channelCount,
		MaxBinCount:    maxBinCount,
		BinCount:       maxBinCount,
		HopSampleCount: hopSampleCount,
		Mag:            make([][]float32, channelCount),
		Phase:          make([][]float32, channelCount),
		Hz:             make([][]float32, channelCount),
		Ready:          make([]bool, channelCount),
	}
	for ch := 0; ch < channelCount; ch++ {
		sb.Mag[ch] = make([]float32, maxBinCount)
		sb.Phase[ch] = make([]float32, maxBinCount)
		sb.Hz[ch] = make([]float32, maxBinCount)
	}
	return sb
}

// NewProxySpectrumBuffer builds a spectrum buffer whose bin vectors alias
// another buffer's storage (a "proxied" buffer per spec §3).
func NewProxySpectrumBuffer(sampleRate float64, hopSampleCount int, mag, phase, hz [][]float32) *SpectrumBuffer {
	chN := len(mag)
	return &SpectrumBuffer{
		SampleRate:     sampleRate,
		ChannelCount:   chN,
		MaxBinCount:    binCap(mag),
		BinCount:       binCap(mag),
		HopSampleCount: hopSampleCount,
		Mag:            mag,
		Phase:          phase,
		Hz:             hz,
		Ready:          make([]bool, chN),
	}
}

func binCap(v [][]float32) int {
	max := 0
	for _, ch := range v {
		if len(ch) > max {
			max = len(ch)
		}
	}
	return max
}

// MIDIMessage is a single channel-message record (spec §3 "MIDI Buffer",
// §6 "MIDI interchange").
type MIDIMessage struct {
	Status    byte
	Channel   byte
	Data0     byte
	Data1     byte
	TimestampNs int64 // nanoseconds since engine-start epoch
}

// MIDIBuffer is a non-owning view over an externally owned message array
// (spec §3: "the buffer does not own the messages"). Messages re-slices
// a shared backing array; Count tracks how many entries are currently
// valid. NewMIDIBuffer sets Count to len(messages).
type MIDIBuffer struct {
	Messages []MIDIMessage
	Count    int
}

// NewMIDIBuffer wraps a borrowed messages slice.
func NewMIDIBuffer(messages []MIDIMessage) *MIDIBuffer {
	return &MIDIBuffer{Messages: messages, Count: len(messages)}
}
