//go:build unix

package wavetable

import (
	"encoding/binary"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
)

// mmapFile is the optional fast-load path named in the domain stack: a
// large bank file (hundreds of megabytes of sampled multi-channel
// wavetables) is paged in by the kernel on demand instead of read
// wholesale into the Go heap. The on-disk layout is a flat sequence of
// little-endian float32 samples per table; callers decode regions with
// floatsAt, as LoadMappedWavetable below does.
type mmapFile struct {
	data []byte
}

// openMmap maps path read-only into the process's address space.
func openMmap(path string) (*mmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.OpFailure, err, "wavetable: open %q", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, ferr.Wrap(ferr.OpFailure, err, "wavetable: stat %q", path)
	}
	if fi.Size() == 0 {
		return nil, ferr.New(ferr.InvalidArgument, "wavetable: %q is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, ferr.Wrap(ferr.OpFailure, err, "wavetable: mmap %q", path)
	}
	return &mmapFile{data: data}, nil
}

// Close unmaps the file.
func (m *mmapFile) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// floatsAt decodes n little-endian float32 samples starting at byte
// offset off, without copying the backing mmap region until the final
// []float32 conversion (the decode loop itself is a copy; mmap avoids
// only the read(2) + page-cache-duplicate cost of loading the whole
// file up front).
func (m *mmapFile) floatsAt(off int64, n int) ([]float32, error) {
	end := off + int64(n)*4
	if off < 0 || end > int64(len(m.data)) {
		return nil, ferr.New(ferr.BufTooSmall, "wavetable: mmap region [%d,%d) out of range (file is %d bytes)", off, end, len(m.data))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(m.data[off+int64(i)*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// LoadMappedWavetable builds a Wavetable by reading its loop body out of
// an mmap'd bank file rather than a regular file read, for banks too
// large to comfortably read wholesale. bodyOff/bodyLen locate the loop
// body in samples; the guard pad is still derived in-process per the
// usual invariant.
func LoadMappedWavetable(path string, bodyOff int64, bodyLen, padN int, fundamental, rms, sampleRate float64, srcPos int64, isAttack bool) (*Wavetable, error) {
	m, err := openMmap(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	body, err := m.floatsAt(bodyOff*4, bodyLen)
	if err != nil {
		return nil, err
	}
	return NewWavetable(body, padN, fundamental, rms, sampleRate, srcPos, isAttack)
}
