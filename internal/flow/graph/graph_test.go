package graph

import (
	"fmt"
	"testing"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
	"github.com/stretchr/testify/require"
)

// fakeLogger records Warnf calls for assertions, standing in for
// telemetry.Logger.
type fakeLogger struct {
	warnings []string
}

func (l *fakeLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

// fakeOwner is a minimal Owner for exercising graph operations without a
// real network.Procedure.
type fakeOwner struct {
	label     string
	head      *Variable
	tail      *Variable
	ready     bool
	rejectVal bool // if true, InvokeValueCallback always fails
	calls     int
	log       *fakeLogger
}

func (o *fakeOwner) Label() string      { return o.label }
func (o *fakeOwner) VarsHead() *Variable { return o.head }
func (o *fakeOwner) AppendVar(v *Variable) {
	if o.head == nil {
		o.head = v
	} else {
		o.tail.Next = v
	}
	o.tail = v
}
func (o *fakeOwner) PostCreateReady() bool { return o.ready }
func (o *fakeOwner) InvokeValueCallback(v *Variable) error {
	o.calls++
	if o.rejectVal {
		return ferr.New(ferr.InvalidArgument, "rejected by test owner")
	}
	return nil
}
func (o *fakeOwner) VidLookup(vid uint32, channel int) (*Variable, bool) { return nil, false }
func (o *fakeOwner) Logger() Logger {
	if o.log == nil {
		return nil
	}
	return o.log
}

func gainDesc() *Descriptor {
	return &Descriptor{Label: "gain", Sfx: "", Types: []value.Kind{value.KindFloat}}
}

func TestCreateAllocatesAnyChannelBaseFirst(t *testing.T) {
	o := &fakeOwner{label: "p1"}
	v, err := Create(o, gainDesc(), "gain", "", 1, 0, nil)
	require.NoError(t, err)
	require.Equal(t, 0, v.Chan)

	base, ok := Find(o, "gain", "", AnyChannel)
	require.True(t, ok)
	require.Same(t, base, o.head)
	require.Same(t, v, base.ChanLink)
}

func TestCreateDuplicateFails(t *testing.T) {
	o := &fakeOwner{label: "p1"}
	_, err := Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.NoError(t, err)
	_, err = Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.Duplicate))
}

func TestChannelChainAscendingOrder(t *testing.T) {
	o := &fakeOwner{label: "p1"}
	_, err := Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.NoError(t, err)
	_, err = Create(o, gainDesc(), "gain", "", 1, 2, nil)
	require.NoError(t, err)
	_, err = Create(o, gainDesc(), "gain", "", 1, 0, nil)
	require.NoError(t, err)
	_, err = Create(o, gainDesc(), "gain", "", 1, 1, nil)
	require.NoError(t, err)

	base, _ := Find(o, "gain", "", AnyChannel)
	var order []int
	for v := base; v != nil; v = v.ChanLink {
		order = append(order, v.Chan)
	}
	require.Equal(t, []int{AnyChannel, 0, 1, 2}, order)
}

func TestConnectAliasesSourceValue(t *testing.T) {
	oSrc := &fakeOwner{label: "src", ready: true}
	oDst := &fakeOwner{label: "dst", ready: true}

	src, err := Create(oSrc, gainDesc(), "out", "", 1, AnyChannel, nil)
	require.NoError(t, err)
	dst, err := Create(oDst, gainDesc(), "in", "", 2, AnyChannel, nil)
	require.NoError(t, err)

	require.NoError(t, Set(oSrc, src, value.Float(0.5)))
	require.NoError(t, Connect(src, dst))

	require.True(t, dst.IsConnected())
	require.InDelta(t, 0.5, float64(dst.Value().AsFloat()), 1e-6)

	require.NoError(t, Set(oSrc, src, value.Float(0.75)))
	require.InDelta(t, 0.75, float64(dst.Value().AsFloat()), 1e-6)
}

func TestConnectRejectsAlreadyConnectedDestination(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	a, _ := Create(o, gainDesc(), "a", "", 1, AnyChannel, nil)
	b, _ := Create(o, gainDesc(), "b", "", 2, AnyChannel, nil)
	c, _ := Create(o, gainDesc(), "c", "", 3, AnyChannel, nil)

	require.NoError(t, Connect(a, c))
	err := Connect(b, c)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.InvalidState))
}

func TestDisconnectIdempotenceFailsOnSecondCall(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	a, _ := Create(o, gainDesc(), "a", "", 1, AnyChannel, nil)
	b, _ := Create(o, gainDesc(), "b", "", 2, AnyChannel, nil)
	require.NoError(t, Connect(a, b))
	require.NoError(t, Disconnect(b))
	require.False(t, b.IsConnected())

	err := Disconnect(b)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.InvalidState))
}

func TestSetOnConnectedVariableFails(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	a, _ := Create(o, gainDesc(), "a", "", 1, AnyChannel, nil)
	b, _ := Create(o, gainDesc(), "b", "", 2, AnyChannel, nil)
	require.NoError(t, Connect(a, b))

	err := Set(o, b, value.Float(1))
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.InvalidState))
}

func TestAssignmentRollbackOnValueCallbackRejection(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	v, err := Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.NoError(t, err)
	require.NoError(t, Set(o, v, value.Float(0.5)))

	o.rejectVal = true
	err = Set(o, v, value.Float(2.0))
	require.Error(t, err)

	// Rollback: value and kind revert to the pre-trial state.
	require.InDelta(t, 0.5, float64(v.Value().AsFloat()), 1e-6)
}

func TestBroadcastReachesTransitiveDestinations(t *testing.T) {
	o1 := &fakeOwner{label: "p1", ready: true}
	o2 := &fakeOwner{label: "p2", ready: true}
	o3 := &fakeOwner{label: "p3", ready: true}

	a, _ := Create(o1, gainDesc(), "a", "", 1, AnyChannel, nil)
	b, _ := Create(o2, gainDesc(), "b", "", 2, AnyChannel, nil)
	c, _ := Create(o3, gainDesc(), "c", "", 3, AnyChannel, nil)

	require.NoError(t, Connect(a, b))
	require.NoError(t, Connect(b, c))

	require.NoError(t, Set(o1, a, value.Float(0.25)))

	require.InDelta(t, 0.25, float64(c.Value().AsFloat()), 1e-6)
	require.Equal(t, 1, o2.calls)
	require.Equal(t, 1, o3.calls)
}

// TestBroadcastContinuesPastRejectedDestination verifies spec §4.3 step
// 5: a downstream value-callback rejection is logged and does not abort
// the fan-out to sibling destinations, and does not surface as an error
// from Set — the source variable's own assignment already committed.
func TestBroadcastContinuesPastRejectedDestination(t *testing.T) {
	src := &fakeOwner{label: "src", ready: true}
	bad := &fakeOwner{label: "bad", ready: true, rejectVal: true, log: &fakeLogger{}}
	good := &fakeOwner{label: "good", ready: true}

	a, _ := Create(src, gainDesc(), "a", "", 1, AnyChannel, nil)
	b, _ := Create(bad, gainDesc(), "b", "", 2, AnyChannel, nil)
	c, _ := Create(good, gainDesc(), "c", "", 3, AnyChannel, nil)

	require.NoError(t, Connect(a, b))
	require.NoError(t, Connect(a, c))

	err := Set(src, a, value.Float(0.75))
	require.NoError(t, err)

	require.Equal(t, 1, bad.calls)
	require.Equal(t, 1, good.calls)
	require.InDelta(t, 0.75, float64(c.Value().AsFloat()), 1e-6)
	require.Len(t, bad.log.warnings, 1)
}

func TestChannelizeInheritsLocalValueWhenBaseUnconnected(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	base, err := Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.NoError(t, err)
	require.NoError(t, Set(o, base, value.Float(0.5)))

	v, err := Channelize(o, gainDesc(), "gain", "", 1, 0, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 0.5, float64(v.Value().AsFloat()), 1e-6)
	require.False(t, v.IsConnected())
}

func TestChannelizeIsIdempotent(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	_, err := Create(o, gainDesc(), "gain", "", 1, AnyChannel, nil)
	require.NoError(t, err)

	v1, err := Channelize(o, gainDesc(), "gain", "", 1, 0, nil, nil)
	require.NoError(t, err)
	v2, err := Channelize(o, gainDesc(), "gain", "", 1, 0, nil, nil)
	require.NoError(t, err)
	require.Same(t, v1, v2)
}

func TestFindByVidFallsBackToLinearScanBeforeMapReady(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: false}
	v, err := Create(o, gainDesc(), "gain", "", 7, AnyChannel, nil)
	require.NoError(t, err)

	found, ok := FindByVid(o, 7, AnyChannel)
	require.True(t, ok)
	require.Same(t, v, found)
}

func TestRegisterCreatesBaseThenChannelVariant(t *testing.T) {
	o := &fakeOwner{label: "p1", ready: true}
	base, err := Register(o, gainDesc(), "gain", "", 9, AnyChannel, nil)
	require.NoError(t, err)
	require.True(t, base.IsAnyChannel())

	v, err := Register(o, gainDesc(), "gain", "", 9, 3, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(9), v.Vid)
	require.Equal(t, 3, v.Chan)
}
