// Package uibridge implements the Flow engine's UI Bridge (spec §4.7):
// forwarding variable-assignment notifications to an external transport.
// Grounded on the teacher's session.MetricsHook pattern (a narrow
// callback interface the core calls unconditionally, with the decision
// of where that data goes left entirely to the embedding layer) and
// original_source/cwUi.cpp's widget/container/label id triad.
package uibridge

import (
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/network"
	"github.com/currawong-project/libcw-sub004/internal/flow/value"
)

// Op names the kind of change being reported to the transport.
type Op string

const (
	OpValue   Op = "value"
	OpEnable  Op = "enable"
	OpVisible Op = "visible"
)

// Message is what the bridge hands to a Transport: the UI descriptor
// identifying the widget, the variable's current value, and the
// operation kind (spec §4.7 "the core emits a callback carrying the UI
// descriptor, the variable value, and the op").
type Message struct {
	UI    *graph.UIDescriptor
	Value value.Value
	Op    Op
}

// Transport is the embedding layer's chosen delivery mechanism — a
// websocket in the default deployment (internal/ui.WebsocketTransport),
// but the core never depends on a concrete transport.
type Transport interface {
	Send(Message) error
}

// Bridge forwards completed variable assignments to a Transport. It is
// wired into the assignment path by calling OnAssign after every
// successful graph.Set (spec §4.3 step 5 broadcast point).
type Bridge struct {
	transport Transport
	onErr     func(error)
}

// New creates a bridge forwarding to transport.
func New(transport Transport) *Bridge {
	return &Bridge{transport: transport}
}

// OnTransportError registers fn to be called when a Wire-installed hook's
// Send fails; the network's exec loop itself never aborts on a UI
// delivery failure (spec §4.7: UI delivery is best-effort).
func (b *Bridge) OnTransportError(fn func(error)) { b.onErr = fn }

// OnAssign reports v's new value to the transport, if v carries a UI
// descriptor. No-op for variables with no UI decoration.
func (b *Bridge) OnAssign(v *graph.Variable) error {
	return b.report(v, OpValue)
}

// OnEnableChanged reports a UI descriptor's Enabled flag change.
func (b *Bridge) OnEnableChanged(v *graph.Variable) error {
	return b.report(v, OpEnable)
}

// OnVisibleChanged reports a UI descriptor's Visible flag change.
func (b *Bridge) OnVisibleChanged(v *graph.Variable) error {
	return b.report(v, OpVisible)
}

// Wire installs b as net's UI hook: every variable assignment that
// reaches a class value callback is also reported to b's transport.
func Wire(net *network.Network, b *Bridge) {
	net.SetUIHook(func(v *graph.Variable) {
		if err := b.OnAssign(v); err != nil && b.onErr != nil {
			b.onErr(err)
		}
	})
}

func (b *Bridge) report(v *graph.Variable, op Op) error {
	if v.UI == nil || b.transport == nil {
		return nil
	}
	return b.transport.Send(Message{UI: v.UI, Value: v.Value(), Op: op})
}
