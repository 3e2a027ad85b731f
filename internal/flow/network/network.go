package network

import (
	"strings"

	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/classdict"
	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// GlobalKey identifies one slot in a network's global-variable store
// (spec §9 "Global variables per network", §7 supplemented features):
// opaque state shared across every instance of a class.
type GlobalKey struct {
	ClassLabel string
	VarLabel   string
}

// Status is the network's lifecycle state.
type Status int

const (
	StatusBuilding Status = iota
	StatusRunning
	StatusCompleted // a procedure returned end-of-stream
)

// Network is the assembled dataflow graph: an ordered vector of owned
// procedures plus network-wide global state (spec §3 "Network", §4.4,
// §9 "Variable graph cycles" — procedures are kept in an ordered slice,
// never referenced by long-lived cross-procedure pointers outside the
// graph package's own src/dst edges).
type Network struct {
	dict *classdict.Dictionary
	log  *telemetry.Logger

	procs    []*Procedure
	byLabel  map[string]*Procedure
	Globals  map[GlobalKey][]byte

	status     Status
	cycleIndex uint64

	uiHook func(*graph.Variable)
}

// SetUIHook registers fn to be called after every variable assignment
// that reaches a value callback (spec §4.7: the UI Bridge observes the
// same assignment-completion point the class value callbacks do). A nil
// hook (the default) disables UI notification entirely, avoiding any
// dependency from this package onto uibridge.
func (n *Network) SetUIHook(fn func(*graph.Variable)) { n.uiHook = fn }

// New creates an empty network bound to dict for class lookups.
func New(dict *classdict.Dictionary, log *telemetry.Logger) *Network {
	return &Network{
		dict:    dict,
		log:     log,
		byLabel: make(map[string]*Procedure),
		Globals: make(map[GlobalKey][]byte),
	}
}

// CycleIndex returns the monotonically incremented cycle counter,
// readable by exec callbacks (spec §4.4, §7 supplemented features).
func (n *Network) CycleIndex() uint64 { return n.cycleIndex }

// Status returns the network's current lifecycle state.
func (n *Network) Status() Status { return n.status }

// Procedure returns the named procedure, if any.
func (n *Network) Procedure(label string) (*Procedure, bool) {
	p, ok := n.byLabel[label]
	return p, ok
}

// Procedures returns the network's procedures in construction order.
func (n *Network) Procedures() []*Procedure {
	out := make([]*Procedure, len(n.procs))
	copy(out, n.procs)
	return out
}

// AddProcedure implements spec §4.4 steps 1-2: resolve label's class,
// allocate the procedure, and invoke the class's create callback with
// argCfg. The create callback registers the procedure's variables via
// Procedure.Register before AddProcedure returns.
func (n *Network) AddProcedure(label, classLabel string, sfxID uint32, argCfg *config.Node, presetLabel string) (*Procedure, error) {
	if _, exists := n.byLabel[label]; exists {
		return nil, ferr.New(ferr.Duplicate, "procedure %q already declared", label)
	}
	class, err := n.dict.Lookup(classLabel)
	if err != nil {
		return nil, err
	}

	p := &Procedure{
		label:     label,
		sfxID:     sfxID,
		class:     class,
		argCfg:    argCfg,
		presetLbl: presetLabel,
		net:       n,
		log:       n.log,
	}

	if class.Create != nil {
		if err := class.Create(p, argCfg); err != nil {
			return nil, ferr.Wrap(ferr.OpFailure, err, "class %q create callback failed for procedure %q", classLabel, label)
		}
	}

	n.procs = append(n.procs, p)
	n.byLabel[label] = p
	return p, nil
}

// ConnectRef wires dstLabel.dstVar (at dstChannel) to the output
// variable named "procedure.variable" in ref, per spec §4.4 step 3 and
// the §6 network-configuration "in" field's `"procedure.variable"`
// source-reference syntax.
func (n *Network) ConnectRef(dstLabel, dstVar, dstSfx string, dstChannel int, ref string) error {
	srcProcLabel, srcVarLabel, ok := strings.Cut(ref, ".")
	if !ok {
		return ferr.New(ferr.InvalidArgument, "malformed source reference %q (want \"procedure.variable\")", ref)
	}
	srcProc, ok := n.byLabel[srcProcLabel]
	if !ok {
		return ferr.New(ferr.EleNotFound, "source reference %q: no such procedure %q", ref, srcProcLabel)
	}
	srcVar, ok := srcProc.Find(srcVarLabel, "", dstChannel)
	if !ok {
		srcVar, ok = srcProc.Find(srcVarLabel, "", graph.AnyChannel)
		if !ok {
			return ferr.New(ferr.EleNotFound, "source reference %q: no variable %q", ref, srcVarLabel)
		}
	}

	dstProc, ok := n.byLabel[dstLabel]
	if !ok {
		return ferr.New(ferr.EleNotFound, "no such procedure %q", dstLabel)
	}
	dstV, ok := dstProc.Find(dstVar, dstSfx, dstChannel)
	if !ok {
		return ferr.New(ferr.EleNotFound, "procedure %q has no variable %s:%s[%d]", dstLabel, dstVar, dstSfx, dstChannel)
	}

	return graph.Connect(srcVar, dstV)
}

// Validate implements spec §4.4 steps 4-5: runs each procedure's
// validate pass and builds its vid->var flat map. Must be called after
// all AddProcedure/ConnectRef calls and before the first ExecCycle.
func (n *Network) Validate() error {
	for _, p := range n.procs {
		if err := p.validate(); err != nil {
			return err
		}
		p.buildFlatMap()
	}
	n.status = StatusRunning
	return nil
}

// ExecCycle implements spec §4.4 per-cycle execution: iterate procedures
// in construction order, run each class's exec callback. A procedure
// signaling end-of-stream transitions the network to completed and is
// returned to the caller (non-real-time mode); a completed network
// refuses further cycles with InvalidState.
func (n *Network) ExecCycle() error {
	if n.status == StatusCompleted {
		return ferr.New(ferr.InvalidState, "network has reached end-of-stream; reload to run further cycles")
	}
	if n.status == StatusBuilding {
		return ferr.New(ferr.InvalidState, "network has not been validated")
	}

	for _, p := range n.procs {
		if err := p.exec(); err != nil {
			if ferr.Is(err, ferr.EndOfStream) {
				n.status = StatusCompleted
				return err
			}
			if n.log != nil {
				n.log.WithCycle(n.cycleIndex).WithProcedure(p.label).Errorf("exec failed: %v", err)
			}
		}
	}

	n.cycleIndex++
	return nil
}
