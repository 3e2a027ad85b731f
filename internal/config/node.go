// Package config implements the self-describing configuration-object
// tree consumed by the Flow engine (spec §6 "Configuration file format").
// It is a structural tree of dict/list/pair/root containers and scalar
// leaves, grounded on original_source/cwObject.cpp and cwLex.h. No
// library in the retrieval pack implements this exact grammar (its
// scalar-suffix rules — `u`, `f`, `0x`, scientific notation — and its
// dict/list/pair/root container set do not map onto JSON, YAML, or TOML)
// so this package is a deliberate stdlib-only exception; see DESIGN.md.
package config

import "fmt"

// Kind identifies the shape of a Node.
type Kind int

const (
	KindInvalid Kind = iota
	KindRoot
	KindDict
	KindList
	KindPair
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDouble
	KindString
	KindIdent // a bare identifier used as a dict value reference
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDict:
		return "dict"
	case KindList:
		return "list"
	case KindPair:
		return "pair"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindIdent:
		return "ident"
	default:
		return "invalid"
	}
}

// Node is one element of the configuration tree. Container kinds
// (Root, Dict, List, Pair) use Children/Keys; scalar kinds use the
// Bool/Int/Uint/Float/Double/Str fields per Kind.
type Node struct {
	Kind Kind

	// Container payload. For KindDict, Keys[i] names Children[i].
	// For KindList, Keys is nil. For KindPair, Children has exactly 2
	// entries (key, value) and Keys is nil.
	Children []*Node
	Keys     []string

	// Scalar payload, valid per Kind.
	Bool   bool
	Int    int64
	Uint   uint64
	Float  float32
	Double float64
	Str    string

	Line, Col int // 1-based source position, for SyntaxError reporting
}

// NewDict creates an empty dict node.
func NewDict() *Node { return &Node{Kind: KindDict} }

// NewList creates an empty list node.
func NewList() *Node { return &Node{Kind: KindList} }

// Get looks up a key in a dict node. Returns nil, false if absent or n
// is not a dict.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindDict {
		return nil, false
	}
	for i, k := range n.Keys {
		if k == key {
			return n.Children[i], true
		}
	}
	return nil, false
}

// Set inserts or replaces a key in a dict node.
func (n *Node) Set(key string, v *Node) error {
	if n.Kind != KindDict {
		return fmt.Errorf("config: Set called on non-dict node (%s)", n.Kind)
	}
	for i, k := range n.Keys {
		if k == key {
			n.Children[i] = v
			return nil
		}
	}
	n.Keys = append(n.Keys, key)
	n.Children = append(n.Children, v)
	return nil
}

// Append adds an element to a list node.
func (n *Node) Append(v *Node) error {
	if n.Kind != KindList {
		return fmt.Errorf("config: Append called on non-list node (%s)", n.Kind)
	}
	n.Children = append(n.Children, v)
	return nil
}

// Len returns the number of elements in a list or dict node.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Equal reports structural equality between two trees. Float/Double
// leaves compare by their float64 representation (spec §8 round-trip
// law: "a scalar is considered equal if its double representation
// matches" — lossy re-serialization of floats is expected and fine).
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind {
		return false
	}
	switch n.Kind {
	case KindBool:
		return n.Bool == o.Bool
	case KindInt:
		return n.Int == o.Int
	case KindUint:
		return n.Uint == o.Uint
	case KindFloat:
		return float64(n.Float) == float64(o.Float)
	case KindDouble:
		return n.Double == o.Double
	case KindString, KindIdent:
		return n.Str == o.Str
	case KindDict:
		if len(n.Keys) != len(o.Keys) {
			return false
		}
		for i, k := range n.Keys {
			ov, ok := o.Get(k)
			if !ok || !n.Children[i].Equal(ov) {
				return false
			}
		}
		return true
	case KindList, KindRoot, KindPair:
		if len(n.Children) != len(o.Children) {
			return false
		}
		for i := range n.Children {
			if !n.Children[i].Equal(o.Children[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
