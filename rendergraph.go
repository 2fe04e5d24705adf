// Package rendergraph models materials as directed acyclic graphs of shading
// nodes. A [Graph] owns its nodes in an arena and nodes reference their
// inputs by [NodeID]. Graphs are compiled to shader source by the shadergen
// package and drawn by the render package.
package rendergraph

import (
	"errors"
	"fmt"
)

// NodeID is a stable handle to a node in the [Graph] that created it.
// The zero value [Nil] means "no input".
type NodeID uint32

// Nil is the absent node.
const Nil NodeID = 0

func (id NodeID) String() string {
	if id == Nil {
		return "nil"
	}
	return fmt.Sprintf("n%d", uint32(id))
}

var (
	ErrMissingInput = errors.New("missing required input")
	ErrUnknownNode  = errors.New("node does not belong to graph")
	ErrRootAsInput  = errors.New("root node used as input")
	ErrNotTexture   = errors.New("input must be a texture node")
	ErrNotRoot      = errors.New("node kind cannot be a graph root")
	errNilTexture   = errors.New("nil texture")
	errNotFinite    = errors.New("literal is not finite")
)

// Graph is a render graph. Nodes are added with [Graph.Add] and may only reference
// nodes added before them so the graph is acyclic by construction.
// The structural hash of each node is computed once when it is added.
//
// Graph provides error handling strategies with panics or error accumulation
// during construction, same as a shape builder: by default invalid nodes panic.
// A Graph is not safe for concurrent modification; concurrent reads are fine.
type Graph struct {
	// NoInputPanic makes invalid nodes accumulate errors retrievable with
	// [Graph.Err] instead of panicking.
	NoInputPanic bool
	nodes        []Node
	hashes       []uint64
	root         NodeID
	accumErrs    []error
	scratch      []byte
	inputs       []NodeID
}

// NewRenderGraph returns an empty graph. Set its root with [Graph.SetRoot] once
// the root's inputs have been added.
func NewRenderGraph() *Graph {
	return &Graph{}
}

// Err returns all accumulated construction errors.
func (g *Graph) Err() error {
	if len(g.accumErrs) == 0 {
		return nil
	}
	return errors.Join(g.accumErrs...)
}

// ClearErrors discards accumulated construction errors.
func (g *Graph) ClearErrors() { g.accumErrs = g.accumErrs[:0] }

func (g *Graph) inputErrorf(err error) {
	if !g.NoInputPanic {
		panic(err.Error())
	}
	g.accumErrs = append(g.accumErrs, err)
}

// Add validates n and appends it to the graph, returning its handle.
// If n is invalid [Nil] is returned and the error is handled per NoInputPanic.
// The graph takes ownership of n which must not be modified afterwards.
func (g *Graph) Add(n Node) NodeID {
	if n == nil {
		panic("nil node argument to Graph.Add")
	}
	if err := n.validate(g); err != nil {
		g.inputErrorf(err)
		return Nil
	}
	g.nodes = append(g.nodes, n)
	g.hashes = append(g.hashes, g.computeHash(n))
	return NodeID(len(g.nodes))
}

// AddValue adds a literal [ValueNode] holding v.
func AddValue[T Scalar](g *Graph, v T) NodeID {
	return g.Add(&ValueNode[T]{Value: v})
}

// Len returns the amount of nodes in the graph. Valid handles are in 1..Len().
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node referenced by id or nil if id is not in the graph.
func (g *Graph) Node(id NodeID) Node {
	if !g.contains(id) {
		return nil
	}
	return g.nodes[id-1]
}

// Hash returns the structural hash of id: a function of the node kind, its literal
// payload and the hashes of its inputs. Structurally equal subgraphs hash equal
// even across graphs. Hash returns 0 for [Nil].
func (g *Graph) Hash(id NodeID) uint64 {
	if !g.contains(id) {
		return 0
	}
	return g.hashes[id-1]
}

// SetRoot sets the graph's single root. Only root kinds (render, sky box and
// post-processing nodes) are accepted.
func (g *Graph) SetRoot(id NodeID) {
	n := g.Node(id)
	if n == nil {
		g.inputErrorf(fmt.Errorf("set root %s: %w", id, ErrUnknownNode))
		return
	} else if !n.Kind().IsRoot() {
		g.inputErrorf(fmt.Errorf("set root %s of kind %s: %w", id, n.Kind(), ErrNotRoot))
		return
	}
	g.root = id
}

// Root returns the graph's root or [Nil] if it has not been set.
func (g *Graph) Root() NodeID { return g.root }

// RootNode returns the graph's root node or nil.
func (g *Graph) RootNode() Node { return g.Node(g.root) }

// RootHash returns the structural hash of the whole graph.
func (g *Graph) RootHash() uint64 { return g.Hash(g.root) }

// SetTexture swaps the texture sampled by the texture node id. Hashes of id and
// of every node added after it are recomputed.
func (g *Graph) SetTexture(id NodeID, tex *Texture) error {
	tn, ok := g.Node(id).(*TextureNode)
	if !ok {
		return fmt.Errorf("set texture %s: %w", id, ErrNotTexture)
	} else if tex == nil {
		return fmt.Errorf("set texture %s: %w", id, errNilTexture)
	}
	cp := *tn
	cp.Texture = tex
	g.nodes[id-1] = &cp
	for i := int(id) - 1; i < len(g.nodes); i++ {
		g.hashes[i] = g.computeHash(g.nodes[i])
	}
	return nil
}

// ForEachInput calls fn for every set input of id in slot order.
func (g *Graph) ForEachInput(id NodeID, fn func(input NodeID) error) error {
	n := g.Node(id)
	if n == nil {
		return fmt.Errorf("%s: %w", id, ErrUnknownNode)
	}
	var buf [4]NodeID
	for _, in := range n.AppendInputs(buf[:0]) {
		if in == Nil {
			continue
		}
		if err := fn(in); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) contains(id NodeID) bool {
	return id != Nil && int(id) <= len(g.nodes)
}

func (g *Graph) computeHash(n Node) uint64 {
	b := append(g.scratch[:0], byte(n.Kind()))
	b = n.appendPayload(b)
	g.inputs = n.AppendInputs(g.inputs[:0])
	for _, in := range g.inputs {
		b = appendUint(b, g.Hash(in))
	}
	g.scratch = b
	return hash(b, hashSeed)
}

// checkInput validates an input slot of a node about to be added.
func (g *Graph) checkInput(slot string, id NodeID, required bool) error {
	if id == Nil {
		if required {
			return fmt.Errorf("%s: %w", slot, ErrMissingInput)
		}
		return nil
	}
	n := g.Node(id)
	if n == nil {
		return fmt.Errorf("%s %s: %w", slot, id, ErrUnknownNode)
	} else if n.Kind().IsRoot() {
		return fmt.Errorf("%s %s: %w", slot, id, ErrRootAsInput)
	}
	return nil
}

func (g *Graph) checkTexture(slot string, id NodeID, required bool) error {
	if err := g.checkInput(slot, id, required); err != nil || id == Nil {
		return err
	}
	if g.Node(id).Kind() != KindTexture {
		return fmt.Errorf("%s %s: %w", slot, id, ErrNotTexture)
	}
	return nil
}
