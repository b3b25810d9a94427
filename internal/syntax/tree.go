package syntax

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupported is returned when source uses a construct the
	// normalized tree cannot represent.
	ErrUnsupported = errors.New("unsupported syntax")
	// ErrUnknownNode is returned by Lookup for ids that are not in the arena.
	ErrUnknownNode = errors.New("unknown node id")
)

const idPrefix = "node_"

// Tree is an arena of nodes. Parent links are index based and maintained
// by Add and Set; nodes are never removed, only detached.
type Tree struct {
	Filename string
	Src      []byte
	Root     NodeID

	nodes []Node
}

// NewTree returns an empty tree over src.
func NewTree(filename string, src []byte) *Tree {
	return &Tree{Filename: filename, Src: src, Root: NoNode}
}

// Len returns the number of nodes in the arena, detached ones included.
func (t *Tree) Len() int { return len(t.nodes) }

// Add appends n and adopts its children.
func (t *Tree) Add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.adopt(id)
	return id
}

// Set replaces the node stored at id, keeping its parent, and adopts the
// new children.
func (t *Tree) Set(id NodeID, n Node) {
	n.Parent = t.nodes[id].Parent
	t.nodes[id] = n
	t.adopt(id)
}

func (t *Tree) adopt(id NodeID) {
	for _, c := range t.nodes[id].Children() {
		t.nodes[c].Parent = id
	}
}

// Node returns a pointer to the node stored at id. The pointer is
// invalidated by the next Add.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Kind returns the kind of id.
func (t *Tree) Kind(id NodeID) Kind { return t.nodes[id].Kind }

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

// Children returns the children of id in source order.
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].Children() }

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !id.Valid() || !fn(id) {
		return
	}
	for _, c := range t.nodes[id].Children() {
		t.Walk(c, fn)
	}
}

// Ancestors returns the parents of id from the nearest to the root.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := t.nodes[id].Parent; p.Valid(); p = t.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// Enclosing returns the nearest proper ancestor of id with one of kinds.
func (t *Tree) Enclosing(id NodeID, kinds ...Kind) NodeID {
	for p := t.nodes[id].Parent; p.Valid(); p = t.nodes[p].Parent {
		for _, k := range kinds {
			if t.nodes[p].Kind == k {
				return p
			}
		}
	}
	return NoNode
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for n := id; n.Valid(); n = t.nodes[n].Parent {
		if n == anc {
			return true
		}
	}
	return false
}

// Statement returns the statement that contains id (id itself when it is
// a statement).
func (t *Tree) Statement(id NodeID) NodeID {
	for n := id; n.Valid(); n = t.nodes[n].Parent {
		if t.nodes[n].Kind.IsStatement() && t.nodes[n].Kind != KindBlock {
			return n
		}
	}
	return NoNode
}

// Find collects every node below root (inclusive) accepted by match. When
// descend is false, matched nodes are not searched further.
func (t *Tree) Find(root NodeID, descend bool, match func(NodeID) bool) []NodeID {
	var out []NodeID
	t.Walk(root, func(id NodeID) bool {
		if match(id) {
			out = append(out, id)
			return descend
		}
		return true
	})
	return out
}

// IDString returns the stable external id of a node.
func IDString(id NodeID) string { return idPrefix + strconv.Itoa(int(id)) }

// Lookup resolves an external id produced by IDString.
func (t *Tree) Lookup(s string) (NodeID, error) {
	k, err := strconv.Atoi(strings.TrimPrefix(s, idPrefix))
	if err != nil || !strings.HasPrefix(s, idPrefix) || k < 0 || k >= len(t.nodes) {
		return NoNode, fmt.Errorf("%w: %q", ErrUnknownNode, s)
	}
	return NodeID(k), nil
}

// Source returns the text of id. Nodes without source (synthesized during
// preprocessing) are rendered with Unparse.
func (t *Tree) Source(id NodeID) string {
	n := &t.nodes[id]
	if !n.Synthetic && n.Span.EndByte > n.Span.StartByte && n.Span.EndByte <= len(t.Src) {
		return string(t.Src[n.Span.StartByte:n.Span.EndByte])
	}
	return t.Unparse(id)
}

// TempPrefix starts every identifier introduced by desugaring.
const TempPrefix = "__TMP__"

// Clone copies the subtree rooted at id and returns the copy's root, which
// is detached until attached to a parent with Set or Add.
func (t *Tree) Clone(id NodeID) NodeID {
	return t.CloneWith(id, nil)
}

// CloneWith copies the subtree rooted at id. When subst returns a valid id
// for an original node, that node is used in place of a copy.
func (t *Tree) CloneWith(id NodeID, subst func(NodeID) NodeID) NodeID {
	if !id.Valid() {
		return NoNode
	}
	if subst != nil {
		if r := subst(id); r.Valid() {
			return r
		}
	}
	n := t.nodes[id]
	n.Parent = NoNode
	cp := func(c NodeID) NodeID { return t.CloneWith(c, subst) }
	n.Test = cp(n.Test)
	n.Body = cp(n.Body)
	n.Else = cp(n.Else)
	n.Target = cp(n.Target)
	n.Value = cp(n.Value)
	n.Iter = cp(n.Iter)
	n.Func = cp(n.Func)
	n.Left = cp(n.Left)
	n.Right = cp(n.Right)
	n.Index = cp(n.Index)
	n.Annotation = cp(n.Annotation)
	n.Default = cp(n.Default)
	n.Elts = cloneList(n.Elts, cp)
	n.Keywords = cloneList(n.Keywords, cp)
	n.Decorators = cloneList(n.Decorators, cp)
	return t.Add(n)
}

func cloneList(ids []NodeID, cp func(NodeID) NodeID) []NodeID {
	if ids == nil {
		return nil
	}
	out := make([]NodeID, len(ids))
	for i, c := range ids {
		out[i] = cp(c)
	}
	return out
}

// Position returns the 1-based start of id.
func (t *Tree) Position(id NodeID) Position { return t.nodes[id].Span.Start }

// CallName returns the dotted name of a call's callee (`pm.Normal`,
// `sample`), or "" when the callee is not a name or attribute chain.
func (t *Tree) CallName(call NodeID) string {
	n := &t.nodes[call]
	if n.Kind != KindCall {
		return ""
	}
	return t.DottedName(n.Func)
}

// DottedName renders a Name/Attribute chain, or "" for anything else.
func (t *Tree) DottedName(id NodeID) string {
	n := &t.nodes[id]
	switch n.Kind {
	case KindName:
		return n.Name
	case KindAttribute:
		base := t.DottedName(n.Value)
		if base == "" {
			return ""
		}
		return base + "." + n.Name
	}
	return ""
}

// Keyword returns the value of the keyword argument called name of a call.
func (t *Tree) Keyword(call NodeID, name string) NodeID {
	for _, kw := range t.nodes[call].Keywords {
		if t.nodes[kw].Name == name {
			return t.nodes[kw].Value
		}
	}
	return NoNode
}

// Replace swaps the child old of parent for repl and detaches old.
func (t *Tree) Replace(parent, old, repl NodeID) {
	n := t.nodes[parent]
	swap := func(id *NodeID) {
		if *id == old {
			*id = repl
		}
	}
	for _, id := range []*NodeID{&n.Test, &n.Body, &n.Else, &n.Target, &n.Value, &n.Iter,
		&n.Func, &n.Left, &n.Right, &n.Index, &n.Annotation, &n.Default} {
		swap(id)
	}
	for _, list := range [][]NodeID{n.Elts, n.Keywords, n.Decorators} {
		for i := range list {
			swap(&list[i])
		}
	}
	t.Set(parent, n)
	t.nodes[old].Parent = NoNode
}

// SetStatements replaces the statement list of a Block.
func (t *Tree) SetStatements(block NodeID, stmts []NodeID) {
	n := t.nodes[block]
	n.Elts = stmts
	t.Set(block, n)
}
