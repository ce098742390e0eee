// Package taxonomy models the complaint and condition category trees.
//
// A Tree is an arena of nodes keyed by id plus a parent-id index. The nested
// view consumers render is a projection computed on demand, so ancestor
// queries and cycle checks never walk a recursive structure.
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCycleDetected         = errors.New("cycle detected")
	ErrNodeNotFound          = errors.New("node not found")
	ErrDuplicateNode         = errors.New("duplicate node id")
	ErrEmptyLabel            = errors.New("label is required")
	ErrDefaultPartOnBranch   = errors.New("default spare part is only allowed on leaf nodes")
	ErrDefaultPartNotAllowed = errors.New("default spare part is only allowed on complaint nodes")
	ErrParentNotAllowed      = errors.New("parent is not offered by the current policy")
	ErrUnknownKind           = errors.New("unknown tree kind")
)

// Kind selects one of the two category trees.
type Kind string

const (
	Complaints Kind = "complaints"
	Conditions Kind = "conditions"
)

// ParseKind validates a kind coming from a URL or config value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Complaints, Conditions:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Node is one entry of the arena.
type Node struct {
	ID                 string  `json:"id"`
	Label              string  `json:"label"`
	ParentID           *string `json:"parent_id"`
	DefaultSparePartID *string `json:"default_spare_part_id"`
	Position           int     `json:"position"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

// NestedNode is the nested projection handed to consumers.
type NestedNode struct {
	ID                 string       `json:"id"`
	Label              string       `json:"label"`
	ParentID           *string      `json:"parent_id"`
	DefaultSparePartID *string      `json:"default_spare_part_id"`
	Position           int          `json:"position"`
	Children           []NestedNode `json:"children"`
}

// IsLeaf reports whether the node has no children.
func (n NestedNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// FindNested searches a nested view depth-first, descending into every
// subtree. It reports false for unknown ids instead of failing, since views
// are often stale snapshots.
func FindNested(nodes []NestedNode, id string) (NestedNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
		if found, ok := FindNested(n.Children, id); ok {
			return found, true
		}
	}
	return NestedNode{}, false
}

// Tree is the arena. The zero value is not usable; use New or FromNested.
type Tree struct {
	kind     Kind
	nodes    map[string]Node
	children map[string][]string // keyed by parent id, roots under ""
}

// New builds a tree from a flat node list, rejecting duplicate ids, unknown
// parents and cycles.
func New(kind Kind, nodes []Node) (*Tree, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	t := &Tree{
		kind:     kind,
		nodes:    make(map[string]Node, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		n.ParentID = normalizeID(n.ParentID)
		n.DefaultSparePartID = normalizeID(n.DefaultSparePartID)
		if n.ID == "" {
			return nil, fmt.Errorf("node without id: %w", ErrNodeNotFound)
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, fmt.Errorf("node %s: %w", n.ID, ErrDuplicateNode)
		}
		t.nodes[n.ID] = n
		key := parentKey(n.ParentID)
		t.children[key] = append(t.children[key], n.ID)
	}
	for _, n := range t.nodes {
		if n.ParentID != nil {
			if _, ok := t.nodes[*n.ParentID]; !ok {
				return nil, fmt.Errorf("node %s parent %s: %w", n.ID, *n.ParentID, ErrNodeNotFound)
			}
		}
	}
	for key := range t.children {
		t.sortChildren(key)
	}
	if reached := len(t.Flatten()); reached != len(t.nodes) {
		return nil, fmt.Errorf("%d nodes unreachable from a root: %w", len(t.nodes)-reached, ErrCycleDetected)
	}
	return t, nil
}

// FromNested flattens a fetched nested snapshot into an arena. Parent ids are
// taken from the nesting, not from the ParentID fields.
func FromNested(kind Kind, roots []NestedNode) (*Tree, error) {
	var flat []Node
	var walk func(parent *string, nodes []NestedNode)
	walk = func(parent *string, nodes []NestedNode) {
		for _, n := range nodes {
			flat = append(flat, Node{
				ID:                 n.ID,
				Label:              n.Label,
				ParentID:           parent,
				DefaultSparePartID: n.DefaultSparePartID,
				Position:           n.Position,
			})
			id := n.ID
			walk(&id, n.Children)
		}
	}
	walk(nil, roots)
	return New(kind, flat)
}

func (t *Tree) Kind() Kind { return t.kind }

func (t *Tree) Len() int { return len(t.nodes) }

// FindNode returns the node with the given id anywhere in the tree.
func (t *Tree) FindNode(id string) (Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots returns the top-level nodes in display order.
func (t *Tree) Roots() []Node {
	return t.Children("")
}

// Children returns the direct children of id; "" selects the roots.
func (t *Tree) Children(id string) []Node {
	ids := t.children[id]
	out := make([]Node, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.nodes[cid])
	}
	return out
}

// IsLeaf reports whether id names a node without children.
func (t *Tree) IsLeaf(id string) bool {
	if _, ok := t.nodes[id]; !ok {
		return false
	}
	return len(t.children[id]) == 0
}

// Ancestors returns the parent chain of id, nearest first.
func (t *Tree) Ancestors(id string) []string {
	var out []string
	n, ok := t.nodes[id]
	for ok && n.ParentID != nil && len(out) <= len(t.nodes) {
		out = append(out, *n.ParentID)
		n, ok = t.nodes[*n.ParentID]
	}
	return out
}

// IsDescendant reports whether id sits somewhere below ancestorID.
func (t *Tree) IsDescendant(ancestorID, id string) bool {
	for _, a := range t.Ancestors(id) {
		if a == ancestorID {
			return true
		}
	}
	return false
}

// Descendants returns every node below id in pre-order.
func (t *Tree) Descendants(id string) []string {
	var out []string
	var walk func(string)
	walk = func(pid string) {
		for _, cid := range t.children[pid] {
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Flatten enumerates every node depth-first in display order.
func (t *Tree) Flatten() []Node {
	out := make([]Node, 0, len(t.nodes))
	var walk func(string)
	walk = func(pid string) {
		for _, cid := range t.children[pid] {
			out = append(out, t.nodes[cid])
			walk(cid)
		}
	}
	walk("")
	return out
}

// Nested projects the arena into the nested view.
func (t *Tree) Nested() []NestedNode {
	var build func(string) []NestedNode
	build = func(pid string) []NestedNode {
		ids := t.children[pid]
		out := make([]NestedNode, 0, len(ids))
		for _, cid := range ids {
			n := t.nodes[cid]
			out = append(out, NestedNode{
				ID:                 n.ID,
				Label:              n.Label,
				ParentID:           copyID(n.ParentID),
				DefaultSparePartID: copyID(n.DefaultSparePartID),
				Position:           n.Position,
				Children:           build(cid),
			})
		}
		return out
	}
	return build("")
}

// DefaultSparePartFor returns the default part of a complaint leaf. Branches
// and condition nodes never yield a default, even if a stale snapshot still
// carries one.
func (t *Tree) DefaultSparePartFor(id string) (string, bool) {
	if t.kind != Complaints || !t.IsLeaf(id) {
		return "", false
	}
	n := t.nodes[id]
	if n.DefaultSparePartID == nil {
		return "", false
	}
	return *n.DefaultSparePartID, true
}

// EditableDefaultPart is the value an edit form should show for id's default
// spare part: nil unless the node is a complaint leaf.
func (t *Tree) EditableDefaultPart(id string) *string {
	if part, ok := t.DefaultSparePartFor(id); ok {
		return &part
	}
	return nil
}

func (t *Tree) sortChildren(key string) {
	ids := t.children[key]
	sort.SliceStable(ids, func(i, j int) bool {
		return t.nodes[ids[i]].Position < t.nodes[ids[j]].Position
	})
}

func parentKey(parent *string) string {
	if parent == nil {
		return ""
	}
	return *parent
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
