package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParentPolicy decides which nodes are offered as parents. It narrows the
// choice; structural validity is checked separately.
type ParentPolicy func(t *Tree, candidate Node) bool

var (
	// RootsOnly keeps trees one level deep: only top-level nodes may parent.
	RootsOnly ParentPolicy = func(_ *Tree, candidate Node) bool { return candidate.IsRoot() }
	// AnyDepth allows any node as parent.
	AnyDepth ParentPolicy = func(*Tree, Node) bool { return true }
)

// PolicyByName maps a config value to a policy.
func PolicyByName(name string) (ParentPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "roots":
		return RootsOnly, nil
	case "any":
		return AnyDepth, nil
	}
	return nil, fmt.Errorf("unknown parent policy %q", name)
}

// NodeInput carries the fields of a node being created.
type NodeInput struct {
	Label              string  `json:"label"`
	ParentID           *string `json:"parent_id"`
	DefaultSparePartID *string `json:"default_spare_part_id"`
}

// OptionalID distinguishes "leave unchanged" from "set to null" in a patch.
type OptionalID struct {
	Set   bool
	Value *string
}

// SetID returns a patch value assigning id; an empty id clears the field.
func SetID(id string) OptionalID {
	return OptionalID{Set: true, Value: normalizeID(&id)}
}

// ClearID returns a patch value setting the field to null.
func ClearID() OptionalID {
	return OptionalID{Set: true}
}

// NodePatch lists the fields an edit changes.
type NodePatch struct {
	Label              *string
	ParentID           OptionalID
	DefaultSparePartID OptionalID
	Position           *int
}

// Change lists side effects a write has on other nodes.
type Change struct {
	// ClearedDefaults holds nodes that gained a child and so lost their
	// default spare part.
	ClearedDefaults []string
}

// ListPotentialParents returns the nodes that may be offered as parent of
// nodeID ("" for a node not created yet). Every node is enumerated before the
// policy filters, so relaxing the policy needs no structural change.
func (t *Tree) ListPotentialParents(nodeID string, policy ParentPolicy) []Node {
	if policy == nil {
		policy = RootsOnly
	}
	var out []Node
	for _, n := range t.Flatten() {
		if nodeID != "" && t.ValidateParentAssignment(nodeID, n.ID) != nil {
			continue
		}
		if policy(t, n) {
			out = append(out, n)
		}
	}
	return out
}

// ValidateParentAssignment rejects parenting a node under itself or under
// any of its descendants. An empty candidate makes the node a root.
func (t *Tree) ValidateParentAssignment(nodeID, candidateParentID string) error {
	if candidateParentID == "" {
		return nil
	}
	if candidateParentID == nodeID {
		return fmt.Errorf("node %s as its own parent: %w", nodeID, ErrCycleDetected)
	}
	if _, ok := t.nodes[candidateParentID]; !ok {
		return fmt.Errorf("parent %s: %w", candidateParentID, ErrNodeNotFound)
	}
	if nodeID == "" {
		return nil
	}
	if _, ok := t.nodes[nodeID]; !ok {
		return fmt.Errorf("node %s: %w", nodeID, ErrNodeNotFound)
	}
	if t.IsDescendant(nodeID, candidateParentID) {
		return fmt.Errorf("node %s under its descendant %s: %w", nodeID, candidateParentID, ErrCycleDetected)
	}
	return nil
}

// PrepareCreate validates a new node against the tree and returns it (without
// an id) together with the side effects of attaching it.
func (t *Tree) PrepareCreate(in NodeInput, policy ParentPolicy) (Node, Change, error) {
	n := Node{
		Label:              strings.TrimSpace(in.Label),
		ParentID:           normalizeID(in.ParentID),
		DefaultSparePartID: normalizeID(in.DefaultSparePartID),
	}
	if n.Label == "" {
		return Node{}, Change{}, ErrEmptyLabel
	}
	if n.DefaultSparePartID != nil && t.kind != Complaints {
		return Node{}, Change{}, ErrDefaultPartNotAllowed
	}
	if n.ParentID != nil {
		if err := t.checkParent("", *n.ParentID, policy); err != nil {
			return Node{}, Change{}, err
		}
	}
	n.Position = len(t.children[parentKey(n.ParentID)])
	return n, t.attachEffects(n.ParentID), nil
}

// PrepareUpdate applies patch to a copy of node id and validates the result.
func (t *Tree) PrepareUpdate(id string, patch NodePatch, policy ParentPolicy) (Node, Change, error) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, Change{}, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	if patch.Label != nil {
		n.Label = strings.TrimSpace(*patch.Label)
		if n.Label == "" {
			return Node{}, Change{}, ErrEmptyLabel
		}
	}
	var change Change
	if patch.ParentID.Set {
		next := normalizeID(patch.ParentID.Value)
		if !sameID(next, n.ParentID) {
			if next != nil {
				if err := t.checkParent(id, *next, policy); err != nil {
					return Node{}, Change{}, err
				}
			}
			n.ParentID = next
			n.Position = len(t.children[parentKey(next)])
			change = t.attachEffects(next)
		}
	}
	if patch.DefaultSparePartID.Set {
		n.DefaultSparePartID = normalizeID(patch.DefaultSparePartID.Value)
	}
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	if err := t.checkDefaultPart(n); err != nil {
		return Node{}, Change{}, err
	}
	return n, change, nil
}

// Remove deletes id and its subtree, returning every removed id.
func (t *Tree) Remove(id string) ([]string, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}
	removed := append([]string{id}, t.Descendants(id)...)
	t.detach(n)
	for _, rid := range removed {
		delete(t.nodes, rid)
		delete(t.children, rid)
	}
	return removed, nil
}

func (t *Tree) checkParent(nodeID, parentID string, policy ParentPolicy) error {
	if err := t.ValidateParentAssignment(nodeID, parentID); err != nil {
		return err
	}
	if policy == nil {
		policy = RootsOnly
	}
	if !policy(t, t.nodes[parentID]) {
		return fmt.Errorf("parent %s: %w", parentID, ErrParentNotAllowed)
	}
	return nil
}

func (t *Tree) checkDefaultPart(n Node) error {
	if n.DefaultSparePartID == nil {
		return nil
	}
	if t.kind != Complaints {
		return ErrDefaultPartNotAllowed
	}
	if len(t.children[n.ID]) > 0 {
		return fmt.Errorf("node %s: %w", n.ID, ErrDefaultPartOnBranch)
	}
	return nil
}

func (t *Tree) attachEffects(parent *string) Change {
	if parent == nil {
		return Change{}
	}
	if p, ok := t.nodes[*parent]; ok && p.DefaultSparePartID != nil {
		return Change{ClearedDefaults: []string{p.ID}}
	}
	return Change{}
}

func (t *Tree) detach(n Node) {
	key := parentKey(n.ParentID)
	ids := t.children[key]
	for i, cid := range ids {
		if cid == n.ID {
			t.children[key] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// MarshalJSON writes only the fields the patch changes; a cleared id is
// written as null.
func (p NodePatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4)
	if p.Label != nil {
		m["label"] = *p.Label
	}
	if p.ParentID.Set {
		m["parent_id"] = p.ParentID.Value
	}
	if p.DefaultSparePartID.Set {
		m["default_spare_part_id"] = p.DefaultSparePartID.Value
	}
	if p.Position != nil {
		m["position"] = *p.Position
	}
	return json.Marshal(m)
}

// UnmarshalJSON treats an absent key as unchanged and null as cleared.
func (p *NodePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out NodePatch
	if v, ok := raw["label"]; ok {
		var label string
		if err := json.Unmarshal(v, &label); err != nil {
			return fmt.Errorf("label: %w", err)
		}
		out.Label = &label
	}
	for key, dst := range map[string]*OptionalID{
		"parent_id":             &out.ParentID,
		"default_spare_part_id": &out.DefaultSparePartID,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var id *string
		if err := json.Unmarshal(v, &id); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = OptionalID{Set: true, Value: normalizeID(id)}
	}
	if v, ok := raw["position"]; ok {
		var pos int
		if err := json.Unmarshal(v, &pos); err != nil {
			return fmt.Errorf("position: %w", err)
		}
		out.Position = &pos
	}
	*p = out
	return nil
}
