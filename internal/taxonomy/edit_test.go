package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCreate(t *testing.T) {
	tree := complaintTree(t)

	n, change, err := tree.PrepareCreate(NodeInput{Label: "  Water damage  "}, RootsOnly)
	require.NoError(t, err)
	assert.Equal(t, "Water damage", n.Label)
	assert.Nil(t, n.ParentID)
	assert.Equal(t, 2, n.Position)
	assert.Empty(t, change.ClearedDefaults)

	_, _, err = tree.PrepareCreate(NodeInput{Label: "   "}, RootsOnly)
	assert.ErrorIs(t, err, ErrEmptyLabel)

	_, _, err = tree.PrepareCreate(NodeInput{Label: "Deep", ParentID: strp("slow")}, RootsOnly)
	assert.ErrorIs(t, err, ErrParentNotAllowed)

	_, _, err = tree.PrepareCreate(NodeInput{Label: "Deep", ParentID: strp("slow")}, AnyDepth)
	assert.NoError(t, err)

	_, _, err = tree.PrepareCreate(NodeInput{Label: "Orphan", ParentID: strp("ghost")}, AnyDepth)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestPrepareCreate_UnderLeafWithDefaultClearsIt(t *testing.T) {
	tree := complaintTree(t)

	_, change, err := tree.PrepareCreate(NodeInput{Label: "Cracked", ParentID: strp("glass")}, AnyDepth)
	require.NoError(t, err)
	assert.Equal(t, []string{"glass"}, change.ClearedDefaults)
}

func TestPrepareCreate_ConditionTreeRejectsDefaultPart(t *testing.T) {
	tree, err := New(Conditions, []Node{{ID: "dial", Label: "Dial"}})
	require.NoError(t, err)

	_, _, err = tree.PrepareCreate(NodeInput{Label: "Faded", DefaultSparePartID: strp("dial-kit")}, RootsOnly)
	assert.ErrorIs(t, err, ErrDefaultPartNotAllowed)
}

func TestPrepareUpdate(t *testing.T) {
	tree := complaintTree(t)

	label := "Glass cracked"
	n, _, err := tree.PrepareUpdate("glass", NodePatch{Label: &label}, RootsOnly)
	require.NoError(t, err)
	assert.Equal(t, "Glass cracked", n.Label)
	assert.Equal(t, "crystal", *n.DefaultSparePartID)

	_, _, err = tree.PrepareUpdate("case", NodePatch{ParentID: SetID("case")}, AnyDepth)
	assert.ErrorIs(t, err, ErrCycleDetected)

	_, _, err = tree.PrepareUpdate("movement", NodePatch{DefaultSparePartID: SetID("mainspring")}, RootsOnly)
	assert.ErrorIs(t, err, ErrDefaultPartOnBranch)

	n, _, err = tree.PrepareUpdate("glass", NodePatch{DefaultSparePartID: ClearID()}, RootsOnly)
	require.NoError(t, err)
	assert.Nil(t, n.DefaultSparePartID)

	n, change, err := tree.PrepareUpdate("slow", NodePatch{ParentID: SetID("case")}, RootsOnly)
	require.NoError(t, err)
	assert.Equal(t, "case", *n.ParentID)
	assert.Empty(t, change.ClearedDefaults)

	_, _, err = tree.PrepareUpdate("ghost", NodePatch{Label: &label}, RootsOnly)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRemove_DropsSubtree(t *testing.T) {
	tree := complaintTree(t)

	removed, err := tree.Remove("movement")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"movement", "slow", "stopped"}, removed)
	assert.Equal(t, []string{"case", "glass"}, ids(tree.Flatten()))

	_, err = tree.Remove("movement")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNodePatchJSON_DistinguishesAbsentFromNull(t *testing.T) {
	var p NodePatch
	require.NoError(t, json.Unmarshal([]byte(`{"label":"Glass","parent_id":null}`), &p))
	require.NotNil(t, p.Label)
	assert.Equal(t, "Glass", *p.Label)
	assert.True(t, p.ParentID.Set)
	assert.Nil(t, p.ParentID.Value)
	assert.False(t, p.DefaultSparePartID.Set)
	assert.Nil(t, p.Position)

	require.NoError(t, json.Unmarshal([]byte(`{"default_spare_part_id":"crystal","position":3}`), &p))
	assert.Nil(t, p.Label)
	assert.Equal(t, "crystal", *p.DefaultSparePartID.Value)
	assert.Equal(t, 3, *p.Position)

	out, err := json.Marshal(NodePatch{ParentID: ClearID()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"parent_id":null}`, string(out))
}
