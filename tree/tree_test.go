package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strEq(a, b string) bool { return a == b }

func TestTreeAddChild(t *testing.T) {
	tree := New("Tree 1", strEq)
	tree.AddChild("Tree 1-1")
	child := tree.AddChild("Tree 1-2")
	child.AddChild("Tree 1-2-1")

	assert.True(t, tree.IsRoot())
	assert.False(t, child.IsRoot())
	assert.Equal(t, 4, tree.Len())
	assert.Len(t, tree.Children(), 2)
	assert.Equal(t, 1, child.Depth())
	assert.True(t, tree.HasChild("Tree 1-2"))
	assert.Nil(t, tree.GetChild("Tree 1-3"))

	assert.True(t, tree.DepthFirstSearch(func(s string) bool { return s == "Tree 1-2-1" }))
	assert.False(t, tree.SearchLeafNodes(func(s string) bool { return s == "Tree 1-2" }))
	assert.True(t, tree.SearchLeafNodes(func(s string) bool { return s == "Tree 1-1" }))
}

func TestInsertSharesPrefixes(t *testing.T) {
	tree := New("", strEq)
	tree.Insert([]string{"a", "b", "c"})
	tree.Insert([]string{"a", "b", "d"})
	leaf := tree.Insert([]string{"a", "e"})

	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, 3, tree.Count())
	assert.Equal(t, 3, tree.GetChild("a").Count())
	assert.Equal(t, 2, leaf.Depth())
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"a", "b", "d"}, {"a", "e"}}, tree.Paths())
}

func TestMerge(t *testing.T) {
	a := New("", strEq)
	a.Insert([]string{"x", "y"})
	b := New("", strEq)
	b.Insert([]string{"x", "z"})
	b.Insert([]string{"w"})

	a.Merge(b)
	assert.Equal(t, 3, a.Count())
	assert.Len(t, a.GetAllLeafNodes(), 3)
	require.NotNil(t, a.GetChild("x"))
	assert.Equal(t, 2, a.GetChild("x").Count())
}

func TestNewickQuotesLabels(t *testing.T) {
	tree := New("root", strEq)
	tree.Insert([]string{"(1, 1):W x, 1"})
	assert.Equal(t, `("(1, 1):W x, 1")"root";`, tree.Newick())
}
