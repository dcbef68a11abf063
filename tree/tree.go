// Package tree stores explored executions as paths from a shared root.
// Executions with a common prefix of labels share the nodes of that prefix.
package tree

import (
	"fmt"
	"strconv"
	"strings"
)

type Tree[T any] struct {
	payload  T
	parent   *Tree[T]
	children []*Tree[T]
	depth    int
	// Number of paths inserted through this node
	count int
	eq    func(a, b T) bool
}

// Create a new root node. eq decides whether two payloads are the same node.
func New[T any](payload T, eq func(a, b T) bool) *Tree[T] {
	return &Tree[T]{
		payload:  payload,
		children: []*Tree[T]{},
		eq:       eq,
	}
}

// Returns the total number of nodes in the tree
func (t *Tree[T]) Len() int {
	n := 1
	for _, child := range t.children {
		n += child.Len()
	}
	return n
}

// Adds a new child with the provided payload and returns it
func (t *Tree[T]) AddChild(payload T) *Tree[T] {
	child := &Tree[T]{
		payload:  payload,
		parent:   t,
		children: []*Tree[T]{},
		depth:    t.depth + 1,
		eq:       t.eq,
	}
	t.children = append(t.children, child)
	return child
}

// Returns the first child with the provided payload, or nil
func (t *Tree[T]) GetChild(payload T) *Tree[T] {
	for _, node := range t.children {
		if t.eq(payload, node.payload) {
			return node
		}
	}
	return nil
}

func (t *Tree[T]) HasChild(payload T) bool {
	return t.GetChild(payload) != nil
}

// Add a path below t, reusing the nodes of the longest existing prefix.
// Returns the last node of the path.
func (t *Tree[T]) Insert(path []T) *Tree[T] {
	node := t
	node.count++
	for _, p := range path {
		next := node.GetChild(p)
		if next == nil {
			next = node.AddChild(p)
		}
		next.count++
		node = next
	}
	return node
}

// Insert every path of o below t. The roots are assumed to match.
func (t *Tree[T]) Merge(o *Tree[T]) {
	t.count += o.count
	for _, oc := range o.children {
		child := t.GetChild(oc.payload)
		if child == nil {
			child = t.AddChild(oc.payload)
		}
		child.Merge(oc)
	}
}

// Returns the number of paths inserted through this node
func (t *Tree[T]) Count() int {
	return t.count
}

// Returns the paths from the root to every leaf
func (t *Tree[T]) Paths() [][]T {
	if t.IsLeafNode() {
		return [][]T{{}}
	}
	var out [][]T
	for _, child := range t.children {
		for _, p := range child.Paths() {
			out = append(out, append([]T{child.payload}, p...))
		}
	}
	return out
}

func (t *Tree[T]) String() string {
	out := strings.Builder{}
	for i := 0; i < t.depth; i++ {
		out.WriteString("-")
	}
	out.WriteString(fmt.Sprintf("%v\n", t.payload))
	for _, child := range t.children {
		out.WriteString(child.String())
	}
	return out.String()
}

func (t *Tree[T]) IsRoot() bool {
	return t.parent == nil
}

func (t *Tree[T]) IsLeafNode() bool {
	return len(t.children) == 0
}

// Returns the leaves below this node
func (t *Tree[T]) GetAllLeafNodes() []*Tree[T] {
	if t.IsLeafNode() {
		return []*Tree[T]{t}
	}
	var leaves []*Tree[T]
	for _, child := range t.children {
		leaves = append(leaves, child.GetAllLeafNodes()...)
	}
	return leaves
}

// Returns true if the search function is true for some leaf node
func (t *Tree[T]) SearchLeafNodes(search func(T) bool) bool {
	for _, leaf := range t.GetAllLeafNodes() {
		if search(leaf.payload) {
			return true
		}
	}
	return false
}

// Returns true if the search function is true for some node.
// Performs a DFS to find the node
func (t *Tree[T]) DepthFirstSearch(search func(T) bool) bool {
	if search(t.payload) {
		return true
	}
	for _, child := range t.children {
		if child.DepthFirstSearch(search) {
			return true
		}
	}
	return false
}

func (t *Tree[T]) Payload() T {
	return t.payload
}

func (t *Tree[T]) Parent() *Tree[T] {
	return t.parent
}

func (t *Tree[T]) Depth() int {
	return t.depth
}

func (t *Tree[T]) Children() []*Tree[T] {
	return t.children
}

// Returns the tree in Newick format. Labels are quoted.
func (t *Tree[T]) Newick() string {
	out := strings.Builder{}
	if len(t.children) > 0 {
		out.WriteString("(")
		for i, child := range t.children {
			if i > 0 {
				out.WriteString(",")
			}
			out.WriteString(child.Newick())
		}
		out.WriteString(")")
	}
	out.WriteString(strconv.Quote(fmt.Sprint(t.payload)))
	if t.IsRoot() {
		out.WriteString(";")
	}
	return out.String()
}
