package tree

import (
	"strings"
	"unicode"
)

// IndexThreshold is the child count above which Seal builds a name index.
const IndexThreshold = 256

// Node is a container of ordered child entities.
type Node struct {
	name     string
	depth    int
	parent   *Node // back reference only; children are owned by their parent
	children []Entity
	index    map[string]int
}

// NewRoot creates an empty root node at depth 0.
func NewRoot() *Node {
	return &Node{}
}

// Name returns the container name; empty for the root and anonymous blocks.
func (n *Node) Name() string { return n.name }

// Value always returns the empty string.
func (n *Node) Value() string { return "" }

// Kind returns KindNode.
func (n *Node) Kind() Kind { return KindNode }

func (*Node) entity() {}

// Depth returns the nesting level; the root is 0.
func (n *Node) Depth() int { return n.depth }

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child entities in insertion order. The slice must not be modified.
func (n *Node) Children() []Entity { return n.children }

// Len returns the number of direct children.
func (n *Node) Len() int { return len(n.children) }

// Indexed reports whether the name index has been built.
func (n *Node) Indexed() bool { return n.index != nil }

// AddNode appends a child container named name (empty for anonymous) and returns it.
func (n *Node) AddNode(name string) *Node {
	c := &Node{name: name, depth: n.depth + 1, parent: n}
	n.children = append(n.children, c)
	if n.index != nil {
		key := foldKey(name)
		if _, seen := n.index[key]; !seen {
			n.index[key] = len(n.children) - 1
		}
	}
	return c
}

// AddEntry appends a bare value.
func (n *Node) AddEntry(value string, quoted bool) *Entry {
	e := &Entry{value: value, quoted: quoted}
	n.children = append(n.children, e)
	return e
}

// AddAttribute appends a name=value pair.
func (n *Node) AddAttribute(name, value string, quoted bool) *Attribute {
	a := &Attribute{name: name, value: value, quoted: quoted}
	n.children = append(n.children, a)
	return a
}

// Seal marks the container as finished. When it holds more than IndexThreshold
// children a case-folded name index of its child nodes is built; otherwise any
// previous index is dropped. Nodes added after Seal are indexed as they arrive.
func (n *Node) Seal() {
	if len(n.children) <= IndexThreshold {
		n.index = nil
		return
	}
	n.index = make(map[string]int, len(n.children))
	for i, c := range n.children {
		if _, ok := c.(*Node); !ok {
			continue
		}
		key := foldKey(c.Name())
		if _, seen := n.index[key]; !seen {
			n.index[key] = i
		}
	}
}

// foldKey maps every rune to the smallest member of its simple case-folding
// orbit, so two names share a key exactly when strings.EqualFold holds.
func foldKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		low := r
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			low = min(low, f)
		}
		b.WriteRune(low)
	}
	return b.String()
}

// DropIndex discards the name index so lookups fall back to linear scans.
func (n *Node) DropIndex() { n.index = nil }

// HasParent reports whether the node has an enclosing node.
func (n *Node) HasParent() bool { return n.parent != nil }

// HasParentNamed reports whether the node sits below a non-root parent called name.
func (n *Node) HasParentNamed(name string) bool {
	return n.depth > 1 && strings.EqualFold(n.parent.name, name)
}

// HasAncestorNamed reports whether the ancestor levels steps up is called name.
// A levels value of 1 is the direct parent.
func (n *Node) HasAncestorNamed(name string, levels int) bool {
	if levels <= 1 {
		return n.HasParentNamed(name)
	}
	if n.depth > 1 {
		return n.parent.HasAncestorNamed(name, levels-1)
	}
	return false
}

// HasAncestors reports whether at least levels non-root ancestors exist above n.
func (n *Node) HasAncestors(levels int) bool {
	return n.depth-1 >= levels
}

// Top returns the root of the tree n belongs to.
func (n *Node) Top() *Node {
	t := n
	for t.parent != nil {
		t = t.parent
	}
	return t
}

// Path returns the names of n and its ancestors, root excluded, outermost first.
func (n *Node) Path() []string {
	if n.parent == nil {
		return nil
	}
	path := make([]string, n.depth)
	for t, i := n, n.depth-1; t.parent != nil && i >= 0; t, i = t.parent, i-1 {
		path[i] = t.name
	}
	return path
}

func (n *Node) String() string {
	var b strings.Builder
	_ = Export(&b, n)
	return b.String()
}
