package tree

import "strings"

// Wildcard matches every child node in a Subnodes path segment.
const Wildcard = "*"

// child returns the first child node called name, using the index when present.
func (n *Node) child(name string) *Node {
	if n.index != nil {
		i, ok := n.index[foldKey(name)]
		if !ok {
			return nil
		}
		return n.children[i].(*Node)
	}
	for _, c := range n.children {
		if sub, ok := c.(*Node); ok && strings.EqualFold(sub.name, name) {
			return sub
		}
	}
	return nil
}

// Subnode follows path one segment at a time and returns the node at its end,
// or nil when any segment is missing or path is empty.
func (n *Node) Subnode(path ...string) *Node {
	if len(path) == 0 {
		return nil
	}
	cur := n
	for _, name := range path {
		cur = cur.child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// HasSubnode reports whether a direct child node called name exists.
func (n *Node) HasSubnode(name string) bool {
	return n.child(name) != nil
}

// Subnodes returns every child node matched by path. With no path it returns all
// direct child nodes. Intermediate segments follow the first matching node, a
// Wildcard segment fans out over all child nodes, and the last segment returns
// every node with that name.
func (n *Node) Subnodes(path ...string) []*Node {
	if len(path) == 0 {
		return n.SubnodesFunc(nil)
	}
	head, rest := path[0], path[1:]
	if head == Wildcard {
		if len(rest) == 0 {
			return n.SubnodesFunc(nil)
		}
		var out []*Node
		for _, c := range n.SubnodesFunc(nil) {
			out = append(out, c.Subnodes(rest...)...)
		}
		return out
	}
	if len(rest) == 0 {
		return n.SubnodesFunc(func(c *Node) bool { return strings.EqualFold(c.name, head) })
	}
	next := n.child(head)
	if next == nil {
		return nil
	}
	return next.Subnodes(rest...)
}

// SubnodesFunc returns the direct child nodes accepted by match; a nil match accepts all.
func (n *Node) SubnodesFunc(match func(*Node) bool) []*Node {
	var out []*Node
	for _, c := range n.children {
		if sub, ok := c.(*Node); ok && (match == nil || match(sub)) {
			out = append(out, sub)
		}
	}
	return out
}

// AllSubnodes returns every node below n in pre-order.
func (n *Node) AllSubnodes() []*Node {
	var out []*Node
	n.Walk(func(e Entity) bool {
		if sub, ok := e.(*Node); ok {
			out = append(out, sub)
		}
		return true
	})
	return out
}

// Walk visits every descendant of n in pre-order. Returning false from fn skips
// the descendants of that entity.
func (n *Node) Walk(fn func(Entity) bool) {
	for _, c := range n.children {
		if !fn(c) {
			continue
		}
		if sub, ok := c.(*Node); ok {
			sub.Walk(fn)
		}
	}
}

// SubnodeAt returns the index-th child node, counting nodes only.
func (n *Node) SubnodeAt(index int) *Node {
	i := 0
	for _, c := range n.children {
		if sub, ok := c.(*Node); ok {
			if i == index {
				return sub
			}
			i++
		}
	}
	return nil
}

// PathExists reports whether path resolves to a node. When lastIsAttribute is set
// the final segment may also name an attribute of the preceding node.
func (n *Node) PathExists(lastIsAttribute bool, path ...string) bool {
	cur := n
	for i, name := range path {
		next := cur.child(name)
		if next == nil {
			if lastIsAttribute && i == len(path)-1 {
				return cur.HasAttribute(name)
			}
			return false
		}
		cur = next
	}
	return true
}

func (n *Node) attributes() []*Attribute {
	var out []*Attribute
	for _, c := range n.children {
		if a, ok := c.(*Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// AttributeValue returns the value of the first attribute called name, or "".
func (n *Node) AttributeValue(name string) string {
	if name == "" {
		return ""
	}
	for _, c := range n.children {
		if a, ok := c.(*Attribute); ok && strings.EqualFold(a.name, name) {
			return a.value
		}
	}
	return ""
}

// AttributeValueAt returns the value of the index-th attribute, or "".
func (n *Node) AttributeValueAt(index int) string {
	attrs := n.attributes()
	if index < 0 || index >= len(attrs) {
		return ""
	}
	return attrs[index].value
}

// AttributeValues returns the values of every attribute called name.
func (n *Node) AttributeValues(name string) []string {
	var out []string
	for _, a := range n.attributes() {
		if strings.EqualFold(a.name, name) {
			out = append(out, a.value)
		}
	}
	return out
}

// AllAttributeValues returns the values of every attribute.
func (n *Node) AllAttributeValues() []string {
	var out []string
	for _, a := range n.attributes() {
		out = append(out, a.value)
	}
	return out
}

// AttributeName returns the name of the first attribute whose value is value, or "".
func (n *Node) AttributeName(value string) string {
	if value == "" {
		return ""
	}
	for _, a := range n.attributes() {
		if strings.EqualFold(a.value, value) {
			return a.name
		}
	}
	return ""
}

// AttributeNameAt returns the name of the index-th attribute, or "".
func (n *Node) AttributeNameAt(index int) string {
	attrs := n.attributes()
	if index < 0 || index >= len(attrs) {
		return ""
	}
	return attrs[index].name
}

// AttributeNames returns the names of every attribute whose value is value.
func (n *Node) AttributeNames(value string) []string {
	var out []string
	for _, a := range n.attributes() {
		if strings.EqualFold(a.value, value) {
			out = append(out, a.name)
		}
	}
	return out
}

// AllAttributeNames returns the names of every attribute.
func (n *Node) AllAttributeNames() []string {
	var out []string
	for _, a := range n.attributes() {
		out = append(out, a.name)
	}
	return out
}

// Attributes returns every attribute as a detached pair.
func (n *Node) Attributes() []Pair {
	var out []Pair
	for _, a := range n.attributes() {
		out = append(out, Pair{Name: a.name, Value: a.value})
	}
	return out
}

// AttributeAt returns the index-th attribute as a pair.
func (n *Node) AttributeAt(index int) (Pair, bool) {
	attrs := n.attributes()
	if index < 0 || index >= len(attrs) {
		return Pair{}, false
	}
	return Pair{Name: attrs[index].name, Value: attrs[index].value}, true
}

// EntryAt returns the value of the index-th entry, or "".
func (n *Node) EntryAt(index int) string {
	i := 0
	for _, c := range n.children {
		if e, ok := c.(*Entry); ok {
			if i == index {
				return e.value
			}
			i++
		}
	}
	return ""
}

// Entries returns the values of every entry.
func (n *Node) Entries() []string {
	var out []string
	for _, c := range n.children {
		if e, ok := c.(*Entry); ok {
			out = append(out, e.value)
		}
	}
	return out
}

// AttributeExists reports whether an attribute name=value exists.
func (n *Node) AttributeExists(name, value string) bool {
	for _, a := range n.attributes() {
		if strings.EqualFold(a.name, name) && strings.EqualFold(a.value, value) {
			return true
		}
	}
	return false
}

// HasAttribute reports whether an attribute called name exists.
func (n *Node) HasAttribute(name string) bool {
	for _, a := range n.attributes() {
		if strings.EqualFold(a.name, name) {
			return true
		}
	}
	return false
}

// HasAttributeValue reports whether any attribute has the given value.
func (n *Node) HasAttributeValue(value string) bool {
	for _, a := range n.attributes() {
		if strings.EqualFold(a.value, value) {
			return true
		}
	}
	return false
}

// HasEntry reports whether an entry with the given value exists.
func (n *Node) HasEntry(value string) bool {
	for _, c := range n.children {
		if e, ok := c.(*Entry); ok && strings.EqualFold(e.value, value) {
			return true
		}
	}
	return false
}
