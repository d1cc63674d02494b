package tree

// Kind identifies the concrete type behind an Entity.
type Kind int

const (
	// KindNode is a container.
	KindNode Kind = iota
	// KindEntry is an unnamed bare value.
	KindEntry
	// KindAttribute is a name=value pair.
	KindAttribute
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEntry:
		return "entry"
	case KindAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// Entity is one child of a Node. The set of implementations is closed:
// *Node, *Entry and *Attribute.
type Entity interface {
	// Name returns the entity name; empty for entries and anonymous nodes.
	Name() string
	// Value returns the entity value; empty for nodes.
	Value() string
	// Kind reports which concrete type the entity is.
	Kind() Kind

	entity()
}

// Entry is an unnamed bare value.
type Entry struct {
	value  string
	quoted bool
}

// Name always returns the empty string.
func (e *Entry) Name() string { return "" }

// Value returns the entry text.
func (e *Entry) Value() string { return e.value }

// Kind returns KindEntry.
func (e *Entry) Kind() Kind { return KindEntry }

// Quoted reports whether the value was quoted in the source.
func (e *Entry) Quoted() bool { return e.quoted }

func (e *Entry) String() string { return e.value }

func (*Entry) entity() {}

// Attribute is a name=value pair.
type Attribute struct {
	name   string
	value  string
	quoted bool
}

// Name returns the left-hand side.
func (a *Attribute) Name() string { return a.name }

// Value returns the right-hand side.
func (a *Attribute) Value() string { return a.value }

// Kind returns KindAttribute.
func (a *Attribute) Kind() Kind { return KindAttribute }

// Quoted reports whether the value was quoted in the source.
func (a *Attribute) Quoted() bool { return a.quoted }

func (a *Attribute) String() string {
	if a.quoted {
		return a.name + " = \"" + a.value + "\""
	}
	return a.name + " = " + a.value
}

func (*Attribute) entity() {}

// Pair is a detached attribute name and value.
type Pair struct {
	Name  string
	Value string
}

// DescendantCount returns the number of entities below e. Entries and attributes
// have none; a node counts every child plus that child's descendants.
func DescendantCount(e Entity) int {
	n, ok := e.(*Node)
	if !ok {
		return 0
	}
	count := 0
	for _, c := range n.children {
		count += 1 + DescendantCount(c)
	}
	return count
}
