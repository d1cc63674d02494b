// Package nodeset keeps named lookup tables from numeric ids to parsed nodes.
// Tables are built by callers after parsing, for example to index provinces or
// characters by their id.
package nodeset

import (
	"sort"
	"strconv"
	"sync"

	"github.com/FocuswithJustin/ceparser/core/tree"
)

// Set maps ids to nodes.
type Set map[uint16]*tree.Node

// Registry holds sets by name. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]Set
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]Set)}
}

// Add stores set under name, replacing any previous set.
func (r *Registry) Add(name string, set Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[name] = set
}

// Get returns the set stored under name. A missing name yields an empty set,
// never nil.
func (r *Registry) Get(name string) Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sets[name]; ok && s != nil {
		return s
	}
	return Set{}
}

// Remove deletes the set stored under name. Unknown names are ignored.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, name)
}

// Names returns the stored names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName builds a set from nodes whose names are numeric ids, such as the
// children of a provinces block. Nodes with other names are skipped; the first
// node for an id wins.
func ByName(nodes []*tree.Node) Set {
	return build(nodes, func(n *tree.Node) string { return n.Name() })
}

// ByAttribute builds a set keyed by the numeric value of attribute attr.
func ByAttribute(nodes []*tree.Node, attr string) Set {
	return build(nodes, func(n *tree.Node) string { return n.AttributeValue(attr) })
}

func build(nodes []*tree.Node, key func(*tree.Node) string) Set {
	set := make(Set, len(nodes))
	for _, n := range nodes {
		id, err := strconv.ParseUint(key(n), 10, 16)
		if err != nil {
			continue
		}
		if _, dup := set[uint16(id)]; !dup {
			set[uint16(id)] = n
		}
	}
	return set
}
