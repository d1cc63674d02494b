package tree

import "strings"

type maskMode int

const (
	maskContains maskMode = iota
	maskPrefix
	maskSuffix
)

// mask is a compiled Cleanup pattern.
type mask struct {
	mode          maskMode
	text          string
	caseSensitive bool
}

// compileMask interprets a leading or trailing '*'. A mask starred at both ends,
// or not starred at all, matches as a substring. Inner stars are dropped.
func compileMask(pattern string, caseSensitive bool) mask {
	m := mask{mode: maskContains, caseSensitive: caseSensitive}
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")
	switch {
	case leading && !trailing:
		m.mode = maskSuffix
	case trailing && !leading:
		m.mode = maskPrefix
	}
	m.text = strings.ReplaceAll(pattern, "*", "")
	if !caseSensitive {
		m.text = strings.ToLower(m.text)
	}
	return m
}

func (m mask) match(s string) bool {
	if !m.caseSensitive {
		s = strings.ToLower(s)
	}
	switch m.mode {
	case maskPrefix:
		return strings.HasPrefix(s, m.text)
	case maskSuffix:
		return strings.HasSuffix(s, m.text)
	default:
		return strings.Contains(s, m.text)
	}
}

// Cleanup removes, at every level below n, each child whose name or value matches
// pattern, then recurses into the surviving child nodes. Survivors keep their order.
// Cleanup mutates the tree in place and must not run concurrently with readers.
func (n *Node) Cleanup(pattern string, caseSensitive bool) {
	n.cleanup(compileMask(pattern, caseSensitive))
}

func (n *Node) cleanup(m mask) {
	kept := n.children[:0]
	for _, c := range n.children {
		if m.match(c.Name()) || m.match(c.Value()) {
			continue
		}
		kept = append(kept, c)
	}
	removed := len(n.children) - len(kept)
	for i := len(kept); i < len(n.children); i++ {
		n.children[i] = nil
	}
	n.children = kept
	if removed > 0 && n.index != nil {
		n.Seal()
	}

	for _, c := range n.children {
		if sub, ok := c.(*Node); ok {
			sub.cleanup(m)
		}
	}
}
