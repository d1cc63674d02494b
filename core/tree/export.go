package tree

import (
	"io"
	"strings"
)

// maxIndent caps the number of tabs written in front of a line.
const maxIndent = 20

// lineState is threaded through every export step and returned updated.
type lineState struct {
	atLineStart bool // the last thing written was a line break
	written     bool // anything has been written at all
}

type exporter struct {
	w   io.StringWriter
	err error
}

func (x *exporter) put(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(s)
}

func (x *exporter) indent(level int) {
	tabs := min(level-1, maxIndent)
	if tabs > 0 {
		x.put(strings.Repeat("\t", tabs))
	}
}

// breakLine ends the current line unless we are already at the start of one.
func (x *exporter) breakLine(st lineState) lineState {
	if st.written && !st.atLineStart {
		x.put("\n")
		st.atLineStart = true
	}
	return st
}

// Export writes n in canonical text form. The root node writes only its children;
// any other node writes itself as the outermost block.
func Export(w io.Writer, n *Node) error {
	sw, ok := w.(io.StringWriter)
	if !ok {
		sw = stringWriter{w}
	}
	x := &exporter{w: sw}
	if n.parent == nil {
		st := lineState{}
		for _, c := range n.children {
			st = x.entity(c, 1, st)
		}
	} else {
		x.node(n, 1, lineState{})
	}
	return x.err
}

type stringWriter struct{ io.Writer }

func (s stringWriter) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

func (x *exporter) entity(e Entity, level int, st lineState) lineState {
	switch v := e.(type) {
	case *Node:
		return x.node(v, level, st)
	case *Attribute:
		return x.attribute(v, level, st)
	case *Entry:
		return x.entry(v, level, st)
	}
	return st
}

func (x *exporter) node(n *Node, level int, st lineState) lineState {
	st = x.breakLine(st)
	x.indent(level)
	if n.name != "" {
		x.put(quoteName(n.name))
		x.put("=")
	}
	x.put("{\n")
	st = lineState{atLineStart: true, written: true}

	for _, c := range n.children {
		st = x.entity(c, level+1, st)
	}

	if !st.atLineStart {
		x.put("\n")
	}
	x.indent(level)
	x.put("}")
	return lineState{atLineStart: false, written: true}
}

func (x *exporter) attribute(a *Attribute, level int, st lineState) lineState {
	st = x.breakLine(st)
	x.indent(level)
	x.put(quoteName(a.name))
	x.put("=")
	x.put(quoteValue(a.value, a.quoted))
	return lineState{atLineStart: false, written: true}
}

func (x *exporter) entry(e *Entry, level int, st lineState) lineState {
	switch {
	case st.atLineStart:
		x.indent(level)
	case st.written:
		x.put(" ")
	}
	x.put(quoteValue(e.value, e.quoted))
	return lineState{atLineStart: false, written: true}
}

func quoteValue(v string, quoted bool) string {
	if quoted {
		return `"` + v + `"`
	}
	return v
}

// quoteName quotes names that would not survive re-lexing as a bare token.
func quoteName(name string) string {
	if name == "" || strings.ContainsAny(name, " \t\r\n={}\"#") {
		return `"` + name + `"`
	}
	return name
}
