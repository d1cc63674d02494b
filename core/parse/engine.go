// Package parse implements the state machine that turns a token stream into an
// entity tree and a diagnostic log.
//
// Tokens are classified by their text only: "=", "{" and "}" are structural
// wherever they appear. A token followed by "=" may become an attribute name or
// a container name; a token followed by anything else is committed as a bare
// entry. A bare token directly followed by "{" never names the block: the block
// is an anonymous sibling of the entry.
package parse

import (
	"fmt"
	"runtime/debug"

	"github.com/FocuswithJustin/ceparser/core/token"
	"github.com/FocuswithJustin/ceparser/core/tree"
)

// DefaultProgressInterval is the input distance between progress reports.
const DefaultProgressInterval = 100000

// Structural diagnostic details.
const (
	detailEqualsWithoutLHS = "Unexpected equals block found, without left-hand side."
	detailDuplicateEquals  = "Duplicated equals block found, while looking for right-hand side."
	detailBraceForRHS      = "Closing brace found, while looking for right-hand side."
	detailExcessBrace      = "Closing brace found, without an open container."
	detailMissingRHS       = "End of input found, while looking for right-hand side."
)

// Options configure an Engine. The zero value is usable.
type Options struct {
	// Strict records an excess closing brace at the root as a structural error.
	// By default it is dropped silently.
	Strict bool
	// LegacySeverity scores every unresolved-token diagnostic as 1.
	LegacySeverity bool
	// ProgressInterval is the input distance between progress reports.
	ProgressInterval int
	// Progress receives the parsed fraction of the input, in [0, 1].
	Progress func(fraction float64)
	// ObserverPanic is told about a Progress callback that panicked.
	ObserverPanic func(recovered any)
}

// Result is the outcome of one parse.
type Result struct {
	Root *tree.Node
	Log  *Log
}

// Engine runs parses. It holds no per-parse state and may be reused.
type Engine struct {
	opts Options
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &Engine{opts: opts}
}

// Run consumes src to the end and returns the tree and the diagnostics. Content
// problems never fail the call: they are recorded in the log, and a fault in
// the source aborts the loop with a fatal diagnostic, keeping the partial tree.
func (e *Engine) Run(src token.Source) *Result {
	root := tree.NewRoot()
	p := &parser{
		opts:  e.opts,
		src:   src,
		log:   &Log{},
		stack: []*tree.Node{root},
	}
	p.loop()
	p.finish()
	p.log.Resolve(e.opts.LegacySeverity)
	p.report(1)
	return &Result{Root: root, Log: p.log}
}

type state int

const (
	looking state = iota
	pendingLHS
	lookingForRHS
)

type parser struct {
	opts  Options
	src   token.Source
	log   *Log
	stack []*tree.Node
	path  []string

	state state
	lhs   token.Step
	pos   int

	nextReport int
}

func (p *parser) loop() {
	defer func() {
		if r := recover(); r != nil {
			p.fatal(fmt.Sprint(r), string(debug.Stack()))
		}
	}()

	for !p.src.Done() {
		p.progress()
		step, err := p.src.Next(p.path)
		p.pos = p.src.Offset()
		if err != nil {
			p.fatal(err.Error(), string(debug.Stack()))
			return
		}
		if step.Ready {
			p.feed(step)
		}
	}
}

func (p *parser) feed(t token.Step) {
	switch p.state {
	case looking:
		switch t.Literal {
		case token.Equals:
			p.structural(detailEqualsWithoutLHS)
		case token.OpenBlock:
			p.open("", "")
		case token.CloseBlock:
			p.close()
		default:
			p.lhs, p.state = t, pendingLHS
		}

	case pendingLHS:
		switch t.Literal {
		case token.Equals:
			p.state = lookingForRHS
		case token.OpenBlock:
			p.entry(p.lhs)
			p.open("", "")
			p.state = looking
		case token.CloseBlock:
			p.entry(p.lhs)
			p.close()
			p.state = looking
		default:
			p.entry(p.lhs)
			p.lhs = t
		}

	case lookingForRHS:
		switch t.Literal {
		case token.Equals:
			p.structural(detailDuplicateEquals)
		case token.OpenBlock:
			p.open(p.lhs.Literal, p.lhs.Unresolved)
			p.state = looking
		case token.CloseBlock:
			p.structural(detailBraceForRHS)
		default:
			p.attribute(p.lhs, t)
			p.state = looking
		}
	}
}

func (p *parser) top() *tree.Node { return p.stack[len(p.stack)-1] }

func (p *parser) open(name, unresolved string) {
	n := p.top().AddNode(name)
	p.unresolved(unresolved, n)
	p.stack = append(p.stack, n)
	p.path = append(p.path, name)
}

// close pops the innermost container. The root is never popped.
func (p *parser) close() {
	if len(p.stack) <= 1 {
		if p.opts.Strict {
			p.structural(detailExcessBrace)
		}
		return
	}
	n := p.top()
	p.stack = p.stack[:len(p.stack)-1]
	p.path = p.path[:len(p.path)-1]
	n.Seal()
}

func (p *parser) entry(t token.Step) {
	e := p.top().AddEntry(t.Literal, t.Quoted)
	p.unresolved(t.Unresolved, e)
}

func (p *parser) attribute(lhs, rhs token.Step) {
	a := p.top().AddAttribute(lhs.Literal, rhs.Literal, rhs.Quoted)
	p.unresolved(lhs.Unresolved, a)
	p.unresolved(rhs.Unresolved, a)
}

func (p *parser) unresolved(details string, e tree.Entity) {
	if details == "" {
		return
	}
	p.log.Add(&Error{Position: p.pos, Category: CategoryUnresolved, Details: details, Entity: e})
}

func (p *parser) structural(details string) {
	p.log.Add(&Error{Position: p.pos, Category: CategoryStructural, Details: details, Severity: SeverityStructural})
}

func (p *parser) fatal(msg, stack string) {
	p.log.Add(&Error{
		Position: p.pos,
		Category: CategoryFatal,
		Details:  msg + "\n\n" + stack,
		Severity: SeverityFatal,
	})
}

// finish commits a token still held at the end of input and seals every
// container left open.
func (p *parser) finish() {
	if p.log.Fatal() == nil {
		switch p.state {
		case pendingLHS:
			p.entry(p.lhs)
		case lookingForRHS:
			p.structural(detailMissingRHS)
		}
	}
	for i := len(p.stack) - 1; i >= 0; i-- {
		p.stack[i].Seal()
	}
	p.stack = p.stack[:1]
	p.path = nil
}

// progress reports when the position has reached the next multiple of the
// interval since the last report.
func (p *parser) progress() {
	if p.pos < p.nextReport {
		return
	}
	iv := p.opts.ProgressInterval
	if iv <= 0 {
		iv = DefaultProgressInterval
	}
	p.nextReport = (p.pos/iv + 1) * iv
	size := p.src.Size()
	if size <= 0 {
		return
	}
	p.report(float64(p.pos) / float64(size))
}

// report calls the observer. A panicking observer is isolated from the parse.
func (p *parser) report(fraction float64) {
	if p.opts.Progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && p.opts.ObserverPanic != nil {
			p.opts.ObserverPanic(r)
		}
	}()
	p.opts.Progress(fraction)
}
