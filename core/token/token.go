// Package token defines the contract between token producers (the text lexer and
// the binary opcode decoder) and the parse engine, and provides the text lexer.
package token

// Structural literals. They are recognized by exact string equality, so a value
// whose text equals one of them is indistinguishable from its structural use.
const (
	Equals     = "="
	OpenBlock  = "{"
	CloseBlock = "}"
)

// Step is the outcome of advancing a Source by one unit of input.
type Step struct {
	// Literal is the token text. Meaningful only when Ready is set.
	Literal string
	// Ready is false while bytes for one token are still being accumulated.
	Ready bool
	// Quoted reports whether the literal was a quoted string.
	Quoted bool
	// Unresolved is set when a binary opcode had no dictionary entry; Literal
	// then holds a best-effort rendering of the opcode.
	Unresolved string
}

// Token returns a ready step for literal.
func Token(literal string, quoted bool) Step {
	return Step{Literal: literal, Ready: true, Quoted: quoted}
}

// IsStructural reports whether the step carries one of the structural literals.
func (s Step) IsStructural() bool {
	if !s.Ready {
		return false
	}
	switch s.Literal {
	case Equals, OpenBlock, CloseBlock:
		return true
	}
	return false
}

// Source yields tokens in file order.
type Source interface {
	// Next advances the source. path holds the names of the open containers,
	// outermost first, root excluded. A returned error is fatal for the parse.
	Next(path []string) (Step, error)
	// Done reports whether the input is exhausted.
	Done() bool
	// Offset is the current input position.
	Offset() int
	// Size is the total input length in the same unit as Offset.
	Size() int
}
