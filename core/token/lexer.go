package token

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"golang.org/x/text/encoding"
)

// textLexer defines the tokens of the brace-delimited text syntax.
// Order matters: comments and strings must win over bare tokens.
var textLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comment runs from # to end of line
	{Name: "Comment", Pattern: `#[^\n]*`},
	// Quoted string, no escapes; an unterminated one runs to end of input
	{Name: "String", Pattern: `"[^"]*"?`},
	// Structural characters
	{Name: "Operator", Pattern: `[={}]`},
	// Anything else up to whitespace or a structural character
	{Name: "Bare", Pattern: `[^\s={}"#]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var (
	symbols        = textLexer.Symbols()
	commentType    = symbols["Comment"]
	stringType     = symbols["String"]
	whitespaceType = symbols["Whitespace"]
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextLexer is a Source over the text encoding.
type TextLexer struct {
	lex    lexer.Lexer
	size   int
	offset int
	done   bool
}

// NewTextLexer decodes data with enc (nil means UTF-8) and prepares it for lexing.
// A UTF-8 byte order mark overrides enc.
func NewTextLexer(name string, data []byte, enc encoding.Encoding) (*TextLexer, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
		enc = nil
	}
	text := data
	if enc != nil {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		text = decoded
	}
	lex, err := textLexer.LexString(name, string(text))
	if err != nil {
		return nil, fmt.Errorf("lex %s: %w", name, err)
	}
	return &TextLexer{lex: lex, size: len(text)}, nil
}

// Next returns the next significant token. Comments and whitespace are skipped.
// The container path is not needed by the text syntax.
func (l *TextLexer) Next(_ []string) (Step, error) {
	for !l.done {
		tok, err := l.lex.Next()
		if err != nil {
			return Step{}, err
		}
		if tok.EOF() {
			l.done = true
			l.offset = l.size
			return Step{}, nil
		}
		l.offset = tok.Pos.Offset + len(tok.Value)
		switch tok.Type {
		case commentType, whitespaceType:
			continue
		case stringType:
			v := tok.Value[1:]
			if len(tok.Value) > 1 && strings.HasSuffix(v, `"`) {
				v = v[:len(v)-1]
			}
			return Token(v, true), nil
		default:
			return Token(tok.Value, false), nil
		}
	}
	return Step{}, nil
}

// Done reports whether the end of input was reached.
func (l *TextLexer) Done() bool { return l.done }

// Offset returns the byte offset just past the last token read.
func (l *TextLexer) Offset() int { return l.offset }

// Size returns the decoded text length in bytes.
func (l *TextLexer) Size() int { return l.size }
