// Package binary decodes the tokenized binary encoding of Clausewitz game-data
// files. Every token starts with a little-endian 16-bit opcode; structural and
// scalar opcodes are fixed, all other opcodes are resolved to literal text
// through a per-game dictionary loaded from a <game>bin.csv resource.
package binary

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
)

// Dictionary maps opcodes to literal text.
type Dictionary struct {
	codes map[uint16]string
}

// NewDictionary builds a dictionary from a map. Code 0 is ignored.
func NewDictionary(codes map[uint16]string) *Dictionary {
	d := &Dictionary{codes: make(map[uint16]string, len(codes))}
	for code, lit := range codes {
		if code != 0 {
			d.codes[code] = lit
		}
	}
	return d
}

// ParseDictionary reads lines of the form 0xXXXX,name. Lines that do not start
// with 0x are treated as headers or comments and skipped. Code 0 and repeated
// codes are ignored; the first definition wins.
func ParseDictionary(name string, r io.Reader) (*Dictionary, error) {
	d := &Dictionary{codes: make(map[uint16]string)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
			continue
		}
		if len(text) < 7 || text[6] != ',' {
			return nil, cperrors.NewParse("dictionary", name, line, fmt.Sprintf("expected 0xXXXX,name, got %q", text))
		}
		code, err := strconv.ParseUint(text[2:6], 16, 16)
		if err != nil {
			return nil, &cperrors.ParseError{Format: "dictionary", Path: name, Line: line, Message: "invalid opcode", Err: err}
		}
		if code == 0 {
			continue
		}
		if _, dup := d.codes[uint16(code)]; !dup {
			d.codes[uint16(code)] = text[7:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, cperrors.NewIO("read", name, err)
	}
	return d, nil
}

// ParseDictionaryBytes is ParseDictionary over an in-memory resource.
func ParseDictionaryBytes(name string, data []byte) (*Dictionary, error) {
	return ParseDictionary(name, bytes.NewReader(data))
}

// Lookup returns the literal for code.
func (d *Dictionary) Lookup(code uint16) (string, bool) {
	lit, ok := d.codes[code]
	return lit, ok
}

// Len returns the number of known opcodes.
func (d *Dictionary) Len() int { return len(d.codes) }
