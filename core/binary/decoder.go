package binary

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/FocuswithJustin/ceparser/core/token"
)

// Fixed opcodes shared by every game.
const (
	OpEquals      uint16 = 0x0001
	OpOpen        uint16 = 0x0003
	OpClose       uint16 = 0x0004
	OpInt32       uint16 = 0x000c
	OpFloat       uint16 = 0x000d
	OpBool        uint16 = 0x000e
	OpQuoted      uint16 = 0x000f
	OpUint32      uint16 = 0x0014
	OpUnquoted    uint16 = 0x0017
	OpFixedFloat  uint16 = 0x0167
	OpUint64      uint16 = 0x029c
	OpInt64       uint16 = 0x0317
	opcodeLength         = 2
	lengthPrefix         = 2
)

// payloadSize returns the fixed payload length of a scalar opcode.
func payloadSize(op uint16) (int, bool) {
	switch op {
	case OpBool:
		return 1, true
	case OpInt32, OpUint32, OpFloat:
		return 4, true
	case OpFixedFloat, OpUint64, OpInt64:
		return 8, true
	}
	return 0, false
}

type phase int

const (
	readOpcode phase = iota
	readLength
	readPayload
)

// Decoder turns a byte stream into token steps, one byte at a time.
type Decoder struct {
	// Game is the dictionary identifier, e.g. "eu4".
	Game string
	// IncludeHour renders dates with a trailing hour component.
	IncludeHour bool

	dict *Dictionary
	enc  encoding.Encoding

	phase  phase
	op     uint16
	buf    []byte
	need   int
	quoted bool

	lastKey     string
	afterEquals bool
}

// NewDecoder creates a decoder for game. enc decodes string payloads; nil keeps
// the raw bytes.
func NewDecoder(game string, dict *Dictionary, enc encoding.Encoding) *Decoder {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	return &Decoder{
		Game:        game,
		IncludeHour: strings.EqualFold(game, "hoi4"),
		dict:        dict,
		enc:         enc,
		need:        opcodeLength,
	}
}

// Decode consumes one byte. path holds the open container names, outermost first.
func (d *Decoder) Decode(b byte, path []string) token.Step {
	d.buf = append(d.buf, b)
	if len(d.buf) < d.need {
		return token.Step{}
	}

	switch d.phase {
	case readOpcode:
		d.op = binary.LittleEndian.Uint16(d.buf)
		d.buf = d.buf[:0]
		return d.opcode(path)

	case readLength:
		n := int(binary.LittleEndian.Uint16(d.buf))
		d.buf = d.buf[:0]
		if n == 0 {
			return d.emit(token.Token("", d.quoted))
		}
		d.phase, d.need = readPayload, n
		return token.Step{}

	default:
		payload := d.buf
		d.buf = d.buf[:0]
		if d.op == OpQuoted || d.op == OpUnquoted {
			return d.emit(token.Token(d.text(payload), d.quoted))
		}
		return d.emit(token.Token(d.scalar(payload, path), false))
	}
}

func (d *Decoder) opcode(path []string) token.Step {
	switch d.op {
	case OpEquals:
		return d.emit(token.Token(token.Equals, false))
	case OpOpen:
		return d.emit(token.Token(token.OpenBlock, false))
	case OpClose:
		return d.emit(token.Token(token.CloseBlock, false))
	case OpQuoted, OpUnquoted:
		d.quoted = d.op == OpQuoted
		d.phase, d.need = readLength, lengthPrefix
		return token.Step{}
	}
	if n, ok := payloadSize(d.op); ok {
		d.phase, d.need = readPayload, n
		return token.Step{}
	}
	if lit, ok := d.dict.Lookup(d.op); ok {
		return d.emit(token.Token(lit, false))
	}
	step := token.Token(fmt.Sprintf("0x%04x", d.op), false)
	step.Unresolved = fmt.Sprintf("unknown opcode 0x%04x", d.op)
	return d.emit(step)
}

// pending reports whether bytes of an incomplete token are buffered.
func (d *Decoder) pending() bool {
	return d.phase != readOpcode || len(d.buf) > 0
}

// emit resets the byte state and tracks the last key for date detection.
func (d *Decoder) emit(s token.Step) token.Step {
	d.phase, d.need = readOpcode, opcodeLength
	switch {
	case s.Literal == token.Equals && !s.Quoted:
		d.afterEquals = true
	case d.afterEquals:
		d.afterEquals = false
	default:
		d.lastKey = s.Literal
	}
	return s
}

func (d *Decoder) text(payload []byte) string {
	if d.enc == nil {
		return string(payload)
	}
	out, err := d.enc.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}
	return string(out)
}

func (d *Decoder) scalar(p []byte, path []string) string {
	switch d.op {
	case OpBool:
		if p[0] != 0 {
			return "yes"
		}
		return "no"
	case OpInt32:
		v := int32(binary.LittleEndian.Uint32(p))
		if d.wantsDate(path) {
			if s, ok := FormatDate(v, d.IncludeHour); ok {
				return s
			}
		}
		return strconv.FormatInt(int64(v), 10)
	case OpUint32:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(p)), 10)
	case OpFloat:
		v := int32(binary.LittleEndian.Uint32(p))
		return strconv.FormatFloat(float64(v)/1000, 'f', 3, 64)
	case OpFixedFloat:
		v := int64(binary.LittleEndian.Uint64(p))
		return strconv.FormatFloat(float64(v)/32768, 'f', 5, 64)
	case OpUint64:
		return strconv.FormatUint(binary.LittleEndian.Uint64(p), 10)
	case OpInt64:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(p)), 10)
	}
	return ""
}

// wantsDate reports whether an int32 in the current position holds a date: the
// value of a key containing "date", or an entry of a container named so.
func (d *Decoder) wantsDate(path []string) bool {
	if d.afterEquals {
		return strings.Contains(strings.ToLower(d.lastKey), "date")
	}
	if len(path) > 0 {
		return strings.Contains(strings.ToLower(path[len(path)-1]), "date")
	}
	return false
}

var monthStarts = [13]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}

// FormatDate renders hours counted from 1 January of year -5000 on a 365-day
// calendar as Y.M.D, or Y.M.D.H with hour. Negative values are not dates.
func FormatDate(hours int32, hour bool) (string, bool) {
	if hours < 0 {
		return "", false
	}
	h := int(hours) % 24
	days := int(hours) / 24
	year := days/365 - 5000
	doy := days % 365
	month := 1
	for month < 12 && doy >= monthStarts[month] {
		month++
	}
	day := doy - monthStarts[month-1] + 1
	if hour {
		return fmt.Sprintf("%d.%d.%d.%d", year, month, day, h), true
	}
	return fmt.Sprintf("%d.%d.%d", year, month, day), true
}

// EncodeDate is the inverse of FormatDate for valid calendar dates.
func EncodeDate(year, month, day, hour int) int32 {
	if month < 1 || month > 12 {
		return math.MinInt32
	}
	days := (year+5000)*365 + monthStarts[month-1] + day - 1
	return int32(days*24 + hour)
}
