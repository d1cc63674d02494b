package binary

import (
	stdbinary "encoding/binary"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/core/token"
	"golang.org/x/text/encoding/charmap"
)

// stream builds binary payloads in test code.
type stream []byte

func (s stream) op(code uint16) stream {
	return stdbinary.LittleEndian.AppendUint16(s, code)
}

func (s stream) i32(v int32) stream {
	return stdbinary.LittleEndian.AppendUint32(s.op(OpInt32), uint32(v))
}

func (s stream) str(code uint16, v string) stream {
	s = stdbinary.LittleEndian.AppendUint16(s.op(code), uint16(len(v)))
	return append(s, v...)
}

func collect(t *testing.T, src token.Source) []string {
	t.Helper()
	var out []string
	for !src.Done() {
		step, err := src.Next(nil)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if step.Ready {
			out = append(out, step.Literal)
		}
	}
	return out
}

func TestParseDictionary(t *testing.T) {
	input := "code,name\n0x2dc0,country\n\n0x0000,ignored\n0x2dc0,duplicate\n0x00e1,tag\n"
	d, err := ParseDictionary("eu4bin.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDictionary() error: %v", err)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
	if lit, ok := d.Lookup(0x2dc0); !ok || lit != "country" {
		t.Errorf("Lookup(0x2dc0) = %q, %v", lit, ok)
	}
	if _, ok := d.Lookup(0); ok {
		t.Error("code 0 must be ignored")
	}
}

func TestParseDictionaryErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing comma", "0x2dc0 country\n"},
		{"bad hex", "0xzzzz,country\n"},
		{"short", "0x12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDictionary("x.csv", strings.NewReader(tt.input))
			var pe *cperrors.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Line != 1 {
				t.Errorf("Line = %d, want 1", pe.Line)
			}
		})
	}
}

func TestRegistryLoadsOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"eu4bin.csv": &fstest.MapFile{Data: []byte("0x2dc0,country\n")},
	}
	r := NewRegistry(fsys)
	d1, err := r.Load("EU4")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	d2, err := r.Load("eu4")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d1 != d2 {
		t.Error("second Load returned a different dictionary")
	}
	if st := r.Stats(); st.Loads != 1 {
		t.Errorf("Loads = %d, want 1", st.Loads)
	}

	_, err = r.Load("ck3")
	if !cperrors.Is(err, cperrors.ErrNotFound) {
		t.Errorf("missing dictionary error = %v, want ErrNotFound", err)
	}
}

func TestDecoderStream(t *testing.T) {
	dict := NewDictionary(map[uint16]string{0x2dc0: "country", 0x00e1: "tag"})
	data := stream("EU4bin").
		op(0x2dc0).op(OpEquals).op(OpOpen).
		op(0x00e1).op(OpEquals).str(OpQuoted, "FRA").
		op(0x00e1).op(OpEquals).str(OpUnquoted, "").
		op(OpClose)

	src := NewByteSource(data, NewDecoder("eu4", dict, nil))
	got := strings.Join(collect(t, src), " ")
	want := `country = { tag = FRA tag =  }`
	if got != want {
		t.Errorf("tokens = %q, want %q", got, want)
	}
	if src.Offset() != src.Size() {
		t.Errorf("Offset() = %d, want %d", src.Offset(), src.Size())
	}
}

func TestDecoderScalars(t *testing.T) {
	le := stdbinary.LittleEndian
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"int32", stream{}.i32(-42), "-42"},
		{"uint32", le.AppendUint32(stream{}.op(OpUint32), 4000000000), "4000000000"},
		{"float", le.AppendUint32(stream{}.op(OpFloat), uint32(1500)), "1.500"},
		{"negative float", le.AppendUint32(stream{}.op(OpFloat), uint32(0xfffffc18)), "-1.000"},
		{"fixed float", le.AppendUint64(stream{}.op(OpFixedFloat), 32768*3), "3.00000"},
		{"bool yes", append(stream{}.op(OpBool), 1), "yes"},
		{"bool no", append(stream{}.op(OpBool), 0), "no"},
		{"uint64", le.AppendUint64(stream{}.op(OpUint64), 1<<40), "1099511627776"},
		{"int64", le.AppendUint64(stream{}.op(OpInt64), ^uint64(0)), "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, NewByteSource(tt.data, NewDecoder("eu4", nil, nil)))
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("tokens = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestDecoderUnknownOpcode(t *testing.T) {
	src := NewByteSource(stream{}.op(0x1234), NewDecoder("eu4", nil, nil))
	step, err := src.Next(nil)
	if err != nil {
		t.Fatal(err)
	}
	if step.Literal != "0x1234" || step.Unresolved != "unknown opcode 0x1234" {
		t.Errorf("step = %+v", step)
	}
}

func TestDecoderDates(t *testing.T) {
	dict := NewDictionary(map[uint16]string{0x0100: "start_date", 0x0101: "dates", 0x0102: "value"})
	date := EncodeDate(1444, 11, 11, 0)

	tests := []struct {
		name string
		game string
		data stream
		want []string
	}{
		{"keyed", "eu4", stream{}.op(0x0100).op(OpEquals).i32(date), []string{"start_date", "=", "1444.11.11"}},
		{"hour", "hoi4", stream{}.op(0x0100).op(OpEquals).i32(date + 13), []string{"start_date", "=", "1444.11.11.13"}},
		{"not a date key", "eu4", stream{}.op(0x0102).op(OpEquals).i32(7), []string{"value", "=", "7"}},
		{"negative", "eu4", stream{}.op(0x0100).op(OpEquals).i32(-1), []string{"start_date", "=", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, NewByteSource(tt.data, NewDecoder(tt.game, dict, nil)))
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("tokens = %v, want %v", got, tt.want)
			}
		})
	}

	// entries of a container named after dates
	dec := NewDecoder("eu4", dict, nil)
	src := NewByteSource(stream{}.i32(date), dec)
	step, err := src.Next([]string{"history", "dates"})
	if err != nil || step.Literal != "1444.11.11" {
		t.Errorf("entry in dates container = %q, %v", step.Literal, err)
	}
}

func TestFormatDateBoundaries(t *testing.T) {
	tests := []struct {
		y, m, d int
		want    string
	}{
		{1, 1, 1, "1.1.1"},
		{1444, 12, 31, "1444.12.31"},
		{1836, 2, 28, "1836.2.28"},
		{1836, 3, 1, "1836.3.1"},
	}
	for _, tt := range tests {
		got, ok := FormatDate(EncodeDate(tt.y, tt.m, tt.d, 0), false)
		if !ok || got != tt.want {
			t.Errorf("FormatDate(%d.%d.%d) = %q, want %q", tt.y, tt.m, tt.d, got, tt.want)
		}
	}
}

func TestDecoderCharmap(t *testing.T) {
	data := stream{}.str(OpQuoted, "Fran\xe7ais")
	got := collect(t, NewByteSource(data, NewDecoder("eu4", nil, charmap.Windows1252)))
	if len(got) != 1 || got[0] != "Français" {
		t.Errorf("tokens = %q", got)
	}
}

func TestByteSourceTruncated(t *testing.T) {
	data := stream{}.op(OpInt32)
	data = append(data, 1, 2)
	src := NewByteSource(data, NewDecoder("eu4", nil, nil))
	if _, err := src.Next(nil); err == nil {
		t.Error("truncated payload should fail")
	}
}

func TestHeaderLength(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"EU4bin\x01\x00", 6},
		{"HOI4bin", 7},
		{"EU4txt", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := HeaderLength([]byte(tt.data)); got != tt.want {
			t.Errorf("HeaderLength(%q) = %d, want %d", tt.data, got, tt.want)
		}
	}
}
