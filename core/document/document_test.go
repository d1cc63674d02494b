package document

import (
	"archive/zip"
	"bytes"
	"context"
	stdbinary "encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/FocuswithJustin/ceparser/core/binary"
	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/core/nodeset"
	"github.com/FocuswithJustin/ceparser/core/parse"
	"github.com/FocuswithJustin/ceparser/internal/archive"
)

func testRegistry() *binary.Registry {
	return binary.NewRegistry(fstest.MapFS{
		"eu4bin.csv":  &fstest.MapFile{Data: []byte("0x2dc0,country\n0x00e1,tag\n")},
		"hoi4bin.csv": &fstest.MapFile{Data: []byte("0x2dc0,country\n")},
	})
}

type payloadBuilder struct{ bytes.Buffer }

func (b *payloadBuilder) op(codes ...uint16) *payloadBuilder {
	for _, c := range codes {
		b.Write(stdbinary.LittleEndian.AppendUint16(nil, c))
	}
	return b
}

func (b *payloadBuilder) quoted(s string) *payloadBuilder {
	b.op(binary.OpQuoted)
	b.Write(stdbinary.LittleEndian.AppendUint16(nil, uint16(len(s))))
	b.WriteString(s)
	return b
}

// binarySave encodes: country={ tag="FRA" } <unknown opcode 0x9999>
func binarySave(header string) []byte {
	b := &payloadBuilder{}
	b.WriteString(header)
	b.op(0x2dc0, binary.OpEquals, binary.OpOpen, 0x00e1, binary.OpEquals)
	b.quoted("FRA")
	b.op(binary.OpClose, 0x9999)
	return b.Bytes()
}

func makeZip(t *testing.T, files ...archive.File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(f.Content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mustParse(t *testing.T, d *Document) {
	t.Helper()
	if err := d.Parse(); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
}

func TestTextDocument(t *testing.T) {
	d, err := FromBytes("save.eu4", []byte("date=1444.11.11\nplayer=\"FRA\"\n= x={ y }"), Options{})
	if err != nil {
		t.Fatalf("FromBytes() error: %v", err)
	}
	if d.Format() != FormatText || d.Container() != archive.KindNone {
		t.Errorf("format = %v, container = %v", d.Format(), d.Container())
	}
	if d.Errors() != nil {
		t.Error("Errors() before Parse should be nil")
	}
	if d.Root().Len() != 0 {
		t.Error("Root() before Parse should be empty")
	}
	mustParse(t, d)

	want := "date=1444.11.11\nplayer=\"FRA\"\nx={\n\ty\n}"
	if got := d.Export(); got != want {
		t.Errorf("Export() = %q, want %q", got, want)
	}
	errs := d.Errors()
	if len(errs) != 1 || errs[0].Category != parse.CategoryStructural {
		t.Errorf("Errors() = %v", errs)
	}

	var buf bytes.Buffer
	n, err := d.WriteTo(&buf)
	if err != nil || n != int64(len(want)) || buf.String() != want {
		t.Errorf("WriteTo() = %d, %v, %q", n, err, buf.String())
	}
}

func TestBinaryDocument(t *testing.T) {
	d, err := FromBytes("save.eu4", binarySave("EU4bin"), Options{Dictionaries: testRegistry()})
	if err != nil {
		t.Fatalf("FromBytes() error: %v", err)
	}
	if d.Format() != FormatBinary || d.Game() != "eu4" {
		t.Fatalf("format = %v, game = %q", d.Format(), d.Game())
	}
	mustParse(t, d)

	want := "country={\n\ttag=\"FRA\"\n} 0x9999"
	if got := d.Export(); got != want {
		t.Errorf("Export() = %q, want %q", got, want)
	}
	errs := d.Errors()
	if len(errs) != 1 || errs[0].Category != parse.CategoryUnresolved || errs[0].Severity != 1 {
		t.Errorf("Errors() = %v", errs)
	}
}

func TestBinaryDocumentFourLetterHeader(t *testing.T) {
	b := &payloadBuilder{}
	b.WriteString("HOI4bin")
	b.op(0x2dc0, binary.OpEquals, binary.OpOpen)
	b.op(binary.OpClose)
	d, err := FromBytes("save.hoi4", b.Bytes(), Options{Dictionaries: testRegistry()})
	if err != nil {
		t.Fatalf("FromBytes() error: %v", err)
	}
	if d.Game() != "hoi4" || d.Format() != FormatBinary {
		t.Errorf("game = %q, format = %v", d.Game(), d.Format())
	}
}

func TestBinaryDocumentMissingDictionary(t *testing.T) {
	_, err := FromBytes("save.ck3", binarySave("CK3bin"), Options{Dictionaries: testRegistry()})
	if !cperrors.Is(err, cperrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	_, err = FromBytes("save", binarySave("\x00\x00\x00bin"), Options{Dictionaries: testRegistry()})
	if !cperrors.Is(err, cperrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestZipDocuments(t *testing.T) {
	text := []byte("EU4txt\nplayer=\"FRA\"")
	tests := []struct {
		name   string
		files  []archive.File
		format Format
	}{
		{"binary with meta", []archive.File{{Name: "meta", Content: []byte("EU4bin")}, {Name: "save.eu4", Content: binarySave("EU4bin")}}, FormatBinary},
		{"binary without meta", []archive.File{{Name: "save.eu4", Content: binarySave("EU4bin")}}, FormatBinary},
		{"meta wins", []archive.File{{Name: "meta", Content: []byte("EU4txt")}, {Name: "save.eu4", Content: text}}, FormatText},
		{"text", []archive.File{{Name: "ai", Content: []byte("x")}, {Name: "save.eu4", Content: text}}, FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeZip(t, tt.files...)
			if !IsCompressed(data) {
				t.Fatal("zip not detected")
			}
			d, err := FromBytes("/saves/save.eu4", data, Options{Dictionaries: testRegistry()})
			if err != nil {
				t.Fatalf("FromBytes() error: %v", err)
			}
			if d.Format() != tt.format || d.Container() != archive.KindZip {
				t.Errorf("format = %v, container = %v", d.Format(), d.Container())
			}
			mustParse(t, d)
			if d.Root().Len() == 0 {
				t.Error("empty tree")
			}
		})
	}
}

func TestZipMetaDecidesFormat(t *testing.T) {
	text := []byte("EU4txt\nplayer=\"FRA\"")
	tests := []struct {
		name    string
		meta    []byte
		payload []byte
		format  Format
	}{
		{"text meta over binary payload", []byte("EU4txt"), binarySave("EU4bin"), FormatText},
		{"binary meta over text payload", []byte("EU4bin"), text, FormatBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeZip(t,
				archive.File{Name: "meta", Content: tt.meta},
				archive.File{Name: "save.eu4", Content: tt.payload},
			)
			d, err := FromBytes("save.eu4", data, Options{Dictionaries: testRegistry()})
			if err != nil {
				t.Fatalf("FromBytes() error: %v", err)
			}
			if d.Format() != tt.format {
				t.Errorf("format = %v, want %v", d.Format(), tt.format)
			}
			isBinary, err := IsBinary("save.eu4", data)
			if err != nil || isBinary != (tt.format == FormatBinary) {
				t.Errorf("IsBinary() = %v, %v", isBinary, err)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	data := []byte("a=1")
	base, err := FromBytes("f.txt", data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := "game= encoding=windows-1252 strict=false legacy-severity=false"
	if got := base.Settings(); got != want {
		t.Errorf("Settings() = %q, want %q", got, want)
	}

	variants := []Options{
		{Strict: true},
		{LegacySeverity: true},
		{Encoding: "utf-8"},
		{Game: "eu4"},
	}
	for _, opts := range variants {
		d, err := FromBytes("f.txt", data, opts)
		if err != nil {
			t.Fatalf("FromBytes(%+v) error: %v", opts, err)
		}
		if d.Digest() != base.Digest() {
			t.Error("options changed the digest")
		}
		if d.Settings() == base.Settings() {
			t.Errorf("Settings() for %+v equals the default settings", opts)
		}
	}
}

func TestZipWithoutPayload(t *testing.T) {
	data := makeZip(t, archive.File{Name: "gamestate", Content: []byte("a=1")})
	_, err := FromBytes("save.eu4", data, Options{})
	if !cperrors.Is(err, cperrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTarBundleDocument(t *testing.T) {
	var buf bytes.Buffer
	files := []archive.File{{Name: "exports/save.eu4", Content: []byte("a=1 b={ c }")}}
	if err := archive.WriteTarXz(&buf, files, time.Unix(0, 0)); err != nil {
		t.Fatal(err)
	}
	d, err := FromBytes("save.eu4.tar.xz", buf.Bytes(), Options{})
	if err != nil {
		t.Fatalf("FromBytes() error: %v", err)
	}
	if d.Container() != archive.KindTarXz {
		t.Errorf("container = %v", d.Container())
	}
	mustParse(t, d)
	if got := d.Root().Subnode("b").Entries(); len(got) != 1 || got[0] != "c" {
		t.Errorf("b entries = %v", got)
	}
}

func TestSniffHelpers(t *testing.T) {
	masks := []struct{ in, want string }{
		{"save.eu4", "*.eu4"},
		{"/a/b/save.eu4.tar.xz", "*.eu4"},
		{"save.hoi4.tgz", "*.hoi4"},
		{"gamestate", "*"},
	}
	for _, tt := range masks {
		if got := PayloadMask(tt.in); got != tt.want {
			t.Errorf("PayloadMask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	raw := []struct {
		data string
		want bool
	}{
		{"EU4bin", true},
		{"HOI4bin", true},
		{"EU4txt", false},
		{"bin", false},
		{"", false},
	}
	for _, tt := range raw {
		got, err := IsBinary("x", []byte(tt.data))
		if err != nil || got != tt.want {
			t.Errorf("IsBinary(%q) = %v, %v", tt.data, got, err)
		}
	}

	headers := []struct{ in, want string }{
		{"EU4bin", "eu4"},
		{"HOI4txt", "hoi4"},
		{"a=1 b", ""},
		{"E-4bin", ""},
	}
	for _, tt := range headers {
		if got := GameFromHeader([]byte(tt.in)); got != tt.want {
			t.Errorf("GameFromHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveEncoding(t *testing.T) {
	if enc, err := ResolveEncoding(""); err != nil || enc != DefaultEncoding {
		t.Errorf("ResolveEncoding(\"\") = %v, %v", enc, err)
	}
	for _, name := range []string{"utf-8", "windows-1250", "ISO-8859-2"} {
		if _, err := ResolveEncoding(name); err != nil {
			t.Errorf("ResolveEncoding(%q) error: %v", name, err)
		}
	}
	if _, err := ResolveEncoding("klingon"); !cperrors.Is(err, cperrors.ErrUnsupported) {
		t.Errorf("unknown encoding error = %v", err)
	}
	if _, err := FromBytes("x", []byte("a=1"), Options{Encoding: "klingon"}); err == nil {
		t.Error("FromBytes accepted an unknown encoding")
	}
}

func TestWindows1252Text(t *testing.T) {
	d, err := FromBytes("x.txt", []byte("name=\"Fran\xe7ois\""), Options{})
	if err != nil {
		t.Fatal(err)
	}
	mustParse(t, d)
	if got := d.Root().AttributeValue("name"); got != "François" {
		t.Errorf("name = %q", got)
	}
}

func TestOpenFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.eu4")
	if err := os.WriteFile(path, []byte("a=1"), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if d.Name() != path || d.Size() != 3 || len(d.Digest()) != 64 {
		t.Errorf("name = %q, size = %d, digest = %q", d.Name(), d.Size(), d.Digest())
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("Open(missing) should fail")
	}
}

func TestParseRefusesConcurrentParse(t *testing.T) {
	var inner, cleanup error
	var once sync.Once
	var d *Document
	d, err := FromBytes("x", []byte("a=1 b=2 c=3"), Options{
		ProgressInterval: 1,
		Progress: func(float64) {
			once.Do(func() {
				inner = d.Parse()
				cleanup = d.Cleanup("a", false)
			})
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	mustParse(t, d)
	if inner != cperrors.ErrBusy {
		t.Errorf("nested Parse() = %v, want ErrBusy", inner)
	}
	if cleanup != cperrors.ErrBusy {
		t.Errorf("Cleanup during parse = %v, want ErrBusy", cleanup)
	}
	if err := d.Parse(); err != nil {
		t.Errorf("Parse after completion = %v", err)
	}
}

func TestProgressObservers(t *testing.T) {
	var fromOptions, fromOn []float64
	d, err := FromBytes("x", []byte(strings.Repeat("k=v\n", 100)), Options{
		ProgressInterval: 100,
		Progress:         func(f float64) { fromOptions = append(fromOptions, f) },
	})
	if err != nil {
		t.Fatal(err)
	}
	d.OnProgress(func(float64) { panic("bad observer") })
	d.OnProgress(func(f float64) { fromOn = append(fromOn, f) })
	mustParse(t, d)

	if len(fromOn) == 0 || fromOn[len(fromOn)-1] != 1 {
		t.Errorf("observer after a panicking one got %v", fromOn)
	}
	if len(fromOptions) != len(fromOn) {
		t.Errorf("observers saw %d and %d reports", len(fromOptions), len(fromOn))
	}
	if len(d.Errors()) != 0 {
		t.Errorf("observer panic reached the log: %v", d.Errors())
	}
	if d.Root().Len() != 100 {
		t.Errorf("root children = %d, want 100", d.Root().Len())
	}
}

func TestCleanupAndNodesets(t *testing.T) {
	d, err := FromBytes("x", []byte("foo=1 bar=2 provinces={ 1={ owner=FRA } 2={ owner=ENG } }"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	mustParse(t, d)
	if err := d.Cleanup("foo*", false); err != nil {
		t.Fatal(err)
	}
	if d.Root().HasAttribute("foo") {
		t.Error("Cleanup left foo in place")
	}

	set := nodeset.ByName(d.Root().Subnodes("provinces", "*"))
	d.AddNodeset("provinces", set)
	if got := d.Nodeset("provinces")[2].AttributeValue("owner"); got != "ENG" {
		t.Errorf("province 2 owner = %q", got)
	}
	if names := d.Nodesets().Names(); len(names) != 1 {
		t.Errorf("Names() = %v", names)
	}
	d.RemoveNodeset("provinces")
	if len(d.Nodeset("provinces")) != 0 {
		t.Error("RemoveNodeset left the set")
	}
}

func TestJob(t *testing.T) {
	d, err := FromBytes("x", []byte("a={ b }"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	job := d.Start(context.Background())
	if job.ID == "" {
		t.Error("job has no id")
	}
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	got, err := job.Wait()
	if err != nil || got != d {
		t.Fatalf("Wait() = %v, %v", got, err)
	}
	if job.Status() != StatusDone {
		t.Errorf("Status() = %v", job.Status())
	}
	if d.Root().Subnode("a") == nil {
		t.Error("background parse produced no tree")
	}
}

func TestJobCancelledBeforeStart(t *testing.T) {
	d, err := FromBytes("x", []byte("a=1"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := d.Start(ctx)
	job.Cancel()
	if _, err := job.Wait(); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if job.Status() != StatusCancelled {
		t.Errorf("Status() = %v", job.Status())
	}
	if d.Root().Len() != 0 {
		t.Error("cancelled job parsed anyway")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusPending, "pending"}, {StatusRunning, "running"}, {StatusDone, "done"},
		{StatusCancelled, "cancelled"}, {Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d) = %q, want %q", tt.s, got, tt.want)
		}
	}
}
