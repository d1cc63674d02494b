// Package document ties decoding together for one game-data file: it sniffs
// the container and encoding, runs the parse engine over the right token
// source, and exposes the resulting tree, diagnostics, nodesets and export.
package document

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/FocuswithJustin/ceparser/core/binary"
	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/core/nodeset"
	"github.com/FocuswithJustin/ceparser/core/parse"
	"github.com/FocuswithJustin/ceparser/core/store"
	"github.com/FocuswithJustin/ceparser/core/token"
	"github.com/FocuswithJustin/ceparser/core/tree"
	"github.com/FocuswithJustin/ceparser/internal/archive"
	"github.com/FocuswithJustin/ceparser/internal/logging"
)

// Format is the physical encoding of a document.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return "text"
}

// DefaultEncoding decodes text and binary strings when Options.Encoding is empty.
var DefaultEncoding encoding.Encoding = charmap.Windows1252

// Options configure how a document is decoded. The zero value is usable for
// text files; binary files additionally need a dictionary source.
type Options struct {
	// Game selects the opcode dictionary, e.g. "eu4". When empty it is taken
	// from the file header.
	Game string
	// Encoding names the character encoding, e.g. "windows-1252" or "utf-8".
	Encoding string
	// DictionaryDir holds <game>bin.csv files. Ignored when Dictionaries is set.
	DictionaryDir string
	// Dictionaries is a shared dictionary registry.
	Dictionaries *binary.Registry
	// Strict reports excess closing braces as diagnostics.
	Strict bool
	// LegacySeverity scores every unresolved-token diagnostic as 1.
	LegacySeverity bool
	// ProgressInterval is the input distance between progress reports.
	ProgressInterval int
	// Progress receives the parsed fraction of the input.
	Progress func(fraction float64)
}

// ResolveEncoding maps an encoding name to an Encoding. An empty name yields
// DefaultEncoding.
func ResolveEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return DefaultEncoding, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, cperrors.NewUnsupported("encoding", name)
	}
	return enc, nil
}

// Document is one decoded file.
type Document struct {
	name      string
	raw       []byte
	payload   []byte
	format    Format
	container archive.Kind
	game      string
	enc       encoding.Encoding
	dict      *binary.Dictionary
	opts      Options

	parsing atomic.Bool
	mu      sync.RWMutex
	root    *tree.Node
	log     *parse.Log

	obsMu     sync.Mutex
	observers []func(float64)

	nodesets *nodeset.Registry
}

// Open reads and prepares the file at path.
func Open(path string, opts Options) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cperrors.NewIO("read", path, err)
	}
	return FromBytes(path, data, opts)
}

// FromBytes prepares a document from data. name is used for archive entry
// selection and in diagnostics. Binary documents load their dictionary here,
// once, before any parse.
func FromBytes(name string, data []byte, opts Options) (*Document, error) {
	enc, err := ResolveEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	isBinary, err := IsBinary(name, data)
	if err != nil {
		return nil, err
	}
	body, err := payload(name, data)
	if err != nil {
		return nil, err
	}

	d := &Document{
		name:      name,
		raw:       data,
		payload:   body,
		container: archive.Detect(data),
		enc:       enc,
		opts:      opts,
		root:      tree.NewRoot(),
		nodesets:  nodeset.NewRegistry(),
	}
	if !isBinary {
		d.game = strings.ToLower(opts.Game)
		return d, nil
	}

	d.format = FormatBinary
	d.game = strings.ToLower(opts.Game)
	if d.game == "" {
		d.game = GameFromHeader(body)
	}
	if d.game == "" {
		return nil, cperrors.Wrapf(cperrors.ErrInvalidInput, "%s: binary file without game identifier", name)
	}
	reg := opts.Dictionaries
	if reg == nil {
		reg = binary.NewDirRegistry(opts.DictionaryDir)
	}
	if d.dict, err = reg.Load(d.game); err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns the name the document was created with.
func (d *Document) Name() string { return d.name }

// Format returns the detected encoding.
func (d *Document) Format() Format { return d.format }

// Container returns the archive kind the payload was extracted from.
func (d *Document) Container() archive.Kind { return d.container }

// Game returns the game identifier, "" for text documents without one.
func (d *Document) Game() string { return d.game }

// Size returns the length of the payload in bytes.
func (d *Document) Size() int { return len(d.payload) }

// Digest returns the BLAKE3 digest of the raw input, archive included.
func (d *Document) Digest() string { return store.Digest(d.raw) }

// Settings describes the options that change the decoded tree or its
// diagnostics. Results are only comparable between documents with equal
// digests and equal settings.
func (d *Document) Settings() string {
	enc, err := htmlindex.Name(d.enc)
	if err != nil {
		enc = strings.ToLower(d.opts.Encoding)
	}
	return fmt.Sprintf("game=%s encoding=%s strict=%t legacy-severity=%t",
		d.game, enc, d.opts.Strict, d.opts.LegacySeverity)
}

// OnProgress registers an additional progress observer.
func (d *Document) OnProgress(fn func(fraction float64)) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observers = append(d.observers, fn)
}

// Parse decodes the payload into the tree, replacing the result of any earlier
// parse. Content problems are recorded as diagnostics, not returned. Parse
// returns ErrBusy when another parse of d is in flight.
func (d *Document) Parse() error {
	if !d.parsing.CompareAndSwap(false, true) {
		return cperrors.ErrBusy
	}
	defer d.parsing.Store(false)

	src, err := d.source()
	if err != nil {
		return err
	}

	start := time.Now()
	logging.ParseStarted(d.name, d.format.String(), len(d.payload), "game", d.game)
	res := parse.New(parse.Options{
		Strict:           d.opts.Strict,
		LegacySeverity:   d.opts.LegacySeverity,
		ProgressInterval: d.opts.ProgressInterval,
		Progress:         d.emitProgress,
		ObserverPanic: func(r any) {
			logging.ObserverPanic("progress", r, "name", d.name)
		},
	}).Run(src)

	d.mu.Lock()
	d.root, d.log = res.Root, res.Log
	d.mu.Unlock()

	logging.ParseFinished(d.name, res.Log.Len(), res.Log.MaxSeverity(), time.Since(start))
	return nil
}

func (d *Document) source() (token.Source, error) {
	if d.format == FormatBinary {
		return binary.NewByteSource(d.payload, binary.NewDecoder(d.game, d.dict, d.enc)), nil
	}
	return token.NewTextLexer(d.name, d.payload, d.enc)
}

// emitProgress fans a report out to every observer. Each observer is isolated
// so that one failing observer does not silence the others.
func (d *Document) emitProgress(fraction float64) {
	d.obsMu.Lock()
	observers := make([]func(float64), 0, len(d.observers)+1)
	if d.opts.Progress != nil {
		observers = append(observers, d.opts.Progress)
	}
	observers = append(observers, d.observers...)
	d.obsMu.Unlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.ObserverPanic("progress", r, "name", d.name)
				}
			}()
			fn(fraction)
		}()
	}
}

// Root returns the tree. Before the first parse it is an empty root.
func (d *Document) Root() *tree.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Log returns the diagnostics of the last parse, or nil before any parse.
func (d *Document) Log() *parse.Log {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log
}

// Errors returns the diagnostics of the last parse in recorded order.
func (d *Document) Errors() []*parse.Error {
	if l := d.Log(); l != nil {
		return l.Errors()
	}
	return nil
}

// Export renders the tree as canonical text.
func (d *Document) Export() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.String()
}

// WriteTo writes the canonical text to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cw := &countingWriter{w: w}
	err := tree.Export(cw, d.root)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Cleanup removes every entity matching mask from the tree. It needs exclusive
// access and fails with ErrBusy while a parse is in flight.
func (d *Document) Cleanup(mask string, caseSensitive bool) error {
	if d.parsing.Load() {
		return cperrors.ErrBusy
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root.Cleanup(mask, caseSensitive)
	return nil
}

// AddNodeset stores set under name, replacing any previous set.
func (d *Document) AddNodeset(name string, set nodeset.Set) { d.nodesets.Add(name, set) }

// Nodeset returns the set stored under name, or an empty set.
func (d *Document) Nodeset(name string) nodeset.Set { return d.nodesets.Get(name) }

// RemoveNodeset deletes the set stored under name.
func (d *Document) RemoveNodeset(name string) { d.nodesets.Remove(name) }

// Nodesets exposes the registry.
func (d *Document) Nodesets() *nodeset.Registry { return d.nodesets }
