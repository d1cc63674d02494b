// Package archive reads the containers game data is shipped in: zip archives
// produced by the games themselves, and tar.gz / tar.xz bundles. It also
// writes tar bundles of exported text.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"

	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
)

// Kind identifies a container format.
type Kind int

const (
	KindNone Kind = iota
	KindZip
	KindTarGz
	KindTarXz
)

func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindTarGz:
		return "tar.gz"
	case KindTarXz:
		return "tar.xz"
	}
	return "none"
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Detect identifies the container format of data from its leading bytes.
func Detect(data []byte) Kind {
	switch {
	case IsZip(data):
		return KindZip
	case bytes.HasPrefix(data, gzipMagic):
		return KindTarGz
	case bytes.HasPrefix(data, xzMagic):
		return KindTarXz
	}
	return KindNone
}

// DetectPath identifies the bundle format from a file name.
func DetectPath(name string) Kind {
	switch {
	case strings.HasSuffix(name, ".tar.xz"):
		return KindTarXz
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return KindTarGz
	case strings.HasSuffix(name, ".zip"):
		return KindZip
	}
	return KindNone
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	closers []io.Closer
}

// NewReader opens the tar bundle at path. The compression is chosen from the
// file name.
func NewReader(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, cperrors.NewIO("open", name, err)
	}
	kind := DetectPath(name)
	r, err := newReader(f, kind)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewBytesReader reads a tar bundle held in memory. The compression is
// detected from the content.
func NewBytesReader(data []byte) (*Reader, error) {
	return newReader(bytes.NewReader(data), Detect(data))
}

func newReader(src io.Reader, kind Kind) (*Reader, error) {
	r := &Reader{}
	var body io.Reader
	switch kind {
	case KindTarXz:
		xzr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		body = xzr
	case KindTarGz:
		gzr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		body = gzr
		r.closers = append(r.closers, gzr)
	default:
		return nil, cperrors.NewUnsupported("bundle format", kind.String())
	}
	r.Reader = tar.NewReader(body)
	return r, nil
}

// Close closes the reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through the regular files of the bundle, calling the visitor
// for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// FindFile returns the content of the first file whose base name matches
// mask (see Like), reading at most limit bytes; a negative limit reads the
// whole entry.
func (r *Reader) FindFile(mask string, limit int) ([]byte, string, error) {
	var content []byte
	var found string
	err := r.Iterate(func(h *tar.Header, body io.Reader) (bool, error) {
		if !Like(path.Base(h.Name), mask) {
			return false, nil
		}
		var err error
		content, err = readLimited(body, limit)
		found = h.Name
		return true, err
	})
	if err != nil {
		return nil, "", err
	}
	if found == "" {
		return nil, "", cperrors.NewNotFound("archive entry", mask)
	}
	return content, found, nil
}

// Names lists the regular files of the bundle in archive order.
func (r *Reader) Names() ([]string, error) {
	var names []string
	err := r.Iterate(func(h *tar.Header, _ io.Reader) (bool, error) {
		names = append(names, h.Name)
		return false, nil
	})
	return names, err
}

// ExtractTar is ExtractZip for an in-memory tar bundle: nil, nil when no entry
// matches mask.
func ExtractTar(data []byte, mask string, limit int) ([]byte, error) {
	r, err := NewBytesReader(data)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	content, _, err := r.FindFile(mask, limit)
	if cperrors.Is(err, cperrors.ErrNotFound) {
		return nil, nil
	}
	return content, err
}

func readLimited(r io.Reader, limit int) ([]byte, error) {
	if limit < 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, int64(limit)))
}
