package archive

import (
	"archive/zip"
	"bytes"
	"path"
	"regexp"
	"strings"

	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
)

var zipMagic = []byte{'P', 'K'}

// IsZip reports whether data starts with the zip signature.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Like matches name against a glob mask where * is any run and ? any single
// character. Matching is case-sensitive and anchored at the start only, so
// "*.eu4" also accepts "save.eu4.bak".
func Like(name, mask string) bool {
	expr := regexp.QuoteMeta(mask)
	expr = strings.ReplaceAll(expr, `\*`, ".*")
	expr = strings.ReplaceAll(expr, `\?`, ".")
	re, err := regexp.Compile("^" + expr)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// OpenZip opens an in-memory zip archive.
func OpenZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, cperrors.Wrap(err, "open zip")
	}
	return zr, nil
}

// ExtractZip returns the content of the first entry whose base name matches
// mask, reading at most limit bytes; a negative limit reads the whole entry.
// It returns nil, nil when no entry matches.
func ExtractZip(data []byte, mask string, limit int) ([]byte, error) {
	zr, err := OpenZip(data)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !Like(path.Base(f.Name), mask) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, cperrors.NewIO("extract", f.Name, err)
		}
		content, err := readLimited(rc, limit)
		rc.Close()
		if err != nil {
			return nil, cperrors.NewIO("extract", f.Name, err)
		}
		return content, nil
	}
	return nil, nil
}

// Extract dispatches to ExtractZip or ExtractTar by content.
func Extract(data []byte, mask string, limit int) ([]byte, error) {
	switch Detect(data) {
	case KindZip:
		return ExtractZip(data, mask, limit)
	case KindTarGz, KindTarXz:
		return ExtractTar(data, mask, limit)
	}
	return nil, cperrors.NewUnsupported("archive", "data is not a zip or tar bundle")
}

// ZipNames lists the file entries of a zip archive in archive order.
func ZipNames(data []byte) ([]string, error) {
	zr, err := OpenZip(data)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
