package document

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/ceparser/core/binary"
	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/internal/archive"
)

// MetaEntry is the archive member consulted first when sniffing the format.
const MetaEntry = "meta"

// sniffLength is the number of leading bytes read from an archive member.
const sniffLength = 6

// IsCompressed reports whether data is a zip archive.
func IsCompressed(data []byte) bool {
	return archive.IsZip(data)
}

// PayloadMask returns the archive entry mask for the primary payload of the
// file called name: "*" followed by its extension, ignoring bundle suffixes.
func PayloadMask(name string) string {
	base := filepath.Base(name)
	for _, suffix := range []string{".tar.xz", ".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(base, suffix) && len(base) > len(suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	return "*" + filepath.Ext(base)
}

// IsBinary reports whether the file called name with content data holds the
// binary encoding. Archives are sniffed through their meta entry, or the
// primary payload entry when there is no meta entry; the marker must sit at
// offset 3. Plain files may carry the marker at offset 3 or 4.
func IsBinary(name string, data []byte) (bool, error) {
	if archive.Detect(data) == archive.KindNone {
		return binary.HeaderLength(data) > 0, nil
	}
	head, err := archive.Extract(data, MetaEntry, sniffLength)
	if err != nil {
		return false, err
	}
	if head == nil {
		mask := PayloadMask(name)
		if head, err = archive.Extract(data, mask, sniffLength); err != nil {
			return false, err
		}
		if head == nil {
			return false, cperrors.NewNotFound("archive entry", mask)
		}
	}
	return markerAt(head, 3), nil
}

func markerAt(data []byte, off int) bool {
	end := off + len(binary.Marker)
	return len(data) >= end && bytes.Equal(data[off:end], binary.Marker)
}

// GameFromHeader derives a game identifier from a header such as "EU4bin" or
// "HOI4txt". It returns "" when data has no such header.
func GameFromHeader(data []byte) string {
	for _, off := range []int{3, 4} {
		if len(data) < off+3 {
			break
		}
		switch string(data[off : off+3]) {
		case "bin", "txt":
			tag := data[:off]
			if isAlnum(tag) {
				return strings.ToLower(string(tag))
			}
		}
	}
	return ""
}

func isAlnum(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// payload returns the bytes to decode: the primary archive entry, or data
// itself for plain files.
func payload(name string, data []byte) ([]byte, error) {
	if archive.Detect(data) == archive.KindNone {
		return data, nil
	}
	mask := PayloadMask(name)
	content, err := archive.Extract(data, mask, -1)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, cperrors.NewNotFound("archive entry", mask)
	}
	return content, nil
}
