package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// File is one bundle member.
type File struct {
	Name    string
	Content []byte
}

// WriteTar writes files as an uncompressed tar stream. Timestamps are fixed so
// that identical inputs produce identical bundles.
func WriteTar(w io.Writer, files []File, modTime time.Time) error {
	tw := tar.NewWriter(w)
	for _, f := range files {
		header := &tar.Header{
			Name:     f.Name,
			Mode:     0644,
			Size:     int64(len(f.Content)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header %s: %w", f.Name, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return tw.Close()
}

// WriteTarXz writes files as a tar.xz bundle.
func WriteTarXz(w io.Writer, files []File, modTime time.Time) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if err := WriteTar(xw, files, modTime); err != nil {
		xw.Close()
		return err
	}
	return xw.Close()
}

// WriteTarGz writes files as a tar.gz bundle.
func WriteTarGz(w io.Writer, files []File, modTime time.Time) error {
	gw := gzip.NewWriter(w)
	if err := WriteTar(gw, files, modTime); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// CreateBundle writes files to dstPath, choosing the compression from its name:
// .tar.gz or .tgz for gzip, anything else for xz. Parent directories are created.
func CreateBundle(dstPath string, files []File) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if DetectPath(dstPath) == KindTarGz {
		err = WriteTarGz(out, files, now)
	} else {
		err = WriteTarXz(out, files, now)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	return nil
}
