package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"
)

// Writer builds a compressed tar stream.
type Writer struct {
	tw      *tar.Writer
	comp    io.WriteCloser
	modTime time.Time
}

// NewWriter compresses into w. Every entry gets modTime so bundles of the
// same content are byte-identical.
func NewWriter(w io.Writer, format Format, modTime time.Time) (*Writer, error) {
	var comp io.WriteCloser
	switch format {
	case FormatTarXZ:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		comp = xzw
	case FormatTarGz:
		comp = gzip.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", format)
	}
	return &Writer{tw: tar.NewWriter(comp), comp: comp, modTime: modTime.UTC()}, nil
}

// AddFile writes one regular file.
func (w *Writer) AddFile(name string, data []byte) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  w.modTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close flushes the tar stream and the compressor.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		w.comp.Close()
		return fmt.Errorf("close tar: %w", err)
	}
	if err := w.comp.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	return nil
}
