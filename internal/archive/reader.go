// Package archive reads and writes the compressed tar streams used for
// check catalog bundles. It supports tar.xz and tar.gz.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"
)

// Format is a compressed tar flavour.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarXZ
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatTarXZ:
		return "tar.xz"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// DetectFormat picks a format from a file name's extension.
func DetectFormat(name string) Format {
	switch {
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return FormatTarXZ
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	default:
		return FormatUnknown
	}
}

// Reader wraps a tar.Reader with decompression.
type Reader struct {
	*tar.Reader
	decompressor io.Closer
}

// NewReader decompresses r as the given format.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	switch format {
	case FormatTarXZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return &Reader{Reader: tar.NewReader(xzr)}, nil
	case FormatTarGz:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &Reader{Reader: tar.NewReader(gzr), decompressor: gzr}, nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", format)
	}
}

// Close releases the decompressor. It does not close the underlying reader.
func (r *Reader) Close() error {
	if r.decompressor != nil {
		return r.decompressor.Close()
	}
	return nil
}

// Visitor is called for each regular file. Return true to stop.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks the regular files of the archive in order.
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
