// Package validation checks user-supplied names, archive entry paths and
// uploaded files before they reach the filesystem or the catalog.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on user-supplied names.
const (
	// MaxNameLength is the longest project or file name accepted.
	MaxNameLength = 255
	// MaxPathLength is the longest archive entry path accepted.
	MaxPathLength = 4096
)

// Validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidName      = errors.New("invalid name")
	ErrNameTooLong      = errors.New("name too long")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrTypeMismatch     = errors.New("file type mismatch")
)

// ValidateName checks a single path element such as a project directory
// name. Hidden names, separators and control characters are rejected.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// EntryPath cleans a slash-separated archive entry name and checks that it
// stays under dir. The cleaned name is returned.
func EntryPath(dir, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}
	if len(name) > MaxPathLength {
		return "", ErrPathTooLong
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrPathTraversal
	}
	if dir != "" && !strings.HasPrefix(clean, path.Clean(dir)+"/") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrPathTraversal, clean, dir)
	}
	return clean, nil
}

// FileType is a file format detected from content or name.
type FileType string

// Known file types
const (
	FileTypeTarXZ   FileType = "tar.xz"
	FileTypeTarGZ   FileType = "tar.gz"
	FileTypeXZ      FileType = "xz"
	FileTypeGzip    FileType = "gzip"
	FileTypeXML     FileType = "xml"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// ValidateFileType reads the head of r and checks that it agrees with the
// extension of filename. Compressed tarballs are matched on their outer
// compression; XML and text files must look like text.
func ValidateFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := detectFromMagic(buf)
	expected := detectFromExtension(filename)
	switch {
	case expected == FileTypeTarXZ && detected == FileTypeXZ,
		expected == FileTypeTarGZ && detected == FileTypeGzip:
		return expected, nil
	case expected == FileTypeXML || expected == FileTypeText:
		if detected == FileTypeUnknown && isLikelyText(buf) {
			return expected, nil
		}
	case expected == FileTypeUnknown:
		return detected, nil
	}
	if detected == FileTypeUnknown && !isLikelyText(buf) {
		detected = "binary"
	} else if detected == FileTypeUnknown {
		detected = FileTypeText
	}
	return FileTypeUnknown, fmt.Errorf("%w: %s is named like %s but contains %s", ErrTypeMismatch, filename, expected, detected)
}

func detectFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

func detectFromExtension(filename string) FileType {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FileTypeTarXZ
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FileTypeTarGZ
	}
	switch filepath.Ext(lower) {
	case ".xml":
		return FileTypeXML
	case ".txt", ".sfm", ".usfm":
		return FileTypeText
	default:
		return FileTypeUnknown
	}
}

// isLikelyText reports whether buf is mostly printable. UTF-8 bytes above
// 0x7f count as neither printable nor control.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 || bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r' || (b >= 0x20 && b <= 0x7e):
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
