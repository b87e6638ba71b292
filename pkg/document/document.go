// Package document turns pdf, docx, txt and md sources into plain text
// documents for chunking and resume extraction.
package document

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"

	"github.com/minio/highwayhash"
)

// Kind is a supported source format.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
)

var (
	// ErrUnsupportedFormat is returned for extensions outside pdf/docx/txt/md.
	ErrUnsupportedFormat = errors.New("document: unsupported file format")
	// ErrEmpty is returned when no text could be extracted.
	ErrEmpty = errors.New("document: no extractable text")
	// ErrTooLarge is returned when the source exceeds the loader limit.
	ErrTooLarge = errors.New("document: file too large")
)

// Document is the extracted text of one source file.
type Document struct {
	ID         string `json:"id"`
	SourcePath string `json:"source"`
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	Text       string `json:"text"`
}

var idKey = []byte("mhire/document/source-path/id/01")

// IDFor returns the stable document id for a source path.
func IDFor(sourcePath string) string {
	sum := highwayhash.Sum64([]byte(filepath.ToSlash(sourcePath)), idKey)
	var b [8]byte
	for i := range b {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}

// KindOf maps a file name to its Kind.
func KindOf(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return KindPDF, nil
	case "docx":
		return KindDOCX, nil
	case "txt", "text":
		return KindText, nil
	case "md", "markdown":
		return KindMarkdown, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Supported reports whether name has a loadable extension.
func Supported(name string) bool {
	_, err := KindOf(name)
	return err == nil
}
