package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes is the upload limit of the resume endpoint.
const DefaultMaxBytes = 10 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader extracts text from supported formats.
type Loader struct {
	// MaxBytes caps the size of a single source; 0 means unlimited.
	MaxBytes int64
}

// NewLoader returns a Loader with the given size cap.
func NewLoader(maxBytes int64) *Loader {
	return &Loader{MaxBytes: maxBytes}
}

// Parse extracts the text of data, choosing the parser from name's
// extension. Plain text is kept verbatim apart from a leading BOM and
// invalid UTF-8 sequences, so rune offsets stay meaningful.
func (l *Loader) Parse(name string, data []byte) (string, error) {
	kind, err := KindOf(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, filepath.Ext(name))
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), l.MaxBytes)
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
	case KindDOCX:
		text, err = extractDOCX(data)
	default:
		data = bytes.TrimPrefix(data, utf8BOM)
		if utf8.Valid(data) {
			text = string(data)
		} else {
			text = strings.ToValidUTF8(string(data), "�")
		}
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// ParseReader reads at most MaxBytes+1 bytes from r and parses them.
func (l *Loader) ParseReader(name string, r io.Reader) (string, error) {
	if l.MaxBytes > 0 {
		r = io.LimitReader(r, l.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return l.Parse(name, data)
}

// Load reads and parses the file at path.
func (l *Loader) Load(path string) (Document, error) {
	kind, err := KindOf(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", err, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	text, err := l.Parse(path, data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return Document{
		ID:         IDFor(path),
		SourcePath: path,
		Name:       filepath.Base(path),
		Kind:       kind,
		Text:       text,
	}, nil
}

// Discover lists the supported files below root in lexical order, so
// repeated ingestion runs insert chunks in the same order.
func Discover(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
