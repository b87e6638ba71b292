package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// extractDOCX walks word/document.xml and emits one line per paragraph.
// Table cells are tab separated, rows end with a newline.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, docxBody) {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("open docx: %s not found", docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer rc.Close()

	return walkDOCX(rc)
}

func walkDOCX(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	atLineStart := true

	newline := func() {
		if !atLineStart {
			b.WriteByte('\n')
			atLineStart = true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return "", fmt.Errorf("decode docx text: %w", err)
				}
				b.WriteString(text)
				atLineStart = false
			case "tab":
				b.WriteByte('\t')
				atLineStart = false
			case "br", "cr":
				b.WriteByte('\n')
				atLineStart = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "tr":
				newline()
			case "tc":
				if !atLineStart {
					b.WriteByte('\t')
				}
			}
		}
	}
	return b.String(), nil
}
