package faceplusplus

import (
	"context"
	"fmt"
	"strings"
)

// recognizeTextPath is served by the Image++ product on the same host.
const recognizeTextPath = "/imagepp/v1/recognizetext"

// TextItem is one recognised line or word.
type TextItem struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TextResult is the outcome of a recognizetext call.
type TextResult struct {
	RequestID string `json:"request_id"`
	Result    struct {
		Text []TextItem `json:"text"`
	} `json:"result"`
}

// Text joins the recognised values with single spaces.
func (r *TextResult) Text() string {
	parts := make([]string, 0, len(r.Result.Text))
	for _, t := range r.Result.Text {
		if v := strings.TrimSpace(t.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// RecognizeText runs OCR over image.
func (c *Client) RecognizeText(ctx context.Context, image []byte) (*TextResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadImage)
	}
	var out TextResult
	if err := c.post(ctx, recognizeTextPath, nil, map[string][]byte{"image_file": image}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
