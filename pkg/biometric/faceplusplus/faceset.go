package faceplusplus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	detectAttributes = "gender,age,ethnicity,facequality"

	facesetCreatePath = "/facepp/v3/faceset/create"
	facesetAddPath    = "/facepp/v3/faceset/addface"
	facesetDetailPath = "/facepp/v3/faceset/getdetail"
	searchPath        = "/facepp/v3/search"

	// FaceSetCapacity is the number of faces a FaceSet holds on Face++.
	FaceSetCapacity = 10000
	// MaxAddFaces is the number of face tokens accepted by one addface call.
	MaxAddFaces = 5
)

// Value is a numeric attribute with the threshold Face++ suggests for it.
type Value struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Label is a categorical attribute such as gender.
type Label struct {
	Value string `json:"value"`
}

// Attributes are the face attributes requested by DetectAttributes.
type Attributes struct {
	Gender      *Label `json:"gender,omitempty"`
	Age         *Value `json:"age,omitempty"`
	Ethnicity   *Label `json:"ethnicity,omitempty"`
	FaceQuality *Value `json:"facequality,omitempty"`
}

// Human reports whether Face++ recognised any human characteristic.
func (a *Attributes) Human() bool {
	return a != nil && (a.Gender != nil || a.Age != nil || a.Ethnicity != nil)
}

// Quality returns the face quality score, 0 when unknown.
func (a *Attributes) Quality() float64 {
	if a == nil || a.FaceQuality == nil {
		return 0
	}
	return a.FaceQuality.Value
}

// DetectAttributes detects the faces in image along with gender, age,
// ethnicity and face quality.
func (c *Client) DetectAttributes(ctx context.Context, image []byte) (*DetectResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadImage)
	}
	var out DetectResult
	fields := map[string]string{"return_attributes": detectAttributes}
	if err := c.post(ctx, detectPath, fields, map[string][]byte{"image_file": image}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FaceSet describes a Face++ FaceSet.
type FaceSet struct {
	FaceSetToken string `json:"faceset_token"`
	OuterID      string `json:"outer_id"`
	DisplayName  string `json:"display_name"`
	FaceCount    int    `json:"face_count"`
}

// CreateFaceSet creates an empty FaceSet named outerID.
func (c *Client) CreateFaceSet(ctx context.Context, outerID string, tags ...string) (*FaceSet, error) {
	if outerID == "" {
		return nil, errors.New("faceplusplus: outer_id is required")
	}
	fields := map[string]string{
		"outer_id":     outerID,
		"display_name": outerID,
	}
	if len(tags) > 0 {
		fields["tags"] = strings.Join(tags, ",")
	}
	var out FaceSet
	if err := c.post(ctx, facesetCreatePath, fields, nil, &out); err != nil {
		return nil, err
	}
	if out.OuterID == "" {
		out.OuterID = outerID
	}
	return &out, nil
}

// AddFaceResult is the outcome of an addface call.
type AddFaceResult struct {
	FaceAdded int `json:"face_added"`
	FaceCount int `json:"face_count"`
}

// AddFaces adds up to MaxAddFaces face tokens to the FaceSet.
func (c *Client) AddFaces(ctx context.Context, outerID string, faceTokens ...string) (*AddFaceResult, error) {
	switch {
	case outerID == "":
		return nil, errors.New("faceplusplus: outer_id is required")
	case len(faceTokens) == 0:
		return nil, errors.New("faceplusplus: no face tokens to add")
	case len(faceTokens) > MaxAddFaces:
		return nil, fmt.Errorf("faceplusplus: at most %d face tokens per call", MaxAddFaces)
	}
	var out AddFaceResult
	fields := map[string]string{
		"outer_id":    outerID,
		"face_tokens": strings.Join(faceTokens, ","),
	}
	if err := c.post(ctx, facesetAddPath, fields, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FaceSetDetail returns the FaceSet with its current face count.
func (c *Client) FaceSetDetail(ctx context.Context, outerID string) (*FaceSet, error) {
	var out FaceSet
	if err := c.post(ctx, facesetDetailPath, map[string]string{"outer_id": outerID}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchMatch is one candidate returned by a search.
type SearchMatch struct {
	FaceToken  string  `json:"face_token"`
	Confidence float64 `json:"confidence"`
	UserID     string  `json:"user_id,omitempty"`
}

// SearchResult is the outcome of a search call.
type SearchResult struct {
	RequestID  string             `json:"request_id"`
	Results    []SearchMatch      `json:"results"`
	Thresholds map[string]float64 `json:"thresholds"`
}

// SearchFaces looks for faceToken among the faces of a FaceSet and
// returns at most count candidates (1-5).
func (c *Client) SearchFaces(ctx context.Context, outerID, faceToken string, count int) (*SearchResult, error) {
	if faceToken == "" {
		return nil, errors.New("faceplusplus: face_token is required")
	}
	count = min(max(count, 1), 5)
	fields := map[string]string{
		"outer_id":            outerID,
		"face_token":          faceToken,
		"return_result_count": strconv.Itoa(count),
	}
	var out SearchResult
	if err := c.post(ctx, searchPath, fields, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
