// Package faceplusplus is a client for the Face++ compare, detect, FaceSet
// search and text recognition APIs.
//
// The client does not retry. Callers wrap calls in a resilience policy;
// APIError and httpclient.StatusError report whether a failure is
// temporary.
package faceplusplus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mycvconnect/mhire/pkg/utils/httpclient"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

const (
	DefaultBaseURL = "https://api-us.faceplusplus.com"

	comparePath = "/facepp/v3/compare"
	detectPath  = "/facepp/v3/detect"
)

var (
	// ErrNoFace is returned when an image contains no detectable face.
	ErrNoFace = errors.New("faceplusplus: no face detected")
	// ErrMultipleFaces is returned when the face photo has more than one face.
	ErrMultipleFaces = errors.New("faceplusplus: multiple faces detected")
	// ErrBadImage is returned when Face++ rejects the image itself.
	ErrBadImage = errors.New("faceplusplus: image rejected")
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// QPS and Burst size the client-side token bucket. QPS <= 0 disables it.
	QPS   float64
	Burst int
}

// Client calls Face++. It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *httpclient.Client
	limiter   *rate.Limiter
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("faceplusplus: api key and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return NewClientWith(cfg, httpclient.NewClient(cfg.Timeout)), nil
}

// NewClientWith builds a Client over an existing http client.
func NewClientWith(cfg Config, hc *httpclient.Client) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      hc,
	}
	if cfg.QPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), burst)
	}
	return c
}

// Name identifies the upstream in logs and breaker state.
func (c *Client) Name() string { return "faceplusplus" }

// Rectangle is a face bounding box in pixels.
type Rectangle struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area.
func (r Rectangle) Area() int { return r.Width * r.Height }

// Face is a detected face.
type Face struct {
	FaceToken  string      `json:"face_token"`
	Rectangle  Rectangle   `json:"face_rectangle"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

// LargestFace returns the face with the biggest bounding box.
func LargestFace(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Rectangle.Area() > best.Rectangle.Area() {
			best = f
		}
	}
	return best, true
}

// CompareRequest names the face photo and one reference: an image or a
// face token previously returned by Detect.
type CompareRequest struct {
	Image          []byte
	ReferenceImage []byte
	ReferenceToken string
}

// CompareResult is the outcome of a compare call.
type CompareResult struct {
	RequestID  string  `json:"request_id"`
	Confidence float64 `json:"confidence"`
	// Thresholds holds the Face++ reference thresholds (1e-3, 1e-4, 1e-5).
	Thresholds map[string]float64 `json:"thresholds"`
	Faces1     []Face             `json:"faces1"`
	Faces2     []Face             `json:"faces2"`
}

// ReferenceFace returns the reference face Face++ compared against, the
// largest one when the reference image holds several.
func (r *CompareResult) ReferenceFace() (Face, bool) {
	return LargestFace(r.Faces2)
}

// DetectResult is the outcome of a detect call.
type DetectResult struct {
	RequestID string `json:"request_id"`
	FaceNum   int    `json:"face_num"`
	Faces     []Face `json:"faces"`
}

type apiResponse struct {
	ErrorMessage string `json:"error_message"`
}

// Compare compares the face photo with the reference. A photo with zero
// faces yields ErrNoFace, one with several faces ErrMultipleFaces; a
// reference image without faces yields ErrNoFace as well.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (*CompareResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: empty face photo", ErrBadImage)
	}
	if len(req.ReferenceImage) == 0 && req.ReferenceToken == "" {
		return nil, errors.New("faceplusplus: reference image or token is required")
	}

	fields := map[string]string{}
	files := map[string][]byte{"image_file1": req.Image}
	if len(req.ReferenceImage) > 0 {
		files["image_file2"] = req.ReferenceImage
	} else {
		fields["face_token2"] = req.ReferenceToken
	}

	var out CompareResult
	if err := c.post(ctx, comparePath, fields, files, &out); err != nil {
		return nil, err
	}

	switch {
	case len(out.Faces1) == 0:
		return nil, fmt.Errorf("%w in face photo", ErrNoFace)
	case len(out.Faces1) > 1:
		return nil, fmt.Errorf("%w in face photo", ErrMultipleFaces)
	case len(req.ReferenceImage) > 0 && len(out.Faces2) == 0:
		return nil, fmt.Errorf("%w in reference image", ErrNoFace)
	}
	return &out, nil
}

// Detect finds the faces in image.
func (c *Client) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadImage)
	}
	var out DetectResult
	if err := c.post(ctx, detectPath, nil, map[string][]byte{"image_file": image}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, fields map[string]string, files map[string][]byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, contentType, err := c.encodeForm(fields, files)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("faceplusplus: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("faceplusplus: read response: %w", err)
	}

	var apiErr apiResponse
	_ = json.Unmarshal(data, &apiErr)
	if apiErr.ErrorMessage != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.ErrorMessage}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("faceplusplus: decode response: %w", err)
	}
	return nil
}

func (c *Client) encodeForm(fields map[string]string, files map[string][]byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("api_key", c.apiKey)
	_ = mw.WriteField("api_secret", c.apiSecret)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".jpg")
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
