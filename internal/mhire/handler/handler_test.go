package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/handler"
	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/router"
	"github.com/mycvconnect/mhire/pkg/component"
	httpserver "github.com/mycvconnect/mhire/pkg/infra/server/http"
	options "github.com/mycvconnect/mhire/pkg/options/server/http"
	"github.com/mycvconnect/mhire/pkg/validator"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

type fakeChat struct {
	mu       sync.Mutex
	session  string
	message  string
	ctxErr   error
	err      error
	answer   string
	delay    time.Duration
	finished chan struct{}
}

func (f *fakeChat) ChatWithCategory(ctx context.Context, sessionID, message string, onCategory func(model.Category)) (*biz.ChatResult, error) {
	if onCategory != nil {
		onCategory(model.CategorySystemInfo)
	}
	time.Sleep(f.delay)
	f.mu.Lock()
	f.session, f.message, f.ctxErr = sessionID, message, ctx.Err()
	f.mu.Unlock()
	if f.finished != nil {
		close(f.finished)
	}
	if f.err != nil {
		return nil, f.err
	}
	if sessionID == "" {
		sessionID = "generated"
	}
	return &biz.ChatResult{
		SessionID: sessionID,
		Response:  f.answer,
		Category:  model.CategorySystemInfo,
		Sources:   []model.Source{{ChunkID: "c1", DocumentName: "faq.md", Score: 0.8}},
	}, nil
}

// ChatStream streams the answer one word at a time.
func (f *fakeChat) ChatStream(ctx context.Context, sessionID, message string, hooks biz.ChatHooks) (*biz.ChatResult, error) {
	res, err := f.ChatWithCategory(ctx, sessionID, message, hooks.OnCategory)
	if err != nil {
		return nil, err
	}
	if hooks.OnDelta != nil {
		for _, w := range strings.SplitAfter(res.Response, " ") {
			if err := hooks.OnDelta(w); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

type fakeResume struct {
	filename string
	content  string
	err      error
}

func (f *fakeResume) Parse(_ context.Context, filename string, r io.Reader) (*model.ResumeData, error) {
	b, _ := io.ReadAll(r)
	f.filename, f.content = filename, string(b)
	if f.err != nil {
		return nil, f.err
	}
	name := "Jane Doe"
	data := &model.ResumeData{PersonalInformation: model.PersonalInformation{Name: &name}}
	data.Normalize()
	return data, nil
}

type fakeVerification struct {
	last    biz.VerifyRequest
	history map[string]*model.VerificationHistory
	err     error
}

func (f *fakeVerification) Verify(_ context.Context, req biz.VerifyRequest) (*model.VerificationResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.VerificationResponse{Match: true, Confidence: 88, Threshold: 75, Message: "Match - Confidence: 88.00%", RecordID: "r1"}, nil
}

func (f *fakeVerification) History(_ context.Context, userID string) (*model.VerificationHistory, error) {
	if h, ok := f.history[userID]; ok {
		return h, nil
	}
	return nil, apierrors.ErrVerificationNotFound
}

func (f *fakeVerification) Enroll(_ context.Context, userID string, image []byte) (*model.EnrollResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.EnrollResponse{UserID: userID, FaceToken: "tok-" + string(image)}, nil
}

type fakeIdentity struct {
	nid biz.NIDRequest
	err error
}

func (f *fakeIdentity) CheckDuplicate(_ context.Context, image []byte) (*model.DuplicateCheckResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if string(image) == "seen" {
		c := 96.5
		return &model.DuplicateCheckResponse{
			Status: model.DuplicateStatusFound, Message: "Potential duplicate face detected", IsDuplicate: true,
			FaceToken: "t-new", Confidence: &c, Matches: []model.FaceMatch{{FaceToken: "t-old", Confidence: c}},
		}, nil
	}
	return &model.DuplicateCheckResponse{Status: model.DuplicateStatusRegistered, Message: "New face registered successfully", FaceToken: "t-new", FaceSetID: "faceset_0a1b2c3d"}, nil
}

func (f *fakeIdentity) VerifyNID(_ context.Context, req biz.NIDRequest) (*model.NIDVerificationResponse, error) {
	f.nid = req
	if f.err != nil {
		return nil, f.err
	}
	th := req.Threshold
	if th == 0 {
		th = 75
	}
	return &model.NIDVerificationResponse{
		Match: true, Confidence: 82, Threshold: th, Message: "Match - Confidence: 82.00%", FacesInCard: 1,
		Document: &model.DocumentCheck{Valid: true, IndicatorsFound: 3, FoundIndicators: []string{"national", "id", "card"}},
	}, nil
}

type fakeIndex struct {
	count int64
	err   error
}

func (f fakeIndex) Name() string { return "file" }
func (f fakeIndex) Count(context.Context) (int64, error) { return f.count, f.err }

type pinger struct {
	name string
	err  error
}

func (p pinger) Name() string { return p.name }
func (p pinger) Ping(context.Context) error { return p.err }

type env struct {
	engine       *gin.Engine
	chat         *fakeChat
	resume       *fakeResume
	verification *fakeVerification
	identity     *fakeIdentity
	metrics      *metrics.Metrics
	handler      *handler.Handler
}

func newEnv(t *testing.T, pingers ...component.Pinger) *env {
	t.Helper()
	o := options.NewOptions()
	o.Mode = gin.TestMode
	o.MaxBodyBytes = 1 << 20
	srv := httpserver.NewServer(o)
	srv.SetValidator(validator.Global())

	e := &env{
		engine:       srv.Engine(),
		chat:         &fakeChat{answer: "Open Settings and choose Security to reset it."},
		resume:       &fakeResume{},
		verification: &fakeVerification{history: map[string]*model.VerificationHistory{}},
		identity:     &fakeIdentity{},
		metrics:      metrics.New(),
	}
	e.handler = handler.New(e.chat, e.resume, e.verification, handler.Config{
		RequestTimeout:       5 * time.Second,
		MaxUploadBytes:       1024,
		ResumeMaxUploadBytes: 4096,
	}, pingers...).
		WithIdentity(e.identity).
		WithStats(e.metrics, fakeIndex{count: 42})
	router.Register(e.engine, o.BasePath, e.handler)
	return e
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	if data != nil && len(body.Data) > 0 {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, path string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, p.content))
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestChat(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/api/v1/chat", "/chat"} {
		w := e.do(jsonRequest(path, `{"message":"how do I reset my password?","session_id":"s-1"}`))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var data model.ChatResponse
		body := decode(t, w, &data)
		assert.Zero(t, body.Code)
		assert.NotEmpty(t, body.RequestID)
		assert.Equal(t, "s-1", data.SessionID)
		assert.Equal(t, model.CategorySystemInfo, data.Category)
		assert.Equal(t, e.chat.answer, data.Response)
		assert.Len(t, data.Sources, 1)
	}
}

func TestChat_LegacyFields(t *testing.T) {
	e := newEnv(t)
	w := e.do(jsonRequest("/chat", `{"query":"hi","user_id":"u-7"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-7", e.chat.session)
	assert.Equal(t, "hi", e.chat.message)
}

func TestChat_BadRequests(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{
		`{"message":"   "}`,
		`{"message":"hi","session_id":"not valid!"}`,
		`{"message":`,
	} {
		w := e.do(jsonRequest("/api/v1/chat", body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, apierrors.ErrInvalidRequest.Code, decode(t, w, nil).Code, body)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	e := newEnv(t)
	e.chat.err = apierrors.ErrUpstreamModel.WithCause(errors.New("503 from provider"))

	w := e.do(jsonRequest("/chat", `{"message":"hi"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w, nil)
	assert.Equal(t, apierrors.ErrUpstreamModel.Code, body.Code)
	assert.NotContains(t, body.Message, "503 from provider")
}

func TestChat_ClientAbortLetsUpstreamFinish(t *testing.T) {
	e := newEnv(t)
	e.chat.delay = 20 * time.Millisecond
	e.chat.finished = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	req := jsonRequest("/chat", `{"message":"hi","session_id":"s-1"}`).WithContext(ctx)
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	e.do(req)

	<-e.chat.finished
	e.chat.mu.Lock()
	defer e.chat.mu.Unlock()
	assert.NoError(t, e.chat.ctxErr)
	assert.Equal(t, "s-1", e.chat.session)
}

func TestChatStream(t *testing.T) {
	e := newEnv(t)
	w := e.do(jsonRequest("/api/v1/chat/stream", `{"message":"hi","session_id":"s-1"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	out := w.Body.String()
	iCat := strings.Index(out, "event:category")
	iContent := strings.Index(out, "event:content")
	iDone := strings.Index(out, "event:done")
	require.True(t, iCat >= 0 && iContent > iCat && iDone > iContent, out)
	assert.Contains(t, out, `"session_id":"s-1"`)
	// 每个模型增量对应一个 content 事件
	assert.Equal(t, len(strings.Fields(e.chat.answer)), strings.Count(out, "event:content"))
	assert.Contains(t, out, `{"content":"Settings "}`)
}

func TestChatStream_Error(t *testing.T) {
	e := newEnv(t)
	e.chat.err = apierrors.ErrIndexUnavailable
	w := e.do(jsonRequest("/chat/stream", `{"message":"hi"}`))
	out := w.Body.String()
	assert.Contains(t, out, "event:error")
	assert.NotContains(t, out, "event:done")
}

func TestResume(t *testing.T) {
	e := newEnv(t)
	w := e.do(multipartRequest(t, "/api/v1/resume", part{"file", "cv.txt", "Jane Doe, engineer"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data model.ResumeData
	decode(t, w, &data)
	require.NotNil(t, data.PersonalInformation.Name)
	assert.Equal(t, "Jane Doe", *data.PersonalInformation.Name)
	assert.Equal(t, "cv.txt", e.resume.filename)
	assert.Equal(t, "Jane Doe, engineer", e.resume.content)
}

func TestResume_Errors(t *testing.T) {
	e := newEnv(t)

	w := e.do(multipartRequest(t, "/resume", part{field: "other", content: "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 简历上限独立于图片上限
	w = e.do(multipartRequest(t, "/resume", part{"file", "cv.txt", strings.Repeat("x", 2048)}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(multipartRequest(t, "/resume", part{"file", "cv.txt", strings.Repeat("x", 5000)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apierrors.ErrFileTooLarge.Code, decode(t, w, nil).Code)

	e.resume.err = apierrors.ErrUnsupportedFile
	w = e.do(multipartRequest(t, "/resume", part{"file", "cv.exe", "MZ"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrUnsupportedFile.Code, decode(t, w, nil).Code)
}

func TestFaceVerification(t *testing.T) {
	e := newEnv(t)
	w := e.do(multipartRequest(t, "/api/v1/face-verification",
		part{field: "user_id", content: "u-1"},
		part{"image", "selfie.jpg", "selfie-bytes"},
		part{field: "reference_token", content: "tok"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data model.VerificationResponse
	decode(t, w, &data)
	assert.True(t, data.Match)
	assert.Equal(t, "r1", data.RecordID)
	assert.Equal(t, "u-1", e.verification.last.UserID)
	assert.Equal(t, []byte("selfie-bytes"), e.verification.last.Image)
	assert.Equal(t, "tok", e.verification.last.ReferenceToken)
	assert.Nil(t, e.verification.last.ReferenceImage)
}

func TestFaceVerification_Errors(t *testing.T) {
	e := newEnv(t)

	w := e.do(multipartRequest(t, "/face-verification", part{"image", "selfie.jpg", "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(multipartRequest(t, "/face-verification", part{field: "user_id", content: "u-1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.verification.err = apierrors.ErrVerificationService
	w = e.do(multipartRequest(t, "/face-verification",
		part{field: "user_id", content: "u-1"},
		part{"image", "selfie.jpg", "x"},
		part{"reference_image", "ref.jpg", "y"},
	))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, []byte("y"), e.verification.last.ReferenceImage)
}

func TestEnrollReference(t *testing.T) {
	e := newEnv(t)
	w := e.do(multipartRequest(t, "/face-verification/reference",
		part{field: "user_id", content: "u-1"},
		part{"image", "me.jpg", "face"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data model.EnrollResponse
	decode(t, w, &data)
	assert.Equal(t, "tok-face", data.FaceToken)
}

func TestVerificationHistory(t *testing.T) {
	e := newEnv(t)
	e.verification.history["u-1"] = &model.VerificationHistory{
		UserID:  "u-1",
		Records: []*model.VerificationRecord{{ID: "r1", UserID: "u-1", Outcome: model.OutcomeMatch}},
	}

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/verification/u-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data model.VerificationHistory
	decode(t, w, &data)
	require.Len(t, data.Records, 1)
	assert.Equal(t, "r1", data.Records[0].ID)

	w = e.do(httptest.NewRequest(http.MethodGet, "/verification/u-2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierrors.ErrVerificationNotFound.Code, decode(t, w, nil).Code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, pinger{name: "redis"}, pinger{name: "mongodb"})
	w := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data handler.HealthStatus
	decode(t, w, &data)
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, map[string]string{"redis": "ok", "mongodb": "ok"}, data.Components)

	e = newEnv(t, pinger{name: "redis"}, pinger{name: "mongodb", err: errors.New("connection refused")})
	w = e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w, &data)
	assert.Equal(t, apierrors.ErrServiceUnavailable.Code, body.Code)
	assert.Equal(t, "degraded", data.Status)
}

func TestFaceVerification_Threshold(t *testing.T) {
	e := newEnv(t)
	w := e.do(multipartRequest(t, "/face-verification",
		part{field: "user_id", content: "u-1"},
		part{field: "confidence_threshold", content: "82.5"},
		part{"image", "selfie.jpg", "x"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 82.5, e.verification.last.Threshold)

	w = e.do(multipartRequest(t, "/face-verification",
		part{field: "user_id", content: "u-1"},
		part{field: "confidence_threshold", content: "high"},
		part{"image", "selfie.jpg", "x"},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageUploadLimit(t *testing.T) {
	e := newEnv(t)
	w := e.do(multipartRequest(t, "/face-verification",
		part{field: "user_id", content: "u-1"},
		part{"image", "selfie.jpg", strings.Repeat("x", 2048)},
	))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDuplicateCheck(t *testing.T) {
	e := newEnv(t)

	w := e.do(multipartRequest(t, "/api/v1/face-verification/duplicate", part{"image", "face.jpg", "fresh"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data model.DuplicateCheckResponse
	decode(t, w, &data)
	assert.Equal(t, "success", data.Status)
	assert.False(t, data.IsDuplicate)
	assert.Equal(t, "faceset_0a1b2c3d", data.FaceSetID)

	w = e.do(multipartRequest(t, "/face-verification/duplicate", part{"image", "face.jpg", "seen"}))
	require.Equal(t, http.StatusOK, w.Code)
	data = model.DuplicateCheckResponse{}
	decode(t, w, &data)
	assert.Equal(t, "duplicate_found", data.Status)
	assert.True(t, data.IsDuplicate)
	require.NotNil(t, data.Confidence)
	assert.Equal(t, 96.5, *data.Confidence)
	require.Len(t, data.Matches, 1)

	w = e.do(multipartRequest(t, "/face-verification/duplicate", part{field: "other", content: "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.identity.err = apierrors.ErrInvalidImage.WithMessage("unable to detect human face characteristics")
	w = e.do(multipartRequest(t, "/face-verification/duplicate", part{"image", "face.jpg", "cat"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrInvalidImage.Code, decode(t, w, nil).Code)
}

func TestNIDVerification(t *testing.T) {
	e := newEnv(t)

	w := e.do(multipartRequest(t, "/api/v1/nid-verification",
		part{"nid_card", "nid.jpg", "card-bytes"},
		part{"face_photo", "face.jpg", "face-bytes"},
		part{field: "confidence_threshold", content: "80"},
		part{field: "user_id", content: "u-1"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data model.NIDVerificationResponse
	decode(t, w, &data)
	assert.True(t, data.Match)
	assert.Equal(t, 80.0, data.Threshold)
	require.NotNil(t, data.Document)
	assert.True(t, data.Document.Valid)
	assert.Equal(t, []byte("card-bytes"), e.identity.nid.NIDCard)
	assert.Equal(t, []byte("face-bytes"), e.identity.nid.FacePhoto)
	assert.Equal(t, "u-1", e.identity.nid.UserID)

	w = e.do(multipartRequest(t, "/nid-verification", part{"face_photo", "face.jpg", "f"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(multipartRequest(t, "/nid-verification", part{"nid_card", "nid.jpg", "c"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.identity.err = apierrors.ErrInvalidRequest.WithMessage("confidence_threshold must be between 50 and 95")
	w = e.do(multipartRequest(t, "/nid-verification",
		part{"nid_card", "nid.jpg", "c"},
		part{"face_photo", "face.jpg", "f"},
		part{field: "confidence_threshold", content: "99"},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 99.0, e.identity.nid.Threshold)
}

func TestIdentityRoutesWithoutService(t *testing.T) {
	o := options.NewOptions()
	o.Mode = gin.TestMode
	srv := httpserver.NewServer(o)
	h := handler.New(&fakeChat{}, &fakeResume{}, &fakeVerification{}, handler.Config{})
	router.Register(srv.Engine(), o.BasePath, h)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, multipartRequest(t, "/face-verification/duplicate", part{"image", "face.jpg", "x"}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	e.metrics.RecordChat(false, nil)
	e.metrics.RecordVerification("match")

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Metrics struct {
			Chat struct {
				Total uint64 `json:"total"`
			} `json:"chat"`
			Verifications map[string]uint64 `json:"verifications"`
		} `json:"metrics"`
		Index struct {
			Backend string `json:"backend"`
			Chunks  int64  `json:"chunks"`
		} `json:"index"`
	}
	decode(t, w, &data)
	assert.Equal(t, uint64(1), data.Metrics.Chat.Total)
	assert.Equal(t, uint64(1), data.Metrics.Verifications["match"])
	assert.Equal(t, "file", data.Index.Backend)
	assert.Equal(t, int64(42), data.Index.Chunks)
}

func TestMetricsExport(t *testing.T) {
	e := newEnv(t)
	e.metrics.RecordRetrieval(10*time.Millisecond, nil)

	w := e.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "mhire_retrieval_total 1")
	assert.Contains(t, w.Body.String(), "mhire_chat_requests_total 0")
}
