package biz

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/biometric/faceplusplus"
	"github.com/mycvconnect/mhire/pkg/resilience"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
)

// fakeIdentity mimics Face++ FaceSets in memory.
type fakeIdentity struct {
	mu         sync.Mutex
	faces      []faceplusplus.Face
	detectErr  error
	searchErr  map[string]error
	detailErr  map[string]error
	results    map[string][]faceplusplus.SearchMatch
	sets       map[string][]string
	text       string
	confidence float64
	cardFaces  int
	calls      []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		faces: []faceplusplus.Face{{
			FaceToken:  "new-face",
			Attributes: &faceplusplus.Attributes{Gender: &faceplusplus.Label{Value: "Male"}, FaceQuality: &faceplusplus.Value{Value: 80}},
		}},
		searchErr: map[string]error{},
		detailErr: map[string]error{},
		results:   map[string][]faceplusplus.SearchMatch{},
		sets:      map[string][]string{},
		cardFaces: 1,
	}
}

func (f *fakeIdentity) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeIdentity) Compare(_ context.Context, req faceplusplus.CompareRequest) (*faceplusplus.CompareResult, error) {
	f.record("compare")
	faces2 := make([]faceplusplus.Face, f.cardFaces)
	return &faceplusplus.CompareResult{Confidence: f.confidence, Faces1: []faceplusplus.Face{{}}, Faces2: faces2}, nil
}

func (f *fakeIdentity) DetectAttributes(_ context.Context, _ []byte) (*faceplusplus.DetectResult, error) {
	f.record("detect")
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return &faceplusplus.DetectResult{FaceNum: len(f.faces), Faces: f.faces}, nil
}

func (f *fakeIdentity) SearchFaces(_ context.Context, outerID, _ string, count int) (*faceplusplus.SearchResult, error) {
	f.record("search:" + outerID)
	if err := f.searchErr[outerID]; err != nil {
		return nil, err
	}
	return &faceplusplus.SearchResult{Results: f.results[outerID]}, nil
}

func (f *fakeIdentity) CreateFaceSet(_ context.Context, outerID string, _ ...string) (*faceplusplus.FaceSet, error) {
	f.record("create:" + outerID)
	f.mu.Lock()
	f.sets[outerID] = nil
	f.mu.Unlock()
	return &faceplusplus.FaceSet{OuterID: outerID}, nil
}

func (f *fakeIdentity) AddFaces(_ context.Context, outerID string, tokens ...string) (*faceplusplus.AddFaceResult, error) {
	f.record("add:" + outerID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[outerID] = append(f.sets[outerID], tokens...)
	return &faceplusplus.AddFaceResult{FaceAdded: len(tokens), FaceCount: len(f.sets[outerID])}, nil
}

func (f *fakeIdentity) FaceSetDetail(_ context.Context, outerID string) (*faceplusplus.FaceSet, error) {
	f.record("detail:" + outerID)
	if err := f.detailErr[outerID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &faceplusplus.FaceSet{OuterID: outerID, FaceCount: len(f.sets[outerID])}, nil
}

func (f *fakeIdentity) RecognizeText(_ context.Context, _ []byte) (*faceplusplus.TextResult, error) {
	f.record("ocr")
	var out faceplusplus.TextResult
	out.Result.Text = []faceplusplus.TextItem{{Type: "textline", Value: f.text}}
	return &out, nil
}

func newTestIdentity(client IdentityClient, fs store.FaceSetStore, records store.VerificationStore, m *metrics.Metrics) *IdentityService {
	svc := NewIdentityService(client, fs, records, nil, IdentityConfig{Metrics: m})
	svc.normalize = func(b []byte) ([]byte, error) {
		if string(b) == "garbage" {
			return nil, faceplusplus.ErrUndecodable
		}
		return b, nil
	}
	svc.newSetID = func() string { return "faceset_0000beef" }
	return svc
}

func TestResolveThreshold(t *testing.T) {
	got, err := ResolveThreshold(0, 75)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got)

	for _, v := range []float64{50, 72.5, 95} {
		got, err := ResolveThreshold(v, 75)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, v := range []float64{49, 96, -10} {
		_, err := ResolveThreshold(v, 75)
		assert.ErrorIs(t, err, apierrors.ErrInvalidRequest)
	}
}

func TestNewFaceSetID(t *testing.T) {
	id := newFaceSetID()
	assert.Regexp(t, `^faceset_[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, newFaceSetID())
}

func TestIdentityService_RegistersNewFace(t *testing.T) {
	client := newFakeIdentity()
	fs := store.NewMemoryFaceSetStore()
	m := metrics.New()
	svc := newTestIdentity(client, fs, nil, m)

	res, err := svc.CheckDuplicate(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateStatusRegistered, res.Status)
	assert.Equal(t, "New face registered successfully", res.Message)
	assert.False(t, res.IsDuplicate)
	assert.Equal(t, "new-face", res.FaceToken)
	assert.Equal(t, "faceset_0000beef", res.FaceSetID)
	assert.Nil(t, res.Confidence)

	assert.Equal(t, []string{"detect", "create:faceset_0000beef", "add:faceset_0000beef", "detail:faceset_0000beef"}, client.calls)
	assert.Equal(t, 1, fs.Faces())
	sets, err := fs.ListFaceSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, 1, sets[0].FaceCount)
	assert.Equal(t, uint64(1), m.Stats()["verifications"].(map[string]uint64)["face_registered"])
}

func TestIdentityService_FindsDuplicate(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	fs := store.NewMemoryFaceSetStore()
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_a", FaceCount: 2}))
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_b", FaceCount: 1}))
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_empty"}))
	client.results["faceset_a"] = []faceplusplus.SearchMatch{{FaceToken: "a1", Confidence: 91.5}, {FaceToken: "a2", Confidence: 89.99}}
	client.results["faceset_b"] = []faceplusplus.SearchMatch{{FaceToken: "b1", Confidence: 97}}
	svc := newTestIdentity(client, fs, nil, nil)

	res, err := svc.CheckDuplicate(ctx, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateStatusFound, res.Status)
	assert.True(t, res.IsDuplicate)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 97.0, *res.Confidence)
	assert.Equal(t, []model.FaceMatch{{FaceToken: "b1", Confidence: 97}, {FaceToken: "a1", Confidence: 91.5}}, res.Matches)
	assert.NotContains(t, client.calls, "search:faceset_empty")
	assert.Zero(t, fs.Faces())
}

func TestIdentityService_DuplicateBoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	fs := store.NewMemoryFaceSetStore()
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_a", FaceCount: 1}))
	client.results["faceset_a"] = []faceplusplus.SearchMatch{{FaceToken: "a1", Confidence: 90}}

	res, err := newTestIdentity(client, fs, nil, nil).CheckDuplicate(ctx, []byte("img"))
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)
}

func TestIdentityService_SkipsUnknownFaceSet(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	fs := store.NewMemoryFaceSetStore()
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_gone", FaceCount: 4}))
	client.searchErr["faceset_gone"] = &faceplusplus.APIError{StatusCode: http.StatusBadRequest, Message: "INVALID_OUTER_ID"}
	client.detailErr["faceset_gone"] = &faceplusplus.APIError{StatusCode: http.StatusBadRequest, Message: "INVALID_OUTER_ID"}

	res, err := newTestIdentity(client, fs, nil, nil).CheckDuplicate(ctx, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateStatusRegistered, res.Status)
	// 数据库中的 faceset 在 Face++ 不存在时新建
	assert.Equal(t, "faceset_0000beef", res.FaceSetID)
	assert.Contains(t, client.calls, "create:faceset_0000beef")
}

func TestIdentityService_ReusesAvailableFaceSet(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	client.sets["faceset_a"] = []string{"old"}
	fs := store.NewMemoryFaceSetStore()
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_a", FaceCount: 1}))

	res, err := newTestIdentity(client, fs, nil, nil).CheckDuplicate(ctx, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "faceset_a", res.FaceSetID)
	assert.NotContains(t, client.calls, "create:faceset_0000beef")

	fsNow, err := fs.AvailableFaceSet(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, fsNow.FaceCount)
}

func TestIdentityService_UpstreamSearchFailureAborts(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	fs := store.NewMemoryFaceSetStore()
	require.NoError(t, fs.SaveFaceSet(ctx, &model.FaceSet{OuterID: "faceset_a", FaceCount: 1}))
	client.searchErr["faceset_a"] = &faceplusplus.APIError{StatusCode: http.StatusServiceUnavailable, Message: "BACKEND_ERROR"}
	svc := newTestIdentity(client, fs, nil, nil)

	_, err := svc.CheckDuplicate(ctx, []byte("img"))
	assert.ErrorIs(t, err, apierrors.ErrVerificationService)
	assert.Zero(t, fs.Faces())
}

func TestIdentityService_RejectsNonHuman(t *testing.T) {
	client := newFakeIdentity()
	client.faces = []faceplusplus.Face{{FaceToken: "x", Attributes: &faceplusplus.Attributes{FaceQuality: &faceplusplus.Value{Value: 90}}}}
	_, err := newTestIdentity(client, store.NewMemoryFaceSetStore(), nil, nil).CheckDuplicate(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, apierrors.ErrInvalidImage)

	client.faces = nil
	_, err = newTestIdentity(client, store.NewMemoryFaceSetStore(), nil, nil).CheckDuplicate(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, apierrors.ErrInvalidImage)
}

func TestIdentityService_LowQualityStillChecked(t *testing.T) {
	client := newFakeIdentity()
	client.faces[0].Attributes.FaceQuality.Value = 12
	res, err := newTestIdentity(client, store.NewMemoryFaceSetStore(), nil, nil).CheckDuplicate(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, model.DuplicateStatusRegistered, res.Status)
}

func TestIdentityService_CallsGoThroughPolicy(t *testing.T) {
	client := newFakeIdentity()
	client.detectErr = &faceplusplus.APIError{StatusCode: http.StatusServiceUnavailable, Message: "BACKEND_ERROR"}

	policy := resilience.NewPolicy(&resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}, nil)
	svc := NewIdentityService(client, store.NewMemoryFaceSetStore(), nil, policy, IdentityConfig{})
	svc.normalize = func(b []byte) ([]byte, error) { return b, nil }

	_, err := svc.CheckDuplicate(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, apierrors.ErrVerificationService)
	assert.Equal(t, []string{"detect", "detect", "detect"}, client.calls)
}

func TestCheckDocumentText(t *testing.T) {
	doc := CheckDocumentText("PEOPLE'S REPUBLIC OF BANGLADESH National ID Card. Date of Birth: 01 Jan 1990")
	assert.True(t, doc.Valid)
	assert.Equal(t, []string{"national", "card", "republic", "bangladesh", "birth", "date", "id"}, doc.FoundIndicators)
	assert.Equal(t, 7, doc.IndicatorsFound)
	assert.InDelta(t, 7.0/27*100, doc.Confidence, 1e-9)

	doc = CheckDocumentText("Grocery receipt: milk bread")
	assert.False(t, doc.Valid)
	assert.Zero(t, doc.IndicatorsFound)

	// 单个关键词不足以判定
	doc = CheckDocumentText("passport photo")
	assert.False(t, doc.Valid)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	doc = CheckDocumentText(string(long))
	assert.Len(t, doc.ExtractedText, 200)
	assert.Equal(t, 500, doc.TextLength)
}

func TestIdentityService_VerifyNID(t *testing.T) {
	ctx := context.Background()
	client := newFakeIdentity()
	client.text = "Government of the Republic - National Identity Card"
	client.confidence = 81
	client.cardFaces = 2
	records := store.NewMemoryVerificationStore()
	m := metrics.New()
	svc := newTestIdentity(client, store.NewMemoryFaceSetStore(), records, m)

	res, err := svc.VerifyNID(ctx, NIDRequest{UserID: "u1", NIDCard: []byte("card"), FacePhoto: []byte("face")})
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, DefaultThreshold, res.Threshold)
	assert.Equal(t, 2, res.FacesInCard)
	assert.True(t, res.UsedLargestFace)
	require.NotNil(t, res.Document)
	assert.True(t, res.Document.Valid)
	assert.NotEmpty(t, res.RecordID)
	assert.Equal(t, []string{"ocr", "compare"}, client.calls)

	recs, err := records.ListRecords(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ReferenceNIDCard, recs[0].ReferenceKind)

	res, err = svc.VerifyNID(ctx, NIDRequest{NIDCard: []byte("card"), FacePhoto: []byte("face"), Threshold: 90})
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, "No match - Confidence: 81.00% (threshold 90%)", res.Message)
	assert.Empty(t, res.RecordID)

	got := m.Stats()["verifications"].(map[string]uint64)
	assert.Equal(t, uint64(1), got["nid_match"])
	assert.Equal(t, uint64(1), got["nid_no_match"])
}

func TestIdentityService_VerifyNIDRejections(t *testing.T) {
	ctx := context.Background()

	client := newFakeIdentity()
	client.text = "holiday snapshot"
	svc := newTestIdentity(client, store.NewMemoryFaceSetStore(), nil, nil)
	_, err := svc.VerifyNID(ctx, NIDRequest{NIDCard: []byte("card"), FacePhoto: []byte("face")})
	assert.ErrorIs(t, err, apierrors.ErrInvalidImage)
	assert.NotContains(t, client.calls, "compare")

	client = newFakeIdentity()
	svc = newTestIdentity(client, store.NewMemoryFaceSetStore(), nil, nil)
	for _, req := range []NIDRequest{
		{NIDCard: []byte("card"), FacePhoto: []byte("face"), Threshold: 40},
		{NIDCard: []byte("card"), FacePhoto: []byte("face"), Threshold: 99},
		{FacePhoto: []byte("face")},
		{NIDCard: []byte("card")},
	} {
		_, err := svc.VerifyNID(ctx, req)
		assert.ErrorIs(t, err, apierrors.ErrInvalidRequest)
	}

	_, err = svc.VerifyNID(ctx, NIDRequest{NIDCard: []byte("garbage"), FacePhoto: []byte("face")})
	assert.ErrorIs(t, err, apierrors.ErrInvalidImage)
	assert.Empty(t, client.calls)
}
