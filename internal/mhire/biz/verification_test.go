package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/biometric/faceplusplus"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

type fakeFace struct {
	confidence float64
	err        error
	faces      []faceplusplus.Face
	last       faceplusplus.CompareRequest
	calls      int
}

func (f *fakeFace) Compare(_ context.Context, req faceplusplus.CompareRequest) (*faceplusplus.CompareResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &faceplusplus.CompareResult{RequestID: "r1", Confidence: f.confidence}, nil
}

func (f *fakeFace) Detect(_ context.Context, _ []byte) (*faceplusplus.DetectResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &faceplusplus.DetectResult{FaceNum: len(f.faces), Faces: f.faces}, nil
}

type failingRecords struct {
	store.VerificationStore
}

func (failingRecords) InsertRecord(context.Context, *model.VerificationRecord) error {
	return errors.New("mongo down")
}

func newTestVerification(client FaceClient, vs store.VerificationStore) *VerificationService {
	svc := NewVerificationService(client, vs, nil, VerificationConfig{})
	// 测试图片无需解码
	svc.normalize = func(b []byte) ([]byte, error) {
		if string(b) == "garbage" {
			return nil, faceplusplus.ErrUndecodable
		}
		return b, nil
	}
	return svc
}

func TestVerificationService_Match(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	face := &fakeFace{confidence: 87.5}
	svc := newTestVerification(face, vs)

	ctx := requestid.NewContext(context.Background(), "req-1")
	res, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("selfie"), ReferenceImage: []byte("ref")})
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, 87.5, res.Confidence)
	assert.Equal(t, DefaultThreshold, res.Threshold)
	assert.Equal(t, "Match - Confidence: 87.50%", res.Message)
	assert.Equal(t, []byte("ref"), face.last.ReferenceImage)

	recs, err := vs.ListRecords(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RecordID, recs[0].ID)
	assert.Equal(t, model.OutcomeMatch, recs[0].Outcome)
	assert.Equal(t, model.ReferenceImage, recs[0].ReferenceKind)
	assert.Equal(t, "req-1", recs[0].RequestID)
}

func TestVerificationService_BelowThresholdIsNotAnError(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	svc := newTestVerification(&fakeFace{confidence: 74.99}, vs)

	res, err := svc.Verify(context.Background(), VerifyRequest{UserID: "u1", Image: []byte("selfie"), ReferenceToken: "tok"})
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, "No match - Confidence: 74.99% (threshold 75%)", res.Message)

	recs, err := vs.ListRecords(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.OutcomeNoMatch, recs[0].Outcome)
	assert.Equal(t, model.ReferenceToken, recs[0].ReferenceKind)
	assert.Equal(t, "tok", recs[0].ReferenceToken)
}

func TestVerificationService_ThresholdIsInclusive(t *testing.T) {
	svc := newTestVerification(&fakeFace{confidence: 75}, store.NewMemoryVerificationStore())
	res, err := svc.Verify(context.Background(), VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"})
	require.NoError(t, err)
	assert.True(t, res.Match)
}

func TestVerificationService_InvalidRequests(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	face := &fakeFace{confidence: 90}
	svc := newTestVerification(face, vs)
	ctx := context.Background()

	tests := []VerifyRequest{
		{Image: []byte("p"), ReferenceToken: "t"},
		{UserID: "u1", ReferenceToken: "t"},
		{UserID: "u1", Image: []byte("p"), ReferenceImage: []byte("r"), ReferenceToken: "t"},
	}
	for i, req := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := svc.Verify(ctx, req)
			assert.ErrorIs(t, err, apierrors.ErrInvalidRequest)
		})
	}
	assert.Zero(t, face.calls)
	recs, _ := vs.ListRecords(ctx, "u1", 0)
	assert.Empty(t, recs)
}

func TestVerificationService_ErrorsAreRecorded(t *testing.T) {
	tests := []struct {
		name string
		face *fakeFace
		req  VerifyRequest
		want *apierrors.Errno
	}{
		{"undecodable", &fakeFace{}, VerifyRequest{UserID: "u1", Image: []byte("garbage"), ReferenceToken: "t"}, apierrors.ErrInvalidImage},
		{"no face", &fakeFace{err: faceplusplus.ErrNoFace}, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"}, apierrors.ErrInvalidImage},
		{"upstream", &fakeFace{err: errUpstream}, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"}, apierrors.ErrVerificationService},
		{"no reference", &fakeFace{}, VerifyRequest{UserID: "u1", Image: []byte("p")}, apierrors.ErrFaceReferenceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := store.NewMemoryVerificationStore()
			svc := newTestVerification(tt.face, vs)

			_, err := svc.Verify(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)

			recs, err := vs.ListRecords(context.Background(), "u1", 0)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, model.OutcomeError, recs[0].Outcome)
			assert.False(t, recs[0].Match)
		})
	}
}

func TestVerificationService_PersistFailure(t *testing.T) {
	svc := newTestVerification(&fakeFace{confidence: 90}, failingRecords{store.NewMemoryVerificationStore()})
	_, err := svc.Verify(context.Background(), VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"})
	assert.ErrorIs(t, err, apierrors.ErrRecordPersist)
}

func TestVerificationService_EnrollAndStoredReference(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	face := &fakeFace{confidence: 91, faces: []faceplusplus.Face{
		{FaceToken: "small", Rectangle: faceplusplus.Rectangle{Width: 10, Height: 10}},
		{FaceToken: "large", Rectangle: faceplusplus.Rectangle{Width: 80, Height: 90}},
	}}
	svc := newTestVerification(face, vs)
	ctx := context.Background()

	enrolled, err := svc.Enroll(ctx, "u1", []byte("enrol"))
	require.NoError(t, err)
	assert.Equal(t, "large", enrolled.FaceToken)

	res, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("selfie")})
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, []byte("enrol"), face.last.ReferenceImage)
	assert.Empty(t, face.last.ReferenceToken)

	recs, err := vs.ListRecords(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ReferenceStored, recs[0].ReferenceKind)
	assert.Equal(t, "large", recs[0].ReferenceToken)
}

func TestVerificationService_EnrollNoFace(t *testing.T) {
	svc := newTestVerification(&fakeFace{}, store.NewMemoryVerificationStore())
	_, err := svc.Enroll(context.Background(), "u1", []byte("empty room"))
	assert.ErrorIs(t, err, apierrors.ErrInvalidImage)
}

func TestVerificationService_History(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	svc := newTestVerification(&fakeFace{confidence: 50}, vs)
	ctx := context.Background()

	_, err := svc.History(ctx, "u1")
	assert.ErrorIs(t, err, apierrors.ErrVerificationNotFound)

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"})
		require.NoError(t, err)
	}
	h, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", h.UserID)
	assert.Len(t, h.Records, 3)
}

func TestVerificationService_RequestThreshold(t *testing.T) {
	vs := store.NewMemoryVerificationStore()
	face := &fakeFace{confidence: 80}
	svc := newTestVerification(face, vs)
	ctx := context.Background()

	res, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t", Threshold: 85})
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, 85.0, res.Threshold)

	res, err = svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t", Threshold: 50})
	require.NoError(t, err)
	assert.True(t, res.Match)

	recs, err := vs.ListRecords(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 50.0, recs[0].Threshold)

	calls := face.calls
	for _, th := range []float64{49.9, 95.1, -1} {
		_, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t", Threshold: th})
		assert.ErrorIs(t, err, apierrors.ErrInvalidRequest, "threshold %v", th)
	}
	assert.Equal(t, calls, face.calls)
}

func TestVerificationService_RecordsOutcomeMetrics(t *testing.T) {
	m := metrics.New()
	svc := NewVerificationService(&fakeFace{confidence: 80}, store.NewMemoryVerificationStore(), nil, VerificationConfig{Metrics: m})
	svc.normalize = func(b []byte) ([]byte, error) { return b, nil }
	ctx := context.Background()

	_, err := svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t"})
	require.NoError(t, err)
	_, err = svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p"), ReferenceToken: "t", Threshold: 90})
	require.NoError(t, err)
	_, err = svc.Verify(ctx, VerifyRequest{UserID: "u1", Image: []byte("p")})
	require.Error(t, err)

	got := m.Stats()["verifications"].(map[string]uint64)
	assert.Equal(t, uint64(1), got["match"])
	assert.Equal(t, uint64(1), got["no_match"])
	assert.Equal(t, uint64(1), got["error"])
}
