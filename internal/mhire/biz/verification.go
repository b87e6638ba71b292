package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/biometric/faceplusplus"
	"github.com/mycvconnect/mhire/pkg/resilience"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

const (
	// DefaultThreshold is the confidence at or above which faces match.
	DefaultThreshold = 75.0

	upstreamFace = "faceplusplus"
)

// FaceClient is the subset of the Face++ client the service uses.
type FaceClient interface {
	Compare(ctx context.Context, req faceplusplus.CompareRequest) (*faceplusplus.CompareResult, error)
	Detect(ctx context.Context, image []byte) (*faceplusplus.DetectResult, error)
}

// ImageNormalizer prepares an uploaded image for the face service.
type ImageNormalizer func([]byte) ([]byte, error)

// VerificationConfig 人脸验证配置。
type VerificationConfig struct {
	// Threshold 匹配阈值（0-100）。
	Threshold float64
	// HistoryLimit 查询历史记录的最大条数，0 表示不限制。
	HistoryLimit int
	Metrics      *metrics.Metrics
}

// VerifyRequest names the submitted image and at most one explicit reference.
// Without one, the user's enrolled reference is used. A zero Threshold
// selects the configured one.
type VerifyRequest struct {
	UserID         string
	Image          []byte
	ReferenceImage []byte
	ReferenceToken string
	Threshold      float64
}

// VerificationService compares faces and keeps an audit trail of every
// attempt.
type VerificationService struct {
	client    FaceClient
	store     store.VerificationStore
	policy    *resilience.Policy
	normalize ImageNormalizer
	config    VerificationConfig
	now       func() time.Time
}

// NewVerificationService creates the service.
func NewVerificationService(client FaceClient, vs store.VerificationStore, policy *resilience.Policy, config VerificationConfig) *VerificationService {
	if policy == nil {
		policy = resilience.NoRetry()
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	return &VerificationService{
		client:    client,
		store:     vs,
		policy:    policy,
		normalize: faceplusplus.Normalize,
		config:    config,
		now:       time.Now,
	}
}

// Threshold returns the configured match threshold.
func (s *VerificationService) Threshold() float64 { return s.config.Threshold }

// Verify compares the submitted image with the reference. A confidence below the
// threshold is a negative result, not an error. Once the request names a
// user, every outcome is recorded, errors included.
func (s *VerificationService) Verify(ctx context.Context, req VerifyRequest) (*model.VerificationResponse, error) {
	resp, err := s.verify(ctx, req)
	switch {
	case err != nil:
		s.config.Metrics.RecordVerification(string(model.OutcomeError))
	case resp.Match:
		s.config.Metrics.RecordVerification(string(model.OutcomeMatch))
	default:
		s.config.Metrics.RecordVerification(string(model.OutcomeNoMatch))
	}
	return resp, err
}

func (s *VerificationService) verify(ctx context.Context, req VerifyRequest) (*model.VerificationResponse, error) {
	threshold, err := ResolveThreshold(req.Threshold, s.config.Threshold)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apierrors.ErrInvalidRequest.WithMessage("user_id is required")
	}
	if len(req.Image) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("image is required")
	}
	if len(req.ReferenceImage) > 0 && req.ReferenceToken != "" {
		return nil, apierrors.ErrInvalidRequest.WithMessage("provide either reference_image or reference_token, not both")
	}

	rec := &model.VerificationRecord{
		ID:        ulid.Make().String(),
		UserID:    req.UserID,
		Threshold: threshold,
		RequestID: requestid.FromContext(ctx),
		CreatedAt: s.now().UTC(),
	}

	cmp, err := s.prepare(ctx, req, rec)
	if err == nil {
		var res *faceplusplus.CompareResult
		err = s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
			out, err := s.client.Compare(ctx, cmp)
			res = out
			return err
		})
		if err != nil {
			err = mapFaceError(err)
		} else {
			s.decide(rec, res)
		}
	}
	if err != nil {
		rec.Outcome = model.OutcomeError
		rec.Message = apierrors.FromError(err).MessageEN
		s.persist(ctx, rec)
		return nil, err
	}

	if perr := s.persist(ctx, rec); perr != nil {
		return nil, apierrors.ErrRecordPersist.WithCause(perr)
	}
	logger.Infow("face verification completed",
		"request_id", rec.RequestID,
		"user_id", rec.UserID,
		"record_id", rec.ID,
		"outcome", string(rec.Outcome),
		"confidence", rec.Confidence,
	)
	return &model.VerificationResponse{
		Match:      rec.Match,
		Confidence: rec.Confidence,
		Threshold:  rec.Threshold,
		Message:    rec.Message,
		RecordID:   rec.ID,
	}, nil
}

// prepare normalises the images and resolves the reference.
func (s *VerificationService) prepare(ctx context.Context, req VerifyRequest, rec *model.VerificationRecord) (faceplusplus.CompareRequest, error) {
	var cmp faceplusplus.CompareRequest

	photo, err := s.normalize(req.Image)
	if err != nil {
		return cmp, mapFaceError(err)
	}
	cmp.Image = photo

	switch {
	case len(req.ReferenceImage) > 0:
		ref, err := s.normalize(req.ReferenceImage)
		if err != nil {
			return cmp, mapFaceError(fmt.Errorf("reference image: %w", err))
		}
		rec.ReferenceKind = model.ReferenceImage
		cmp.ReferenceImage = ref
	case req.ReferenceToken != "":
		rec.ReferenceKind = model.ReferenceToken
		rec.ReferenceToken = req.ReferenceToken
		cmp.ReferenceToken = req.ReferenceToken
	default:
		ref, err := s.store.GetReference(ctx, req.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return cmp, apierrors.ErrFaceReferenceNotFound
		}
		if err != nil {
			return cmp, apierrors.ErrDatabase.WithCause(err)
		}
		rec.ReferenceKind = model.ReferenceStored
		rec.ReferenceToken = ref.FaceToken
		// face token 72 小时后失效，优先使用保存的图片
		if len(ref.Image) > 0 {
			cmp.ReferenceImage = ref.Image
		} else {
			cmp.ReferenceToken = ref.FaceToken
		}
	}
	return cmp, nil
}

func (s *VerificationService) decide(rec *model.VerificationRecord, res *faceplusplus.CompareResult) {
	rec.Confidence = res.Confidence
	rec.Match = res.Confidence >= rec.Threshold
	if rec.Match {
		rec.Outcome = model.OutcomeMatch
		rec.Message = fmt.Sprintf("Match - Confidence: %.2f%%", res.Confidence)
	} else {
		rec.Outcome = model.OutcomeNoMatch
		rec.Message = fmt.Sprintf("No match - Confidence: %.2f%% (threshold %.0f%%)", res.Confidence, rec.Threshold)
	}
	if face, ok := res.ReferenceFace(); ok && len(res.Faces2) > 1 {
		logger.Infow("reference holds several faces, largest used",
			"request_id", rec.RequestID,
			"faces", len(res.Faces2),
			"width", face.Rectangle.Width,
			"height", face.Rectangle.Height,
		)
	}
}

func (s *VerificationService) persist(ctx context.Context, rec *model.VerificationRecord) error {
	// 审计记录不随客户端断开而丢失
	ctx = context.WithoutCancel(ctx)
	if err := s.store.InsertRecord(ctx, rec); err != nil {
		logger.Errorw("failed to persist verification record",
			"request_id", rec.RequestID,
			"user_id", rec.UserID,
			"record_id", rec.ID,
			"outcome", string(rec.Outcome),
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// History returns the user's records newest first.
func (s *VerificationService) History(ctx context.Context, userID string) (*model.VerificationHistory, error) {
	records, err := s.store.ListRecords(ctx, userID, s.config.HistoryLimit)
	if err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	if len(records) == 0 {
		return nil, apierrors.ErrVerificationNotFound
	}
	return &model.VerificationHistory{UserID: userID, Records: records}, nil
}

// Enroll detects the face in image and stores it as the user's reference.
// With several faces the largest one is kept.
func (s *VerificationService) Enroll(ctx context.Context, userID string, image []byte) (*model.EnrollResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierrors.ErrInvalidRequest.WithMessage("user_id is required")
	}
	if len(image) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("image is required")
	}
	img, err := s.normalize(image)
	if err != nil {
		return nil, mapFaceError(err)
	}

	var res *faceplusplus.DetectResult
	err = s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.Detect(ctx, img)
		res = out
		return err
	})
	if err != nil {
		return nil, mapFaceError(err)
	}
	face, ok := faceplusplus.LargestFace(res.Faces)
	if !ok {
		return nil, mapFaceError(fmt.Errorf("%w in reference image", faceplusplus.ErrNoFace))
	}

	ref := &model.FaceReference{
		UserID:    userID,
		FaceToken: face.FaceToken,
		Image:     img,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveReference(ctx, ref); err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	logger.Infow("face reference enrolled",
		"request_id", requestid.FromContext(ctx),
		"user_id", userID,
		"faces", len(res.Faces),
	)
	return &model.EnrollResponse{UserID: userID, FaceToken: face.FaceToken}, nil
}
