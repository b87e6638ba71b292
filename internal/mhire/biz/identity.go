package biz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
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

// Accepted range of a per-request confidence threshold.
const (
	MinThreshold = 50.0
	MaxThreshold = 95.0

	// DefaultDuplicateConfidence is the search confidence at or above which
	// a registered face counts as the same person.
	DefaultDuplicateConfidence = 90.0
	// DefaultMinFaceQuality only triggers a warning; low quality faces
	// are still checked.
	DefaultMinFaceQuality = 40.0

	facesetPrefix = "faceset_"
	facesetTag    = "face_verification"
	searchResults = 5

	minDocumentIndicators = 2
	extractedTextLimit    = 200
)

// documentIndicators are words expected on a national identity card.
var documentIndicators = []string{
	"national", "identity", "card", "government", "republic",
	"bangladesh", "citizen", "birth", "date", "father", "mother",
	"address", "signature", "id", "no", "serial", "issue", "expire",
	"valid", "official", "ministry", "department", "registration",
	"voter", "passport", "license", "authority",
}

// IdentityClient is the subset of the Face++ client used for duplicate
// detection and NID checks.
type IdentityClient interface {
	Compare(ctx context.Context, req faceplusplus.CompareRequest) (*faceplusplus.CompareResult, error)
	DetectAttributes(ctx context.Context, image []byte) (*faceplusplus.DetectResult, error)
	SearchFaces(ctx context.Context, outerID, faceToken string, count int) (*faceplusplus.SearchResult, error)
	CreateFaceSet(ctx context.Context, outerID string, tags ...string) (*faceplusplus.FaceSet, error)
	AddFaces(ctx context.Context, outerID string, faceTokens ...string) (*faceplusplus.AddFaceResult, error)
	FaceSetDetail(ctx context.Context, outerID string) (*faceplusplus.FaceSet, error)
	RecognizeText(ctx context.Context, image []byte) (*faceplusplus.TextResult, error)
}

// IdentityConfig 身份核验配置。
type IdentityConfig struct {
	// Threshold NID 比对的默认阈值。
	Threshold float64
	// DuplicateConfidence 判定为重复人脸的最低置信度。
	DuplicateConfidence float64
	// MinFaceQuality 低于该质量只记录告警。
	MinFaceQuality float64
	// FaceSetCapacity 单个 FaceSet 的容量。
	FaceSetCapacity int
	Metrics         *metrics.Metrics
}

// NIDRequest asks whether FacePhoto shows the person on NIDCard. UserID is
// optional; when set the attempt is written to the audit trail.
type NIDRequest struct {
	UserID    string
	NIDCard   []byte
	FacePhoto []byte
	Threshold float64
}

// IdentityService detects duplicate registrations and checks national
// identity cards.
type IdentityService struct {
	client    IdentityClient
	facesets  store.FaceSetStore
	records   store.VerificationStore
	policy    *resilience.Policy
	normalize ImageNormalizer
	config    IdentityConfig
	now       func() time.Time
	newSetID  func() string
}

// NewIdentityService creates the service. records may be nil, in which
// case NID checks are not audited.
func NewIdentityService(client IdentityClient, facesets store.FaceSetStore, records store.VerificationStore, policy *resilience.Policy, config IdentityConfig) *IdentityService {
	if policy == nil {
		policy = resilience.NoRetry()
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.DuplicateConfidence <= 0 {
		config.DuplicateConfidence = DefaultDuplicateConfidence
	}
	if config.MinFaceQuality <= 0 {
		config.MinFaceQuality = DefaultMinFaceQuality
	}
	if config.FaceSetCapacity <= 0 {
		config.FaceSetCapacity = faceplusplus.FaceSetCapacity
	}
	return &IdentityService{
		client:    client,
		facesets:  facesets,
		records:   records,
		policy:    policy,
		normalize: faceplusplus.Normalize,
		config:    config,
		now:       time.Now,
		newSetID:  newFaceSetID,
	}
}

func newFaceSetID() string {
	return facesetPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ResolveThreshold returns def for 0 and rejects values outside
// [MinThreshold, MaxThreshold].
func ResolveThreshold(requested, def float64) (float64, error) {
	if requested == 0 {
		return def, nil
	}
	if requested < MinThreshold || requested > MaxThreshold {
		return 0, apierrors.ErrInvalidRequest.WithMessagef("confidence_threshold must be between %.0f and %.0f", MinThreshold, MaxThreshold)
	}
	return requested, nil
}

// CheckDuplicate searches every FaceSet for the face in image. Without a
// match above the duplicate confidence the face is registered.
func (s *IdentityService) CheckDuplicate(ctx context.Context, image []byte) (*model.DuplicateCheckResponse, error) {
	resp, err := s.checkDuplicate(ctx, image)
	switch {
	case err != nil:
		s.config.Metrics.RecordVerification("duplicate_error")
	case resp.IsDuplicate:
		s.config.Metrics.RecordVerification("duplicate_found")
	default:
		s.config.Metrics.RecordVerification("face_registered")
	}
	return resp, err
}

func (s *IdentityService) checkDuplicate(ctx context.Context, image []byte) (*model.DuplicateCheckResponse, error) {
	if len(image) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("image is required")
	}
	img, err := s.normalize(image)
	if err != nil {
		return nil, mapFaceError(err)
	}

	var det *faceplusplus.DetectResult
	err = s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.DetectAttributes(ctx, img)
		det = out
		return err
	})
	if err != nil {
		return nil, mapFaceError(err)
	}
	face, ok := faceplusplus.LargestFace(det.Faces)
	if !ok {
		return nil, mapFaceError(fmt.Errorf("%w in image", faceplusplus.ErrNoFace))
	}
	if !face.Attributes.Human() {
		return nil, apierrors.ErrInvalidImage.WithMessage("unable to detect human face characteristics")
	}
	if q := face.Attributes.Quality(); q > 0 && q < s.config.MinFaceQuality {
		logger.Warnw("low face quality, continuing",
			"request_id", requestid.FromContext(ctx),
			"quality", q,
			"min_quality", s.config.MinFaceQuality,
		)
	}

	matches, err := s.searchAll(ctx, face.FaceToken)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		best := matches[0].Confidence
		logger.Infow("duplicate face found",
			"request_id", requestid.FromContext(ctx),
			"matches", len(matches),
			"confidence", best,
		)
		return &model.DuplicateCheckResponse{
			Status:      model.DuplicateStatusFound,
			Message:     "Potential duplicate face detected",
			IsDuplicate: true,
			FaceToken:   face.FaceToken,
			Confidence:  &best,
			Matches:     matches,
		}, nil
	}

	setID, err := s.register(ctx, face.FaceToken)
	if err != nil {
		return nil, err
	}
	return &model.DuplicateCheckResponse{
		Status:    model.DuplicateStatusRegistered,
		Message:   "New face registered successfully",
		FaceToken: face.FaceToken,
		FaceSetID: setID,
	}, nil
}

// searchAll collects the matches of every non-empty FaceSet, best first.
// A FaceSet Face++ no longer knows is skipped; an unavailable face service
// fails the check rather than registering a possible duplicate.
func (s *IdentityService) searchAll(ctx context.Context, faceToken string) ([]model.FaceMatch, error) {
	sets, err := s.facesets.ListFaceSets(ctx)
	if err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}

	var matches []model.FaceMatch
	for _, fs := range sets {
		var res *faceplusplus.SearchResult
		err := s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
			out, err := s.client.SearchFaces(ctx, fs.OuterID, faceToken, searchResults)
			res = out
			return err
		})
		if err != nil {
			var apiErr *faceplusplus.APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				logger.Warnw("faceset search failed, skipping",
					"request_id", requestid.FromContext(ctx),
					"faceset_id", fs.OuterID,
					"error", err.Error(),
				)
				continue
			}
			return nil, mapFaceError(err)
		}
		for _, m := range res.Results {
			if m.Confidence >= s.config.DuplicateConfidence {
				matches = append(matches, model.FaceMatch{FaceToken: m.FaceToken, Confidence: m.Confidence})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	return matches, nil
}

// register adds faceToken to a FaceSet with room, creating one when none
// is left or the stored one is gone on Face++.
func (s *IdentityService) register(ctx context.Context, faceToken string) (string, error) {
	// 注册流程不随客户端断开而中断
	ctx = context.WithoutCancel(ctx)
	rid := requestid.FromContext(ctx)

	fs, err := s.facesets.AvailableFaceSet(ctx, s.config.FaceSetCapacity)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fs = nil
	case err != nil:
		return "", apierrors.ErrDatabase.WithCause(err)
	}

	if fs != nil {
		err := s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
			_, err := s.client.FaceSetDetail(ctx, fs.OuterID)
			return err
		})
		if err != nil {
			logger.Warnw("stored faceset unknown to face service, creating a new one",
				"request_id", rid,
				"faceset_id", fs.OuterID,
				"error", err.Error(),
			)
			fs = nil
		}
	}

	if fs == nil {
		id := s.newSetID()
		err := s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
			_, err := s.client.CreateFaceSet(ctx, id, facesetTag)
			return err
		})
		if err != nil {
			return "", apierrors.ErrVerificationService.WithMessage("failed to create faceset").WithCause(err)
		}
		now := s.now().UTC()
		fs = &model.FaceSet{OuterID: id, CreatedAt: now, UpdatedAt: now}
		if err := s.facesets.SaveFaceSet(ctx, fs); err != nil {
			return "", apierrors.ErrDatabase.WithCause(err)
		}
		logger.Infow("faceset created", "request_id", rid, "faceset_id", id)
	}

	var added *faceplusplus.AddFaceResult
	err = s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.AddFaces(ctx, fs.OuterID, faceToken)
		added = out
		return err
	})
	if err != nil {
		return "", apierrors.ErrVerificationService.WithMessagef("failed to add face to faceset %s", fs.OuterID).WithCause(err)
	}

	face := &model.RegisteredFace{FaceToken: faceToken, FaceSetID: fs.OuterID, CreatedAt: s.now().UTC()}
	if err := s.facesets.AddFace(ctx, face); err != nil {
		return "", apierrors.ErrDatabase.WithCause(err)
	}

	// 以 Face++ 返回的数量为准
	count := fs.FaceCount + 1
	if added != nil && added.FaceCount > 0 {
		count = added.FaceCount
	}
	var detail *faceplusplus.FaceSet
	if err := s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.FaceSetDetail(ctx, fs.OuterID)
		detail = out
		return err
	}); err == nil && detail != nil {
		count = detail.FaceCount
	}
	fs.FaceCount = count
	fs.UpdatedAt = s.now().UTC()
	if err := s.facesets.SaveFaceSet(ctx, fs); err != nil {
		logger.Warnw("failed to update faceset count",
			"request_id", rid,
			"faceset_id", fs.OuterID,
			"error", err.Error(),
		)
	}

	logger.Infow("face registered",
		"request_id", rid,
		"faceset_id", fs.OuterID,
		"face_count", fs.FaceCount,
	)
	return fs.OuterID, nil
}

// ValidateDocument runs OCR over card and looks for identity card words.
func (s *IdentityService) ValidateDocument(ctx context.Context, card []byte) (*model.DocumentCheck, error) {
	if len(card) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("nid_card is required")
	}
	img, err := s.normalize(card)
	if err != nil {
		return nil, mapFaceError(err)
	}
	return s.validateDocument(ctx, img)
}

func (s *IdentityService) validateDocument(ctx context.Context, img []byte) (*model.DocumentCheck, error) {
	var res *faceplusplus.TextResult
	err := s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.RecognizeText(ctx, img)
		res = out
		return err
	})
	if err != nil {
		return nil, mapFaceError(err)
	}
	return CheckDocumentText(res.Text()), nil
}

// CheckDocumentText scores OCR output against the identity card words. At
// least two distinct words make the text a valid document.
func CheckDocumentText(text string) *model.DocumentCheck {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = struct{}{}
	}

	found := make([]string, 0, len(documentIndicators))
	for _, ind := range documentIndicators {
		if _, ok := words[ind]; ok {
			found = append(found, ind)
		}
	}

	extracted := text
	if r := []rune(extracted); len(r) > extractedTextLimit {
		extracted = string(r[:extractedTextLimit])
	}
	return &model.DocumentCheck{
		Valid:           len(found) >= minDocumentIndicators,
		Confidence:      min(float64(len(found))/float64(len(documentIndicators))*100, 100),
		IndicatorsFound: len(found),
		FoundIndicators: found,
		ExtractedText:   extracted,
		TextLength:      len(text),
	}
}

// VerifyNID checks that the card looks like an identity document, then
// compares the face photo with the largest face on the card.
func (s *IdentityService) VerifyNID(ctx context.Context, req NIDRequest) (*model.NIDVerificationResponse, error) {
	resp, err := s.verifyNID(ctx, req)
	switch {
	case err != nil:
		s.config.Metrics.RecordVerification("nid_error")
	case resp.Match:
		s.config.Metrics.RecordVerification("nid_match")
	default:
		s.config.Metrics.RecordVerification("nid_no_match")
	}
	return resp, err
}

func (s *IdentityService) verifyNID(ctx context.Context, req NIDRequest) (*model.NIDVerificationResponse, error) {
	threshold, err := ResolveThreshold(req.Threshold, s.config.Threshold)
	if err != nil {
		return nil, err
	}
	if len(req.NIDCard) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("nid_card is required")
	}
	if len(req.FacePhoto) == 0 {
		return nil, apierrors.ErrInvalidRequest.WithMessage("face_photo is required")
	}

	card, err := s.normalize(req.NIDCard)
	if err != nil {
		return nil, mapFaceError(fmt.Errorf("nid card: %w", err))
	}
	photo, err := s.normalize(req.FacePhoto)
	if err != nil {
		return nil, mapFaceError(fmt.Errorf("face photo: %w", err))
	}

	doc, err := s.validateDocument(ctx, card)
	if err != nil {
		return nil, err
	}
	if !doc.Valid {
		return nil, apierrors.ErrInvalidImage.WithMessagef("nid_card does not look like an identity document (%d indicators found)", doc.IndicatorsFound)
	}

	rec := &model.VerificationRecord{
		ID:            ulid.Make().String(),
		UserID:        req.UserID,
		ReferenceKind: model.ReferenceNIDCard,
		Threshold:     threshold,
		RequestID:     requestid.FromContext(ctx),
		CreatedAt:     s.now().UTC(),
	}

	var res *faceplusplus.CompareResult
	err = s.policy.Do(ctx, upstreamFace, func(ctx context.Context) error {
		out, err := s.client.Compare(ctx, faceplusplus.CompareRequest{Image: photo, ReferenceImage: card})
		res = out
		return err
	})
	if err != nil {
		err = mapFaceError(err)
		rec.Outcome = model.OutcomeError
		rec.Message = apierrors.FromError(err).MessageEN
		s.audit(ctx, rec)
		return nil, err
	}

	rec.Confidence = res.Confidence
	rec.Match = res.Confidence >= threshold
	if rec.Match {
		rec.Outcome = model.OutcomeMatch
		rec.Message = fmt.Sprintf("Match - Confidence: %.2f%%", res.Confidence)
	} else {
		rec.Outcome = model.OutcomeNoMatch
		rec.Message = fmt.Sprintf("No match - Confidence: %.2f%% (threshold %.0f%%)", res.Confidence, threshold)
	}

	resp := &model.NIDVerificationResponse{
		Match:           rec.Match,
		Confidence:      rec.Confidence,
		Threshold:       threshold,
		Message:         rec.Message,
		FacesInCard:     len(res.Faces2),
		UsedLargestFace: len(res.Faces2) > 1,
		Document:        doc,
	}
	if s.audit(ctx, rec) {
		resp.RecordID = rec.ID
	}
	logger.Infow("nid verification completed",
		"request_id", rec.RequestID,
		"user_id", rec.UserID,
		"outcome", string(rec.Outcome),
		"confidence", rec.Confidence,
		"faces_in_card", resp.FacesInCard,
	)
	return resp, nil
}

// audit records rec when the request named a user. Failures are logged;
// the NID answer does not depend on the audit trail.
func (s *IdentityService) audit(ctx context.Context, rec *model.VerificationRecord) bool {
	if s.records == nil || strings.TrimSpace(rec.UserID) == "" {
		return false
	}
	if err := s.records.InsertRecord(context.WithoutCancel(ctx), rec); err != nil {
		logger.Errorw("failed to persist nid verification record",
			"request_id", rec.RequestID,
			"user_id", rec.UserID,
			"record_id", rec.ID,
			"error", err.Error(),
		)
		return false
	}
	return true
}
