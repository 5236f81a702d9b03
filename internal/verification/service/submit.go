package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mssola/useragent"

	"idverify/internal/livetoken"
	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
	dErrors "idverify/pkg/domain-errors"
)

const maxArtifactBytes = 10 << 20 // 10 MiB

// SubmitDocumentRequest carries an uploaded document image.
type SubmitDocumentRequest struct {
	SessionID    string
	DocumentType models.DocumentType
	Content      []byte
	MimeType     string
}

func (r SubmitDocumentRequest) validate() error {
	if len(r.Content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document image is required")
	}
	if len(r.Content) > maxArtifactBytes {
		return dErrors.New(dErrors.CodeValidation, "document image exceeds the 10MB limit")
	}
	if !r.DocumentType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	return nil
}

// SubmitFrontDocument attaches the front document image to a session. Quality
// scoring runs inline so the uploader gets immediate feedback; OCR runs in
// the background. Submitting again returns the existing document unchanged.
func (s *Service) SubmitFrontDocument(ctx context.Context, req SubmitDocumentRequest) (*models.Document, error) {
	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	if session.DocumentID != "" {
		doc, err := s.store.GetDocument(ctx, session.DocumentID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load existing document")
		}
		return doc, nil
	}

	ref, err := s.artifacts.Put(ctx, req.Content, req.MimeType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store document image")
	}

	now := s.now()
	doc := &models.Document{
		ID:          models.NewDocumentID(),
		SessionID:   session.ID,
		Kind:        models.DocumentKindFront,
		Type:        req.DocumentType,
		ArtifactRef: ref,
		MimeType:    req.MimeType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Best-effort: a quality engine outage never blocks the upload or OCR.
	if qa, qaErr := s.analyzers.Quality.Analyze(ctx, ref); qaErr != nil {
		s.recordAnalyzerFailure("quality", session.ID, qaErr)
	} else {
		doc.Quality = qa
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			// A racing submission attached a front document first. Drop the
			// orphaned blob and return the winner.
			_ = s.artifacts.Delete(ctx, ref)
			return s.existingDocument(ctx, session.ID, models.DocumentKindFront)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create document")
	}

	if _, err := s.mutateSession(ctx, session.ID, func(sess *models.VerificationSession) {
		if sess.DocumentID == "" {
			sess.DocumentID = doc.ID
		}
		// A capture that arrived first parked the session; the missing
		// document is here now.
		if sess.Status == models.StatusPending && sess.ManualReviewReason == reasonDocumentRequired {
			sess.ManualReviewReason = ""
		}
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "attach document")
	}

	if s.metrics != nil {
		s.metrics.IncrementStageSubmissions(string(models.StageFrontDocument))
	}
	s.logger.Info("front document submitted",
		slog.String("session_id", session.ID),
		slog.String("document_id", doc.ID),
		slog.String("document_type", string(req.DocumentType)),
	)

	s.dispatch(func() { s.processFrontDocument(session.ID, doc.ID) })
	return doc, nil
}

// SubmitBackDocument attaches the back-of-document image. It requires a
// front document of the same type; barcode decoding and cross-validation
// run in the background.
func (s *Service) SubmitBackDocument(ctx context.Context, req SubmitDocumentRequest) (*models.Document, error) {
	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	front, err := s.store.FindDocumentByKind(ctx, session.ID, models.DocumentKindFront)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeFailedPrecondition, "front document must be uploaded before the back of ID")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load front document")
	}
	if front.Type != req.DocumentType {
		return nil, dErrors.New(dErrors.CodeFailedPrecondition, "back document type must match the front document")
	}

	if session.BackDocumentID != "" {
		doc, err := s.store.GetDocument(ctx, session.BackDocumentID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load existing document")
		}
		return doc, nil
	}

	ref, err := s.artifacts.Put(ctx, req.Content, req.MimeType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store document image")
	}

	now := s.now()
	doc := &models.Document{
		ID:          models.NewDocumentID(),
		SessionID:   session.ID,
		Kind:        models.DocumentKindBack,
		Type:        req.DocumentType,
		ArtifactRef: ref,
		MimeType:    req.MimeType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			_ = s.artifacts.Delete(ctx, ref)
			return s.existingDocument(ctx, session.ID, models.DocumentKindBack)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create document")
	}

	if _, err := s.mutateSession(ctx, session.ID, func(sess *models.VerificationSession) {
		if sess.BackDocumentID == "" {
			sess.BackDocumentID = doc.ID
		}
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "attach document")
	}

	if s.metrics != nil {
		s.metrics.IncrementStageSubmissions(string(models.StageBackDocument))
	}
	s.logger.Info("back document submitted",
		slog.String("session_id", session.ID),
		slog.String("document_id", doc.ID),
	)

	s.dispatch(func() { s.processBackDocument(session.ID, doc.ID) })
	return doc, nil
}

// SubmitCaptureRequest carries a selfie or live capture upload.
type SubmitCaptureRequest struct {
	SessionID     string
	Content       []byte
	MimeType      string
	ChallengeType models.ChallengeType
	LiveToken     string
	UserAgent     string
}

func (r SubmitCaptureRequest) validate() error {
	if len(r.Content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "capture image is required")
	}
	if len(r.Content) > maxArtifactBytes {
		return dErrors.New(dErrors.CodeValidation, "capture image exceeds the 10MB limit")
	}
	if r.ChallengeType != "" && !r.ChallengeType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown challenge type")
	}
	return nil
}

// SubmitCapture attaches a selfie or live capture to the session. When a
// front document exists, face matching and liveness detection start in the
// background; otherwise the session parks pending until a document arrives.
// A fresh capture may be submitted again after a failed or manual-review
// capture decision and re-runs the stage.
func (s *Service) SubmitCapture(ctx context.Context, req SubmitCaptureRequest) (*models.CaptureArtifact, error) {
	session, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	challenge := req.ChallengeType
	if req.LiveToken != "" {
		challenge, err = s.redeemLiveToken(ctx, req.LiveToken, session.ID)
		if err != nil {
			return nil, err
		}
	}

	ref, err := s.artifacts.Put(ctx, req.Content, req.MimeType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store capture image")
	}

	capture := &models.CaptureArtifact{
		ID:            models.NewCaptureID(),
		SessionID:     session.ID,
		ArtifactRef:   ref,
		MimeType:      req.MimeType,
		ChallengeType: challenge,
		Device:        parseDevice(req.UserAgent),
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateCapture(ctx, capture); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create capture")
	}

	if _, err := s.mutateSession(ctx, session.ID, func(sess *models.VerificationSession) {
		sess.CaptureID = capture.ID
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "attach capture")
	}

	if s.metrics != nil {
		s.metrics.IncrementStageSubmissions(string(models.StageCapture))
	}
	s.logger.Info("capture submitted",
		slog.String("session_id", session.ID),
		slog.String("capture_id", capture.ID),
		slog.String("challenge_type", string(challenge)),
	)

	front, err := s.store.FindDocumentByKind(ctx, session.ID, models.DocumentKindFront)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// No document to match against yet. Park the session; matching
			// is re-triggered explicitly via RetryMatching once a document
			// arrives.
			if _, parkErr := s.applyStageOutcome(ctx, session.ID, stageOutcome{
				stage:  models.StageCapture,
				status: models.StatusPending,
				reason: reasonDocumentRequired,
			}); parkErr != nil {
				return nil, dErrors.Wrap(parkErr, dErrors.CodeInternal, "park session")
			}
			return capture, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load front document")
	}

	s.dispatch(func() { s.processCapture(session.ID, front.ID, capture.ID) })
	return capture, nil
}

// RetryMatching re-runs face matching and liveness for the stored capture.
// Used after a capture was parked waiting on a document, or to re-evaluate a
// capture-stage manual review once an analyzer recovers.
func (s *Service) RetryMatching(ctx context.Context, sessionID string) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CaptureID == "" {
		return dErrors.New(dErrors.CodeFailedPrecondition, "no capture has been submitted")
	}

	front, err := s.store.FindDocumentByKind(ctx, session.ID, models.DocumentKindFront)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeFailedPrecondition, "front document must be uploaded before matching")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load front document")
	}

	captureID := session.CaptureID
	s.logger.Info("matching retry requested",
		slog.String("session_id", session.ID),
		slog.String("capture_id", captureID),
	)
	s.dispatch(func() { s.processCapture(session.ID, front.ID, captureID) })
	return nil
}

func (s *Service) redeemLiveToken(ctx context.Context, token, sessionID string) (models.ChallengeType, error) {
	challenge, err := s.tokens.Redeem(ctx, token, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, livetoken.ErrTokenExpired):
			return "", dErrors.New(dErrors.CodeBadRequest, "live token has expired")
		case errors.Is(err, livetoken.ErrTokenUsed):
			return "", dErrors.New(dErrors.CodeBadRequest, "live token has already been used")
		case errors.Is(err, livetoken.ErrWrongSession), errors.Is(err, livetoken.ErrInvalidToken):
			return "", dErrors.New(dErrors.CodeBadRequest, "live token is invalid")
		default:
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "redeem live token")
		}
	}
	return challenge, nil
}

func (s *Service) existingDocument(ctx context.Context, sessionID string, kind models.DocumentKind) (*models.Document, error) {
	doc, err := s.store.FindDocumentByKind(ctx, sessionID, kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load existing document")
	}
	return doc, nil
}

func parseDevice(userAgentString string) models.DeviceInfo {
	if strings.TrimSpace(userAgentString) == "" {
		return models.DeviceInfo{}
	}
	ua := useragent.New(userAgentString)
	browser, version := ua.Browser()
	return models.DeviceInfo{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
	}
}
