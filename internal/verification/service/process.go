package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"idverify/internal/crossval"
	"idverify/internal/decision"
	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
)

// Manual-review reasons for analyzer infrastructure failures. Distinct from
// the decision engine's threshold-failure reasons: an unavailable analyzer
// is never treated as a failed check.
const (
	reasonOCRFailed       = "OCR processing failed"
	reasonBarcodeFailed   = "Barcode decoding failed"
	reasonFaceUnavailable = "Face match processing failed"
	reasonLiveUnavailable = "Liveness detection processing failed"
)

// stageOutcome is the result a background task wants recorded. A zero
// status leaves the session status untouched; scores are always recorded.
type stageOutcome struct {
	stage  models.Stage
	status models.Status
	reason string

	faceScore     *float64
	livenessScore *float64
	crossValScore *float64
}

// applyStageOutcome is the single path through which session status ever
// changes after creation. It enforces two commit rules under optimistic
// concurrency:
//
//   - The capture stage is authoritative: a back-document decision never
//     overwrites a status committed by the capture stage.
//   - manual_review is sticky: only a re-run of the stage that set it can
//     replace it.
func (s *Service) applyStageOutcome(ctx context.Context, sessionID string, out stageOutcome) (*models.VerificationSession, error) {
	committed := false
	session, err := s.mutateSession(ctx, sessionID, func(sess *models.VerificationSession) {
		committed = false

		if out.faceScore != nil {
			sess.FaceMatchScore = out.faceScore
		}
		if out.livenessScore != nil {
			sess.LivenessScore = out.livenessScore
		}
		if out.crossValScore != nil {
			sess.CrossValidationScore = out.crossValScore
		}

		if out.status == "" {
			return
		}
		if out.stage == models.StageBackDocument && sess.DecidedStage == models.StageCapture {
			return
		}
		if sess.Status == models.StatusManualReview && sess.DecidedStage != "" && sess.DecidedStage != out.stage {
			return
		}

		sess.Status = out.status
		sess.ManualReviewReason = out.reason
		if out.status == models.StatusPending {
			// Parked, not decided.
			sess.DecidedStage = ""
		} else {
			sess.DecidedStage = out.stage
		}
		committed = true
	})
	if err != nil {
		return nil, err
	}

	if committed && out.status != "" && out.status != models.StatusPending {
		if s.metrics != nil {
			s.metrics.IncrementDecisions(string(out.stage), string(out.status))
			if out.status == models.StatusManualReview {
				s.metrics.IncrementManualReviews(string(out.stage))
			}
		}
		s.logger.Info("stage decision committed",
			slog.String("session_id", sessionID),
			slog.String("stage", string(out.stage)),
			slog.String("status", string(out.status)),
			slog.String("reason", out.reason),
		)
	}
	return session, nil
}

// processFrontDocument runs OCR for the front document; quality analysis
// already ran on the submit path. OCR failures route the session to manual
// review. A successful extraction re-checks whether cross-validation can
// now run.
func (s *Service) processFrontDocument(sessionID, documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveStageLatency(string(models.StageFrontDocument), s.now().Sub(start))
		}
	}()

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		s.logger.Error("front document vanished before processing",
			slog.String("session_id", sessionID),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		return
	}

	ocrData, err := s.analyzers.OCR.Extract(ctx, doc.ArtifactRef, doc.Type)
	if err != nil {
		s.recordAnalyzerFailure("ocr", sessionID, err)
		s.commitOutcome(ctx, sessionID, stageOutcome{
			stage:  models.StageFrontDocument,
			status: models.StatusManualReview,
			reason: reasonOCRFailed,
		})
		return
	}
	doc.OCRData = ocrData
	s.persistDocument(ctx, doc)

	// If the back barcode was decoded while OCR was still running, the
	// back-document task skipped cross-validation. Run it now.
	s.maybeCrossValidate(ctx, sessionID)
}

// processBackDocument decodes the back barcode and, when the front OCR data
// is already available, runs cross-validation.
func (s *Service) processBackDocument(sessionID, documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveStageLatency(string(models.StageBackDocument), s.now().Sub(start))
		}
	}()

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		s.logger.Error("back document vanished before processing",
			slog.String("session_id", sessionID),
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		return
	}

	barcode, err := s.analyzers.Barcode.Decode(ctx, doc.ArtifactRef)
	if err != nil {
		s.recordAnalyzerFailure("barcode", sessionID, err)
		s.commitOutcome(ctx, sessionID, stageOutcome{
			stage:  models.StageBackDocument,
			status: models.StatusManualReview,
			reason: reasonBarcodeFailed,
		})
		return
	}
	doc.Barcode = barcode
	s.persistDocument(ctx, doc)

	s.maybeCrossValidate(ctx, sessionID)
}

// maybeCrossValidate runs cross-validation once both the front OCR data and
// the back barcode exist and no verdict has been recorded yet. Whichever of
// the two background tasks finishes last triggers it.
func (s *Service) maybeCrossValidate(ctx context.Context, sessionID string) {
	front, err := s.store.FindDocumentByKind(ctx, sessionID, models.DocumentKindFront)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.Error("cross-validation load failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
		return
	}
	back, err := s.store.FindDocumentByKind(ctx, sessionID, models.DocumentKindBack)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.Error("cross-validation load failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
		return
	}
	if front.OCRData == nil || back.Barcode == nil || front.CrossValidation != nil {
		return
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("cross-validation load failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return
	}

	var parsed *models.BarcodeFields
	if back.Barcode != nil {
		parsed = back.Barcode.Parsed
	}
	result := crossval.Validate(front.OCRData, parsed)

	// The verdict is attached to the front document, which carries the
	// consolidated view of the physical document.
	front.CrossValidation = &result
	s.persistDocument(ctx, front)

	outcome := decision.EvaluateCrossValidation(session.Mode, result)
	score := result.MatchScore
	s.commitOutcome(ctx, sessionID, stageOutcome{
		stage:         models.StageBackDocument,
		status:        outcome.Status,
		reason:        outcome.Reason,
		crossValScore: &score,
	})
}

// processCapture runs face matching and liveness detection concurrently.
// Both analyzers are always awaited; a failure of one never cancels the
// other, and any analyzer failure routes the session to manual review
// instead of failing it.
func (s *Service) processCapture(sessionID, frontDocumentID, captureID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveStageLatency(string(models.StageCapture), s.now().Sub(start))
		}
	}()

	front, err := s.store.GetDocument(ctx, frontDocumentID)
	if err != nil {
		s.logger.Error("front document vanished before matching",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	capture, err := s.store.GetCapture(ctx, captureID)
	if err != nil {
		s.logger.Error("capture vanished before matching",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("session vanished before matching",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}

	var (
		faceScore float64
		faceErr   error
		liveScore float64
		liveErr   error
	)

	// Each goroutine records into its own variables and returns nil so a
	// failing analyzer never cancels its sibling.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		faceScore, faceErr = s.analyzers.FaceMatch.Match(gctx, front.ArtifactRef, capture.ArtifactRef)
		return nil
	})
	g.Go(func() error {
		liveScore, liveErr = s.analyzers.Liveness.Detect(gctx, capture.ArtifactRef, capture.ChallengeType)
		return nil
	})
	_ = g.Wait()

	out := stageOutcome{stage: models.StageCapture}
	if faceErr == nil {
		out.faceScore = &faceScore
		if s.metrics != nil {
			s.metrics.ObserveScore("face_match", faceScore)
		}
	}
	if liveErr == nil {
		out.livenessScore = &liveScore
		if s.metrics != nil {
			s.metrics.ObserveScore("liveness", liveScore)
		}
	}

	if faceErr != nil || liveErr != nil {
		var reasons []string
		if faceErr != nil {
			s.recordAnalyzerFailure("face_match", sessionID, faceErr)
			reasons = append(reasons, reasonFaceUnavailable)
		}
		if liveErr != nil {
			s.recordAnalyzerFailure("liveness", sessionID, liveErr)
			reasons = append(reasons, reasonLiveUnavailable)
		}
		out.status = models.StatusManualReview
		out.reason = strings.Join(reasons, "; ")
		s.commitOutcome(ctx, sessionID, out)
		return
	}

	verdict := decision.EvaluateCapture(session.Mode, decision.CaptureScores{
		FaceMatch: faceScore,
		Liveness:  liveScore,
	})
	out.status = verdict.Status
	out.reason = verdict.Reason
	s.commitOutcome(ctx, sessionID, out)
}

func (s *Service) commitOutcome(ctx context.Context, sessionID string, out stageOutcome) {
	if _, err := s.applyStageOutcome(ctx, sessionID, out); err != nil {
		s.logger.Error("stage outcome not recorded",
			slog.String("session_id", sessionID),
			slog.String("stage", string(out.stage)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) persistDocument(ctx context.Context, doc *models.Document) {
	doc.UpdatedAt = s.now()
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		s.logger.Error("document update failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) recordAnalyzerFailure(analyzer, sessionID string, err error) {
	if s.metrics != nil {
		s.metrics.IncrementAnalyzerFailures(analyzer)
	}
	s.logger.Warn("analyzer call failed",
		slog.String("analyzer", analyzer),
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

func confidenceFor(session *models.VerificationSession) *float64 {
	return decision.Confidence(session.FaceMatchScore, session.LivenessScore, session.CrossValidationScore)
}
