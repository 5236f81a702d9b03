package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idverify/internal/analyzers"
	"idverify/internal/artifacts"
	"idverify/internal/livetoken"
	"idverify/internal/verification/models"
	"idverify/internal/verification/store"
	dErrors "idverify/pkg/domain-errors"
)

// Configurable analyzer fakes. Each returns its programmed result or error.

type fakeOCR struct {
	data *models.OCRData
	err  error
}

func (f *fakeOCR) Extract(_ context.Context, _ string, _ models.DocumentType) (*models.OCRData, error) {
	if f.err != nil {
		return nil, f.err
	}
	data := *f.data
	return &data, nil
}

type fakeQuality struct {
	err error
}

func (f *fakeQuality) Analyze(_ context.Context, _ string) (*models.QualityAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.QualityAnalysis{OverallQuality: "good", BlurScore: 0.1}, nil
}

type fakeFaceMatch struct {
	score float64
	err   error
	calls int
}

func (f *fakeFaceMatch) Match(_ context.Context, _, _ string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

type fakeLiveness struct {
	score float64
	err   error
}

func (f *fakeLiveness) Detect(_ context.Context, _ string, _ models.ChallengeType) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

type fakeBarcode struct {
	fields *models.BarcodeFields
	err    error
}

func (f *fakeBarcode) Decode(_ context.Context, _ string) (*models.BarcodeData, error) {
	if f.err != nil {
		return nil, f.err
	}
	fields := *f.fields
	return &models.BarcodeData{RawBarcode: "@ANSI", Parsed: &fields}, nil
}

func matchingOCR() *models.OCRData {
	return &models.OCRData{
		FullName:         "Sample Holder",
		DocumentNumber:   "D12345678",
		ExpirationDate:   "2030-01-01",
		IssuingAuthority: "DMV",
	}
}

func matchingBarcode() *models.BarcodeFields {
	return &models.BarcodeFields{
		DocumentNumber:   "D12345678",
		ExpirationDate:   "2030-01-01",
		IssuingAuthority: "DMV",
	}
}

// OrchestratorSuite exercises the verification flows end to end against the
// in-memory store with a synchronous dispatcher, so background analysis
// completes before each submit call returns.
type OrchestratorSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	blobs   *artifacts.MemoryStore
	ocr     *fakeOCR
	quality *fakeQuality
	face    *fakeFaceMatch
	live    *fakeLiveness
	barcode *fakeBarcode
	svc     *Service
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.store = store.NewMemory()
	s.blobs = artifacts.NewMemoryStore()
	s.ocr = &fakeOCR{data: matchingOCR()}
	s.quality = &fakeQuality{}
	s.face = &fakeFaceMatch{score: 0.95}
	s.live = &fakeLiveness{score: 0.90}
	s.barcode = &fakeBarcode{fields: matchingBarcode()}

	set := analyzers.Set{
		OCR:       s.ocr,
		Quality:   s.quality,
		FaceMatch: s.face,
		Liveness:  s.live,
		Barcode:   s.barcode,
	}
	tokens := livetoken.NewIssuer([]byte("test-key"), 5*time.Minute, livetoken.NewMemoryStore())

	s.svc = NewService(s.store, s.blobs, set, tokens,
		WithDispatcher(func(fn func()) { fn() }),
	)
}

func (s *OrchestratorSuite) startSession(sandbox bool) *models.VerificationSession {
	session, err := s.svc.StartSession(context.Background(), StartSessionRequest{
		SubjectID: "user_1",
		IssuerID:  "issuer_1",
		Sandbox:   sandbox,
	})
	s.Require().NoError(err)
	return session
}

func (s *OrchestratorSuite) submitFront(sessionID string) *models.Document {
	doc, err := s.svc.SubmitFrontDocument(context.Background(), SubmitDocumentRequest{
		SessionID:    sessionID,
		DocumentType: models.DocumentTypeDriversLicense,
		Content:      []byte("front-image"),
		MimeType:     "image/jpeg",
	})
	s.Require().NoError(err)
	return doc
}

func (s *OrchestratorSuite) submitBack(sessionID string) (*models.Document, error) {
	return s.svc.SubmitBackDocument(context.Background(), SubmitDocumentRequest{
		SessionID:    sessionID,
		DocumentType: models.DocumentTypeDriversLicense,
		Content:      []byte("back-image"),
		MimeType:     "image/jpeg",
	})
}

func (s *OrchestratorSuite) submitCapture(sessionID string) *models.CaptureArtifact {
	capture, err := s.svc.SubmitCapture(context.Background(), SubmitCaptureRequest{
		SessionID: sessionID,
		Content:   []byte("selfie-image"),
		MimeType:  "image/jpeg",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	s.Require().NoError(err)
	return capture
}

func (s *OrchestratorSuite) TestHappyPathFullFlow() {
	session := s.startSession(false)
	s.Equal(models.ModeProduction, session.Mode)
	s.Equal(models.StatusPending, session.Status)

	s.submitFront(session.ID)
	_, err := s.submitBack(session.ID)
	s.Require().NoError(err)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusVerified, results.Status)
	s.Empty(results.ManualReviewReason)
	s.Require().NotNil(results.FaceMatchScore)
	s.InDelta(0.95, *results.FaceMatchScore, 1e-9)
	s.Require().NotNil(results.LivenessScore)
	s.InDelta(0.90, *results.LivenessScore, 1e-9)
	s.Require().NotNil(results.CrossValidationScore)
	s.InDelta(1.0, *results.CrossValidationScore, 1e-9)
	s.Require().NotNil(results.ConfidenceScore)
	s.InDelta((0.95+0.90+1.0)/3, *results.ConfidenceScore, 1e-9)

	s.Require().NotNil(results.Document)
	s.NotNil(results.Document.OCRData)
	s.NotNil(results.Document.QualityAnalysis)
	s.NotNil(results.Document.CrossValidation)
	s.Require().NotNil(results.BackDocument)
	s.NotNil(results.BackDocument.Barcode)
	s.Equal([]string{models.NextStepComplete}, results.NextSteps)
}

func (s *OrchestratorSuite) TestFaceBelowThresholdFailsWithFaceReasonOnly() {
	s.face.score = 0.70
	s.live.score = 0.90

	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusFailed, results.Status)
	s.Contains(results.ManualReviewReason, "Face matching failed")
	s.NotContains(results.ManualReviewReason, "Liveness")
	s.Require().NotNil(results.FaceMatchScore)
	s.InDelta(0.70, *results.FaceMatchScore, 1e-9)
	s.Require().NotNil(results.LivenessScore)
	s.InDelta(0.90, *results.LivenessScore, 1e-9)
}

func (s *OrchestratorSuite) TestBackDocumentTypeMismatchRejected() {
	session := s.startSession(false)
	s.submitFront(session.ID)

	_, err := s.svc.SubmitBackDocument(context.Background(), SubmitDocumentRequest{
		SessionID:    session.ID,
		DocumentType: models.DocumentTypePassport,
		Content:      []byte("back-image"),
		MimeType:     "image/jpeg",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

	// No back document was recorded and the session is untouched.
	session2, err := s.store.GetSession(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Empty(session2.BackDocumentID)
	s.Equal(models.StatusPending, session2.Status)
}

func (s *OrchestratorSuite) TestBackDocumentRequiresFront() {
	session := s.startSession(false)

	_, err := s.submitBack(session.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
}

func (s *OrchestratorSuite) TestCrossValidationMismatchFailsWithDiscrepancies() {
	s.barcode.fields = &models.BarcodeFields{
		DocumentNumber:   "X99999999",
		ExpirationDate:   "2030-01-01",
		IssuingAuthority: "DMV",
	}

	session := s.startSession(false)
	s.submitFront(session.ID)
	_, err := s.submitBack(session.ID)
	s.Require().NoError(err)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusFailed, results.Status)
	s.Contains(results.ManualReviewReason, "Cross-validation failed")
	s.Contains(results.ManualReviewReason, "id_number mismatch")
	s.Require().NotNil(results.CrossValidationScore)
	s.InDelta(2.0/3.0, *results.CrossValidationScore, 1e-9)

	s.Require().NotNil(results.Document)
	s.Require().NotNil(results.Document.CrossValidation)
	s.False(results.Document.CrossValidation.Fields.OverallConsistency)
}

func (s *OrchestratorSuite) TestCaptureBeforeDocumentParksSession() {
	session := s.startSession(false)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, results.Status)
	s.Equal("document upload still required", results.ManualReviewReason)
	s.Zero(s.face.calls)

	// The document arrives; matching does not start on its own.
	s.submitFront(session.ID)
	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, results.Status)
	s.Empty(results.ManualReviewReason)
	s.Zero(s.face.calls)

	// Explicit retry runs the capture stage.
	s.Require().NoError(s.svc.RetryMatching(context.Background(), session.ID))
	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, results.Status)
	s.Equal(1, s.face.calls)
}

func (s *OrchestratorSuite) TestRetryMatchingRequiresCapture() {
	session := s.startSession(false)
	err := s.svc.RetryMatching(context.Background(), session.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
}

func (s *OrchestratorSuite) TestAnalyzerFailureRoutesToManualReviewNotFailed() {
	s.face.err = errors.New("face engine down")

	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusManualReview, results.Status)
	s.Contains(results.ManualReviewReason, "Face match processing failed")
	s.NotContains(results.ManualReviewReason, "Liveness")

	// The sibling analyzer still ran and its score was recorded.
	s.Nil(results.FaceMatchScore)
	s.Require().NotNil(results.LivenessScore)
	s.InDelta(0.90, *results.LivenessScore, 1e-9)
}

func (s *OrchestratorSuite) TestOCRFailureManualReviewIsSticky() {
	s.ocr.err = errors.New("ocr engine down")

	session := s.startSession(false)
	s.submitFront(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, results.Status)
	s.Equal("OCR processing failed", results.ManualReviewReason)

	// A passing capture must not clear a manual review set by another stage.
	s.submitCapture(session.ID)
	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, results.Status)
	s.Equal("OCR processing failed", results.ManualReviewReason)

	// Scores from the capture run are still recorded for the reviewer.
	s.Require().NotNil(results.FaceMatchScore)
	s.Require().NotNil(results.LivenessScore)
}

func (s *OrchestratorSuite) TestCaptureDecisionIsAuthoritativeOverBackDocument() {
	s.face.score = 0.40

	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, results.Status)

	// A clean cross-validation afterwards must not overwrite the capture
	// stage's failure.
	_, err = s.submitBack(session.ID)
	s.Require().NoError(err)

	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, results.Status)
	s.Contains(results.ManualReviewReason, "Face matching failed")
	// The cross-validation score is still recorded.
	s.Require().NotNil(results.CrossValidationScore)
}

func (s *OrchestratorSuite) TestCaptureResubmissionRerunsStage() {
	s.face.score = 0.40

	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, results.Status)

	// A better capture clears the failure.
	s.face.score = 0.95
	s.submitCapture(session.ID)

	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, results.Status)
	s.Empty(results.ManualReviewReason)
}

func (s *OrchestratorSuite) TestCaptureRerunCanClearCaptureManualReview() {
	s.live.err = errors.New("liveness engine down")

	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, results.Status)

	// Same stage re-runs may replace their own manual review.
	s.live.err = nil
	s.submitCapture(session.ID)

	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, results.Status)
}

func (s *OrchestratorSuite) TestSandboxThresholdsApply() {
	s.face.score = 0.82
	s.live.score = 0.70

	// Production fails with these scores.
	prod := s.startSession(false)
	s.submitFront(prod.ID)
	s.submitCapture(prod.ID)
	results, err := s.svc.GetResults(context.Background(), prod.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, results.Status)

	// Sandbox verifies with the same scores.
	sandbox := s.startSession(true)
	s.submitFront(sandbox.ID)
	s.submitCapture(sandbox.ID)
	results, err = s.svc.GetResults(context.Background(), sandbox.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, results.Status)
}

func (s *OrchestratorSuite) TestDuplicateFrontUploadIsIdempotent() {
	session := s.startSession(false)
	first := s.submitFront(session.ID)
	second := s.submitFront(session.ID)

	s.Equal(first.ID, second.ID)
	// Only one blob was stored.
	s.Equal(1, s.blobs.Len())
}

func (s *OrchestratorSuite) TestGetResultsIsReadOnly() {
	session := s.startSession(false)
	s.submitFront(session.ID)

	first, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	second, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(first.Status, second.Status)
	s.Equal(first.NextSteps, second.NextSteps)
}

func (s *OrchestratorSuite) TestNextStepsProgression() {
	session := s.startSession(false)

	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{models.NextStepUploadDocument, models.NextStepSubmitCapture}, results.NextSteps)

	s.submitFront(session.ID)
	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal([]string{models.NextStepSubmitCapture}, results.NextSteps)

	s.submitCapture(session.ID)
	results, err = s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal([]string{models.NextStepComplete}, results.NextSteps)
}

func (s *OrchestratorSuite) TestGetResultsUnknownSession() {
	_, err := s.svc.GetResults(context.Background(), "verif_missing")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *OrchestratorSuite) TestStartSessionRequiresSubject() {
	_, err := s.svc.StartSession(context.Background(), StartSessionRequest{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *OrchestratorSuite) TestLiveTokenFlow() {
	session := s.startSession(false)
	s.submitFront(session.ID)

	issued, err := s.svc.IssueLiveToken(context.Background(), session.ID, models.ChallengeRandom)
	s.Require().NoError(err)
	s.NotEmpty(issued.Token)
	s.True(issued.Challenge.IsValid())
	s.NotEqual(models.ChallengeRandom, issued.Challenge)

	capture, err := s.svc.SubmitCapture(context.Background(), SubmitCaptureRequest{
		SessionID: session.ID,
		Content:   []byte("live-frame"),
		MimeType:  "image/jpeg",
		LiveToken: issued.Token,
	})
	s.Require().NoError(err)
	s.Equal(issued.Challenge, capture.ChallengeType)

	// The token is single use.
	_, err = s.svc.SubmitCapture(context.Background(), SubmitCaptureRequest{
		SessionID: session.ID,
		Content:   []byte("live-frame-2"),
		MimeType:  "image/jpeg",
		LiveToken: issued.Token,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *OrchestratorSuite) TestListBySubject() {
	first := s.startSession(false)
	second := s.startSession(true)

	sessions, err := s.svc.ListBySubject(context.Background(), "user_1", 0, 0)
	s.Require().NoError(err)
	s.Len(sessions, 2)

	ids := []string{sessions[0].ID, sessions[1].ID}
	s.Contains(ids, first.ID)
	s.Contains(ids, second.ID)
}

func (s *OrchestratorSuite) TestEraseArtifactsKeepsAuditTrail() {
	session := s.startSession(false)
	s.submitFront(session.ID)
	s.submitCapture(session.ID)

	s.Equal(2, s.blobs.Len())

	erased, err := s.svc.EraseArtifacts(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(2, erased)
	s.Equal(0, s.blobs.Len())

	// Scores and the decision survive erasure.
	results, err := s.svc.GetResults(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, results.Status)
	s.NotNil(results.FaceMatchScore)
}

func (s *OrchestratorSuite) TestQualityAnalysisRunsOnSubmitPath() {
	// A dispatcher that drops the work: anything visible after the submit
	// call returned was done synchronously.
	set := analyzers.Set{
		OCR:       s.ocr,
		Quality:   s.quality,
		FaceMatch: s.face,
		Liveness:  s.live,
		Barcode:   s.barcode,
	}
	tokens := livetoken.NewIssuer([]byte("test-key"), 5*time.Minute, livetoken.NewMemoryStore())
	svc := NewService(s.store, s.blobs, set, tokens,
		WithDispatcher(func(func()) {}),
	)

	session, err := svc.StartSession(context.Background(), StartSessionRequest{SubjectID: "user_1"})
	s.Require().NoError(err)

	doc, err := svc.SubmitFrontDocument(context.Background(), SubmitDocumentRequest{
		SessionID:    session.ID,
		DocumentType: models.DocumentTypeDriversLicense,
		Content:      []byte("front-image"),
		MimeType:     "image/jpeg",
	})
	s.Require().NoError(err)

	stored, err := s.store.GetDocument(context.Background(), doc.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Quality)
	s.Equal("good", stored.Quality.OverallQuality)
	s.Nil(stored.OCRData)
}

func (s *OrchestratorSuite) TestQualityFailureDoesNotBlockUpload() {
	s.quality.err = errors.New("quality engine down")

	session := s.startSession(false)
	doc := s.submitFront(session.ID)

	stored, err := s.store.GetDocument(context.Background(), doc.ID)
	s.Require().NoError(err)
	s.Nil(stored.Quality)
	s.NotNil(stored.OCRData)
}

func (s *OrchestratorSuite) TestFrontUploadRaceReturnsWinner() {
	session := s.startSession(false)

	// Simulate a concurrent submission that attached the front document
	// after this request's precondition check but before its insert.
	winner := &models.Document{
		ID:        models.NewDocumentID(),
		SessionID: session.ID,
		Kind:      models.DocumentKindFront,
		Type:      models.DocumentTypeDriversLicense,
	}
	s.Require().NoError(s.store.CreateDocument(context.Background(), winner))

	doc, err := s.svc.SubmitFrontDocument(context.Background(), SubmitDocumentRequest{
		SessionID:    session.ID,
		DocumentType: models.DocumentTypeDriversLicense,
		Content:      []byte("front-image"),
		MimeType:     "image/jpeg",
	})
	s.Require().NoError(err)
	s.Equal(winner.ID, doc.ID)

	// The loser's blob is not left orphaned.
	s.Equal(0, s.blobs.Len())
}
