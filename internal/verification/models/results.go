package models

// Next-step hints returned to clients on the results projection.
const (
	NextStepUploadDocument = "upload_document"
	NextStepSubmitCapture  = "submit_capture"
	NextStepProcessing     = "processing"
	NextStepComplete       = "complete"
)

// DocumentView is the wire projection of one document side.
type DocumentView struct {
	ID              string                 `json:"id"`
	Kind            DocumentKind           `json:"kind"`
	Type            DocumentType           `json:"document_type"`
	OCRData         *OCRData               `json:"ocr_data,omitempty"`
	QualityAnalysis *QualityAnalysis       `json:"quality_analysis,omitempty"`
	Barcode         *BarcodeData           `json:"barcode_data,omitempty"`
	CrossValidation *CrossValidationResult `json:"cross_validation,omitempty"`
}

// CaptureView is the wire projection of the capture artifact.
type CaptureView struct {
	ID            string        `json:"id"`
	ChallengeType ChallengeType `json:"challenge_type,omitempty"`
	Device        DeviceInfo    `json:"device"`
}

// Results is the full verification results projection returned by the
// results endpoint. Field names follow the public API contract.
type Results struct {
	VerificationID       string   `json:"verification_id"`
	UserID               string   `json:"user_id"`
	Status               Status   `json:"status"`
	Mode                 Mode     `json:"mode"`
	FaceMatchScore       *float64 `json:"face_match_score,omitempty"`
	LivenessScore        *float64 `json:"liveness_score,omitempty"`
	CrossValidationScore *float64 `json:"cross_validation_score,omitempty"`
	ConfidenceScore      *float64 `json:"confidence_score,omitempty"`
	ManualReviewReason   string   `json:"manual_review_reason,omitempty"`

	Document     *DocumentView `json:"document,omitempty"`
	BackDocument *DocumentView `json:"back_of_document,omitempty"`
	Capture      *CaptureView  `json:"live_capture,omitempty"`

	NextSteps []string `json:"next_steps"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// BuildResults assembles the results projection from stored state. Pure and
// read-only; safe to call from any goroutine.
func BuildResults(session *VerificationSession, front, back *Document, capture *CaptureArtifact, confidence *float64) *Results {
	r := &Results{
		VerificationID:       session.ID,
		UserID:               session.SubjectID,
		Status:               session.Status,
		Mode:                 session.Mode,
		FaceMatchScore:       session.FaceMatchScore,
		LivenessScore:        session.LivenessScore,
		CrossValidationScore: session.CrossValidationScore,
		ConfidenceScore:      confidence,
		ManualReviewReason:   session.ManualReviewReason,
		NextSteps:            nextSteps(session, front, capture),
		CreatedAt:            session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:            session.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if front != nil {
		r.Document = documentView(front)
	}
	if back != nil {
		r.BackDocument = documentView(back)
	}
	if capture != nil {
		r.Capture = &CaptureView{
			ID:            capture.ID,
			ChallengeType: capture.ChallengeType,
			Device:        capture.Device,
		}
	}
	return r
}

func documentView(doc *Document) *DocumentView {
	return &DocumentView{
		ID:              doc.ID,
		Kind:            doc.Kind,
		Type:            doc.Type,
		OCRData:         doc.OCRData,
		QualityAnalysis: doc.Quality,
		Barcode:         doc.Barcode,
		CrossValidation: doc.CrossValidation,
	}
}

// nextSteps tells the client what the session is waiting on.
func nextSteps(session *VerificationSession, front *Document, capture *CaptureArtifact) []string {
	if session.Status == StatusVerified || session.Status == StatusFailed {
		return []string{NextStepComplete}
	}

	var steps []string
	if front == nil {
		steps = append(steps, NextStepUploadDocument)
	}
	if capture == nil {
		steps = append(steps, NextStepSubmitCapture)
	}
	if len(steps) == 0 {
		steps = append(steps, NextStepProcessing)
	}
	return steps
}
