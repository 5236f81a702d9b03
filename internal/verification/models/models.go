package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects the threshold set applied by the decision engine.
// It is fixed at session creation and never changes afterwards.
type Mode string

const (
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
)

// IsValid reports whether the mode is a known operating mode.
func (m Mode) IsValid() bool {
	return m == ModeSandbox || m == ModeProduction
}

// Status is the lifecycle state of a verification session.
// pending -> verified | failed | manual_review. verified and failed are
// terminal; manual_review is resolvable only by administrative action or a
// successful re-run of the stage that set it.
type Status string

const (
	StatusPending      Status = "pending"
	StatusVerified     Status = "verified"
	StatusFailed       Status = "failed"
	StatusManualReview Status = "manual_review"
)

// DocumentType is the kind of identity document being verified.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeDriversLicense DocumentType = "drivers_license"
	DocumentTypeNationalID     DocumentType = "national_id"
	DocumentTypeOther          DocumentType = "other"
)

// IsValid reports whether the document type is supported.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeDriversLicense, DocumentTypeNationalID, DocumentTypeOther:
		return true
	}
	return false
}

// DocumentKind distinguishes the two sides of an identity document.
type DocumentKind string

const (
	DocumentKindFront DocumentKind = "front"
	DocumentKindBack  DocumentKind = "back"
)

// ChallengeType is the liveness prompt issued to the user for a live capture.
type ChallengeType string

const (
	ChallengeBlink    ChallengeType = "blink"
	ChallengeSmile    ChallengeType = "smile"
	ChallengeTurnHead ChallengeType = "turn_head"
	ChallengeRandom   ChallengeType = "random"
)

// IsValid reports whether the challenge type is supported.
func (c ChallengeType) IsValid() bool {
	switch c {
	case ChallengeBlink, ChallengeSmile, ChallengeTurnHead, ChallengeRandom:
		return true
	}
	return false
}

// Stage identifies which processing stage produced a result. The capture
// stage is authoritative for the terminal decision; the back-document stage
// decides only while no capture decision exists.
type Stage string

const (
	StageFrontDocument Stage = "front_document"
	StageBackDocument  Stage = "back_document"
	StageCapture       Stage = "capture"
)

// VerificationSession is one end-to-end identity-check attempt for a subject.
// Status is written only through the orchestrator's apply-stage-result path;
// Version implements optimistic concurrency on that path.
type VerificationSession struct {
	ID        string
	SubjectID string
	IssuerID  string
	Mode      Mode
	Status    Status

	DocumentID     string
	BackDocumentID string
	CaptureID      string

	FaceMatchScore       *float64
	LivenessScore        *float64
	CrossValidationScore *float64

	// ManualReviewReason carries the human-readable reason whenever the
	// session is failed, parked, or routed to manual review.
	ManualReviewReason string

	// DecidedStage records which stage committed the current decision.
	// Empty while no stage has decided.
	DecidedStage Stage

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OCRData is the structured extraction result for a front document.
type OCRData struct {
	FullName         string             `json:"name,omitempty"`
	DateOfBirth      string             `json:"date_of_birth,omitempty"`
	DocumentNumber   string             `json:"document_number,omitempty"`
	ExpirationDate   string             `json:"expiration_date,omitempty"`
	IssuingAuthority string             `json:"issuing_authority,omitempty"`
	Nationality      string             `json:"nationality,omitempty"`
	Address          string             `json:"address,omitempty"`
	RawText          string             `json:"raw_text,omitempty"`
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`
}

// Resolution describes the pixel dimensions found during quality analysis.
type Resolution struct {
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	IsHighRes bool `json:"isHighRes"`
}

// QualityAnalysis is the document-quality scoring result.
type QualityAnalysis struct {
	IsBlurry        bool       `json:"isBlurry"`
	BlurScore       float64    `json:"blurScore"`
	Brightness      float64    `json:"brightness"`
	Contrast        float64    `json:"contrast"`
	Resolution      Resolution `json:"resolution"`
	OverallQuality  string     `json:"overallQuality"`
	Issues          []string   `json:"issues,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// BarcodeFields are the identity fields parsed out of a back-of-document
// barcode (PDF417 or QR).
type BarcodeFields struct {
	FullName         string `json:"name,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	DocumentNumber   string `json:"document_number,omitempty"`
	ExpirationDate   string `json:"expiration_date,omitempty"`
	IssuingAuthority string `json:"issuing_authority,omitempty"`
}

// BarcodeData is the raw and parsed output of the barcode decoder.
type BarcodeData struct {
	QRCode            string         `json:"qr_code,omitempty"`
	RawBarcode        string         `json:"raw_barcode,omitempty"`
	Parsed            *BarcodeFields `json:"parsed_fields,omitempty"`
	VerificationCodes []string       `json:"verification_codes,omitempty"`
	SecurityFeatures  []string       `json:"security_features,omitempty"`
}

// FieldComparisons carries the per-field outcome of cross-validation.
// A nil entry means the field was not present on both sides and was skipped.
type FieldComparisons struct {
	IDNumberMatch         *bool `json:"id_number_match,omitempty"`
	ExpiryDateMatch       *bool `json:"expiry_date_match,omitempty"`
	IssuingAuthorityMatch *bool `json:"issuing_authority_match,omitempty"`
	OverallConsistency    bool  `json:"overall_consistency"`
}

// CrossValidationResult reconciles front OCR fields against back barcode fields.
type CrossValidationResult struct {
	MatchScore    float64          `json:"match_score"`
	Fields        FieldComparisons `json:"per_field_results"`
	Discrepancies []string         `json:"discrepancies,omitempty"`
}

// Document is one side of an identity document attached to a session.
// At most one front and one back exist per session; a back requires a front
// of the same document type.
type Document struct {
	ID          string
	SessionID   string
	Kind        DocumentKind
	Type        DocumentType
	ArtifactRef string
	MimeType    string

	OCRData         *OCRData
	Quality         *QualityAnalysis
	Barcode         *BarcodeData
	CrossValidation *CrossValidationResult

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceInfo is client device metadata recorded with a capture for audit.
type DeviceInfo struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile"`
}

// CaptureArtifact is a selfie or live capture attached to a session.
type CaptureArtifact struct {
	ID            string
	SessionID     string
	ArtifactRef   string
	MimeType      string
	ChallengeType ChallengeType
	Device        DeviceInfo
	CreatedAt     time.Time
}

// NewSessionID returns a fresh prefixed session identifier.
func NewSessionID() string {
	return fmt.Sprintf("verif_%s", uuid.New().String())
}

// NewDocumentID returns a fresh prefixed document identifier.
func NewDocumentID() string {
	return fmt.Sprintf("doc_%s", uuid.New().String())
}

// NewCaptureID returns a fresh prefixed capture identifier.
func NewCaptureID() string {
	return fmt.Sprintf("cap_%s", uuid.New().String())
}
