// Package analyzers defines the ports to the image-analysis engines the
// orchestrator calls during verification: OCR extraction, quality scoring,
// face matching, liveness detection, and barcode decoding.
//
// Each port is a single-method interface so implementations stay swappable.
// Implementations must be safe for concurrent use; calls honor context
// cancellation. Errors are infrastructure failures only and never encode a
// verification outcome. A low score is a result, not an error.
package analyzers

import (
	"context"

	"idverify/internal/verification/models"
)

// OCRClient extracts structured identity fields from a front document image.
type OCRClient interface {
	Extract(ctx context.Context, artifactRef string, docType models.DocumentType) (*models.OCRData, error)
}

// QualityClient scores the photographic quality of a document image.
type QualityClient interface {
	Analyze(ctx context.Context, artifactRef string) (*models.QualityAnalysis, error)
}

// FaceMatchClient compares the portrait on a front document against a capture.
// The score is in [0, 1]; higher means more likely the same person.
type FaceMatchClient interface {
	Match(ctx context.Context, documentRef, captureRef string) (float64, error)
}

// LivenessClient estimates whether a capture shows a live person rather than
// a photo of a photo or a screen. The score is in [0, 1].
type LivenessClient interface {
	Detect(ctx context.Context, captureRef string, challenge models.ChallengeType) (float64, error)
}

// BarcodeClient decodes the PDF417 or QR payload on a back-of-document image.
type BarcodeClient interface {
	Decode(ctx context.Context, artifactRef string) (*models.BarcodeData, error)
}

// Set bundles one client per analyzer for injection into the orchestrator.
type Set struct {
	OCR       OCRClient
	Quality   QualityClient
	FaceMatch FaceMatchClient
	Liveness  LivenessClient
	Barcode   BarcodeClient
}
