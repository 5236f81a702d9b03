package analyzers

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"idverify/internal/artifacts"
	"idverify/internal/verification/models"
)

// Stub analyzers produce deterministic results derived from artifact content
// and sleep a configurable latency to mimic real engine calls. They back the
// sandbox mode and local development.
//
// Content markers force specific outcomes:
//
//	"unreadable" -> OCR extraction error
//	"nobarcode"  -> barcode decode error
//	"mismatch"   -> barcode fields that disagree with the stub OCR fields
//	"stranger"   -> low face match score
//	"spoof"      -> low liveness score

const (
	markerUnreadable = "unreadable"
	markerNoBarcode  = "nobarcode"
	markerMismatch   = "mismatch"
	markerStranger   = "stranger"
	markerSpoof      = "spoof"
)

// Stub sample identity. OCR and barcode stubs return the same fields so
// cross-validation passes unless the mismatch marker is present.
const (
	stubFullName       = "Sample Holder"
	stubDateOfBirth    = "1990-02-03"
	stubDocumentNumber = "D12345678"
	stubExpiration     = "2030-01-01"
	stubAuthority      = "DMV"
)

func contentHash(content []byte) uint64 {
	h := fnv.New64a()
	h.Write(content) //nolint:errcheck // fnv never fails
	return h.Sum64()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StubOCR is a deterministic OCRClient over stored artifacts.
type StubOCR struct {
	Artifacts artifacts.Store
	Latency   time.Duration
}

func (s StubOCR) Extract(ctx context.Context, artifactRef string, docType models.DocumentType) (*models.OCRData, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return nil, err
	}
	content, err := s.Artifacts.Get(ctx, artifactRef)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	if bytes.Contains(content, []byte(markerUnreadable)) {
		return nil, fmt.Errorf("ocr engine: text extraction failed")
	}

	h := contentHash(content)
	return &models.OCRData{
		FullName:         stubFullName,
		DateOfBirth:      stubDateOfBirth,
		DocumentNumber:   stubDocumentNumber,
		ExpirationDate:   stubExpiration,
		IssuingAuthority: stubAuthority,
		Nationality:      "US",
		RawText:          fmt.Sprintf("%s %s %s", stubFullName, stubDocumentNumber, docType),
		ConfidenceScores: map[string]float64{
			"name":            0.90 + float64(h%10)/100,
			"document_number": 0.92 + float64(h%8)/100,
			"expiration_date": 0.88 + float64(h%12)/100,
		},
	}, nil
}

// StubQuality is a deterministic QualityClient over stored artifacts.
type StubQuality struct {
	Artifacts artifacts.Store
	Latency   time.Duration
}

func (s StubQuality) Analyze(ctx context.Context, artifactRef string) (*models.QualityAnalysis, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return nil, err
	}
	content, err := s.Artifacts.Get(ctx, artifactRef)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	h := contentHash(content)
	blur := float64(h%30) / 100
	qa := &models.QualityAnalysis{
		IsBlurry:   blur > 0.25,
		BlurScore:  blur,
		Brightness: 0.55 + float64(h%35)/100,
		Contrast:   0.50 + float64(h%40)/100,
		Resolution: models.Resolution{
			Width:     1280,
			Height:    960,
			IsHighRes: true,
		},
		OverallQuality: "good",
	}
	if qa.IsBlurry {
		qa.OverallQuality = "fair"
		qa.Issues = append(qa.Issues, "image appears blurry")
		qa.Recommendations = append(qa.Recommendations, "retake the photo in better focus")
	}
	return qa, nil
}

// StubFaceMatch is a deterministic FaceMatchClient over stored artifacts.
type StubFaceMatch struct {
	Artifacts artifacts.Store
	Latency   time.Duration
}

func (s StubFaceMatch) Match(ctx context.Context, documentRef, captureRef string) (float64, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return 0, err
	}
	if _, err := s.Artifacts.Get(ctx, documentRef); err != nil {
		return 0, fmt.Errorf("load document artifact: %w", err)
	}
	capture, err := s.Artifacts.Get(ctx, captureRef)
	if err != nil {
		return 0, fmt.Errorf("load capture artifact: %w", err)
	}
	if bytes.Contains(capture, []byte(markerStranger)) {
		return 0.42, nil
	}
	return 0.90 + float64(contentHash(capture)%10)/100, nil
}

// StubLiveness is a deterministic LivenessClient over stored artifacts.
type StubLiveness struct {
	Artifacts artifacts.Store
	Latency   time.Duration
}

func (s StubLiveness) Detect(ctx context.Context, captureRef string, _ models.ChallengeType) (float64, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return 0, err
	}
	capture, err := s.Artifacts.Get(ctx, captureRef)
	if err != nil {
		return 0, fmt.Errorf("load capture artifact: %w", err)
	}
	if bytes.Contains(capture, []byte(markerSpoof)) {
		return 0.30, nil
	}
	return 0.82 + float64(contentHash(capture)%15)/100, nil
}

// StubBarcode is a deterministic BarcodeClient over stored artifacts.
type StubBarcode struct {
	Artifacts artifacts.Store
	Latency   time.Duration
}

func (s StubBarcode) Decode(ctx context.Context, artifactRef string) (*models.BarcodeData, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return nil, err
	}
	content, err := s.Artifacts.Get(ctx, artifactRef)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	if bytes.Contains(content, []byte(markerNoBarcode)) {
		return nil, fmt.Errorf("barcode engine: no decodable symbology found")
	}

	fields := &models.BarcodeFields{
		FullName:         stubFullName,
		DateOfBirth:      stubDateOfBirth,
		DocumentNumber:   stubDocumentNumber,
		ExpirationDate:   stubExpiration,
		IssuingAuthority: stubAuthority,
	}
	if bytes.Contains(content, []byte(markerMismatch)) {
		fields.DocumentNumber = "X99999999"
		fields.ExpirationDate = "2022-06-30"
	}
	return &models.BarcodeData{
		RawBarcode:        fmt.Sprintf("@ANSI %s %s", fields.DocumentNumber, fields.ExpirationDate),
		Parsed:            fields,
		VerificationCodes: []string{fmt.Sprintf("vc-%08x", contentHash(content)&0xffffffff)},
		SecurityFeatures:  []string{"pdf417"},
	}, nil
}

// NewStubSet wires all stub analyzers over the given artifact store with a
// shared simulated latency.
func NewStubSet(store artifacts.Store, latency time.Duration) Set {
	return Set{
		OCR:       StubOCR{Artifacts: store, Latency: latency},
		Quality:   StubQuality{Artifacts: store, Latency: latency},
		FaceMatch: StubFaceMatch{Artifacts: store, Latency: latency},
		Liveness:  StubLiveness{Artifacts: store, Latency: latency},
		Barcode:   StubBarcode{Artifacts: store, Latency: latency},
	}
}
