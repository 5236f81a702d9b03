// Package decision holds the threshold tables and pure decision rules that
// turn analyzer scores into session outcomes. It performs no I/O; the
// orchestrator is responsible for persisting whatever this package decides.
package decision

import (
	"strings"

	"idverify/internal/verification/models"
)

// Thresholds are the minimum scores a session must clear, per operating mode.
// Face match and liveness are strict (score must exceed the threshold);
// cross-validation is inclusive (score may equal it).
type Thresholds struct {
	FaceMatch       float64
	Liveness        float64
	CrossValidation float64
}

// ForMode returns the threshold set for an operating mode. Sandbox runs
// looser face and liveness thresholds so integration tests pass with stub
// analyzers; the cross-validation bar is the same in both modes.
func ForMode(mode models.Mode) Thresholds {
	if mode == models.ModeSandbox {
		return Thresholds{
			FaceMatch:       0.80,
			Liveness:        0.65,
			CrossValidation: 0.70,
		}
	}
	return Thresholds{
		FaceMatch:       0.85,
		Liveness:        0.75,
		CrossValidation: 0.70,
	}
}

// Failure reasons surfaced to callers. Kept stable: clients pattern-match
// on these strings.
const (
	ReasonFaceMatchFailed = "Face matching failed"
	ReasonLivenessFailed  = "Liveness detection failed"
)

// CaptureScores are the two scores produced by the capture stage.
type CaptureScores struct {
	FaceMatch float64
	Liveness  float64
}

// Outcome is a proposed status plus a human-readable reason for anything
// other than verified.
type Outcome struct {
	Status models.Status
	Reason string
}

// EvaluateCapture decides the capture stage: verified only when both the
// face match and liveness scores strictly exceed the mode's thresholds.
func EvaluateCapture(mode models.Mode, scores CaptureScores) Outcome {
	t := ForMode(mode)

	var failures []string
	if !(scores.FaceMatch > t.FaceMatch) {
		failures = append(failures, ReasonFaceMatchFailed)
	}
	if !(scores.Liveness > t.Liveness) {
		failures = append(failures, ReasonLivenessFailed)
	}

	if len(failures) == 0 {
		return Outcome{Status: models.StatusVerified}
	}
	return Outcome{
		Status: models.StatusFailed,
		Reason: strings.Join(failures, "; "),
	}
}

// EvaluateCrossValidation decides the back-document stage: verified when the
// match score meets the threshold and every compared field agreed.
func EvaluateCrossValidation(mode models.Mode, result models.CrossValidationResult) Outcome {
	t := ForMode(mode)

	if result.MatchScore >= t.CrossValidation && result.Fields.OverallConsistency {
		return Outcome{Status: models.StatusVerified}
	}

	reason := "Cross-validation failed"
	if len(result.Discrepancies) > 0 {
		reason += ": " + strings.Join(result.Discrepancies, "; ")
	}
	return Outcome{Status: models.StatusFailed, Reason: reason}
}

// Confidence is the overall session confidence: the mean of whichever scores
// are present. Nil when no score exists yet.
func Confidence(scores ...*float64) *float64 {
	sum := 0.0
	n := 0
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
