package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/decision"
	"idverify/internal/verification/models"
)

func TestEvaluateCapture_Production(t *testing.T) {
	tests := []struct {
		name       string
		scores     decision.CaptureScores
		wantStatus models.Status
		wantReason string
	}{
		{
			name:       "both scores above thresholds verifies",
			scores:     decision.CaptureScores{FaceMatch: 0.90, Liveness: 0.80},
			wantStatus: models.StatusVerified,
		},
		{
			name:       "face exactly at threshold fails",
			scores:     decision.CaptureScores{FaceMatch: 0.85, Liveness: 0.80},
			wantStatus: models.StatusFailed,
			wantReason: "Face matching failed",
		},
		{
			name:       "liveness exactly at threshold fails",
			scores:     decision.CaptureScores{FaceMatch: 0.90, Liveness: 0.75},
			wantStatus: models.StatusFailed,
			wantReason: "Liveness detection failed",
		},
		{
			name:       "just above thresholds verifies",
			scores:     decision.CaptureScores{FaceMatch: 0.8501, Liveness: 0.7501},
			wantStatus: models.StatusVerified,
		},
		{
			name:       "only face below threshold names face",
			scores:     decision.CaptureScores{FaceMatch: 0.60, Liveness: 0.95},
			wantStatus: models.StatusFailed,
			wantReason: "Face matching failed",
		},
		{
			name:       "only liveness below threshold names liveness",
			scores:     decision.CaptureScores{FaceMatch: 0.95, Liveness: 0.50},
			wantStatus: models.StatusFailed,
			wantReason: "Liveness detection failed",
		},
		{
			name:       "both below threshold names both",
			scores:     decision.CaptureScores{FaceMatch: 0.10, Liveness: 0.10},
			wantStatus: models.StatusFailed,
			wantReason: "Face matching failed; Liveness detection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decision.EvaluateCapture(models.ModeProduction, tt.scores)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantReason, out.Reason)
		})
	}
}

func TestEvaluateCapture_SandboxThresholdsAreLooser(t *testing.T) {
	// These scores fail production but pass sandbox.
	scores := decision.CaptureScores{FaceMatch: 0.82, Liveness: 0.70}

	prod := decision.EvaluateCapture(models.ModeProduction, scores)
	assert.Equal(t, models.StatusFailed, prod.Status)

	sandbox := decision.EvaluateCapture(models.ModeSandbox, scores)
	assert.Equal(t, models.StatusVerified, sandbox.Status)
	assert.Empty(t, sandbox.Reason)
}

func TestEvaluateCapture_SandboxBoundaries(t *testing.T) {
	// Strict comparison: exactly at the sandbox thresholds still fails.
	out := decision.EvaluateCapture(models.ModeSandbox, decision.CaptureScores{FaceMatch: 0.80, Liveness: 0.65})
	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, "Face matching failed; Liveness detection failed", out.Reason)
}

func TestEvaluateCrossValidation(t *testing.T) {
	consistent := models.CrossValidationResult{
		MatchScore: 1.0,
		Fields:     models.FieldComparisons{OverallConsistency: true},
	}

	tests := []struct {
		name       string
		mode       models.Mode
		result     models.CrossValidationResult
		wantStatus models.Status
	}{
		{
			name:       "fully consistent verifies",
			mode:       models.ModeProduction,
			result:     consistent,
			wantStatus: models.StatusVerified,
		},
		{
			name: "score exactly at threshold passes when all compared fields agree",
			mode: models.ModeProduction,
			result: models.CrossValidationResult{
				MatchScore: 0.70,
				Fields:     models.FieldComparisons{OverallConsistency: true},
			},
			wantStatus: models.StatusVerified,
		},
		{
			name: "high score without full consistency fails",
			mode: models.ModeProduction,
			result: models.CrossValidationResult{
				MatchScore:    0.75,
				Fields:        models.FieldComparisons{OverallConsistency: false},
				Discrepancies: []string{`expiry_date mismatch: front="2030-01-01" back="2022-06-30"`},
			},
			wantStatus: models.StatusFailed,
		},
		{
			name: "sandbox uses the same cross-validation bar",
			mode: models.ModeSandbox,
			result: models.CrossValidationResult{
				MatchScore: 0.69,
				Fields:     models.FieldComparisons{OverallConsistency: false},
			},
			wantStatus: models.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decision.EvaluateCrossValidation(tt.mode, tt.result)
			assert.Equal(t, tt.wantStatus, out.Status)
			if tt.wantStatus == models.StatusFailed {
				assert.Contains(t, out.Reason, "Cross-validation failed")
			}
		})
	}
}

func TestEvaluateCrossValidation_ReasonListsDiscrepancies(t *testing.T) {
	out := decision.EvaluateCrossValidation(models.ModeProduction, models.CrossValidationResult{
		MatchScore: 0.5,
		Discrepancies: []string{
			`id_number mismatch: front="A" back="B"`,
			`expiry_date mismatch: front="C" back="D"`,
		},
	})

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "id_number mismatch")
	assert.Contains(t, out.Reason, "expiry_date mismatch")
}

func TestConfidence(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Nil(t, decision.Confidence(nil, nil, nil))

	got := decision.Confidence(f(0.9))
	require.NotNil(t, got)
	assert.InDelta(t, 0.9, *got, 1e-9)

	got = decision.Confidence(f(0.9), f(0.7), nil)
	require.NotNil(t, got)
	assert.InDelta(t, 0.8, *got, 1e-9)

	got = decision.Confidence(f(0.9), f(0.6), f(0.9))
	require.NotNil(t, got)
	assert.InDelta(t, 0.8, *got, 1e-9)
}
