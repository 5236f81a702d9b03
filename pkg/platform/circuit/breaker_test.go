package circuit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"idverify/pkg/platform/circuit"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := circuit.New("ocr")

	assert.False(t, b.RecordFailure().Opened)
	assert.False(t, b.RecordFailure().Opened)
	assert.False(t, b.IsOpen())

	change := b.RecordFailure()
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep it open without reporting a new transition.
	assert.False(t, b.RecordFailure().Opened)
	assert.True(t, b.IsOpen())
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := circuit.New("face_match")

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestClosesAfterConsecutiveSuccessesWhileOpen(t *testing.T) {
	b := circuit.New("liveness")

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	assert.True(t, b.IsOpen())

	assert.False(t, b.RecordSuccess().Closed)
	change := b.RecordSuccess()
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestFailureWhileOpenResetsRecovery(t *testing.T) {
	b := circuit.New("barcode")

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	b.RecordFailure()

	// The earlier success no longer counts toward recovery.
	assert.False(t, b.RecordSuccess().Closed)
	assert.True(t, b.IsOpen())
}

func TestThresholdOptions(t *testing.T) {
	b := circuit.New("quality",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
	)

	assert.True(t, b.RecordFailure().Opened)
	assert.True(t, b.RecordSuccess().Closed)

	// Non-positive overrides fall back to the defaults.
	d := circuit.New("ocr", circuit.WithFailureThreshold(0))
	d.RecordFailure()
	assert.False(t, d.IsOpen())
}

func TestName(t *testing.T) {
	assert.Equal(t, "ocr", circuit.New("ocr").Name())
}
