package analyzers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/analyzers"
	"idverify/internal/artifacts"
	"idverify/internal/verification/models"
)

func stubFixture(t *testing.T, content string) (analyzers.Set, string) {
	t.Helper()
	store := artifacts.NewMemoryStore()
	ref, err := store.Put(context.Background(), []byte(content), "image/jpeg")
	require.NoError(t, err)
	return analyzers.NewStubSet(store, 0), ref
}

func TestStubOCRExtractsSampleIdentity(t *testing.T) {
	set, ref := stubFixture(t, "clean front document")

	data, err := set.OCR.Extract(context.Background(), ref, models.DocumentTypeDriversLicense)
	require.NoError(t, err)

	assert.Equal(t, "Sample Holder", data.FullName)
	assert.Equal(t, "D12345678", data.DocumentNumber)
	assert.Equal(t, "2030-01-01", data.ExpirationDate)
	assert.Equal(t, "DMV", data.IssuingAuthority)
	assert.NotEmpty(t, data.ConfidenceScores)
}

func TestStubOCRUnreadableMarker(t *testing.T) {
	set, ref := stubFixture(t, "blurry unreadable scan")

	_, err := set.OCR.Extract(context.Background(), ref, models.DocumentTypePassport)
	assert.Error(t, err)
}

func TestStubResultsAreDeterministic(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemoryStore()
	set := analyzers.NewStubSet(store, 0)

	refA, err := store.Put(ctx, []byte("same capture bytes"), "image/jpeg")
	require.NoError(t, err)
	refB, err := store.Put(ctx, []byte("same capture bytes"), "image/jpeg")
	require.NoError(t, err)

	docRef, err := store.Put(ctx, []byte("front"), "image/jpeg")
	require.NoError(t, err)

	scoreA, err := set.FaceMatch.Match(ctx, docRef, refA)
	require.NoError(t, err)
	scoreB, err := set.FaceMatch.Match(ctx, docRef, refB)
	require.NoError(t, err)
	assert.Equal(t, scoreA, scoreB)

	liveA, err := set.Liveness.Detect(ctx, refA, models.ChallengeBlink)
	require.NoError(t, err)
	liveB, err := set.Liveness.Detect(ctx, refB, models.ChallengeBlink)
	require.NoError(t, err)
	assert.Equal(t, liveA, liveB)
}

func TestStubFaceMatchStrangerMarker(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewMemoryStore()
	set := analyzers.NewStubSet(store, 0)

	docRef, err := store.Put(ctx, []byte("front"), "image/jpeg")
	require.NoError(t, err)
	capRef, err := store.Put(ctx, []byte("a stranger appears"), "image/jpeg")
	require.NoError(t, err)

	score, err := set.FaceMatch.Match(ctx, docRef, capRef)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, score, 0.001)

	okRef, err := store.Put(ctx, []byte("the real holder"), "image/jpeg")
	require.NoError(t, err)
	score, err = set.FaceMatch.Match(ctx, docRef, okRef)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.90)
}

func TestStubLivenessSpoofMarker(t *testing.T) {
	set, ref := stubFixture(t, "printed spoof photo")

	score, err := set.Liveness.Detect(context.Background(), ref, models.ChallengeSmile)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, score, 0.001)
}

func TestStubBarcodeMatchesOCRByDefault(t *testing.T) {
	set, ref := stubFixture(t, "clean back of id")

	data, err := set.Barcode.Decode(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, data.Parsed)

	assert.Equal(t, "D12345678", data.Parsed.DocumentNumber)
	assert.Equal(t, "2030-01-01", data.Parsed.ExpirationDate)
	assert.Equal(t, "DMV", data.Parsed.IssuingAuthority)
	assert.NotEmpty(t, data.RawBarcode)
}

func TestStubBarcodeMismatchMarker(t *testing.T) {
	set, ref := stubFixture(t, "back with mismatch fields")

	data, err := set.Barcode.Decode(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, data.Parsed)

	assert.Equal(t, "X99999999", data.Parsed.DocumentNumber)
	assert.Equal(t, "2022-06-30", data.Parsed.ExpirationDate)
}

func TestStubBarcodeNoBarcodeMarker(t *testing.T) {
	set, ref := stubFixture(t, "plain paper nobarcode")

	_, err := set.Barcode.Decode(context.Background(), ref)
	assert.Error(t, err)
}

func TestStubHonorsContextCancellation(t *testing.T) {
	store := artifacts.NewMemoryStore()
	ref, err := store.Put(context.Background(), []byte("slow"), "image/jpeg")
	require.NoError(t, err)

	set := analyzers.NewStubSet(store, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = set.OCR.Extract(ctx, ref, models.DocumentTypePassport)
	assert.ErrorIs(t, err, context.Canceled)
}
