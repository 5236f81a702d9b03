package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
	"idverify/internal/verification/store"
)

func newSession(subjectID string, createdAt time.Time) *models.VerificationSession {
	return &models.VerificationSession{
		ID:        models.NewSessionID(),
		SubjectID: subjectID,
		IssuerID:  "issuer_test",
		Mode:      models.ModeSandbox,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	session := newSession("user_1", time.Now())
	require.NoError(t, s.CreateSession(ctx, session))

	// Duplicate IDs are rejected.
	assert.ErrorIs(t, s.CreateSession(ctx, session), sentinel.ErrDuplicate)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)

	// Returned copies must not alias stored state.
	got.Status = models.StatusVerified
	again, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)

	_, err = s.GetSession(ctx, "verif_missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_UpdateSessionOptimisticLocking(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	session := newSession("user_1", time.Now())
	require.NoError(t, s.CreateSession(ctx, session))

	first, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	second, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)

	first.Status = models.StatusVerified
	require.NoError(t, s.UpdateSession(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	// The stale reader loses the race.
	second.Status = models.StatusFailed
	assert.ErrorIs(t, s.UpdateSession(ctx, second), sentinel.ErrVersionConflict)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.Status)

	missing := newSession("user_2", time.Now())
	assert.ErrorIs(t, s.UpdateSession(ctx, missing), sentinel.ErrNotFound)
}

func TestMemoryStore_ListSessionsBySubject(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	base := time.Now()
	oldest := newSession("user_1", base.Add(-2*time.Hour))
	middle := newSession("user_1", base.Add(-time.Hour))
	newest := newSession("user_1", base)
	other := newSession("user_2", base)

	for _, session := range []*models.VerificationSession{oldest, middle, newest, other} {
		require.NoError(t, s.CreateSession(ctx, session))
	}

	sessions, err := s.ListSessionsBySubject(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, newest.ID, sessions[0].ID)
	assert.Equal(t, oldest.ID, sessions[2].ID)

	// Pagination.
	page, err := s.ListSessionsBySubject(ctx, "user_1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, middle.ID, page[0].ID)

	none, err := s.ListSessionsBySubject(ctx, "user_1", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Documents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	session := newSession("user_1", time.Now())
	require.NoError(t, s.CreateSession(ctx, session))

	doc := &models.Document{
		ID:          models.NewDocumentID(),
		SessionID:   session.ID,
		Kind:        models.DocumentKindFront,
		Type:        models.DocumentTypePassport,
		ArtifactRef: "mem://front",
		MimeType:    "image/jpeg",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.CreateDocument(ctx, doc))

	found, err := s.FindDocumentByKind(ctx, session.ID, models.DocumentKindFront)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = s.FindDocumentByKind(ctx, session.ID, models.DocumentKindBack)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	found.OCRData = &models.OCRData{DocumentNumber: "D12345678"}
	require.NoError(t, s.UpdateDocument(ctx, found))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OCRData)
	assert.Equal(t, "D12345678", got.OCRData.DocumentNumber)
}

func TestMemoryStore_OneDocumentPerKind(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	session := newSession("user_1", time.Now())
	require.NoError(t, s.CreateSession(ctx, session))

	front := &models.Document{
		ID:        models.NewDocumentID(),
		SessionID: session.ID,
		Kind:      models.DocumentKindFront,
		Type:      models.DocumentTypePassport,
	}
	require.NoError(t, s.CreateDocument(ctx, front))

	// A second front for the same session loses, even with a fresh ID.
	rival := &models.Document{
		ID:        models.NewDocumentID(),
		SessionID: session.ID,
		Kind:      models.DocumentKindFront,
		Type:      models.DocumentTypePassport,
	}
	assert.ErrorIs(t, s.CreateDocument(ctx, rival), sentinel.ErrDuplicate)

	// A back document and another session's front are unaffected.
	back := &models.Document{
		ID:        models.NewDocumentID(),
		SessionID: session.ID,
		Kind:      models.DocumentKindBack,
		Type:      models.DocumentTypePassport,
	}
	assert.NoError(t, s.CreateDocument(ctx, back))

	other := newSession("user_2", time.Now())
	require.NoError(t, s.CreateSession(ctx, other))
	assert.NoError(t, s.CreateDocument(ctx, &models.Document{
		ID:        models.NewDocumentID(),
		SessionID: other.ID,
		Kind:      models.DocumentKindFront,
		Type:      models.DocumentTypePassport,
	}))

	found, err := s.FindDocumentByKind(ctx, session.ID, models.DocumentKindFront)
	require.NoError(t, err)
	assert.Equal(t, front.ID, found.ID)
}

func TestMemoryStore_ClearArtifactRefs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	session := newSession("user_1", time.Now())
	require.NoError(t, s.CreateSession(ctx, session))

	doc := &models.Document{
		ID:          models.NewDocumentID(),
		SessionID:   session.ID,
		Kind:        models.DocumentKindFront,
		Type:        models.DocumentTypePassport,
		ArtifactRef: "mem://front",
	}
	require.NoError(t, s.CreateDocument(ctx, doc))

	capture := &models.CaptureArtifact{
		ID:          models.NewCaptureID(),
		SessionID:   session.ID,
		ArtifactRef: "mem://selfie",
	}
	require.NoError(t, s.CreateCapture(ctx, capture))

	refs, err := s.ClearArtifactRefs(ctx, session.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mem://front", "mem://selfie"}, refs)

	// Records stay behind with the refs blanked.
	gotDoc, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, gotDoc.ArtifactRef)

	gotCapture, err := s.GetCapture(ctx, capture.ID)
	require.NoError(t, err)
	assert.Empty(t, gotCapture.ArtifactRef)

	// Idempotent: nothing left to clear.
	refs, err = s.ClearArtifactRefs(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = s.ClearArtifactRefs(ctx, "verif_missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
