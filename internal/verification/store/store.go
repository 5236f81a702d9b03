// Package store persists verification sessions, documents, and captures.
// Two implementations exist: an in-memory store for tests and development,
// and a PostgreSQL store for production.
package store

import (
	"context"

	"idverify/internal/verification/models"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrDuplicate when creating an entity whose ID already
//   exists, or a second document for a session and kind that already has one
// - Return sentinel.ErrVersionConflict when an optimistic session update loses a race
// - Return wrapped errors with context for infrastructure failures

// Store is the persistence boundary for the verification module.
type Store interface {
	// CreateSession inserts a new session.
	CreateSession(ctx context.Context, session *models.VerificationSession) error

	// GetSession returns the session by ID.
	GetSession(ctx context.Context, id string) (*models.VerificationSession, error)

	// UpdateSession writes the session if its Version still matches the
	// stored row, then increments Version on both sides. A lost race
	// returns sentinel.ErrVersionConflict.
	UpdateSession(ctx context.Context, session *models.VerificationSession) error

	// ListSessionsBySubject returns a subject's sessions, newest first.
	ListSessionsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error)

	// CreateDocument inserts a new document record. A session holds at most
	// one document per kind; a second insert returns sentinel.ErrDuplicate.
	CreateDocument(ctx context.Context, doc *models.Document) error

	// GetDocument returns the document by ID.
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// FindDocumentByKind returns a session's front or back document.
	FindDocumentByKind(ctx context.Context, sessionID string, kind models.DocumentKind) (*models.Document, error)

	// UpdateDocument overwrites a document record.
	UpdateDocument(ctx context.Context, doc *models.Document) error

	// CreateCapture inserts a new capture record.
	CreateCapture(ctx context.Context, capture *models.CaptureArtifact) error

	// GetCapture returns the capture by ID.
	GetCapture(ctx context.Context, id string) (*models.CaptureArtifact, error)

	// ClearArtifactRefs removes the artifact references from every document
	// and capture of a session and returns the refs that were cleared.
	// Structured records and scores stay behind for audit.
	ClearArtifactRefs(ctx context.Context, sessionID string) ([]string, error)
}
