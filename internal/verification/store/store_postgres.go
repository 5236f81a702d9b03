package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
)

// PostgresStore persists verification state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.VerificationSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	query := `
		INSERT INTO verification_sessions (
			id, subject_id, issuer_id, mode, status,
			document_id, back_document_id, capture_id,
			face_match_score, liveness_score, cross_validation_score,
			manual_review_reason, decided_stage, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.SubjectID,
		session.IssuerID,
		string(session.Mode),
		string(session.Status),
		session.DocumentID,
		session.BackDocumentID,
		session.CaptureID,
		session.FaceMatchScore,
		session.LivenessScore,
		session.CrossValidationScore,
		session.ManualReviewReason,
		string(session.DecidedStage),
		session.Version,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

const sessionColumns = `
	id, subject_id, issuer_id, mode, status,
	document_id, back_document_id, capture_id,
	face_match_score, liveness_score, cross_validation_score,
	manual_review_reason, decided_stage, version, created_at, updated_at
`

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.VerificationSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	query := `
		UPDATE verification_sessions SET
			status = $3,
			document_id = $4,
			back_document_id = $5,
			capture_id = $6,
			face_match_score = $7,
			liveness_score = $8,
			cross_validation_score = $9,
			manual_review_reason = $10,
			decided_stage = $11,
			version = version + 1,
			updated_at = $12
		WHERE id = $1 AND version = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Version,
		string(session.Status),
		session.DocumentID,
		session.BackDocumentID,
		session.CaptureID,
		session.FaceMatchScore,
		session.LivenessScore,
		session.CrossValidationScore,
		session.ManualReviewReason,
		string(session.DecidedStage),
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if n == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1)`, session.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("update session check: %w", checkErr)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionConflict
	}
	session.Version++
	return nil
}

func (s *PostgresStore) ListSessionsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, subjectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.VerificationSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	ocr, err := marshalNullable(doc.OCRData)
	if err != nil {
		return fmt.Errorf("encode ocr data: %w", err)
	}
	quality, err := marshalNullable(doc.Quality)
	if err != nil {
		return fmt.Errorf("encode quality: %w", err)
	}
	barcode, err := marshalNullable(doc.Barcode)
	if err != nil {
		return fmt.Errorf("encode barcode: %w", err)
	}
	crossVal, err := marshalNullable(doc.CrossValidation)
	if err != nil {
		return fmt.Errorf("encode cross-validation: %w", err)
	}

	query := `
		INSERT INTO verification_documents (
			id, session_id, kind, doc_type, artifact_ref, mime_type,
			ocr_data, quality, barcode, cross_validation, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.SessionID, string(doc.Kind), string(doc.Type),
		doc.ArtifactRef, doc.MimeType,
		ocr, quality, barcode, crossVal,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		// The unique (session_id, kind) index loses the race for a second
		// front or back submission.
		if isUniqueViolation(err) {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const documentColumns = `
	id, session_id, kind, doc_type, artifact_ref, mime_type,
	ocr_data, quality, barcode, cross_validation, created_at, updated_at
`

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM verification_documents WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) FindDocumentByKind(ctx context.Context, sessionID string, kind models.DocumentKind) (*models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM verification_documents
		WHERE session_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, sessionID, string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	ocr, err := marshalNullable(doc.OCRData)
	if err != nil {
		return fmt.Errorf("encode ocr data: %w", err)
	}
	quality, err := marshalNullable(doc.Quality)
	if err != nil {
		return fmt.Errorf("encode quality: %w", err)
	}
	barcode, err := marshalNullable(doc.Barcode)
	if err != nil {
		return fmt.Errorf("encode barcode: %w", err)
	}
	crossVal, err := marshalNullable(doc.CrossValidation)
	if err != nil {
		return fmt.Errorf("encode cross-validation: %w", err)
	}

	query := `
		UPDATE verification_documents SET
			artifact_ref = $2,
			ocr_data = $3,
			quality = $4,
			barcode = $5,
			cross_validation = $6,
			updated_at = $7
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.ArtifactRef, ocr, quality, barcode, crossVal, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateCapture(ctx context.Context, capture *models.CaptureArtifact) error {
	if capture == nil {
		return fmt.Errorf("capture is required")
	}
	device, err := json.Marshal(capture.Device)
	if err != nil {
		return fmt.Errorf("encode device info: %w", err)
	}

	query := `
		INSERT INTO verification_captures (
			id, session_id, artifact_ref, mime_type, challenge_type, device, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		capture.ID, capture.SessionID, capture.ArtifactRef, capture.MimeType,
		string(capture.ChallengeType), device, capture.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) GetCapture(ctx context.Context, id string) (*models.CaptureArtifact, error) {
	query := `
		SELECT id, session_id, artifact_ref, mime_type, challenge_type, device, created_at
		FROM verification_captures
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, id)

	var capture models.CaptureArtifact
	var challenge string
	var device []byte
	err := row.Scan(&capture.ID, &capture.SessionID, &capture.ArtifactRef,
		&capture.MimeType, &challenge, &device, &capture.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get capture: %w", err)
	}
	capture.ChallengeType = models.ChallengeType(challenge)
	if len(device) > 0 {
		if err := json.Unmarshal(device, &capture.Device); err != nil {
			return nil, fmt.Errorf("decode device info: %w", err)
		}
	}
	return &capture, nil
}

func (s *PostgresStore) ClearArtifactRefs(ctx context.Context, sessionID string) ([]string, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1)`, sessionID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	var refs []string
	collect := func(query string) error {
		rows, err := s.db.QueryContext(ctx, query, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		return rows.Err()
	}

	// Self-join so RETURNING yields the pre-update reference.
	if err := collect(`
		UPDATE verification_documents AS d SET artifact_ref = ''
		FROM (
			SELECT id, artifact_ref FROM verification_documents
			WHERE session_id = $1 AND artifact_ref <> ''
			FOR UPDATE
		) AS old
		WHERE d.id = old.id
		RETURNING old.artifact_ref
	`); err != nil {
		return nil, fmt.Errorf("clear document artifacts: %w", err)
	}
	if err := collect(`
		UPDATE verification_captures AS c SET artifact_ref = ''
		FROM (
			SELECT id, artifact_ref FROM verification_captures
			WHERE session_id = $1 AND artifact_ref <> ''
			FOR UPDATE
		) AS old
		WHERE c.id = old.id
		RETURNING old.artifact_ref
	`); err != nil {
		return nil, fmt.Errorf("clear capture artifacts: %w", err)
	}
	return refs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.VerificationSession, error) {
	var session models.VerificationSession
	var mode, status, stage string
	err := row.Scan(
		&session.ID,
		&session.SubjectID,
		&session.IssuerID,
		&mode,
		&status,
		&session.DocumentID,
		&session.BackDocumentID,
		&session.CaptureID,
		&session.FaceMatchScore,
		&session.LivenessScore,
		&session.CrossValidationScore,
		&session.ManualReviewReason,
		&stage,
		&session.Version,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Mode = models.Mode(mode)
	session.Status = models.Status(status)
	session.DecidedStage = models.Stage(stage)
	return &session, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var kind, docType string
	var ocr, quality, barcode, crossVal []byte
	err := row.Scan(
		&doc.ID,
		&doc.SessionID,
		&kind,
		&docType,
		&doc.ArtifactRef,
		&doc.MimeType,
		&ocr,
		&quality,
		&barcode,
		&crossVal,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Kind = models.DocumentKind(kind)
	doc.Type = models.DocumentType(docType)

	if err := unmarshalNullable(ocr, &doc.OCRData); err != nil {
		return nil, fmt.Errorf("decode ocr data: %w", err)
	}
	if err := unmarshalNullable(quality, &doc.Quality); err != nil {
		return nil, fmt.Errorf("decode quality: %w", err)
	}
	if err := unmarshalNullable(barcode, &doc.Barcode); err != nil {
		return nil, fmt.Errorf("decode barcode: %w", err)
	}
	if err := unmarshalNullable(crossVal, &doc.CrossValidation); err != nil {
		return nil, fmt.Errorf("decode cross-validation: %w", err)
	}
	return &doc, nil
}

// marshalNullable encodes a pointer as JSONB, mapping nil to SQL NULL.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalNullable decodes a JSONB column into a pointer field, leaving it
// nil for SQL NULL.
func unmarshalNullable[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*target = &v
	return nil
}

// Verify interface is satisfied.
var _ Store = (*PostgresStore)(nil)
