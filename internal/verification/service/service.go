// Package service implements the verification orchestrator: it owns the
// session lifecycle, fans submitted artifacts out to the analyzers, and
// turns their results into session decisions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"idverify/internal/analyzers"
	"idverify/internal/artifacts"
	"idverify/internal/livetoken"
	"idverify/internal/sentinel"
	"idverify/internal/verification/metrics"
	"idverify/internal/verification/models"
	dErrors "idverify/pkg/domain-errors"
)

// Store defines the persistence interface for verification state.
// Error Contract:
// - Get/Find methods return sentinel.ErrNotFound when no record exists
// - UpdateSession returns sentinel.ErrVersionConflict on a lost optimistic race
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	CreateSession(ctx context.Context, session *models.VerificationSession) error
	GetSession(ctx context.Context, id string) (*models.VerificationSession, error)
	UpdateSession(ctx context.Context, session *models.VerificationSession) error
	ListSessionsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	FindDocumentByKind(ctx context.Context, sessionID string, kind models.DocumentKind) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error

	CreateCapture(ctx context.Context, capture *models.CaptureArtifact) error
	GetCapture(ctx context.Context, id string) (*models.CaptureArtifact, error)

	ClearArtifactRefs(ctx context.Context, sessionID string) ([]string, error)
}

// LiveTokenIssuer issues and redeems single-use live-capture tokens.
type LiveTokenIssuer interface {
	Issue(ctx context.Context, sessionID string, challenge models.ChallengeType) (*livetoken.IssuedToken, error)
	Redeem(ctx context.Context, token, sessionID string) (models.ChallengeType, error)
}

const (
	defaultProcessTimeout    = 30 * time.Second
	maxSessionUpdateAttempts = 5
)

// Session park reason when a capture arrives before any document.
const reasonDocumentRequired = "document upload still required"

// Service orchestrates verification sessions.
type Service struct {
	store     Store
	artifacts artifacts.Store
	analyzers analyzers.Set
	tokens    LiveTokenIssuer

	logger  *slog.Logger
	metrics *metrics.Metrics

	processTimeout time.Duration
	now            func() time.Time
	dispatch       func(fn func())
	pickChallenge  func() models.ChallengeType

	wg sync.WaitGroup
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithProcessTimeout bounds each background analysis task.
func WithProcessTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.processTimeout = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDispatcher overrides how background analysis tasks are launched.
// Tests pass a synchronous dispatcher to make processing deterministic.
func WithDispatcher(dispatch func(fn func())) Option {
	return func(s *Service) {
		if dispatch != nil {
			s.dispatch = dispatch
		}
	}
}

// NewService constructs the orchestrator.
func NewService(st Store, art artifacts.Store, an analyzers.Set, tokens LiveTokenIssuer, opts ...Option) *Service {
	svc := &Service{
		store:          st,
		artifacts:      art,
		analyzers:      an,
		tokens:         tokens,
		logger:         slog.Default(),
		processTimeout: defaultProcessTimeout,
		now:            time.Now,
	}
	svc.dispatch = func(fn func()) {
		svc.wg.Add(1)
		go func() {
			defer svc.wg.Done()
			fn()
		}()
	}
	svc.pickChallenge = func() models.ChallengeType {
		options := []models.ChallengeType{models.ChallengeBlink, models.ChallengeSmile, models.ChallengeTurnHead}
		return options[rand.Intn(len(options))]
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Wait blocks until all in-flight background analysis tasks finish.
// Called during graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// StartSessionRequest begins a verification attempt for a subject.
type StartSessionRequest struct {
	SubjectID string
	IssuerID  string
	Sandbox   bool
}

// StartSession creates a pending session in the requested mode.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*models.VerificationSession, error) {
	if req.SubjectID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}

	mode := models.ModeProduction
	if req.Sandbox {
		mode = models.ModeSandbox
	}

	now := s.now()
	session := &models.VerificationSession{
		ID:        models.NewSessionID(),
		SubjectID: req.SubjectID,
		IssuerID:  req.IssuerID,
		Mode:      mode,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionsStarted(string(mode))
	}
	s.logger.Info("verification session started",
		slog.String("session_id", session.ID),
		slog.String("mode", string(mode)),
	)
	return session, nil
}

// GetResults returns the full results projection for a session. Read-only
// and idempotent; repeated calls while analyzers run never mutate state.
func (s *Service) GetResults(ctx context.Context, sessionID string) (*models.Results, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	front, err := s.optionalDocument(ctx, session.DocumentID)
	if err != nil {
		return nil, err
	}
	back, err := s.optionalDocument(ctx, session.BackDocumentID)
	if err != nil {
		return nil, err
	}
	capture, err := s.optionalCapture(ctx, session.CaptureID)
	if err != nil {
		return nil, err
	}

	confidence := confidenceFor(session)
	return models.BuildResults(session, front, back, capture, confidence), nil
}

// ListBySubject returns a subject's verification history, newest first.
func (s *Service) ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error) {
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := s.store.ListSessionsBySubject(ctx, subjectID, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}
	return sessions, nil
}

// IssueLiveToken hands out a single-use token authorizing one live capture
// for the session. Random challenge selection happens here so the client
// cannot choose its own prompt.
func (s *Service) IssueLiveToken(ctx context.Context, sessionID string, challenge models.ChallengeType) (*livetoken.IssuedToken, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if challenge == "" || challenge == models.ChallengeRandom {
		challenge = s.pickChallenge()
	}
	if !challenge.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown challenge type")
	}

	issued, err := s.tokens.Issue(ctx, sessionID, challenge)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issue live token")
	}
	return issued, nil
}

// EraseArtifacts removes the raw image data for a session while keeping the
// structured audit trail. Returns the number of artifacts erased.
func (s *Service) EraseArtifacts(ctx context.Context, sessionID string) (int, error) {
	refs, err := s.store.ClearArtifactRefs(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "verification session not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "clear artifact references")
	}

	erased := 0
	for _, ref := range refs {
		if err := s.artifacts.Delete(ctx, ref); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			s.logger.Error("artifact deletion failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		erased++
	}

	s.logger.Info("session artifacts erased",
		slog.String("session_id", sessionID),
		slog.Int("count", erased),
	)
	return erased, nil
}

func (s *Service) getSession(ctx context.Context, sessionID string) (*models.VerificationSession, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verification id is required")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}
	return session, nil
}

func (s *Service) optionalDocument(ctx context.Context, id string) (*models.Document, error) {
	if id == "" {
		return nil, nil
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document")
	}
	return doc, nil
}

func (s *Service) optionalCapture(ctx context.Context, id string) (*models.CaptureArtifact, error) {
	if id == "" {
		return nil, nil
	}
	capture, err := s.store.GetCapture(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load capture")
	}
	return capture, nil
}

// mutateSession applies a mutation under optimistic concurrency, retrying
// lost races against a freshly loaded session.
func (s *Service) mutateSession(ctx context.Context, sessionID string, mutate func(*models.VerificationSession)) (*models.VerificationSession, error) {
	for attempt := 0; attempt < maxSessionUpdateAttempts; attempt++ {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		mutate(session)
		session.UpdatedAt = s.now()

		err = s.store.UpdateSession(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, sentinel.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("session %s: update contention: %w", sessionID, sentinel.ErrVersionConflict)
}
