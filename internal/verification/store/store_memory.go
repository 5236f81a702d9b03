package store

import (
	"context"
	"sort"
	"sync"

	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
)

// InMemoryStore keeps all verification state in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.VerificationSession
	docs     map[string]*models.Document
	captures map[string]*models.CaptureArtifact
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.VerificationSession),
		docs:     make(map[string]*models.Document),
		captures: make(map[string]*models.CaptureArtifact),
	}
}

func (s *InMemoryStore) CreateSession(_ context.Context, session *models.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return sentinel.ErrDuplicate
	}
	copySession := *session
	s.sessions[session.ID] = &copySession
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copySession := *session
	return &copySession, nil
}

func (s *InMemoryStore) UpdateSession(_ context.Context, session *models.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != session.Version {
		return sentinel.ErrVersionConflict
	}
	copySession := *session
	copySession.Version++
	s.sessions[session.ID] = &copySession
	session.Version = copySession.Version
	return nil
}

func (s *InMemoryStore) ListSessionsBySubject(_ context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.VerificationSession
	for _, session := range s.sessions {
		if session.SubjectID != subjectID {
			continue
		}
		copySession := *session
		matched = append(matched, &copySession)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return sentinel.ErrDuplicate
	}
	// At most one document per session and kind.
	for _, existing := range s.docs {
		if existing.SessionID == doc.SessionID && existing.Kind == doc.Kind {
			return sentinel.ErrDuplicate
		}
	}
	copyDoc := *doc
	s.docs[doc.ID] = &copyDoc
	return nil
}

func (s *InMemoryStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (s *InMemoryStore) FindDocumentByKind(_ context.Context, sessionID string, kind models.DocumentKind) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.SessionID == sessionID && doc.Kind == kind {
			copyDoc := *doc
			return &copyDoc, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copyDoc := *doc
	s.docs[doc.ID] = &copyDoc
	return nil
}

func (s *InMemoryStore) CreateCapture(_ context.Context, capture *models.CaptureArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.captures[capture.ID]; ok {
		return sentinel.ErrDuplicate
	}
	copyCapture := *capture
	s.captures[capture.ID] = &copyCapture
	return nil
}

func (s *InMemoryStore) GetCapture(_ context.Context, id string) (*models.CaptureArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	capture, ok := s.captures[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCapture := *capture
	return &copyCapture, nil
}

func (s *InMemoryStore) ClearArtifactRefs(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, sentinel.ErrNotFound
	}

	var refs []string
	for _, doc := range s.docs {
		if doc.SessionID == sessionID && doc.ArtifactRef != "" {
			refs = append(refs, doc.ArtifactRef)
			doc.ArtifactRef = ""
		}
	}
	for _, capture := range s.captures {
		if capture.SessionID == sessionID && capture.ArtifactRef != "" {
			refs = append(refs, capture.ArtifactRef)
			capture.ArtifactRef = ""
		}
	}
	return refs, nil
}

// Verify interface is satisfied.
var _ Store = (*InMemoryStore)(nil)
