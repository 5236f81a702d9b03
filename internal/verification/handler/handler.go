// Package handler exposes the verification HTTP surface.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"idverify/internal/livetoken"
	"idverify/internal/platform/middleware"
	respond "idverify/internal/transport/http/json"
	"idverify/internal/transport/http/shared"
	"idverify/internal/verification/models"
	"idverify/internal/verification/service"
	dErrors "idverify/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks

// Service defines the orchestrator operations the HTTP layer depends on.
type Service interface {
	StartSession(ctx context.Context, req service.StartSessionRequest) (*models.VerificationSession, error)
	SubmitFrontDocument(ctx context.Context, req service.SubmitDocumentRequest) (*models.Document, error)
	SubmitBackDocument(ctx context.Context, req service.SubmitDocumentRequest) (*models.Document, error)
	SubmitCapture(ctx context.Context, req service.SubmitCaptureRequest) (*models.CaptureArtifact, error)
	RetryMatching(ctx context.Context, sessionID string) error
	GetResults(ctx context.Context, sessionID string) (*models.Results, error)
	ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]*models.VerificationSession, error)
	IssueLiveToken(ctx context.Context, sessionID string, challenge models.ChallengeType) (*livetoken.IssuedToken, error)
	EraseArtifacts(ctx context.Context, sessionID string) (int, error)
}

const maxUploadBytes = 12 << 20 // multipart overhead on top of the 10MB image cap

// Handler handles verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification Service
}

// New creates a new verification Handler.
func New(verification Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verify", func(r chi.Router) {
		r.Post("/start", h.handleStart)
		r.Post("/document", h.handleFrontDocument)
		r.Post("/back-of-id", h.handleBackDocument)
		r.Post("/selfie", h.handleSelfie)
		r.Post("/live-capture", h.handleLiveCapture)
		r.Post("/generate-live-token", h.handleGenerateLiveToken)
		r.Post("/retry-matching", h.handleRetryMatching)
		r.Get("/results/{verificationId}", h.handleResults)
		r.Get("/history/{userId}", h.handleHistory)
		r.Delete("/{verificationId}/data", h.handleEraseData)
	})
}

type startRequest struct {
	UserID  string `json:"user_id"`
	Sandbox bool   `json:"sandbox"`
}

type sessionResponse struct {
	VerificationID string        `json:"verification_id"`
	UserID         string        `json:"user_id"`
	Status         models.Status `json:"status"`
	Mode           models.Mode   `json:"mode"`
	CreatedAt      string        `json:"created_at"`
}

func toSessionResponse(session *models.VerificationSession) sessionResponse {
	return sessionResponse{
		VerificationID: session.ID,
		UserID:         session.SubjectID,
		Status:         session.Status,
		Mode:           session.Mode,
		CreatedAt:      session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.verification.StartSession(ctx, service.StartSessionRequest{
		SubjectID: req.UserID,
		IssuerID:  r.Header.Get("X-Issuer-ID"),
		Sandbox:   req.Sandbox,
	})
	if err != nil {
		h.logError(ctx, "start session failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

type documentResponse struct {
	DocumentID     string              `json:"document_id"`
	VerificationID string              `json:"verification_id"`
	Kind           models.DocumentKind `json:"kind"`
	Type           models.DocumentType `json:"document_type"`
	Status         string              `json:"status"`
}

// readDocumentUpload parses a multipart document upload with the given file
// field name.
func (h *Handler) readDocumentUpload(r *http.Request, field string) (service.SubmitDocumentRequest, error) {
	var req service.SubmitDocumentRequest

	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
	}

	req.SessionID = r.FormValue("verification_id")
	req.DocumentType = models.DocumentType(r.FormValue("document_type"))

	file, header, err := r.FormFile(field)
	if err != nil {
		return req, dErrors.New(dErrors.CodeValidation, field+" file is required")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "unreadable upload")
	}
	req.Content = content
	req.MimeType = header.Header.Get("Content-Type")
	return req, nil
}

func (h *Handler) handleFrontDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.readDocumentUpload(r, "document")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	doc, err := h.verification.SubmitFrontDocument(ctx, req)
	if err != nil {
		h.logError(ctx, "front document submission failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, documentResponse{
		DocumentID:     doc.ID,
		VerificationID: doc.SessionID,
		Kind:           doc.Kind,
		Type:           doc.Type,
		Status:         "processing",
	})
}

func (h *Handler) handleBackDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.readDocumentUpload(r, "back_of_id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	doc, err := h.verification.SubmitBackDocument(ctx, req)
	if err != nil {
		h.logError(ctx, "back document submission failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, documentResponse{
		DocumentID:     doc.ID,
		VerificationID: doc.SessionID,
		Kind:           doc.Kind,
		Type:           doc.Type,
		Status:         "processing",
	})
}

type captureResponse struct {
	CaptureID      string               `json:"capture_id"`
	VerificationID string               `json:"verification_id"`
	ChallengeType  models.ChallengeType `json:"challenge_type,omitempty"`
	Status         string               `json:"status"`
}

func (h *Handler) handleSelfie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("selfie")
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "selfie file is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable upload"))
		return
	}

	capture, err := h.verification.SubmitCapture(ctx, service.SubmitCaptureRequest{
		SessionID: r.FormValue("verification_id"),
		Content:   content,
		MimeType:  header.Header.Get("Content-Type"),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logError(ctx, "selfie submission failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, captureResponse{
		CaptureID:      capture.ID,
		VerificationID: capture.SessionID,
		Status:         "processing",
	})
}

type liveCaptureRequest struct {
	VerificationID string `json:"verification_id"`
	LiveImageData  string `json:"live_image_data"`
	ChallengeType  string `json:"challenge_type"`
	LiveToken      string `json:"live_token"`
}

func (h *Handler) handleLiveCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req liveCaptureRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.LiveImageData)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "live_image_data must be base64 encoded"))
		return
	}

	capture, err := h.verification.SubmitCapture(ctx, service.SubmitCaptureRequest{
		SessionID:     req.VerificationID,
		Content:       content,
		MimeType:      "image/jpeg",
		ChallengeType: models.ChallengeType(req.ChallengeType),
		LiveToken:     req.LiveToken,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		h.logError(ctx, "live capture submission failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, captureResponse{
		CaptureID:      capture.ID,
		VerificationID: capture.SessionID,
		ChallengeType:  capture.ChallengeType,
		Status:         "processing",
	})
}

type liveTokenRequest struct {
	VerificationID string `json:"verification_id"`
	ChallengeType  string `json:"challenge_type"`
}

type liveTokenResponse struct {
	LiveToken     string               `json:"live_token"`
	ChallengeType models.ChallengeType `json:"challenge_type"`
	ExpiresAt     string               `json:"expires_at"`
}

func (h *Handler) handleGenerateLiveToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req liveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	issued, err := h.verification.IssueLiveToken(ctx, req.VerificationID, models.ChallengeType(req.ChallengeType))
	if err != nil {
		h.logError(ctx, "live token issuance failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, liveTokenResponse{
		LiveToken:     issued.Token,
		ChallengeType: issued.Challenge,
		ExpiresAt:     issued.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

type retryRequest struct {
	VerificationID string `json:"verification_id"`
}

func (h *Handler) handleRetryMatching(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.verification.RetryMatching(ctx, req.VerificationID); err != nil {
		h.logError(ctx, "matching retry failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusAccepted, map[string]string{
		"verification_id": req.VerificationID,
		"status":          "processing",
	})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID := chi.URLParam(r, "verificationId")

	results, err := h.verification.GetResults(ctx, verificationID)
	if err != nil {
		h.logError(ctx, "results lookup failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, results)
}

type historyResponse struct {
	UserID        string            `json:"user_id"`
	Verifications []sessionResponse `json:"verifications"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userId")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.verification.ListBySubject(ctx, userID, limit, offset)
	if err != nil {
		h.logError(ctx, "history lookup failed", err)
		shared.WriteError(w, err)
		return
	}

	res := historyResponse{
		UserID:        userID,
		Verifications: make([]sessionResponse, 0, len(sessions)),
	}
	for _, session := range sessions {
		res.Verifications = append(res.Verifications, toSessionResponse(session))
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleEraseData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID := chi.URLParam(r, "verificationId")

	erased, err := h.verification.EraseArtifacts(ctx, verificationID)
	if err != nil {
		h.logError(ctx, "artifact erasure failed", err)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"verification_id":  verificationID,
		"artifacts_erased": erased,
	})
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err,
	)
}
