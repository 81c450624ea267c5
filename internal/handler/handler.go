package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appI18n "github.com/ideageek/examiner/internal/i18n"
	"github.com/ideageek/examiner/internal/model"
	"github.com/ideageek/examiner/internal/sheet"
	"github.com/ideageek/examiner/internal/store"
)

const maxUploadBytes = 32 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	sheets *sheet.Service
	config model.SheetConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *sheet.Service) *Handler {
	return &Handler{store: s, sheets: svc, config: svc.Config()}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/auth/login", h.handleLogin)

	if p := documentsPath(h.config.DocumentsURLPrefix); p != "" {
		files := http.StripPrefix(p, http.FileServer(http.Dir(h.config.DocumentsFolder)))
		r.Handle(p+"/*", files)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/auth/logout", h.handleLogout)

		r.Route("/api/question-sheets", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin, model.UserRoleTeacher))
			r.Get("/template/{examID}", h.handleTemplate)
			r.Get("/generate-question-sheet/{examID}", h.handleGenerateQuestionSheet)
			r.Get("/generate-answer-sheet/{examID}", h.handleGenerateAnswerSheet)
			r.Post("/{examID}/calculate-score", h.handleCalculateScore)
			r.Post("/{examID}/dummy-sheet/{studentNumber}", h.handleIssueSheet)
			r.Post("/evaluate-dummy-sheet", h.handleEvaluate)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/exams", h.handleListExams)
			r.Post("/exams/import", h.handleImportExam)
			r.Get("/exams/{examID}/results", h.handleExamResults)
			r.Post("/users", h.handleCreateUser)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.UserCount(); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, "ok", nil)
}

func examIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "examID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid exam id %q: %w", chi.URLParam(r, "examID"), sheet.ErrValidation)
	}
	return id, nil
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	examID, err := examIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := h.sheets.Template(r.Context(), examID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, appI18n.Td(r.Context(), "TemplateLoaded", map[string]any{"Exam": t.ExamName}), t)
}

func (h *Handler) handleGenerateQuestionSheet(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, h.sheets.GenerateQuestionSheet)
}

func (h *Handler) handleGenerateAnswerSheet(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, h.sheets.GenerateAnswerSheet)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, gen func(context.Context, uuid.UUID) (*model.SheetGenerationResponse, error)) {
	examID, err := examIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := gen(r.Context(), examID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp.URL = absoluteURL(r, resp.URL)
	respondOK(w, appI18n.Td(r.Context(), "SheetGenerated", map[string]any{"Exam": resp.ExamName}), resp)
}

func (h *Handler) handleCalculateScore(w http.ResponseWriter, r *http.Request) {
	examID, err := examIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, fmt.Errorf("parse multipart form: %v: %w", err, sheet.ErrValidation))
		return
	}

	studentID := r.FormValue("studentId")
	var (
		upload   io.Reader
		fileName string
	)
	file, header, err := r.FormFile("answerSheet")
	switch {
	case err == nil:
		defer file.Close()
		upload, fileName = file, header.Filename
	case errors.Is(err, http.ErrMissingFile):
		// Left nil; the service rejects it.
	default:
		respondError(w, r, fmt.Errorf("read answer sheet: %v: %w", err, sheet.ErrValidation))
		return
	}

	resp, err := h.sheets.CalculateScore(r.Context(), examID, studentID, upload, fileName)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, appI18n.Td(r.Context(), "ScoreCalculated", map[string]any{"Student": studentID}), resp)
}

func (h *Handler) handleIssueSheet(w http.ResponseWriter, r *http.Request) {
	examID, err := examIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := h.sheets.IssueSheet(r.Context(), examID, chi.URLParam(r, "studentNumber"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, appI18n.Td(r.Context(), "SheetIssued", map[string]any{"Code": resp.SheetCode}), resp)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req model.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode evaluation request: %v: %w", err, sheet.ErrValidation))
		return
	}
	resp, err := h.sheets.Evaluate(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, appI18n.Tp(r.Context(), "QuestionsEvaluated", len(resp.Details)), resp)
}

// documentsPath returns the local route documents are served under, or ""
// when the prefix points at another host.
func documentsPath(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if u, err := url.Parse(prefix); err == nil && u.IsAbs() {
		return ""
	}
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

// absoluteURL resolves a root-relative or bare document URL against the
// request's scheme and host.
func absoluteURL(r *http.Request, u string) string {
	if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
		return u
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return scheme + "://" + r.Host + u
}
