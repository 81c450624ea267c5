package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/ideageek/examiner/internal/i18n"
	"github.com/ideageek/examiner/internal/model"
	"github.com/ideageek/examiner/internal/sheet"
)

type importResponse struct {
	ExamID    string `json:"examId,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"displayName"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams()
	if err != nil {
		respondError(w, r, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	respondOK(w, appI18n.Tp(r.Context(), "ExamsListed", len(exams)), exams)
}

// handleImportExam loads an exam definition uploaded as exam_file. A file
// whose content hash matches the last import under the same name is skipped.
func (h *Handler) handleImportExam(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, fmt.Errorf("parse multipart form: %v: %w", err, sheet.ErrValidation))
		return
	}
	file, header, err := r.FormFile("exam_file")
	if err != nil {
		respondError(w, r, fmt.Errorf("exam_file: %v: %w", err, sheet.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read exam file: %w", err))
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if storedHash == hash {
		respondOK(w, appI18n.T(r.Context(), "ImportDuplicate"), importResponse{Duplicate: true})
		return
	}

	var ei model.ExamImport
	if err := json.Unmarshal(data, &ei); err != nil {
		respondError(w, r, fmt.Errorf("invalid JSON: %v: %w", err, sheet.ErrValidation))
		return
	}
	examID, err := h.store.ImportExam(ei)
	if err != nil {
		if errors.Is(err, model.ErrInvalidImport) {
			err = fmt.Errorf("%v: %w", err, sheet.ErrValidation)
		}
		respondError(w, r, err)
		return
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("imported exam via admin", "filename", header.Filename, "exam_id", examID, "questions", len(ei.Questions))
	respondOK(w, appI18n.T(r.Context(), "ExamImported"), importResponse{ExamID: examID.String()})
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	examID, err := examIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	export, err := h.store.ExportEvaluations(examID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if export == nil {
		respondError(w, r, fmt.Errorf("exam %s: %w", examID, sheet.ErrNotFound))
		return
	}
	respondOK(w, appI18n.T(r.Context(), "ResultsExported"), export)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode user: %v: %w", err, sheet.ErrValidation))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, r, fmt.Errorf("username and password required: %w", sheet.ErrValidation))
		return
	}
	switch req.Role {
	case model.UserRoleAdmin, model.UserRoleTeacher, model.UserRoleStudent:
	case "":
		req.Role = model.UserRoleTeacher
	default:
		respondError(w, r, fmt.Errorf("unknown role %q: %w", req.Role, sheet.ErrValidation))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		respondError(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	slog.Info("created user via admin", "username", req.Username, "role", req.Role)
	respondOK(w, appI18n.T(r.Context(), "UserCreated"), map[string]any{"id": id, "username": req.Username, "role": req.Role})
}
