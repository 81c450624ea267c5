package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/ideageek/examiner/internal/i18n"
	"github.com/ideageek/examiner/internal/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"tokenType"`
	Username  string         `json:"username"`
	Role      model.UserRole `json:"role"`
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondStatus(w, r, http.StatusUnauthorized, kindUnauthorized)
			return
		}

		authSess, err := h.store.GetAuthSession(token)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondStatus(w, r, http.StatusUnauthorized, kindUnauthorized)
			return
		}
		if authSess == nil {
			respondStatus(w, r, http.StatusUnauthorized, kindUnauthorized)
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil || !user.Active {
			respondStatus(w, r, http.StatusUnauthorized, kindUnauthorized)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				respondStatus(w, r, http.StatusUnauthorized, kindUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondStatus(w, r, http.StatusForbidden, kindForbidden)
		})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondStatus(w, r, http.StatusBadRequest, kindValidation)
		return
	}

	user, err := h.store.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		respondStatus(w, r, http.StatusUnauthorized, "LoginFailed")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondStatus(w, r, http.StatusUnauthorized, "LoginFailed")
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	slog.Info("user logged in", "username", user.Username)
	respondOK(w, appI18n.Td(r.Context(), "LoggedIn", map[string]any{"User": user.Username}), loginResponse{
		Token:     token,
		TokenType: "Bearer",
		Username:  user.Username,
		Role:      user.Role,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAuthSession(bearerToken(r)); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, appI18n.T(r.Context(), "LoggedOut"), nil)
}
