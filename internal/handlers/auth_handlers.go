package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gps-chat/internal/auth"
	"gps-chat/internal/database"
	"gps-chat/internal/models"
	"gps-chat/pkg/logger"
)

type AuthHandlers struct {
	authService *auth.Service
}

func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSONError(w, http.StatusUnauthorized, "Invalid username or password.")
		case errors.Is(err, auth.ErrNotApproved):
			writeJSONError(w, http.StatusForbidden, "Your account has not been approved yet.")
		default:
			logger.Error("Login error: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Server error while logging in.")
		}
		return
	}

	logger.Info("User logged in: %s", resp.User.Username)
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			writeJSONError(w, http.StatusConflict, "A user with that name already exists.")
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("New user registered: %s", user.Username)
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Registered successfully. You can log in once an administrator approves your account.",
	})
}

// Session lets the SPA check whether its stored token is still valid.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"loggedIn": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loggedIn": true, "user": identity})
}

func (h *AuthHandlers) identityFromRequest(r *http.Request) (models.Identity, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return h.authService.VerifyToken(token)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
