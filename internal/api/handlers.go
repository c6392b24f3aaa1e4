package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/verbal-diary/internal/auth"
	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/store"
	"gwi.com/verbal-diary/internal/telegram"
)

type ctxKey string

const subjectKey ctxKey = "subject"

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateDispatcher accepts webhook updates for asynchronous handling.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update telegram.Update)
}

type APIHandler struct {
	profiles      *core.ProfileService
	dispatcher    UpdateDispatcher
	jwtSecret     []byte
	webhookSecret string
	logger        *slog.Logger
}

func NewAPIHandler(profiles *core.ProfileService, dispatcher UpdateDispatcher, jwtSecret, webhookSecret string, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		profiles:      profiles,
		dispatcher:    dispatcher,
		jwtSecret:     []byte(jwtSecret),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}
		if len(h.jwtSecret) == 0 {
			http.Error(w, "Admin API is disabled", http.StatusServiceUnavailable)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		subject, err := auth.ValidateJWT(tokenString, h.jwtSecret)
		if err != nil {
			h.logger.Warn("rejected admin token", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(webhookSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		http.Error(w, "Invalid secret token", http.StatusUnauthorized)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.dispatcher.Dispatch(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

type userView struct {
	ID             int64   `json:"user_id"`
	Name           *string `json:"name"`
	HasNotionToken bool    `json:"has_notion_token"`
	DatabaseID     *string `json:"database_id"`
}

func toUserView(u store.User) userView {
	return userView{ID: u.ID, Name: u.Name, HasNotionToken: u.NotionToken != nil, DatabaseID: u.DatabaseID}
}

func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.profiles.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("error listing users", "error", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *APIHandler) fail(w http.ResponseWriter, err error, msg string, userID int64) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	h.logger.Error(msg, "user_id", userID, "error", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	user, err := h.profiles.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get user", userID)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get user", userID)
		return
	}
	msgs, err := profile.Messages(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to list messages", userID)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get user", userID)
		return
	}
	report, err := profile.UserInfo(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to build report", userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "report": report})
}

func (h *APIHandler) AnonymizeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	surrogate, err := h.profiles.Anonymize(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to anonymize user", userID)
		return
	}
	h.logger.Info("user anonymized via admin API", "by", r.Context().Value(subjectKey), "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]int64{"surrogate_id": surrogate})
}

func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.profiles.GetUser(r.Context(), userID); err != nil {
		h.fail(w, err, "Failed to get user", userID)
		return
	}
	if err := h.profiles.Delete(r.Context(), userID); err != nil {
		h.fail(w, err, "Failed to delete user", userID)
		return
	}
	h.logger.Info("user deleted via admin API", "by", r.Context().Value(subjectKey), "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
