// Package httpapi exposes the vault over a thin chi router mounted at
// /api/auth.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-credvault/core"
	glog "github.com/goliatone/go-logger/glog"
)

const maxBodyBytes = 1 << 20

// Service is the vault surface the HTTP handlers need.
type Service interface {
	Begin(ctx context.Context, req core.BeginRequest) (core.BeginResponse, error)
	Complete(ctx context.Context, req core.CompleteRequest) (core.CompleteResult, error)
	Disconnect(ctx context.Context, providerID string, ref core.UserRef) (bool, error)
	ServiceStatus(ctx context.Context, ref core.UserRef) (map[string]bool, error)

	PutCredential(ctx context.Context, req core.PutCredentialRequest) (core.CredentialSummary, error)
	ListCredentials(ctx context.Context, ref core.UserRef) ([]core.CredentialSummary, error)
	DeleteCredential(ctx context.Context, ref core.UserRef, credentialType string) (bool, error)
	StoreAPIKey(ctx context.Context, req core.StoreAPIKeyRequest) (core.CredentialSummary, error)

	CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	ResolveUser(ctx context.Context, raw string) (string, error)
	GetProfile(ctx context.Context, ref core.UserRef) (core.UserProfile, error)
	UpdateProfile(ctx context.Context, ref core.UserRef, in core.UpdateProfileInput) (core.UserProfile, error)
	GetUsageLimits(ctx context.Context, ref core.UserRef) (core.UsageLimit, error)
	UpdateUsageLimits(ctx context.Context, ref core.UserRef, in core.UpdateUsageLimitsInput) (core.UsageLimit, error)
}

type Option func(*Handler)

func WithLogger(logger glog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

type Handler struct {
	service Service
	logger  glog.Logger
}

func NewHandler(service Service, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: service is required")
	}
	h := &Handler{service: service}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	_, h.logger = glog.Resolve("credvault.httpapi", nil, h.logger)
	h.logger = glog.Ensure(h.logger)
	return h, nil
}

// Router returns a chi router serving every vault route under /api/auth.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/auth", h.Mount)
	return r
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/users", h.createUser)
	r.Get("/users/email/{email}", h.getUserByEmail)
	r.Route("/users/{user}", func(r chi.Router) {
		r.Get("/", h.getUser)
		r.Get("/profile", h.getProfile)
		r.Put("/profile", h.updateProfile)
		r.Get("/usage-limits", h.getUsageLimits)
		r.Put("/usage-limits", h.updateUsageLimits)
		r.Get("/service-status", h.serviceStatus)
		r.Get("/credentials", h.listCredentials)
		r.Post("/credentials", h.putCredential)
		r.Delete("/credentials/{credentialType}", h.deleteCredential)
		r.Post("/api-keys", h.storeAPIKey)
	})
	r.Route("/{provider}", func(r chi.Router) {
		r.Get("/connect", h.connect)
		r.Get("/callback", h.callback)
		r.Delete("/connection", h.disconnect)
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.queryUserRef(w, r)
	if !ok {
		return
	}
	resp, err := h.service.Begin(r.Context(), core.BeginRequest{
		Provider: chi.URLParam(r, "provider"),
		UserRef:  ref,
		Metadata: core.StateMetadata{ReturnTo: r.URL.Query().Get("return_to")},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, beginResponse{AuthURL: resp.AuthURL, State: resp.State})
		return
	}
	http.Redirect(w, r, resp.AuthURL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    core.ServiceErrorBadInput,
			Message: "authorization denied: " + providerErr,
		}})
		return
	}
	result, err := h.service.Complete(r.Context(), core.CompleteRequest{
		Provider: chi.URLParam(r, "provider"),
		Code:     query.Get("code"),
		State:    query.Get("state"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{
		UserID:     result.UserID,
		Provider:   result.Provider,
		Email:      result.Identity.Email,
		Name:       result.Identity.Name,
		Credential: newCredentialResponse(result.Credential),
	})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.queryUserRef(w, r)
	if !ok {
		return
	}
	removed, err := h.service.Disconnect(r.Context(), chi.URLParam(r, "provider"), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, disconnectResponse{Removed: removed})
}

func (h *Handler) serviceStatus(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	status, err := h.service.ServiceStatus(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if !h.decode(w, r, &body) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), core.CreateUserInput{
		Email: body.Email,
		Name:  body.Name,
		Image: body.Image,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := h.service.ResolveUser(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	var body updateProfileRequest
	if !h.decode(w, r, &body) {
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), ref, core.UpdateProfileInput{
		MonitoringEnabled: body.MonitoringEnabled,
		AIModelPreference: body.AIModelPreference,
		PipedriveDomain:   body.PipedriveDomain,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (h *Handler) getUsageLimits(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	limits, err := h.service.GetUsageLimits(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUsageLimitResponse(limits))
}

func (h *Handler) updateUsageLimits(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	var body updateUsageLimitsRequest
	if !h.decode(w, r, &body) {
		return
	}
	limits, err := h.service.UpdateUsageLimits(r.Context(), ref, core.UpdateUsageLimitsInput{
		DailyEmailLimit:   body.DailyEmailLimit,
		MonthlyTokenLimit: body.MonthlyTokenLimit,
		DailySpendLimit:   body.DailySpendLimit,
		MonthlySpendLimit: body.MonthlySpendLimit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUsageLimitResponse(limits))
}

func (h *Handler) listCredentials(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	summaries, err := h.service.ListCredentials(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]credentialResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, newCredentialResponse(summary))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) putCredential(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	var body putCredentialRequest
	if !h.decode(w, r, &body) {
		return
	}
	summary, err := h.service.PutCredential(r.Context(), core.PutCredentialRequest{
		UserRef:        ref,
		CredentialType: body.CredentialType,
		Data:           body.Data,
		ExpiresAt:      body.ExpiresAt,
		Metadata:       body.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCredentialResponse(summary))
}

func (h *Handler) deleteCredential(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	removed, err := h.service.DeleteCredential(r.Context(), ref, chi.URLParam(r, "credentialType"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, core.ErrCredentialNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Credential deleted successfully"})
}

func (h *Handler) storeAPIKey(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.pathUserRef(w, r)
	if !ok {
		return
	}
	var body apiKeyRequest
	if !h.decode(w, r, &body) {
		return
	}
	summary, err := h.service.StoreAPIKey(r.Context(), core.StoreAPIKeyRequest{
		UserRef:  ref,
		Provider: body.Provider,
		APIKey:   body.APIKey,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCredentialResponse(summary))
}

func (h *Handler) pathUserRef(w http.ResponseWriter, r *http.Request) (core.UserRef, bool) {
	return h.parseUserRef(w, r, chi.URLParam(r, "user"))
}

func (h *Handler) queryUserRef(w http.ResponseWriter, r *http.Request) (core.UserRef, bool) {
	return h.parseUserRef(w, r, r.URL.Query().Get("user_id"))
}

func (h *Handler) parseUserRef(w http.ResponseWriter, r *http.Request, raw string) (core.UserRef, bool) {
	ref, err := core.ParseUserRef(raw)
	if err != nil {
		h.writeError(w, r, err)
		return core.UserRef{}, false
	}
	return ref, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    core.ServiceErrorBadInput,
			Message: "invalid request body",
		}})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := core.ServiceError(err)
	status := mapped.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	message := mapped.Message
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"text_code", mapped.TextCode,
			"error", err.Error(),
		)
		if mapped.TextCode == core.ServiceErrorInternal {
			message = "An unexpected error occurred"
		}
	}
	body := errorBody{Code: mapped.TextCode, Message: message}
	for _, field := range mapped.AllValidationErrors() {
		body.Fields = append(body.Fields, fieldError{Field: field.Field, Message: field.Message})
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
