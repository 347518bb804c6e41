package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"account-auth/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	policy  validation.PasswordPolicy
	logger  Logger
}

func NewHandler(service *Service, policy validation.PasswordPolicy, logger Logger) *Handler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handler{service: service, policy: policy, logger: logger}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body validation.SignupInput
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if err := body.Validate(h.policy); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Signup(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		h.writeServiceError(w, "signup", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var body validation.SigninInput
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if err := body.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Signin(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeServiceError(w, "signin", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Profile must sit behind Guard.Middleware.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, principal)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAccountExists):
		writeError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrDirectoryUnavailable):
		h.logger.Error(op+"_failed", map[string]any{"error": err.Error()})
		sentry.CaptureException(err)
		writeServiceUnavailable(w)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn(op+"_aborted", map[string]any{"error": err.Error()})
		writeServiceUnavailable(w)
	default:
		h.logger.Error(op+"_failed", map[string]any{"error": err.Error()})
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  ErrValidation.Error(),
		"fields": validation.FieldErrors(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
