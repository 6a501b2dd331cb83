package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 8 << 10

// The token is already consumed at this point, so the client needs a new link.
const passwordUpdateFailedMessage = "Password could not be updated. Request a new reset link."

type resetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetConfirm struct {
	Key      string `json:"key" validate:"required,len=22"`
	Captcha  string `json:"captcha" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

func (h *handler) request(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Issue(r.Context(), req.Email)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := map[string]any{
		"ok":         true,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if h.opts.ReturnToken {
		resp["token"] = res.TokenID
		resp["captcha_url"] = res.DisplayRef
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirm
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.engine.Verify(r.Context(), req.Key, req.Captcha, req.Password); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	info, err := h.engine.Lookup(r.Context(), key)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := map[string]any{
		"state":              string(info.State),
		"expires_at":         info.ExpiresAt.UTC().Format(time.RFC3339),
		"attempts_remaining": info.AttemptsRemaining,
	}
	if info.DisplayRef != "" {
		resp["captcha_url"] = info.DisplayRef
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	if err := h.v.Struct(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

func (h *handler) writeEngineError(w http.ResponseWriter, err error) {
	code := goReset.FailureReason(err)
	status := statusFor(err)
	if status == http.StatusTooManyRequests && h.opts.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.opts.RetryAfter.Seconds())))
	}
	writeJSONError(w, status, code, publicMessage(status, err))
}

func statusFor(err error) int {
	switch {
	// The provider error is joined in; it must not pick the status.
	case errors.Is(err, goReset.ErrPasswordUpdateFailed):
		return http.StatusInternalServerError
	case errors.Is(err, goReset.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goReset.ErrResetInvalid),
		errors.Is(err, goReset.ErrPasswordPolicy),
		errors.Is(err, goReset.ErrWrongAnswer):
		return http.StatusBadRequest
	case errors.Is(err, goReset.ErrTokenNotFound),
		errors.Is(err, goReset.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, goReset.ErrTokenExpired),
		errors.Is(err, goReset.ErrTokenAlreadyUsed),
		errors.Is(err, goReset.ErrTooManyAttempts):
		return http.StatusGone
	case errors.Is(err, goReset.ErrResetUnavailable),
		errors.Is(err, goReset.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps backend detail out of 5xx responses.
func publicMessage(status int, err error) string {
	if errors.Is(err, goReset.ErrPasswordUpdateFailed) {
		return passwordUpdateFailedMessage
	}
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}
