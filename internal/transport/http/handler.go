package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"creditgate/internal/jobpoll"
	"creditgate/internal/meter"
	"creditgate/internal/model"
	"creditgate/internal/payment"
	"creditgate/internal/provider"
	"creditgate/internal/repository"
	"creditgate/internal/service"
)

// IntentCreator opens a payment for a token package.
type IntentCreator interface {
	CreateIntent(ctx context.Context, accountID string, tokens int64) (*payment.Intent, error)
}

type Handler struct {
	svc      service.MeterService
	payments IntentCreator
	auth     *Auth
	webhook  http.Handler
}

func NewHandler(svc service.MeterService, payments IntentCreator, auth *Auth, webhook http.Handler) *Handler {
	return &Handler{svc: svc, payments: payments, auth: auth, webhook: webhook}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /v1/balance", h.auth.Require(h.Balance))
	mux.HandleFunc("GET /v1/billing", h.auth.Require(h.Billing))

	mux.HandleFunc("POST /v1/chat", h.auth.Require(h.Chat))
	mux.HandleFunc("POST /v1/write", h.auth.Require(h.ImproveWriting))
	mux.HandleFunc("POST /v1/translate", h.auth.Require(h.Translate))
	mux.HandleFunc("POST /v1/email-reply", h.auth.Require(h.EmailReply))
	mux.HandleFunc("POST /v1/images/generate", h.auth.Require(h.GenerateImage))
	mux.HandleFunc("POST /v1/images/remove-background", h.auth.Require(h.RemoveBackground))
	mux.HandleFunc("POST /v1/images/upscale", h.auth.Require(h.Upscale))
	mux.HandleFunc("POST /v1/images/ocr", h.auth.Require(h.OCR))

	mux.HandleFunc("GET /v1/payments/packages", h.Packages)
	mux.HandleFunc("POST /v1/payments/intent", h.auth.Require(h.CreateIntent))
	mux.Handle("POST /webhooks/stripe", h.webhook)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.Balance(r.Context(), AccountID(r.Context()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// A fresh account simply has nothing yet.
			respondJSON(w, http.StatusOK, map[string]int64{"balance": 0})
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) Billing(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	entries, err := h.svc.BillingEntries(r.Context(), AccountID(r.Context()), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []model.BillingEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Chat(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) ImproveWriting(w http.ResponseWriter, r *http.Request) {
	var req model.WritingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.ImproveWriting(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req model.TranslateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Translate(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) EmailReply(w http.ResponseWriter, r *http.Request) {
	var req model.EmailReplyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.EmailReply(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req model.ImageGenerateRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.GenerateImage(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	var req model.ImageURLRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.RemoveBackground(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Upscale(w http.ResponseWriter, r *http.Request) {
	var req model.UpscaleRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Upscale(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) OCR(w http.ResponseWriter, r *http.Request) {
	var req model.ImageURLRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.OCR(r.Context(), AccountID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"packages": payment.Packages()})
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tokens int64 `json:"tokens"`
	}
	if !decode(w, r, &req) {
		return
	}
	intent, err := h.payments.CreateIntent(r.Context(), AccountID(r.Context()), req.Tokens)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownPackage) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, intent)
}

// decode reads a JSON body capped at the upload limit. Oversized payloads
// are refused server-side, not just in the browser.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, meter.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "input_too_large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, meter.ErrInvalidScale),
		errors.Is(err, meter.ErrInvalidSize):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, meter.ErrOutputTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "input_too_large")
	case errors.Is(err, repository.ErrInsufficient):
		respondError(w, http.StatusPaymentRequired, "insufficient_balance")
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, jobpoll.ErrJobTimeout):
		respondError(w, http.StatusGatewayTimeout, "job_timeout")
	case errors.Is(err, jobpoll.ErrJobFailed):
		respondError(w, http.StatusBadGateway, "job_failed")
	case errors.Is(err, provider.ErrRequestFailed):
		respondError(w, http.StatusBadGateway, "provider_error")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
