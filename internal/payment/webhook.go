package payment

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"creditgate/internal/service"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// WebhookHandler verifies and applies Stripe events. Nothing in the payload
// is trusted before the signature check passes.
type WebhookHandler struct {
	secret   string
	crediter service.PurchaseCrediter
}

func NewWebhookHandler(secret string, crediter service.PurchaseCrediter) *WebhookHandler {
	return &WebhookHandler{secret: secret, crediter: crediter}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.secret) == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "webhook secret not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid Stripe signature"})
		return
	}

	if err := h.handleEvent(r, &event); err != nil {
		slog.Error("stripe webhook processing failed",
			"event_id", event.ID, "type", string(event.Type), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) handleEvent(r *http.Request, event *stripelib.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripelib.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment_intent: %w", err)
		}

		accountID := pi.Metadata["account_id"]
		tokensStr := pi.Metadata["tokens"]
		if accountID == "" || tokensStr == "" {
			// Not one of our token purchases; acknowledge and move on.
			slog.Info("ignoring payment intent without purchase metadata", "intent_id", pi.ID)
			return nil
		}
		tokens, err := strconv.ParseInt(tokensStr, 10, 64)
		if err != nil || tokens <= 0 {
			return fmt.Errorf("invalid token amount %q on intent %s", tokensStr, pi.ID)
		}

		return h.crediter.CreditPurchase(r.Context(), event.ID, accountID, tokens, pi.Amount, string(pi.Currency))

	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
