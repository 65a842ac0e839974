package service

import (
	"context"
	"errors"

	"creditgate/internal/model"
)

var ErrInvalidInput = errors.New("invalid input")

// MeterService is the business surface the transport layer depends on.
// Every metered operation checks the balance, performs the provider call,
// and debits tokens only after the call has succeeded.
type MeterService interface {
	Chat(ctx context.Context, accountID string, req model.ChatRequest) (*model.TextResult, error)
	ImproveWriting(ctx context.Context, accountID string, req model.WritingRequest) (*model.TextResult, error)
	Translate(ctx context.Context, accountID string, req model.TranslateRequest) (*model.TextResult, error)
	EmailReply(ctx context.Context, accountID string, req model.EmailReplyRequest) (*model.TextResult, error)
	GenerateImage(ctx context.Context, accountID string, req model.ImageGenerateRequest) (*model.ImageResult, error)
	RemoveBackground(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.ImageResult, error)
	Upscale(ctx context.Context, accountID string, req model.UpscaleRequest) (*model.ImageResult, error)
	OCR(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.TextResult, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	BillingEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error)
}

// PurchaseCrediter is invoked by the payment webhook once a purchase event
// has passed signature verification.
type PurchaseCrediter interface {
	CreditPurchase(ctx context.Context, eventID, accountID string, tokens, amountCents int64, currency string) error
}

// Ledger is the balance store the meter charges against.
type Ledger interface {
	Spend(ctx context.Context, accountID string, op model.Operation, idempotencyKey string, amount int64) (*model.ChargeResult, error)
	Credit(ctx context.Context, accountID string, amount int64) (int64, error)
	Balance(ctx context.Context, accountID string) (int64, error)
}

// Billing stores purchase history and claims processed webhook event ids.
type Billing interface {
	AppendEntry(ctx context.Context, entry model.BillingEntry) error
	ListEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error)
	MarkPaymentEvent(ctx context.Context, eventID string) (bool, error)
}

// TextProvider covers the chat-completion backed features.
type TextProvider interface {
	Chat(ctx context.Context, req model.ChatRequest) (string, error)
	ImproveWriting(ctx context.Context, req model.WritingRequest) (string, error)
	Translate(ctx context.Context, req model.TranslateRequest) (string, error)
	EmailReply(ctx context.Context, req model.EmailReplyRequest) (string, error)
	GenerateImage(ctx context.Context, req model.ImageGenerateRequest) (string, error)
}

// ImageProcessor covers the prediction-API backed image features.
type ImageProcessor interface {
	RemoveBackground(ctx context.Context, imageURL string) (string, error)
	Upscale(ctx context.Context, imageURL string, scale int, faceEnhance bool) (string, error)
	OCR(ctx context.Context, imageURL string) (string, error)
}
