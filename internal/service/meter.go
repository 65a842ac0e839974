package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"creditgate/internal/meter"
	"creditgate/internal/model"
	"creditgate/internal/repository"
)

// Meter implements MeterService and PurchaseCrediter.
type Meter struct {
	ledger  Ledger
	billing Billing
	text    TextProvider
	images  ImageProcessor
}

func NewMeter(ledger Ledger, billing Billing, text TextProvider, images ImageProcessor) *Meter {
	return &Meter{ledger: ledger, billing: billing, text: text, images: images}
}

func (m *Meter) Chat(ctx context.Context, accountID string, req model.ChatRequest) (*model.TextResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	return m.meteredText(ctx, accountID, model.OpChat, func(ctx context.Context) (string, error) {
		return m.text.Chat(ctx, req)
	})
}

func (m *Meter) ImproveWriting(ctx context.Context, accountID string, req model.WritingRequest) (*model.TextResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return m.meteredText(ctx, accountID, model.OpWritingImprove, func(ctx context.Context) (string, error) {
		return m.text.ImproveWriting(ctx, req)
	})
}

func (m *Meter) Translate(ctx context.Context, accountID string, req model.TranslateRequest) (*model.TextResult, error) {
	if req.Text == "" || req.TargetLanguage == "" {
		return nil, fmt.Errorf("%w: text and target_language are required", ErrInvalidInput)
	}
	return m.meteredText(ctx, accountID, model.OpTranslate, func(ctx context.Context) (string, error) {
		return m.text.Translate(ctx, req)
	})
}

func (m *Meter) EmailReply(ctx context.Context, accountID string, req model.EmailReplyRequest) (*model.TextResult, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return m.meteredText(ctx, accountID, model.OpEmailReply, func(ctx context.Context) (string, error) {
		return m.text.EmailReply(ctx, req)
	})
}

func (m *Meter) GenerateImage(ctx context.Context, accountID string, req model.ImageGenerateRequest) (*model.ImageResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	return m.meteredImage(ctx, accountID, model.OpImageGenerate, func(ctx context.Context) (string, error) {
		return m.text.GenerateImage(ctx, req)
	})
}

func (m *Meter) RemoveBackground(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.ImageResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: image_url is required", ErrInvalidInput)
	}
	return m.meteredImage(ctx, accountID, model.OpBackgroundRemove, func(ctx context.Context) (string, error) {
		return m.images.RemoveBackground(ctx, req.ImageURL)
	})
}

// Upscale is the one operation with a computed cost. The pixel ceiling is
// enforced before the balance check: an oversized request is refused even
// for an account that could afford it.
func (m *Meter) Upscale(ctx context.Context, accountID string, req model.UpscaleRequest) (*model.ImageResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: image_url is required", ErrInvalidInput)
	}
	cost, err := meter.UpscaleCost(req.Width, req.Height, req.Scale)
	if err != nil {
		return nil, err
	}
	out, balance, err := m.charge(ctx, accountID, model.OpUpscale, cost, func(ctx context.Context) (string, error) {
		return m.images.Upscale(ctx, req.ImageURL, req.Scale, req.FaceEnhance)
	})
	if err != nil {
		return nil, err
	}
	return &model.ImageResult{ImageURL: out, NewBalance: balance}, nil
}

func (m *Meter) OCR(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.TextResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: image_url is required", ErrInvalidInput)
	}
	return m.meteredText(ctx, accountID, model.OpOCR, func(ctx context.Context) (string, error) {
		return m.images.OCR(ctx, req.ImageURL)
	})
}

func (m *Meter) Balance(ctx context.Context, accountID string) (int64, error) {
	return m.ledger.Balance(ctx, accountID)
}

func (m *Meter) BillingEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error) {
	return m.billing.ListEntries(ctx, accountID, limit)
}

// CreditPurchase applies a verified purchase event exactly once: the event
// id is claimed first, so a redelivered webhook credits nothing.
func (m *Meter) CreditPurchase(ctx context.Context, eventID, accountID string, tokens, amountCents int64, currency string) error {
	fresh, err := m.billing.MarkPaymentEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !fresh {
		slog.Info("duplicate payment event ignored", "event_id", eventID, "account_id", accountID)
		return nil
	}

	if _, err := m.ledger.Credit(ctx, accountID, tokens); err != nil {
		return err
	}
	return m.billing.AppendEntry(ctx, model.BillingEntry{
		AccountID:   accountID,
		Tokens:      tokens,
		AmountCents: amountCents,
		Currency:    currency,
	})
}

func (m *Meter) meteredText(ctx context.Context, accountID string, op model.Operation, call func(context.Context) (string, error)) (*model.TextResult, error) {
	cost, err := meter.StaticCost(op)
	if err != nil {
		return nil, err
	}
	out, balance, err := m.charge(ctx, accountID, op, cost, call)
	if err != nil {
		return nil, err
	}
	return &model.TextResult{Text: out, NewBalance: balance}, nil
}

func (m *Meter) meteredImage(ctx context.Context, accountID string, op model.Operation, call func(context.Context) (string, error)) (*model.ImageResult, error) {
	cost, err := meter.StaticCost(op)
	if err != nil {
		return nil, err
	}
	out, balance, err := m.charge(ctx, accountID, op, cost, call)
	if err != nil {
		return nil, err
	}
	return &model.ImageResult{ImageURL: out, NewBalance: balance}, nil
}

// charge runs the pay-per-success flow: balance gate, provider call, debit.
// A provider failure leaves the balance untouched. A debit failure after a
// successful call is logged and absorbed; the user keeps the result.
func (m *Meter) charge(ctx context.Context, accountID string, op model.Operation, cost int64, call func(context.Context) (string, error)) (string, int64, error) {
	balance, err := m.ledger.Balance(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", 0, repository.ErrInsufficient
		}
		return "", 0, err
	}
	if !meter.Available(balance, cost) {
		return "", 0, repository.ErrInsufficient
	}

	out, err := call(ctx)
	if err != nil {
		return "", 0, err
	}

	res, err := m.ledger.Spend(ctx, accountID, op, uuid.NewString(), cost)
	if err != nil {
		// The provider already did paid work; eat the loss rather than
		// fail the user's completed action.
		slog.Error("charge failed after successful provider call",
			"account_id", accountID, "operation", op, "cost", cost, "error", err)
		return out, balance, nil
	}
	return out, res.NewBalance, nil
}
