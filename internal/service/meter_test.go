package service

import (
	"context"
	"errors"
	"testing"

	"creditgate/internal/meter"
	"creditgate/internal/model"
	"creditgate/internal/repository"
)

type mockLedger struct {
	balance    int64
	balanceErr error
	spendErr   error

	spendCalls  int
	lastOp      model.Operation
	lastAmount  int64
	creditCalls int
	credited    int64
}

func (m *mockLedger) Spend(ctx context.Context, accountID string, op model.Operation, idempotencyKey string, amount int64) (*model.ChargeResult, error) {
	m.spendCalls++
	m.lastOp = op
	m.lastAmount = amount
	if m.spendErr != nil {
		return nil, m.spendErr
	}
	m.balance -= amount
	return &model.ChargeResult{NewBalance: m.balance, Status: "SUCCESS"}, nil
}

func (m *mockLedger) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	m.creditCalls++
	m.credited += amount
	m.balance += amount
	return m.balance, nil
}

func (m *mockLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balance, nil
}

type mockBilling struct {
	entries   []model.BillingEntry
	processed map[string]bool
}

func (m *mockBilling) AppendEntry(ctx context.Context, entry model.BillingEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockBilling) ListEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error) {
	return m.entries, nil
}

func (m *mockBilling) MarkPaymentEvent(ctx context.Context, eventID string) (bool, error) {
	if m.processed == nil {
		m.processed = map[string]bool{}
	}
	if m.processed[eventID] {
		return false, nil
	}
	m.processed[eventID] = true
	return true, nil
}

type mockText struct {
	out   string
	err   error
	calls int
}

func (m *mockText) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockText) ImproveWriting(ctx context.Context, req model.WritingRequest) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockText) Translate(ctx context.Context, req model.TranslateRequest) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockText) EmailReply(ctx context.Context, req model.EmailReplyRequest) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockText) GenerateImage(ctx context.Context, req model.ImageGenerateRequest) (string, error) {
	m.calls++
	return m.out, m.err
}

type mockImages struct {
	out   string
	err   error
	calls int
}

func (m *mockImages) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockImages) Upscale(ctx context.Context, imageURL string, scale int, faceEnhance bool) (string, error) {
	m.calls++
	return m.out, m.err
}
func (m *mockImages) OCR(ctx context.Context, imageURL string) (string, error) {
	m.calls++
	return m.out, m.err
}

func newTestMeter(ledger *mockLedger, text *mockText, images *mockImages) (*Meter, *mockBilling) {
	billing := &mockBilling{}
	return NewMeter(ledger, billing, text, images), billing
}

func TestChat_ChargesAfterSuccess(t *testing.T) {
	ledger := &mockLedger{balance: 10}
	text := &mockText{out: "hello"}
	m, _ := newTestMeter(ledger, text, &mockImages{})

	res, err := m.Chat(context.Background(), "acc1", model.ChatRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("text = %q", res.Text)
	}
	if res.NewBalance != 9 {
		t.Errorf("new balance = %d, want 9", res.NewBalance)
	}
	if ledger.spendCalls != 1 || ledger.lastAmount != 1 || ledger.lastOp != model.OpChat {
		t.Errorf("spend calls=%d amount=%d op=%s", ledger.spendCalls, ledger.lastAmount, ledger.lastOp)
	}
}

func TestChat_ProviderErrorNeverCharges(t *testing.T) {
	ledger := &mockLedger{balance: 10}
	text := &mockText{err: errors.New("http 500")}
	m, _ := newTestMeter(ledger, text, &mockImages{})

	_, err := m.Chat(context.Background(), "acc1", model.ChatRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected provider error")
	}
	if ledger.spendCalls != 0 {
		t.Errorf("spend was called %d times after a provider failure", ledger.spendCalls)
	}
	if bal, _ := ledger.Balance(context.Background(), "acc1"); bal != 10 {
		t.Errorf("balance changed to %d", bal)
	}
}

func TestChat_InsufficientBalanceSkipsProvider(t *testing.T) {
	ledger := &mockLedger{balance: 0}
	text := &mockText{out: "hello"}
	m, _ := newTestMeter(ledger, text, &mockImages{})

	_, err := m.Chat(context.Background(), "acc1", model.ChatRequest{Prompt: "hi"})
	if !errors.Is(err, repository.ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
	if text.calls != 0 {
		t.Errorf("provider was called %d times with an empty balance", text.calls)
	}
}

func TestChat_UnknownAccountTreatedAsInsufficient(t *testing.T) {
	ledger := &mockLedger{balanceErr: repository.ErrNotFound}
	m, _ := newTestMeter(ledger, &mockText{out: "x"}, &mockImages{})

	_, err := m.Chat(context.Background(), "ghost", model.ChatRequest{Prompt: "hi"})
	if !errors.Is(err, repository.ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
}

func TestChat_EmptyPromptRejected(t *testing.T) {
	ledger := &mockLedger{balance: 10}
	m, _ := newTestMeter(ledger, &mockText{out: "x"}, &mockImages{})

	_, err := m.Chat(context.Background(), "acc1", model.ChatRequest{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestChat_SpendFailureAfterSuccessKeepsResult(t *testing.T) {
	ledger := &mockLedger{balance: 10, spendErr: errors.New("redis down")}
	text := &mockText{out: "hello"}
	m, _ := newTestMeter(ledger, text, &mockImages{})

	res, err := m.Chat(context.Background(), "acc1", model.ChatRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("a failed charge must not fail the completed action: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestGenerateImage_CostsTwo(t *testing.T) {
	ledger := &mockLedger{balance: 2}
	text := &mockText{out: "https://img.example/x.png"}
	m, _ := newTestMeter(ledger, text, &mockImages{})

	res, err := m.GenerateImage(context.Background(), "acc1", model.ImageGenerateRequest{Prompt: "a cat"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if ledger.lastAmount != 2 {
		t.Errorf("charged %d, want 2", ledger.lastAmount)
	}
	if res.NewBalance != 0 {
		t.Errorf("new balance = %d, want 0", res.NewBalance)
	}
}

func TestUpscale_DynamicCost(t *testing.T) {
	ledger := &mockLedger{balance: 100}
	images := &mockImages{out: "https://img.example/big.png"}
	m, _ := newTestMeter(ledger, &mockText{}, images)

	res, err := m.Upscale(context.Background(), "acc1", model.UpscaleRequest{
		ImageURL: "https://img.example/small.png",
		Width:    1000, Height: 1000, Scale: 4,
	})
	if err != nil {
		t.Fatalf("Upscale: %v", err)
	}
	if ledger.lastAmount != 16 {
		t.Errorf("charged %d, want 16", ledger.lastAmount)
	}
	if res.NewBalance != 84 {
		t.Errorf("new balance = %d, want 84", res.NewBalance)
	}
}

func TestUpscale_PixelCeilingBlocksBeforeSubmission(t *testing.T) {
	ledger := &mockLedger{balance: 1_000_000}
	images := &mockImages{out: "unused"}
	m, _ := newTestMeter(ledger, &mockText{}, images)

	_, err := m.Upscale(context.Background(), "acc1", model.UpscaleRequest{
		ImageURL: "https://img.example/huge.png",
		Width:    3000, Height: 3000, Scale: 8,
	})
	if !errors.Is(err, meter.ErrOutputTooLarge) {
		t.Fatalf("err = %v, want ErrOutputTooLarge", err)
	}
	if images.calls != 0 {
		t.Error("oversized upscale must be refused before submission")
	}
	if ledger.spendCalls != 0 {
		t.Error("oversized upscale must not charge")
	}
}

func TestCreditPurchase_AppliesOnce(t *testing.T) {
	ledger := &mockLedger{}
	m, billing := newTestMeter(ledger, &mockText{}, &mockImages{})

	if err := m.CreditPurchase(context.Background(), "evt_1", "acc1", 500, 799, "usd"); err != nil {
		t.Fatalf("CreditPurchase: %v", err)
	}
	if ledger.credited != 500 {
		t.Errorf("credited %d, want 500", ledger.credited)
	}
	if len(billing.entries) != 1 || billing.entries[0].Tokens != 500 {
		t.Fatalf("entries = %+v, want one entry with 500 tokens", billing.entries)
	}

	// Redelivery of the same event must not credit again.
	if err := m.CreditPurchase(context.Background(), "evt_1", "acc1", 500, 799, "usd"); err != nil {
		t.Fatalf("duplicate CreditPurchase: %v", err)
	}
	if ledger.credited != 500 {
		t.Errorf("credited %d after replay, want 500", ledger.credited)
	}
	if len(billing.entries) != 1 {
		t.Errorf("entries = %d after replay, want 1", len(billing.entries))
	}
}

func TestOCR_UsesImageProcessor(t *testing.T) {
	ledger := &mockLedger{balance: 5}
	images := &mockImages{out: "extracted text"}
	m, _ := newTestMeter(ledger, &mockText{}, images)

	res, err := m.OCR(context.Background(), "acc1", model.ImageURLRequest{ImageURL: "https://img.example/doc.png"})
	if err != nil {
		t.Fatalf("OCR: %v", err)
	}
	if res.Text != "extracted text" {
		t.Errorf("text = %q", res.Text)
	}
	if ledger.lastAmount != 1 {
		t.Errorf("charged %d, want 1", ledger.lastAmount)
	}
}
