package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"creditgate/internal/jobpoll"
	"creditgate/internal/meter"
	"creditgate/internal/model"
	"creditgate/internal/payment"
	"creditgate/internal/provider"
	"creditgate/internal/repository"
)

type mockSessions struct {
	accounts map[string]string
}

func (m *mockSessions) Lookup(ctx context.Context, token string) (string, error) {
	id, ok := m.accounts[token]
	if !ok {
		return "", repository.ErrSessionNotFound
	}
	return id, nil
}

type mockService struct {
	textResult  *model.TextResult
	imageResult *model.ImageResult
	balance     int64
	entries     []model.BillingEntry
	err         error

	lastAccountID string
	calls         int
}

func (m *mockService) text(accountID string) (*model.TextResult, error) {
	m.calls++
	m.lastAccountID = accountID
	if m.err != nil {
		return nil, m.err
	}
	return m.textResult, nil
}

func (m *mockService) image(accountID string) (*model.ImageResult, error) {
	m.calls++
	m.lastAccountID = accountID
	if m.err != nil {
		return nil, m.err
	}
	return m.imageResult, nil
}

func (m *mockService) Chat(ctx context.Context, accountID string, req model.ChatRequest) (*model.TextResult, error) {
	return m.text(accountID)
}
func (m *mockService) ImproveWriting(ctx context.Context, accountID string, req model.WritingRequest) (*model.TextResult, error) {
	return m.text(accountID)
}
func (m *mockService) Translate(ctx context.Context, accountID string, req model.TranslateRequest) (*model.TextResult, error) {
	return m.text(accountID)
}
func (m *mockService) EmailReply(ctx context.Context, accountID string, req model.EmailReplyRequest) (*model.TextResult, error) {
	return m.text(accountID)
}
func (m *mockService) GenerateImage(ctx context.Context, accountID string, req model.ImageGenerateRequest) (*model.ImageResult, error) {
	return m.image(accountID)
}
func (m *mockService) RemoveBackground(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.ImageResult, error) {
	return m.image(accountID)
}
func (m *mockService) Upscale(ctx context.Context, accountID string, req model.UpscaleRequest) (*model.ImageResult, error) {
	return m.image(accountID)
}
func (m *mockService) OCR(ctx context.Context, accountID string, req model.ImageURLRequest) (*model.TextResult, error) {
	return m.text(accountID)
}
func (m *mockService) Balance(ctx context.Context, accountID string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.balance, nil
}
func (m *mockService) BillingEntries(ctx context.Context, accountID string, limit int) ([]model.BillingEntry, error) {
	return m.entries, m.err
}

type mockPayments struct {
	intent *payment.Intent
	err    error
}

func (m *mockPayments) CreateIntent(ctx context.Context, accountID string, tokens int64) (*payment.Intent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.intent, nil
}

func newTestMux(svc *mockService, payments *mockPayments) *http.ServeMux {
	sessions := &mockSessions{accounts: map[string]string{"good-token": "acc1"}}
	auth := NewAuth(sessions)
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := NewHandler(svc, payments, auth, webhook)

	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMeteredRoutes_RequireAuth(t *testing.T) {
	svc := &mockService{textResult: &model.TextResult{Text: "x"}}
	mux := newTestMux(svc, &mockPayments{})

	rec := doRequest(mux, http.MethodPost, "/v1/chat", "", `{"prompt":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doRequest(mux, http.MethodPost, "/v1/chat", "bad-token", `{"prompt":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d for unknown token, want 401", rec.Code)
	}

	if svc.calls != 0 {
		t.Errorf("service reached %d times without authentication", svc.calls)
	}
}

func TestChat_OK(t *testing.T) {
	svc := &mockService{textResult: &model.TextResult{Text: "hello", NewBalance: 9}}
	mux := newTestMux(svc, &mockPayments{})

	rec := doRequest(mux, http.MethodPost, "/v1/chat", "good-token", `{"prompt":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if svc.lastAccountID != "acc1" {
		t.Errorf("account id = %q, want acc1", svc.lastAccountID)
	}

	var res model.TextResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Text != "hello" || res.NewBalance != 9 {
		t.Errorf("response = %+v", res)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	mux := newTestMux(&mockService{}, &mockPayments{})
	rec := doRequest(mux, http.MethodPost, "/v1/chat", "good-token", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient balance", repository.ErrInsufficient, http.StatusPaymentRequired},
		{"provider failure", provider.ErrRequestFailed, http.StatusBadGateway},
		{"job timeout", jobpoll.ErrJobTimeout, http.StatusGatewayTimeout},
		{"job failure", jobpoll.ErrJobFailed, http.StatusBadGateway},
		{"output too large", meter.ErrOutputTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid scale", meter.ErrInvalidScale, http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mux := newTestMux(&mockService{err: c.err}, &mockPayments{})
			rec := doRequest(mux, http.MethodPost, "/v1/images/upscale", "good-token",
				`{"image_url":"https://a/b.png","width":10,"height":10,"scale":2}`)
			if rec.Code != c.want {
				t.Errorf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestBalance_OK(t *testing.T) {
	mux := newTestMux(&mockService{balance: 42}, &mockPayments{})
	rec := doRequest(mux, http.MethodGet, "/v1/balance", "good-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res map[string]int64
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res["balance"] != 42 {
		t.Errorf("balance = %d, want 42", res["balance"])
	}
}

func TestBalance_NewAccountReadsZero(t *testing.T) {
	mux := newTestMux(&mockService{err: repository.ErrNotFound}, &mockPayments{})
	rec := doRequest(mux, http.MethodGet, "/v1/balance", "good-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res map[string]int64
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res["balance"] != 0 {
		t.Errorf("balance = %d, want 0", res["balance"])
	}
}

func TestBilling_EmptyListIsNotNull(t *testing.T) {
	mux := newTestMux(&mockService{}, &mockPayments{})
	rec := doRequest(mux, http.MethodGet, "/v1/billing", "good-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("body = %q, want an empty entries array", rec.Body.String())
	}
}

func TestCreateIntent_UnknownPackage(t *testing.T) {
	mux := newTestMux(&mockService{}, &mockPayments{err: payment.ErrUnknownPackage})
	rec := doRequest(mux, http.MethodPost, "/v1/payments/intent", "good-token", `{"tokens":123}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestCreateIntent_OK(t *testing.T) {
	payments := &mockPayments{intent: &payment.Intent{ClientSecret: "cs_123", IntentID: "pi_123"}}
	mux := newTestMux(&mockService{}, payments)
	rec := doRequest(mux, http.MethodPost, "/v1/payments/intent", "good-token", `{"tokens":500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res payment.Intent
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ClientSecret != "cs_123" {
		t.Errorf("client secret = %q", res.ClientSecret)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	mux := newTestMux(&mockService{}, &mockPayments{})
	rec := doRequest(mux, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
