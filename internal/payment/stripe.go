// Package payment integrates Stripe: payment-intent creation for token
// purchases and the signed webhook that credits completed ones.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"creditgate/internal/model"
	"creditgate/internal/provider"
)

var ErrUnknownPackage = errors.New("unknown token package")

// Purchasable token bundles. The client asks for a token amount; the price
// is always resolved server-side from this table.
var packages = map[int64]model.TokenPackage{
	100:  {Tokens: 100, AmountCents: 199, Currency: "usd"},
	500:  {Tokens: 500, AmountCents: 799, Currency: "usd"},
	1200: {Tokens: 1200, AmountCents: 1499, Currency: "usd"},
	5000: {Tokens: 5000, AmountCents: 4999, Currency: "usd"},
}

type Intent struct {
	ClientSecret string `json:"client_secret"`
	IntentID     string `json:"intent_id"`
}

// Client creates payment intents. The webhook side lives in WebhookHandler.
type Client struct{}

func NewClient(apiKey string) *Client {
	stripelib.Key = apiKey
	return &Client{}
}

// CreateIntent opens a payment for one token package, tagging the intent
// with the account and token amount so the webhook can route the credit.
func (c *Client) CreateIntent(ctx context.Context, accountID string, tokens int64) (*Intent, error) {
	pkg, ok := packages[tokens]
	if !ok {
		return nil, fmt.Errorf("%w: %d tokens", ErrUnknownPackage, tokens)
	}

	params := &stripelib.PaymentIntentParams{
		Amount:   stripelib.Int64(pkg.AmountCents),
		Currency: stripelib.String(pkg.Currency),
		AutomaticPaymentMethods: &stripelib.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripelib.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("account_id", accountID)
	params.AddMetadata("tokens", strconv.FormatInt(pkg.Tokens, 10))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrRequestFailed, err)
	}
	return &Intent{ClientSecret: pi.ClientSecret, IntentID: pi.ID}, nil
}

// Packages lists the purchasable bundles for display, smallest first.
func Packages() []model.TokenPackage {
	out := make([]model.TokenPackage, 0, len(packages))
	for _, p := range packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tokens < out[j].Tokens })
	return out
}
