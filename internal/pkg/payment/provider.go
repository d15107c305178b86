package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RobertHaas/AdDesk/internal/pkg/config"
)

// ProviderClient reads transaction metadata back from the payment provider.
// The customer email it attests is the authoritative account reference for
// deposits; order-embedded emails are only a fallback.
type ProviderClient struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

// PaymentDetail is the provider's record of a payment.
type PaymentDetail struct {
	PaymentID     string
	PaymentStatus string
	OrderID       string
	PayerEmail    string
}

func NewProviderClient(cfg config.Config) *ProviderClient {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProviderClient{
		APIBaseURL: strings.TrimRight(cfg.ProviderAPIBase, "/"),
		APIKey:     cfg.ProviderAPIKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// GetPayment fetches the provider's record of a payment by id.
func (c *ProviderClient) GetPayment(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("PAYMENT_API_KEY is not configured")
	}

	u, err := url.Parse(c.APIBaseURL + "/payment/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider payment lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		PaymentID     FlexID `json:"payment_id"`
		PaymentStatus string `json:"payment_status"`
		OrderID       string `json:"order_id"`
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.PaymentID.String() == "" {
		return nil, errors.New("provider payment response missing payment id")
	}

	return &PaymentDetail{
		PaymentID:     raw.PaymentID.String(),
		PaymentStatus: strings.TrimSpace(raw.PaymentStatus),
		OrderID:       strings.TrimSpace(raw.OrderID),
		PayerEmail:    strings.TrimSpace(raw.CustomerEmail),
	}, nil
}
