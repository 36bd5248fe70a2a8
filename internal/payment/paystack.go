package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/domain"
)

const DefaultPaystackBaseURL = "https://api.paystack.co"

// Paystack amounts are integers in kobo.
var koboPerNaira = decimal.NewFromInt(100)

type Paystack struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewPaystack(secretKey string, baseURL string, client *http.Client) *Paystack {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Paystack{
		secretKey: strings.TrimSpace(secretKey),
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	Amount          int64           `json:"amount"`
	PaidAt          *time.Time      `json:"paid_at"`
	TransactionDate *time.Time      `json:"transaction_date"`
	Metadata        json.RawMessage `json:"metadata"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (string, error) {
	if p.secretKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"email":    req.Email,
		"amount":   req.Amount.Mul(koboPerNaira).Round(0).IntPart(),
		"metadata": req.Metadata,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	env, err := p.do(httpReq)
	if err != nil {
		return "", err
	}

	var data struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Reference == "" {
		return "", fmt.Errorf("%w: missing transaction reference", ErrRejected)
	}
	return data.Reference, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (Verification, error) {
	if p.secretKey == "" {
		return Verification{}, ErrNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return Verification{}, err
	}

	env, err := p.do(httpReq)
	if err != nil {
		return Verification{}, err
	}

	var tx paystackTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return Verification{}, fmt.Errorf("decode verification: %w", err)
	}

	v := Verification{
		Reference: reference,
		Status:    tx.Status,
		Message:   env.Message,
		Amount:    decimal.NewFromInt(tx.Amount).Div(koboPerNaira),
	}
	switch {
	case tx.PaidAt != nil:
		v.PaidAt = *tx.PaidAt
	case tx.TransactionDate != nil:
		v.PaidAt = *tx.TransactionDate
	}
	meta, err := decodeMetadata(tx.Metadata)
	if err != nil {
		return Verification{}, err
	}
	v.Metadata = meta
	return v, nil
}

func (p *Paystack) do(req *http.Request) (paystackEnvelope, error) {
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return paystackEnvelope{}, fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return paystackEnvelope{}, fmt.Errorf("decode paystack response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Status {
		msg := env.Message
		if msg == "" {
			msg = resp.Status
		}
		return paystackEnvelope{}, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return env, nil
}

// decodeMetadata accepts the metadata object or the JSON string form the
// gateway returns when metadata was posted as a string.
func decodeMetadata(raw json.RawMessage) (*domain.PaymentMetadata, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if strings.TrimSpace(inner) == "" {
			return nil, nil
		}
		raw = json.RawMessage(inner)
	}
	var meta domain.PaymentMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}
