// Package payment talks to the card/transfer payment gateway.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/domain"
)

var (
	ErrNotConfigured = errors.New("payment provider is not configured")
	ErrRejected      = errors.New("payment provider rejected the request")
)

type InitializeRequest struct {
	Email    string
	Amount   decimal.Decimal
	Metadata domain.PaymentMetadata
}

// Verification is the gateway's view of a transaction reference.
type Verification struct {
	Reference string
	Status    string
	Message   string
	Amount    decimal.Decimal
	PaidAt    time.Time
	Metadata  *domain.PaymentMetadata
}

func (v Verification) Succeeded() bool {
	return v.Status == "success"
}

type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (string, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}
