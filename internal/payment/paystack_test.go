package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielekerete60/bms/internal/domain"
)

func TestPaystackInitializeSendsKoboAndMetadata(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"reference":"ref-123"}}`))
	}))
	defer srv.Close()

	p := NewPaystack("sk_test", srv.URL, srv.Client())
	ref, err := p.Initialize(context.Background(), InitializeRequest{
		Email:  "buyer@example.com",
		Amount: decimal.RequireFromString("1250.50"),
		Metadata: domain.PaymentMetadata{
			CustomerName: "Walk-in",
			StaffID:      "staff-showroom",
			IsPosSale:    true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ref-123", ref)
	assert.EqualValues(t, 125050, got["amount"])
	meta := got["metadata"].(map[string]any)
	assert.Equal(t, true, meta["isPosSale"])
	assert.Equal(t, "staff-showroom", meta["staff_id"])
}

func TestPaystackVerifyDecodesTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"reference":"ref-9","status":"success","amount":240000,
			"paid_at":"2026-03-02T09:30:00Z",
			"metadata":{"customer_name":"Mama T","staff_id":"staff-driver","cart":[],"isPosSale":false,"isDebtPayment":true,"runId":"run-1","customerId":"cust-mama-t"}
		}}`))
	}))
	defer srv.Close()

	v, err := NewPaystack("sk_test", srv.URL, srv.Client()).Verify(context.Background(), "ref-9")
	require.NoError(t, err)
	assert.True(t, v.Succeeded())
	assert.True(t, decimal.NewFromInt(2400).Equal(v.Amount))
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), v.PaidAt.UTC())
	require.NotNil(t, v.Metadata)
	assert.True(t, v.Metadata.IsDebtPayment)
	assert.Equal(t, "run-1", v.Metadata.RunID)
}

func TestPaystackVerifyAcceptsStringMetadataAndNullRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{
			"status":"success","amount":50000,"transaction_date":"2026-03-02T08:00:00Z",
			"metadata":"{\"customer_name\":\"Walk-in\",\"isPosSale\":true,\"runId\":null}"
		}}`))
	}))
	defer srv.Close()

	v, err := NewPaystack("sk_test", srv.URL, srv.Client()).Verify(context.Background(), "ref-s")
	require.NoError(t, err)
	require.NotNil(t, v.Metadata)
	assert.True(t, v.Metadata.IsPosSale)
	assert.Empty(t, v.Metadata.RunID)
	assert.False(t, v.PaidAt.IsZero())
}

func TestPaystackRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	_, err := NewPaystack("sk_test", srv.URL, srv.Client()).Verify(context.Background(), "ref-x")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestPaystackRequiresSecret(t *testing.T) {
	_, err := NewPaystack("", "", nil).Initialize(context.Background(), InitializeRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
