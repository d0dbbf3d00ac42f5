package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/food-checkout/models"
)

func TestMidtransService_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *MidtransConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: &MidtransConfig{
				ServerKey:  "test-server-key",
				ClientKey:  "test-client-key",
				MerchantID: "test-merchant-id",
			},
			wantErr: false,
		},
		{
			name: "missing server key",
			config: &MidtransConfig{
				ClientKey:  "test-client-key",
				MerchantID: "test-merchant-id",
			},
			wantErr: true,
		},
		{
			name: "missing client key",
			config: &MidtransConfig{
				ServerKey:  "test-server-key",
				MerchantID: "test-merchant-id",
			},
			wantErr: true,
		},
		{
			name: "missing merchant id",
			config: &MidtransConfig{
				ServerKey: "test-server-key",
				ClientKey: "test-client-key",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := NewMidtransService(tt.config)
			err := ms.ValidateConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMidtransService_GetBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		config MidtransConfig
		want   string
	}{
		{"sandbox", MidtransConfig{}, "https://api.sandbox.midtrans.com"},
		{"production", MidtransConfig{IsProduction: true}, "https://api.midtrans.com"},
		{"override", MidtransConfig{BaseURL: "http://localhost:9000/"}, "http://localhost:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			assert.Equal(t, tt.want, NewMidtransService(&cfg).getBaseURL())
		})
	}
}

func TestMapTransactionStatus(t *testing.T) {
	tests := []struct {
		status, fraud string
		want          GatewayStatus
	}{
		{"capture", "accept", GatewayCompleted},
		{"capture", "challenge", GatewayPending},
		{"settlement", "", GatewayCompleted},
		{"pending", "", GatewayPending},
		{"authorize", "", GatewayPending},
		{"deny", "", GatewayFailed},
		{"cancel", "", GatewayFailed},
		{"expire", "", GatewayFailed},
		{"failure", "", GatewayFailed},
		{"refund", "", GatewayPending},
		{"", "", GatewayPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapTransactionStatus(tt.status, tt.fraud), "%s/%s", tt.status, tt.fraud)
	}
}

func TestMidtransService_Signature(t *testing.T) {
	ms := NewMidtransService(&MidtransConfig{ServerKey: "SB-Mid-server-key"})
	sig := ms.Signature("ref-1", "200", "20000.00")

	assert.Len(t, sig, 128)
	assert.True(t, ms.ValidateSignature("ref-1", "200", "20000.00", sig))
	assert.False(t, ms.ValidateSignature("ref-1", "200", "1.00", sig))
	assert.False(t, ms.ValidateSignature("ref-1", "200", "20000.00", "deadbeef"))

	other := NewMidtransService(&MidtransConfig{ServerKey: "another-key"})
	assert.False(t, other.ValidateSignature("ref-1", "200", "20000.00", sig))
}

func TestMidtransService_Charge(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/charge", r.URL.Path)
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("server-key:"))
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status_code":"201","transaction_id":"trx-123","order_id":"ref-9","transaction_status":"settlement"}`)
	}))
	defer server.Close()

	ms := NewMidtransService(&MidtransConfig{ServerKey: "server-key", BaseURL: server.URL})
	res, err := ms.Charge(context.Background(), ChargeRequest{
		Reference:   "ref-9",
		OrderID:     9,
		Amount:      money("20.5"),
		Method:      models.PaymentMethodCard,
		CustomerRef: "ORDER-1-9",
	})
	require.NoError(t, err)
	assert.Equal(t, GatewayCompleted, res.Status)
	assert.Equal(t, "trx-123", res.Reference)

	assert.Equal(t, "credit_card", got["payment_type"])
	details := got["transaction_details"].(map[string]interface{})
	assert.Equal(t, "ref-9", details["order_id"])
	assert.Equal(t, "20.50", details["gross_amount"])
}

func TestMidtransService_ChargeRejectsCash(t *testing.T) {
	ms := NewMidtransService(&MidtransConfig{ServerKey: "k", BaseURL: "http://127.0.0.1:1"})
	_, err := ms.Charge(context.Background(), ChargeRequest{Method: models.PaymentMethodCash, Amount: money("1.00")})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestMidtransService_StatusAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/ref-deny/status":
			fmt.Fprint(w, `{"transaction_id":"trx-d","transaction_status":"deny"}`)
		case "/v2/ref-slow/status":
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, `{"transaction_status":"settlement"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status_message":"boom"}`)
		}
	}))
	defer server.Close()

	ms := NewMidtransService(&MidtransConfig{ServerKey: "k", BaseURL: server.URL})

	res, err := ms.Status(context.Background(), "ref-deny")
	require.NoError(t, err)
	assert.Equal(t, GatewayFailed, res.Status)
	assert.Equal(t, "deny", res.Reason)

	_, err = ms.Status(context.Background(), "ref-broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ms.Status(ctx, "ref-slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
