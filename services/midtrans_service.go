package services

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/utils"
)

// MidtransConfig holds Midtrans configuration
type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	MerchantID   string
	// BaseURL overrides the sandbox/production host, e.g. for a local stub.
	BaseURL string
	Timeout time.Duration
}

// MidtransService talks to the Midtrans core API over HTTP.
type MidtransService struct {
	config     *MidtransConfig
	httpClient *http.Client
}

// NewMidtransService creates a new instance of MidtransService
func NewMidtransService(config *MidtransConfig) *MidtransService {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MidtransService{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ValidateConfig validates Midtrans configuration
func (ms *MidtransService) ValidateConfig() error {
	if ms.config.ServerKey == "" {
		return fmt.Errorf("GATEWAY_SERVER_KEY is not set")
	}
	if ms.config.ClientKey == "" {
		return fmt.Errorf("GATEWAY_CLIENT_KEY is not set")
	}
	if ms.config.MerchantID == "" {
		return fmt.Errorf("GATEWAY_MERCHANT_ID is not set")
	}
	return nil
}

var midtransPaymentTypes = map[models.PaymentMethod]string{
	models.PaymentMethodCard:   "credit_card",
	models.PaymentMethodPaypal: "paypal",
}

// MidtransResponse represents Midtrans API response
type MidtransResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionTime   string `json:"transaction_time"`
}

// Charge creates a transaction keyed by the payment reference.
func (ms *MidtransService) Charge(ctx context.Context, req ChargeRequest) (GatewayResult, error) {
	paymentType, ok := midtransPaymentTypes[req.Method]
	if !ok {
		return GatewayResult{}, fmt.Errorf("method %q: %w", req.Method, ErrInvalidPaymentMethod)
	}

	payload := map[string]interface{}{
		"payment_type": paymentType,
		"transaction_details": map[string]interface{}{
			"order_id":     req.Reference,
			"gross_amount": req.Amount.StringFixed(2),
		},
		"customer_details": map[string]interface{}{
			"first_name": req.CustomerRef,
		},
		"item_details": []map[string]interface{}{
			{
				"id":       fmt.Sprintf("order-%d", req.OrderID),
				"price":    req.Amount.StringFixed(2),
				"quantity": 1,
				"name":     "Order Payment",
			},
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return GatewayResult{}, fmt.Errorf("error marshaling request: %w", err)
	}

	resp, err := ms.do(ctx, http.MethodPost, "/v2/charge", jsonData)
	if err != nil {
		return GatewayResult{}, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"reference":      req.Reference,
		"transaction_id": resp.TransactionID,
		"status":         resp.TransactionStatus,
	}).Info("gateway charge created")

	return ms.toResult(resp), nil
}

// Status asks the gateway for the current state of a transaction reference.
func (ms *MidtransService) Status(ctx context.Context, reference string) (GatewayResult, error) {
	resp, err := ms.do(ctx, http.MethodGet, "/v2/"+reference+"/status", nil)
	if err != nil {
		return GatewayResult{}, err
	}
	return ms.toResult(resp), nil
}

func (ms *MidtransService) do(ctx context.Context, method, path string, body []byte) (*MidtransResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, ms.getBaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	// Basic auth: server key sebagai username, password kosong
	authString := "Basic " + base64.StdEncoding.EncodeToString([]byte(ms.config.ServerKey+":"))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authString)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("midtrans API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out MidtransResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}
	return &out, nil
}

func (ms *MidtransService) toResult(resp *MidtransResponse) GatewayResult {
	res := GatewayResult{
		Status:    MapTransactionStatus(resp.TransactionStatus, resp.FraudStatus),
		Reference: resp.TransactionID,
	}
	if res.Status == GatewayFailed {
		res.Reason = resp.TransactionStatus
	}
	return res
}

// MapTransactionStatus maps Midtrans transaction status to a gateway status.
// Unknown values stay pending so nothing is decided on them.
func MapTransactionStatus(status, fraudStatus string) GatewayStatus {
	switch status {
	case "capture":
		if fraudStatus == "challenge" {
			return GatewayPending
		}
		return GatewayCompleted
	case "settlement":
		return GatewayCompleted
	case "pending", "authorize":
		return GatewayPending
	case "deny", "cancel", "expire", "failure":
		return GatewayFailed
	default:
		return GatewayPending
	}
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key).
func (ms *MidtransService) Signature(orderID, statusCode, grossAmount string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + ms.config.ServerKey))
	return hex.EncodeToString(hash[:])
}

// ValidateSignature validates Midtrans signature
func (ms *MidtransService) ValidateSignature(orderID, statusCode, grossAmount, signature string) bool {
	expected := ms.Signature(orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// getBaseURL returns the appropriate Midtrans API base URL
func (ms *MidtransService) getBaseURL() string {
	if ms.config.BaseURL != "" {
		return strings.TrimRight(ms.config.BaseURL, "/")
	}
	if ms.config.IsProduction {
		return "https://api.midtrans.com"
	}
	return "https://api.sandbox.midtrans.com"
}
