package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

// SignatureValidator checks the signature_key of a gateway notification.
type SignatureValidator interface {
	ValidateSignature(orderID, statusCode, grossAmount, signature string) bool
}

type PaymentCallbackController struct {
	Payments  *services.PaymentService
	Validator SignatureValidator
}

func NewPaymentCallbackController(payments *services.PaymentService, validator SignatureValidator) *PaymentCallbackController {
	return &PaymentCallbackController{Payments: payments, Validator: validator}
}

type gatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// HandlePaymentCallback menerima notifikasi gateway dan meneruskannya ke Reconcile
func (pcc *PaymentCallbackController) HandlePaymentCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		return
	}
	var n gatewayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid notification: %w", err))
		return
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("order_id and transaction_status are required"))
		return
	}

	if !pcc.Validator.ValidateSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		utils.ErrorLogger.WithField("reference", n.OrderID).Error("gateway notification with invalid signature")
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid signature"))
		return
	}

	ctx := c.Request.Context()
	payment, err := pcc.Payments.FindByReference(ctx, n.OrderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil || !gross.Equal(payment.Amount) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"expected":   payment.Amount.StringFixed(2),
			"got":        n.GrossAmount,
		}).Error("gateway notification amount mismatch")
		utils.RespondError(c, http.StatusBadRequest, errors.New("gross amount does not match payment"))
		return
	}

	result := services.GatewayResult{
		Status:    services.MapTransactionStatus(n.TransactionStatus, n.FraudStatus),
		Reference: n.TransactionID,
	}
	if result.Status == services.GatewayFailed {
		result.Reason = n.TransactionStatus
	}

	updated, err := pcc.Payments.Reconcile(ctx, payment.ID, result)
	if err != nil {
		var overpay *services.OverpaymentError
		if errors.As(err, &overpay) && updated != nil {
			// sudah dicatat sebagai failed, gateway tidak perlu mengirim ulang
			utils.RespondJSON(c, http.StatusOK, "Notification processed", updated)
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification processed", updated)
}
