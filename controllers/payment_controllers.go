package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
	Orders   *services.OrderService
}

func NewPaymentController(payments *services.PaymentService, orders *services.OrderService) *PaymentController {
	return &PaymentController{Payments: payments, Orders: orders}
}

// CreatePayment mencatat pembayaran pending untuk order
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	order, ok := pc.ownedOrder(c)
	if !ok {
		return
	}
	var req struct {
		Method models.PaymentMethod `json:"payment_method" binding:"required"`
		Amount decimal.Decimal      `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, err := pc.Payments.RecordPayment(c.Request.Context(), order.ID, req.Method, req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Payment recorded", payment)
}

func (pc *PaymentController) GetPayments(c *gin.Context) {
	order, ok := pc.ownedOrder(c)
	if !ok {
		return
	}
	var params struct {
		Status string `form:"status"`
		Sort   string `form:"sort"`
		repository.Page
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	result, err := pc.Payments.List(c.Request.Context(), repository.PaymentQuery{
		OrderID: &order.ID,
		Status:  models.PaymentStatus(params.Status),
		Sort:    repository.Sort(params.Sort),
		Page:    params.Page,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payments", result)
}

// ChargePayment mengirim pembayaran card/paypal ke gateway
func (pc *PaymentController) ChargePayment(c *gin.Context) {
	payment, ok := pc.ownedPayment(c)
	if !ok {
		return
	}
	updated, err := pc.Payments.Charge(c.Request.Context(), payment.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	msg := "Payment " + string(updated.Status)
	utils.RespondJSON(c, http.StatusOK, msg, updated)
}

// ConfirmCash -> staff menerima pembayaran tunai
func (pc *PaymentController) ConfirmCash(c *gin.Context) {
	paymentID, ok := parseID(c, "payment_id")
	if !ok {
		return
	}
	updated, err := pc.Payments.ConfirmCash(c.Request.Context(), paymentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cash payment confirmed", updated)
}

// CreateRefund -> staff mencatat refund dan membatalkan order
func (pc *PaymentController) CreateRefund(c *gin.Context) {
	orderID, ok := parseID(c, "order_id")
	if !ok {
		return
	}
	staffID, _, _ := currentUser(c)
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	refund, order, err := pc.Payments.RecordRefund(c.Request.Context(), orderID, req.Amount, req.Reason, &staffID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Refund recorded", gin.H{
		"refund": refund,
		"order":  order,
	})
}

func (pc *PaymentController) ownedOrder(c *gin.Context) (*models.Order, bool) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
		return nil, false
	}
	orderID, ok := parseID(c, "order_id")
	if !ok {
		return nil, false
	}
	order, err := pc.Orders.Get(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if order.UserID != userID && !isStaff(role) {
		respondServiceError(c, services.ErrOrderNotFound)
		return nil, false
	}
	return order, true
}

func (pc *PaymentController) ownedPayment(c *gin.Context) (*models.Payment, bool) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
		return nil, false
	}
	paymentID, ok := parseID(c, "payment_id")
	if !ok {
		return nil, false
	}
	payment, err := pc.Payments.Get(c.Request.Context(), paymentID)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if !isStaff(role) {
		order, err := pc.Orders.Get(c.Request.Context(), payment.OrderID)
		if err != nil || order.UserID != userID {
			respondServiceError(c, services.ErrPaymentNotFound)
			return nil, false
		}
	}
	return payment, true
}
