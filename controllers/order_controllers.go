package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

type OrderController struct {
	Orders *services.OrderService
	States *services.OrderStateMachine
}

func NewOrderController(orders *services.OrderService, states *services.OrderStateMachine) *OrderController {
	return &OrderController{Orders: orders, States: states}
}

// GetOrders -> customer melihat order miliknya, staff melihat semua
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
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
	status := models.OrderStatus(params.Status)
	if status != "" && !status.Valid() {
		utils.RespondError(c, http.StatusBadRequest, errInvalidStatus)
		return
	}

	q := repository.OrderQuery{Status: status, Sort: repository.Sort(params.Sort), Page: params.Page}
	if !isStaff(role) {
		q.UserID = &userID
	}
	result, err := oc.Orders.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders", result)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	order, ok := oc.loadOwnedOrder(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) GetOrderHistory(c *gin.Context) {
	order, ok := oc.loadOwnedOrder(c)
	if !ok {
		return
	}
	history, err := oc.States.History(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order history", history)
}

// CancelOrder membatalkan order pending. Order yang sudah dibayar butuh refund.
func (oc *OrderController) CancelOrder(c *gin.Context) {
	order, ok := oc.loadOwnedOrder(c)
	if !ok {
		return
	}
	userID, _, _ := currentUser(c)
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	updated, err := oc.States.Transition(c.Request.Context(), order.ID, models.OrderStatusCancelled, services.TransitionOptions{
		ChangedBy: &userID,
		Note:      req.Reason,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", updated)
}

// DeliverOrder -> staff menandai order paid sebagai delivered
func (oc *OrderController) DeliverOrder(c *gin.Context) {
	orderID, ok := parseID(c, "order_id")
	if !ok {
		return
	}
	userID, _, _ := currentUser(c)
	updated, err := oc.States.Transition(c.Request.Context(), orderID, models.OrderStatusDelivered, services.TransitionOptions{
		ChangedBy: &userID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order delivered", updated)
}

// loadOwnedOrder writes the error response itself when it returns false.
func (oc *OrderController) loadOwnedOrder(c *gin.Context) (*models.Order, bool) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
		return nil, false
	}
	orderID, ok := parseID(c, "order_id")
	if !ok {
		return nil, false
	}
	order, err := oc.Orders.Get(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if order.UserID != userID && !isStaff(role) {
		// disamarkan sebagai not found
		respondServiceError(c, services.ErrOrderNotFound)
		return nil, false
	}
	return order, true
}
