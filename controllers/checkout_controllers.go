package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

type CheckoutController struct {
	Checkouts *services.CheckoutService
}

func NewCheckoutController(checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{Checkouts: checkout}
}

// Checkout -> mengubah cart user menjadi order pending + invoice
func (cc *CheckoutController) Checkout(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
		return
	}
	var req struct {
		AddressID *uint `json:"address_id"`
	}
	// body boleh kosong
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
	}

	result, err := cc.Checkouts.Checkout(c.Request.Context(), services.CheckoutRequest{
		UserID:    userID,
		AddressID: req.AddressID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", result)
}
