package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

var (
	ErrNoPermission   = errors.New("you do not have permission")
	errInvalidID      = errors.New("invalid id")
	errMissingSession = errors.New("user id not found in context")
	errInvalidStatus  = errors.New("invalid status filter")
)

// respondServiceError maps domain errors to 4xx. Anything unknown is a 500.
func respondServiceError(c *gin.Context, err error) {
	var (
		empty       *services.EmptyCheckoutError
		unavailable *services.ItemUnavailableError
		illegal     *services.IllegalTransitionError
		overpay     *services.OverpaymentError
		mismatch    *services.AddressMismatchError
		quantity    *services.InvalidQuantityError
	)

	switch {
	case errors.As(err, &empty):
		utils.RespondErrorData(c, http.StatusUnprocessableEntity, err, gin.H{"dropped": empty.Dropped})
	case errors.As(err, &unavailable), errors.As(err, &quantity):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
	case errors.As(err, &illegal), errors.As(err, &overpay):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.As(err, &mismatch):
		utils.RespondError(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrInvoiceNotFound),
		errors.Is(err, services.ErrCartItemNotFound),
		errors.Is(err, services.ErrMenuItemNotFound),
		errors.Is(err, services.ErrAddressNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrInvoiceExists),
		errors.Is(err, services.ErrOrderNotPayable),
		errors.Is(err, services.ErrPaymentFinalized),
		errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrNothingToRefund):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrCashNotCharged),
		errors.Is(err, services.ErrRefundMismatch),
		errors.Is(err, services.ErrNoBillingAddress),
		errors.Is(err, services.ErrUnknownGatewayStatus):
		utils.RespondError(c, http.StatusBadRequest, err)
	default:
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

// currentUser reads what AuthMiddleware stored in the context.
func currentUser(c *gin.Context) (uint, string, bool) {
	idValue, ok := c.Get("userID")
	if !ok {
		return 0, "", false
	}
	userID, ok := idValue.(uint)
	if !ok {
		return 0, "", false
	}
	role, _ := c.Get("role")
	roleStr, _ := role.(string)
	return userID, roleStr, true
}

func isStaff(role string) bool {
	return role == models.RoleStaff || role == models.RoleAdmin
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errInvalidID)
		return 0, false
	}
	return uint(id), true
}
