package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/services"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err  error
		code int
	}{
		{&services.EmptyCheckoutError{Dropped: []services.ItemUnavailableError{{MenuID: 1, Reason: "unavailable"}}}, http.StatusUnprocessableEntity},
		{&services.InvalidQuantityError{MenuID: 1, Quantity: 0}, http.StatusUnprocessableEntity},
		{&services.IllegalTransitionError{From: models.OrderStatusPaid, To: models.OrderStatusPending}, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", services.ErrOrderNotFound), http.StatusNotFound},
		{services.ErrPaymentFinalized, http.StatusConflict},
		{services.ErrInvalidAmount, http.StatusBadRequest},
		{&services.AddressMismatchError{OrderUserID: 1, AddressUserID: 2}, http.StatusUnprocessableEntity},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondServiceError(c, tt.err)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "db exploded")
			}
		})
	}
}

func TestKDSOriginCheck(t *testing.T) {
	kc := NewKDSController(nil, []string{"https://kitchen.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws/staff", nil)

	assert.True(t, kc.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://kitchen.example")
	assert.True(t, kc.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, kc.upgrader.CheckOrigin(req))
}
