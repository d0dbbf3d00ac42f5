package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
)

var (
	ErrMenuItemNotFound     = errors.New("menu item not found")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrAddressNotFound      = errors.New("address not found")
	ErrNoBillingAddress     = errors.New("user has no billing address")
	ErrInvoiceExists        = errors.New("order already has an invoice")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
	ErrInvalidAmount        = errors.New("amount must be positive with at most 2 decimal places")
	ErrInvalidPaymentMethod = errors.New("payment method must be one of cash, card, paypal")
	ErrPaymentFinalized     = errors.New("payment already finalized")
	ErrCashNotCharged       = errors.New("cash payments are confirmed by staff, not charged")
	ErrUnknownGatewayStatus = errors.New("unknown gateway status")
	ErrConcurrentUpdate     = errors.New("record was modified concurrently")
	ErrNothingToRefund      = errors.New("order has no completed payments to refund")
	ErrRefundMismatch       = errors.New("refund amount must equal the completed payments")
)

// ItemUnavailableError reports one cart line dropped at checkout. It is not fatal.
type ItemUnavailableError struct {
	MenuID uint   `json:"menu_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e ItemUnavailableError) Error() string {
	return fmt.Sprintf("menu item %d (%s) is unavailable: %s", e.MenuID, e.Name, e.Reason)
}

// EmptyCheckoutError means no line survived re-validation. The cart is left as is.
type EmptyCheckoutError struct {
	CartID  uint
	Dropped []ItemUnavailableError
}

func (e *EmptyCheckoutError) Error() string {
	if len(e.Dropped) == 0 {
		return "cart is empty"
	}
	names := make([]string, 0, len(e.Dropped))
	for _, d := range e.Dropped {
		names = append(names, d.Name)
	}
	return fmt.Sprintf("no available items to check out (dropped: %s)", strings.Join(names, ", "))
}

type InvalidQuantityError struct {
	MenuID   uint
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for menu item %d", e.Quantity, e.MenuID)
}

type IllegalTransitionError struct {
	From   models.OrderStatus
	To     models.OrderStatus
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("illegal order transition %s -> %s: %s", e.From, e.To, e.Reason)
}

type OverpaymentError struct {
	OrderID   uint
	Total     decimal.Decimal
	Completed decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s would exceed order %d total %s (already completed %s)",
		e.Attempted.StringFixed(2), e.OrderID, e.Total.StringFixed(2), e.Completed.StringFixed(2))
}

type AddressMismatchError struct {
	OrderUserID   uint
	AddressUserID uint
}

func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("address belongs to user %d but order belongs to user %d", e.AddressUserID, e.OrderUserID)
}
