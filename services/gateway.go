package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
)

// GatewayStatus is the outcome class of a gateway call.
type GatewayStatus string

const (
	GatewayCompleted GatewayStatus = "completed"
	GatewayFailed    GatewayStatus = "failed"
	GatewayPending   GatewayStatus = "pending"
	GatewayTimeout   GatewayStatus = "timeout"
)

type GatewayResult struct {
	Status GatewayStatus `json:"status"`
	// Reference is the gateway's own transaction id, if it returned one.
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type ChargeRequest struct {
	Reference   string
	OrderID     uint
	Amount      decimal.Decimal
	Method      models.PaymentMethod
	CustomerRef string
}

// PaymentGateway is the external processor. Implementations must honour ctx.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (GatewayResult, error)
	Status(ctx context.Context, reference string) (GatewayResult, error)
}
