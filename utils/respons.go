package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondErrorData is RespondError with a payload, e.g. dropped cart lines.
func RespondErrorData(c *gin.Context, code int, err error, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    data,
	})
}

// FormatMoney renders an amount with two decimals and thousands separators: 12345.5 -> "12,345.50"
func FormatMoney(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	integerPart, decimalPart := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	out := make([]byte, 0, len(integerPart)+len(integerPart)/3)
	for i := range integerPart {
		if i > 0 && (len(integerPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, integerPart[i])
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + string(out) + "." + decimalPart
}
