package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

type InvoiceController struct {
	Invoices *services.InvoiceService
}

func NewInvoiceController(invoices *services.InvoiceService) *InvoiceController {
	return &InvoiceController{Invoices: invoices}
}

func (ic *InvoiceController) GetInvoice(c *gin.Context) {
	inv, ok := ic.ownedInvoice(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Invoice", inv)
}

// GetInvoicePDF -> download invoice dalam format PDF
func (ic *InvoiceController) GetInvoicePDF(c *gin.Context) {
	inv, ok := ic.ownedInvoice(c)
	if !ok {
		return
	}
	pdf, err := ic.Invoices.RenderPDF(c.Request.Context(), inv)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	filename := strings.ReplaceAll(inv.InvoiceNumber, "/", "-") + ".pdf"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (ic *InvoiceController) ownedInvoice(c *gin.Context) (*models.Invoice, bool) {
	userID, role, ok := currentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errMissingSession)
		return nil, false
	}
	id, ok := parseID(c, "invoice_id")
	if !ok {
		return nil, false
	}
	inv, err := ic.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	if inv.UserID != userID && !isStaff(role) {
		respondServiceError(c, services.ErrInvoiceNotFound)
		return nil, false
	}
	return inv, true
}
