package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"gorm.io/gorm"
)

type InvoiceService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db, now: time.Now}
}

// Generate copies the address into a new invoice for order. It runs on tx
// when given so checkout can keep it in the same unit of work.
func (s *InvoiceService) Generate(ctx context.Context, tx *gorm.DB, order *models.Order, address *models.Address) (*models.Invoice, error) {
	if tx == nil {
		tx = s.db
	}
	if address.UserID != order.UserID {
		return nil, &AddressMismatchError{OrderUserID: order.UserID, AddressUserID: address.UserID}
	}

	invoices := repository.NewInvoiceRepository(tx)
	n, err := invoices.CountByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("order %d: %w", order.ID, ErrInvoiceExists)
	}

	recipient := ""
	if user, err := repository.NewUserRepository(tx).FindByID(ctx, order.UserID); err == nil {
		recipient = user.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	issued := s.now()
	inv := &models.Invoice{
		OrderID:       order.ID,
		UserID:        order.UserID,
		AddressID:     address.ID,
		InvoiceNumber: fmt.Sprintf("INV/%s/%06d", issued.Format("20060102"), order.ID),
		RecipientName: recipient,
		Line1:         address.Line1,
		Line2:         address.Line2,
		City:          address.City,
		PostalCode:    address.PostalCode,
		Country:       address.Country,
		IssuedAt:      issued,
	}
	if err := invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := repository.NewInvoiceRepository(s.db).FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

// RenderPDF renders the invoice together with the frozen order lines.
func (s *InvoiceService) RenderPDF(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	orders := repository.NewOrderRepository(s.db)
	order, err := orders.FindByID(ctx, inv.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", inv.OrderID, err)
	}
	items, err := orders.Items(ctx, inv.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return renderInvoicePDF(inv, order, items)
}
