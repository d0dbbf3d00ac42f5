package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/utils"
	"gorm.io/gorm"
)

type CheckoutRequest struct {
	UserID    uint
	AddressID *uint // nil -> default address, else the most recent one
}

type CheckoutResult struct {
	Order   *models.Order          `json:"order"`
	Invoice *models.Invoice        `json:"invoice"`
	Dropped []ItemUnavailableError `json:"dropped,omitempty"`
}

type CheckoutService struct {
	db        *gorm.DB
	invoices  *InvoiceService
	publisher EventPublisher
}

func NewCheckoutService(db *gorm.DB, invoices *InvoiceService, publisher EventPublisher) *CheckoutService {
	return &CheckoutService{db: db, invoices: invoices, publisher: publisher}
}

// Checkout turns the user's cart into a pending order with frozen prices and
// an invoice, then empties the cart. Any failure leaves the cart untouched.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	unlock := processLocks.Lock(cartLockKey(req.UserID))
	defer unlock()

	var (
		result *CheckoutResult
		events outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts := repository.NewCartRepository(tx)
		cart, err := carts.LockByUser(ctx, req.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &EmptyCheckoutError{}
		}
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}

		lines, err := carts.Items(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to load cart items: %w", err)
		}
		if len(lines) == 0 {
			return &EmptyCheckoutError{CartID: cart.ID}
		}

		items, dropped, err := priceLines(ctx, repository.NewCatalogRepository(tx), lines)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &EmptyCheckoutError{CartID: cart.ID, Dropped: dropped}
		}

		address, err := resolveAddress(ctx, repository.NewUserRepository(tx), req)
		if err != nil {
			return err
		}

		order := &models.Order{
			UserID:     req.UserID,
			TotalPrice: orderTotal(items),
			Status:     models.OrderStatusPending,
		}
		orders := repository.NewOrderRepository(tx)
		if err := orders.Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := orders.CreateItems(ctx, items); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		if err := orders.AppendStatusLog(ctx, &models.OrderStatusLog{
			OrderID:   order.ID,
			ToStatus:  models.OrderStatusPending,
			ChangedBy: &req.UserID,
			Note:      "checkout",
		}); err != nil {
			return fmt.Errorf("failed to write status log: %w", err)
		}

		invoice, err := s.invoices.Generate(ctx, tx, order, address)
		if err != nil {
			return err
		}

		if _, err := carts.ClearItems(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		order.Items = items
		result = &CheckoutResult{Order: order, Invoice: invoice, Dropped: dropped}
		events.add(EventOrderCreated, order)
		events.add(EventInvoiceGenerated, invoice)
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": result.Order.ID,
		"user_id":  req.UserID,
		"total":    result.Order.TotalPrice.StringFixed(2),
		"items":    len(result.Order.Items),
		"dropped":  len(result.Dropped),
	}).Info("checkout completed")

	events.flush(ctx, s.publisher)
	return result, nil
}

// priceLines re-reads every line from the catalog. The cart's own unit price
// is never used.
func priceLines(ctx context.Context, catalog *repository.CatalogRepository, lines []models.CartItem) ([]models.OrderItem, []ItemUnavailableError, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{MenuID: l.MenuID, Quantity: l.Quantity}
		}
		ids = append(ids, l.MenuID)
	}

	snaps, err := catalog.Snapshots(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var (
		items   []models.OrderItem
		dropped []ItemUnavailableError
	)
	for _, l := range lines {
		snap, ok := snaps[l.MenuID]
		if !ok {
			return nil, nil, fmt.Errorf("menu %d: %w", l.MenuID, ErrMenuItemNotFound)
		}
		if !snap.Sellable() {
			dropped = append(dropped, ItemUnavailableError{MenuID: snap.MenuID, Name: snap.Name, Reason: unavailableReason(snap)})
			continue
		}
		items = append(items, models.OrderItem{
			MenuID:          snap.MenuID,
			MenuName:        snap.Name,
			Quantity:        l.Quantity,
			PriceAtPurchase: snap.EffectivePrice(),
		})
	}
	return items, dropped, nil
}

// orderTotal sums left to right in insertion order and rounds once at the end.
func orderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].LineTotal())
	}
	return total.Round(2)
}

func resolveAddress(ctx context.Context, users *repository.UserRepository, req CheckoutRequest) (*models.Address, error) {
	if req.AddressID != nil {
		addr, err := users.FindAddress(ctx, *req.AddressID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return addr, err
	}
	addr, err := users.BillingAddress(ctx, req.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoBillingAddress
	}
	return addr, err
}
