package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"gorm.io/gorm"
)

// CartLine is one cart row joined with the live catalog.
type CartLine struct {
	ItemID    uint            `json:"item_id"`
	MenuID    uint            `json:"menu_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

// CartView is provisional. Checkout re-prices every line.
type CartView struct {
	CartID   uint            `json:"cart_id"`
	UserID   uint            `json:"user_id"`
	Lines    []CartLine      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// getOrCreateCart keeps a single cart per user. Callers hold the cart lock,
// the unique index on user_id covers writers in other processes.
func getOrCreateCart(ctx context.Context, carts *repository.CartRepository, userID uint) (*models.Cart, error) {
	cart, err := carts.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	cart = &models.Cart{UserID: userID}
	created, err := carts.CreateIfAbsent(ctx, cart)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if created {
		return cart, nil
	}
	// cart dibuat request lain sejak FindByUser di atas
	cart, err = carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) GetOrCreate(ctx context.Context, userID uint) (*models.Cart, error) {
	unlock := processLocks.Lock(cartLockKey(userID))
	defer unlock()
	return getOrCreateCart(ctx, repository.NewCartRepository(s.db), userID)
}

func (s *CartService) View(ctx context.Context, userID uint) (*CartView, error) {
	view := &CartView{UserID: userID, Lines: []CartLine{}, Subtotal: decimal.Zero}

	carts := repository.NewCartRepository(s.db)
	cart, err := carts.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	view.CartID = cart.ID

	items, err := carts.Items(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuID)
	}
	snaps, err := repository.NewCatalogRepository(s.db).Snapshots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	for _, it := range items {
		line := CartLine{ItemID: it.ID, MenuID: it.MenuID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, LineTotal: decimal.Zero}
		if snap, ok := snaps[it.MenuID]; ok {
			line.Name = snap.Name
			line.UnitPrice = snap.EffectivePrice()
			line.Available = snap.Sellable()
		}
		if line.Available {
			line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			view.Subtotal = view.Subtotal.Add(line.LineTotal)
		}
		view.Lines = append(view.Lines, line)
	}
	view.Subtotal = view.Subtotal.Round(2)
	return view, nil
}

// AddItem merges into an existing line of the same menu item.
func (s *CartService) AddItem(ctx context.Context, userID, menuID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{MenuID: menuID, Quantity: quantity}
	}

	unlock := processLocks.Lock(cartLockKey(userID))
	defer unlock()

	var item *models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := repository.NewCatalogRepository(tx).Snapshot(ctx, menuID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("menu %d: %w", menuID, ErrMenuItemNotFound)
		}
		if err != nil {
			return err
		}
		if !snap.Sellable() {
			return &ItemUnavailableError{MenuID: snap.MenuID, Name: snap.Name, Reason: unavailableReason(*snap)}
		}

		carts := repository.NewCartRepository(tx)
		cart, err := getOrCreateCart(ctx, carts, userID)
		if err != nil {
			return err
		}

		existing, err := carts.FindItemByMenu(ctx, cart.ID, menuID)
		switch {
		case err == nil:
			existing.Quantity += quantity
			existing.UnitPrice = snap.EffectivePrice()
			item = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = &models.CartItem{CartID: cart.ID, MenuID: menuID, Quantity: quantity, UnitPrice: snap.EffectivePrice()}
		default:
			return err
		}
		return carts.SaveItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID uint, quantity int) (*models.CartItem, error) {
	unlock := processLocks.Lock(cartLockKey(userID))
	defer unlock()

	carts := repository.NewCartRepository(s.db)
	item, err := s.findOwnedItem(ctx, carts, userID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, &InvalidQuantityError{MenuID: item.MenuID, Quantity: quantity}
	}
	item.Quantity = quantity
	if err := carts.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	unlock := processLocks.Lock(cartLockKey(userID))
	defer unlock()

	carts := repository.NewCartRepository(s.db)
	item, err := s.findOwnedItem(ctx, carts, userID, itemID)
	if err != nil {
		return err
	}
	return carts.DeleteItem(ctx, item)
}

func (s *CartService) Clear(ctx context.Context, userID uint) error {
	unlock := processLocks.Lock(cartLockKey(userID))
	defer unlock()

	carts := repository.NewCartRepository(s.db)
	cart, err := carts.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = carts.ClearItems(ctx, cart.ID)
	return err
}

func (s *CartService) findOwnedItem(ctx context.Context, carts *repository.CartRepository, userID, itemID uint) (*models.CartItem, error) {
	cart, err := carts.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	item, err := carts.FindItem(ctx, cart.ID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	return item, err
}

func unavailableReason(s repository.MenuSnapshot) string {
	if !s.Available {
		return "not available"
	}
	return "no positive price after discount"
}
