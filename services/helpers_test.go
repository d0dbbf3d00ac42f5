package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/food-checkout/database"
	"github.com/yeremiapane/food-checkout/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB -> sqlite in-memory dengan satu koneksi supaya semua query melihat database yang sama
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Test " + email, Email: email, Password: "x", Role: models.RoleCustomer}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedAddress(t *testing.T, db *gorm.DB, userID uint, isDefault bool) *models.Address {
	t.Helper()
	a := &models.Address{UserID: userID, Line1: "Jl. Merdeka 1", City: "Jakarta", PostalCode: "10110", Country: "ID", IsDefault: isDefault}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()
	c := &models.Category{Name: "Main"}
	require.NoError(t, db.FirstOrCreate(c, models.Category{Name: "Main"}).Error)
	return c
}

func seedMenu(t *testing.T, db *gorm.DB, name, price string) *models.Menu {
	t.Helper()
	cat := seedCategory(t, db)
	m := &models.Menu{CategoryID: cat.ID, Name: name, Price: money(price), Available: true}
	require.NoError(t, db.Create(m).Error)
	return m
}

func setUnavailable(t *testing.T, db *gorm.DB, menuID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.Menu{}).Where("id = ?", menuID).Update("available", false).Error)
}

type publishedEvent struct {
	Name string
	Data interface{}
}

// recordingPublisher keeps every event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, event string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Name: event, Data: data})
	return nil
}

func (r *recordingPublisher) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// fakeGateway returns canned results and counts calls.
type fakeGateway struct {
	mu          sync.Mutex
	chargeFn    func(ctx context.Context, req ChargeRequest) (GatewayResult, error)
	statusFn    func(ctx context.Context, ref string) (GatewayResult, error)
	chargeCalls int
	statusCalls int
}

func (g *fakeGateway) Charge(ctx context.Context, req ChargeRequest) (GatewayResult, error) {
	g.mu.Lock()
	g.chargeCalls++
	g.mu.Unlock()
	return g.chargeFn(ctx, req)
}

func (g *fakeGateway) Status(ctx context.Context, ref string) (GatewayResult, error) {
	g.mu.Lock()
	g.statusCalls++
	g.mu.Unlock()
	return g.statusFn(ctx, ref)
}

type testEnv struct {
	db       *gorm.DB
	events   *recordingPublisher
	gateway  *fakeGateway
	carts    *CartService
	invoices *InvoiceService
	checkout *CheckoutService
	states   *OrderStateMachine
	payments *PaymentService
	orders   *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	events := &recordingPublisher{}
	gw := &fakeGateway{
		chargeFn: func(context.Context, ChargeRequest) (GatewayResult, error) {
			return GatewayResult{Status: GatewayPending}, nil
		},
		statusFn: func(context.Context, string) (GatewayResult, error) {
			return GatewayResult{Status: GatewayPending}, nil
		},
	}
	invoices := NewInvoiceService(db)
	states := NewOrderStateMachine(db, events)
	return &testEnv{
		db:       db,
		events:   events,
		gateway:  gw,
		carts:    NewCartService(db),
		invoices: invoices,
		checkout: NewCheckoutService(db, invoices, events),
		states:   states,
		payments: NewPaymentService(db, states, gw, 0, events),
		orders:   NewOrderService(db),
	}
}

// checkedOutOrder -> user dengan alamat default, satu menu 10.00 x qty, langsung checkout
func (e *testEnv) checkedOutOrder(t *testing.T, email string, qty int) (*models.User, *models.Order) {
	t.Helper()
	ctx := context.Background()
	u := seedUser(t, e.db, email)
	seedAddress(t, e.db, u.ID, true)
	m := seedMenu(t, e.db, "Nasi Goreng "+email, "10.00")
	_, err := e.carts.AddItem(ctx, u.ID, m.ID, qty)
	require.NoError(t, err)
	res, err := e.checkout.Checkout(ctx, CheckoutRequest{UserID: u.ID})
	require.NoError(t, err)
	return u, res.Order
}
