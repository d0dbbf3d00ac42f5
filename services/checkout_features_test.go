package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/yeremiapane/food-checkout/models"
)

type checkoutFeature struct {
	t       *testing.T
	env     *testEnv
	user    *models.User
	menus   map[string]*models.Menu
	result  *CheckoutResult
	payment *models.Payment
	err     error
}

func (f *checkoutFeature) reset() {
	f.env = newTestEnv(f.t)
	f.user = nil
	f.menus = map[string]*models.Menu{}
	f.result = nil
	f.payment = nil
	f.err = nil
}

func (f *checkoutFeature) aCustomerWithADefaultAddress(email string) error {
	f.user = seedUser(f.t, f.env.db, email)
	seedAddress(f.t, f.env.db, f.user.ID, true)
	return nil
}

func (f *checkoutFeature) theMenuHasPriced(name, price string) error {
	f.menus[name] = seedMenu(f.t, f.env.db, name, price)
	return nil
}

func (f *checkoutFeature) theCustomerHasOfInTheCart(qty int, name string) error {
	m, ok := f.menus[name]
	if !ok {
		return fmt.Errorf("unknown menu %q", name)
	}
	_, err := f.env.carts.AddItem(context.Background(), f.user.ID, m.ID, qty)
	return err
}

func (f *checkoutFeature) becomesUnavailable(name string) error {
	return f.env.db.Model(&models.Menu{}).Where("id = ?", f.menus[name].ID).Update("available", false).Error
}

func (f *checkoutFeature) theCustomerChecksOut() error {
	f.result, f.err = f.env.checkout.Checkout(context.Background(), CheckoutRequest{UserID: f.user.ID})
	return nil
}

func (f *checkoutFeature) anOrderIsCreatedWithTotal(total string) error {
	if f.err != nil {
		return f.err
	}
	if !f.result.Order.TotalPrice.Equal(money(total)) {
		return fmt.Errorf("expected total %s, got %s", total, f.result.Order.TotalPrice)
	}
	return nil
}

func (f *checkoutFeature) theOrderHasLine(n int) error {
	order, err := f.env.orders.Get(context.Background(), f.result.Order.ID)
	if err != nil {
		return err
	}
	if len(order.Items) != n {
		return fmt.Errorf("expected %d lines, got %d", n, len(order.Items))
	}
	return nil
}

func (f *checkoutFeature) lineWasDropped(n int) error {
	if len(f.result.Dropped) != n {
		return fmt.Errorf("expected %d dropped, got %d", n, len(f.result.Dropped))
	}
	return nil
}

func (f *checkoutFeature) theCartIsEmpty() error {
	return f.theCartStillHasLine(0)
}

func (f *checkoutFeature) theCartStillHasLine(n int) error {
	view, err := f.env.carts.View(context.Background(), f.user.ID)
	if err != nil {
		return err
	}
	if len(view.Lines) != n {
		return fmt.Errorf("expected %d cart lines, got %d", n, len(view.Lines))
	}
	return nil
}

func (f *checkoutFeature) checkoutFailsBecauseTheCartIsEmpty() error {
	var empty *EmptyCheckoutError
	if !errors.As(f.err, &empty) {
		return fmt.Errorf("expected EmptyCheckoutError, got %v", f.err)
	}
	return nil
}

func (f *checkoutFeature) aCardPaymentForTheFullTotalIsRecorded() error {
	if f.err != nil {
		return f.err
	}
	p, err := f.env.payments.RecordPayment(context.Background(), f.result.Order.ID, models.PaymentMethodCard, f.result.Order.TotalPrice)
	f.payment = p
	return err
}

func (f *checkoutFeature) theGatewayReportsThePaymentCompleted() error {
	_, err := f.env.payments.Reconcile(context.Background(), f.payment.ID, GatewayResult{Status: GatewayCompleted, Reference: "trx-feature"})
	return err
}

func (f *checkoutFeature) aCashPaymentForTheFullTotalIsConfirmed() error {
	ctx := context.Background()
	p, err := f.env.payments.RecordPayment(ctx, f.result.Order.ID, models.PaymentMethodCash, f.result.Order.TotalPrice)
	if err != nil {
		return err
	}
	f.payment, err = f.env.payments.ConfirmCash(ctx, p.ID)
	return err
}

func (f *checkoutFeature) theOrderStatusIs(status string) error {
	order, err := f.env.orders.Get(context.Background(), f.result.Order.ID)
	if err != nil {
		return err
	}
	if string(order.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, order.Status)
	}
	return nil
}

func (f *checkoutFeature) theOrderHistoryHasEntry(n int, status string) error {
	history, err := f.env.states.History(context.Background(), f.result.Order.ID)
	if err != nil {
		return err
	}
	count := 0
	for _, h := range history {
		if string(h.ToStatus) == status {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d %s entries, got %d", n, status, count)
	}
	return nil
}

func (f *checkoutFeature) theOrderIsMovedTo(status string) error {
	_, f.err = f.env.states.Transition(context.Background(), f.result.Order.ID, models.OrderStatus(status), TransitionOptions{})
	return nil
}

func (f *checkoutFeature) theTransitionIsRejectedAsIllegal() error {
	var illegal *IllegalTransitionError
	if !errors.As(f.err, &illegal) {
		return fmt.Errorf("expected IllegalTransitionError, got %v", f.err)
	}
	f.err = nil
	return nil
}

func (f *checkoutFeature) staffRefunds(amount string) error {
	_, _, err := f.env.payments.RecordRefund(context.Background(), f.result.Order.ID, money(amount), "feature refund", nil)
	return err
}

func initializeCheckoutScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		f := &checkoutFeature{t: t}

		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			f.reset()
			return ctx, nil
		})

		// Given steps
		ctx.Step(`^a customer "([^"]*)" with a default address$`, f.aCustomerWithADefaultAddress)
		ctx.Step(`^the menu has "([^"]*)" priced (\d+\.\d{2})$`, f.theMenuHasPriced)
		ctx.Step(`^the customer has (\d+) of "([^"]*)" in the cart$`, f.theCustomerHasOfInTheCart)
		ctx.Step(`^"([^"]*)" becomes unavailable$`, f.becomesUnavailable)
		ctx.Step(`^a cash payment for the full total is confirmed$`, f.aCashPaymentForTheFullTotalIsConfirmed)

		// When steps
		ctx.Step(`^the customer checks out$`, f.theCustomerChecksOut)
		ctx.Step(`^a card payment for the full total is recorded$`, f.aCardPaymentForTheFullTotalIsRecorded)
		ctx.Step(`^the gateway reports the payment completed$`, f.theGatewayReportsThePaymentCompleted)
		ctx.Step(`^the order is moved to "([^"]*)"$`, f.theOrderIsMovedTo)
		ctx.Step(`^staff refunds (\d+\.\d{2})$`, f.staffRefunds)

		// Then steps
		ctx.Step(`^an order is created with total (\d+\.\d{2})$`, f.anOrderIsCreatedWithTotal)
		ctx.Step(`^the order has (\d+) lines?$`, f.theOrderHasLine)
		ctx.Step(`^(\d+) lines? was dropped$`, f.lineWasDropped)
		ctx.Step(`^the cart is empty$`, f.theCartIsEmpty)
		ctx.Step(`^the cart still has (\d+) lines?$`, f.theCartStillHasLine)
		ctx.Step(`^checkout fails because the cart is empty$`, f.checkoutFailsBecauseTheCartIsEmpty)
		ctx.Step(`^the order status is "([^"]*)"$`, f.theOrderStatusIs)
		ctx.Step(`^the order history has (\d+) "([^"]*)" entry$`, f.theOrderHistoryHasEntry)
		ctx.Step(`^the transition is rejected as illegal$`, f.theTransitionIsRejectedAsIllegal)
	}
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCheckoutScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
