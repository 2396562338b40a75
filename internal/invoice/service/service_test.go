package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	"github.com/smallbiznis/backoffice/internal/invoice/domain"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
	"github.com/smallbiznis/backoffice/internal/testkit"
	"github.com/smallbiznis/backoffice/internal/testkit/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testkit.D

// stateBook is a variable-fee client withholding state taxes and a supplier
// outside the simplified regime.
func stateBook(t *testing.T, env *billing.Env) billing.Book {
	return env.Book(t,
		partydomain.CreateClientRequest{
			Email:         "fleet@client.test",
			TaxCategories: []partydomain.TaxCategory{partydomain.TaxState},
			FeeMode:       partydomain.FeeModeVariable,
		},
		partydomain.CreateSupplierRequest{Email: "shop@supplier.test", NotSimplifiedTaxRegime: true},
	)
}

func newEnv(t *testing.T, opts ...testkit.Option) *billing.Env {
	env := billing.New(t, opts...)
	env.PublishRates(t, feedomain.FeeBaseNetTotal)
	return env
}

func getOrder(t *testing.T, env *billing.Env, id snowflake.ID) serviceorderdomain.ServiceOrder {
	t.Helper()
	order, err := env.Orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return order
}

func TestCreateSupplierInvoice(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	first := env.Order(t, book, "0", "1000")
	second := env.Order(t, book, "2000", "0")

	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, first, second)

	assert.Equal(t, "FAT-000001", inv.Number)
	assert.Equal(t, domain.TypeSupplier, inv.Type)
	require.NotNil(t, inv.SupplierID)
	assert.Equal(t, book.Supplier.ID, *inv.SupplierID)
	assert.Nil(t, inv.ClientID)
	assert.Equal(t, book.Client.ID, inv.FeeClientID)

	// 3000 net, 5.85% state withholding, 13% after-closing fee on net.
	assert.True(t, d("3000").Equal(inv.NetTotal))
	assert.True(t, d("175.5").Equal(inv.TaxTotal), inv.TaxTotal.String())
	assert.True(t, d("390").Equal(inv.FeeTotal), inv.FeeTotal.String())
	assert.True(t, d("2434.5").Equal(inv.AmountDue), inv.AmountDue.String())
	assert.Equal(t, domain.StatusAwaitingPayment, inv.Status)
	assert.Equal(t, billing.PeriodEnd.AddDate(0, 0, 30), inv.DueAt)

	require.Len(t, inv.Lines, 2)
	assert.True(t, d("58.5").Equal(inv.Lines[0].TaxAmount))
	assert.Equal(t, first.Code, inv.Lines[0].OrderCode)
	require.Len(t, inv.TaxLines, 2)
	assert.Equal(t, partydomain.TaxState, inv.TaxLines[0].Category)

	for _, id := range []snowflake.ID{first.ID, second.ID} {
		order := getOrder(t, env, id)
		assert.Equal(t, serviceorderdomain.StatusAwaitingPayment, order.Status)
		require.NotNil(t, order.SupplierInvoiceID)
		assert.Equal(t, inv.ID, *order.SupplierInvoiceID)
		assert.Nil(t, order.ClientInvoiceID)
	}

	stored, err := env.Invoices.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, stored.Number)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, inv.AmountDue.Equal(stored.AmountDue))
}

func TestFeeOnTotalAfterWithholding(t *testing.T) {
	env := billing.New(t)
	env.PublishRates(t, feedomain.FeeBaseAfterTax)
	book := stateBook(t, env)
	order := env.Order(t, book, "0", "1000")

	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, order)

	// (1000 - 58.50) x 13% = 122.395
	assert.Equal(t, feedomain.FeeBaseAfterTax, inv.FeeBase)
	assert.True(t, d("122.395").Equal(inv.FeeTotal), inv.FeeTotal.String())
	assert.True(t, d("819.105").Equal(inv.AmountDue), inv.AmountDue.String())
}

func TestUpfrontSupplierInvoiceIsSettled(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	order := env.Order(t, book, "1000", "0")

	inv := env.SupplierInvoice(t, book, partydomain.TimingUpfront, order)

	assert.Equal(t, 15.0, inv.FeeRatePct)
	assert.Equal(t, domain.StatusPaid, inv.Status)
	assert.True(t, inv.AmountPaid.Equal(inv.DueCents()))
	assert.True(t, inv.AmountRemaining.IsZero())
	assert.NotNil(t, inv.PaidAt)
	assert.True(t, inv.Lines[0].Paid)
	assert.Equal(t, serviceorderdomain.StatusPaid, getOrder(t, env, order.ID).Status)

	// The client direction can still bill the settled order.
	clientInv, err := env.Invoices.CreateInvoice(context.Background(),
		billing.Command(domain.TypeClient, book.Client.ID, partydomain.TimingAfterClosing, order))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, clientInv.Status)
}

func TestOrdersUnavailable(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	a := env.Order(t, book, "500", "0")
	b := env.Order(t, book, "700", "0")

	env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, a)

	_, err := env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, a, b))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)
	assert.Nil(t, getOrder(t, env, b.ID).SupplierInvoiceID, "nothing claimed on failure")

	_, err = env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, b, b))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)

	other := env.Supplier(t, partydomain.CreateSupplierRequest{})
	_, err = env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, other.ID, partydomain.TimingAfterClosing, b))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)

	require.NoError(t, env.Orders.DeleteOrder(ctx, serviceorderdomain.DeleteOrderCommand{ID: b.ID}))
	_, err = env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, b))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)

	missing := serviceorderdomain.ServiceOrder{ID: env.Node.Generate()}
	_, err = env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, missing))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)
}

func TestOrderBilledOncePerDirection(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	order := env.Order(t, book, "800", "200")

	supplierInv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, order)
	clientInv, err := env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeClient, book.Client.ID, partydomain.TimingDeferred, order))
	require.NoError(t, err)
	require.NotNil(t, clientInv.ClientID)
	assert.Equal(t, book.Client.ID, *clientInv.ClientID)

	stored := getOrder(t, env, order.ID)
	assert.Equal(t, supplierInv.ID, *stored.SupplierInvoiceID)
	assert.Equal(t, clientInv.ID, *stored.ClientInvoiceID)

	_, err = env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeClient, book.Client.ID, partydomain.TimingDeferred, order))
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)

	// Dropping the supplier claim leaves the order held by the client invoice.
	_, err = env.Invoices.DeactivateInvoice(ctx, domain.DeactivateInvoiceCommand{InvoiceID: supplierInv.ID})
	require.NoError(t, err)
	stored = getOrder(t, env, order.ID)
	assert.Nil(t, stored.SupplierInvoiceID)
	assert.Equal(t, serviceorderdomain.StatusAwaitingPayment, stored.Status)
}

func TestMarkOrderPaidUsesDueToNetRatio(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	orders := []serviceorderdomain.ServiceOrder{
		env.Order(t, book, "1000", "0"),
		env.Order(t, book, "2000", "0"),
		env.Order(t, book, "3000", "0"),
	}
	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, orders...)
	// 6000 - 351 - 780
	require.True(t, d("4869").Equal(inv.AmountDue), inv.AmountDue.String())

	paidAt := time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
	inv, err := env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: orders[0].ID, PaidAt: &paidAt})
	require.NoError(t, err)
	assert.True(t, d("811.5").Equal(inv.AmountPaid), inv.AmountPaid.String())
	assert.Equal(t, domain.StatusPartiallyPaid, inv.Status)
	assert.Equal(t, serviceorderdomain.StatusPaid, getOrder(t, env, orders[0].ID).Status)

	again, err := env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: orders[0].ID})
	require.NoError(t, err)
	assert.True(t, inv.AmountPaid.Equal(again.AmountPaid))

	inv, err = env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: orders[2].ID})
	require.NoError(t, err)
	assert.True(t, d("3246").Equal(inv.AmountPaid), inv.AmountPaid.String())

	inv, err = env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: orders[1].ID})
	require.NoError(t, err)
	assert.True(t, d("4869").Equal(inv.AmountPaid))
	assert.True(t, inv.AmountRemaining.IsZero())
	assert.Equal(t, domain.StatusPaid, inv.Status)

	stored, err := env.Invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, stored.Status)
	require.NotNil(t, stored.Lines[0].PaidAt)
	assert.True(t, paidAt.Equal(*stored.Lines[0].PaidAt))

	_, err = env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: env.Node.Generate()})
	assert.ErrorIs(t, err, domain.ErrOrderNotOnInvoice)
}

func TestRemoveOrderLeavesCommitmentAlone(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	keep := env.Order(t, book, "1000", "0")
	drop := env.Order(t, book, "2000", "0")
	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, keep, drop)
	available := env.Available(t, book.LineID)

	inv, err := env.Invoices.RemoveOrderFromInvoice(ctx, domain.RemoveOrderCommand{InvoiceID: inv.ID, OrderID: drop.ID})
	require.NoError(t, err)

	assert.True(t, available.Equal(env.Available(t, book.LineID)))
	assert.True(t, d("1000").Equal(inv.NetTotal))
	assert.True(t, d("811.5").Equal(inv.AmountDue), inv.AmountDue.String())
	assert.True(t, inv.Active)
	assert.Len(t, inv.ActiveLines(), 1)

	dropped := getOrder(t, env, drop.ID)
	assert.Nil(t, dropped.SupplierInvoiceID)
	assert.Equal(t, serviceorderdomain.StatusAuthorized, dropped.Status)

	_, err = env.Invoices.RemoveOrderFromInvoice(ctx, domain.RemoveOrderCommand{InvoiceID: inv.ID, OrderID: drop.ID})
	assert.ErrorIs(t, err, domain.ErrOrderNotOnInvoice)

	// The removed order can go on a new invoice.
	env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, dropped)

	inv, err = env.Invoices.RemoveOrderFromInvoice(ctx, domain.RemoveOrderCommand{InvoiceID: inv.ID, OrderID: keep.ID})
	require.NoError(t, err)
	assert.False(t, inv.Active, "last order removed")
	assert.NotNil(t, inv.DeactivatedAt)
	assert.True(t, available.Equal(env.Available(t, book.LineID)))
}

func TestRemovePaidOrderRejected(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	a := env.Order(t, book, "1000", "0")
	b := env.Order(t, book, "1000", "0")
	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, a, b)

	_, err := env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: a.ID})
	require.NoError(t, err)

	_, err = env.Invoices.RemoveOrderFromInvoice(ctx, domain.RemoveOrderCommand{InvoiceID: inv.ID, OrderID: a.ID})
	assert.ErrorIs(t, err, domain.ErrLinePaid)

	_, err = env.Invoices.DeactivateInvoice(ctx, domain.DeactivateInvoiceCommand{InvoiceID: inv.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestDeactivateInvoiceFreesOrders(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	a := env.Order(t, book, "1000", "0")
	b := env.Order(t, book, "0", "500")
	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, a, b)
	available := env.Available(t, book.LineID)

	inv, err := env.Invoices.DeactivateInvoice(ctx, domain.DeactivateInvoiceCommand{InvoiceID: inv.ID, Reason: "wrong period"})
	require.NoError(t, err)
	assert.False(t, inv.Active)
	assert.Equal(t, "wrong period", inv.Metadata["deactivation_reason"])
	assert.True(t, available.Equal(env.Available(t, book.LineID)))

	for _, id := range []snowflake.ID{a.ID, b.ID} {
		order := getOrder(t, env, id)
		assert.Nil(t, order.SupplierInvoiceID)
		assert.Equal(t, serviceorderdomain.StatusAuthorized, order.Status)
	}

	_, err = env.Invoices.DeactivateInvoice(ctx, domain.DeactivateInvoiceCommand{InvoiceID: inv.ID})
	assert.ErrorIs(t, err, domain.ErrInvoiceInactive)
	_, err = env.Invoices.MarkOrderPaid(ctx, domain.MarkOrderPaidCommand{InvoiceID: inv.ID, OrderID: a.ID})
	assert.ErrorIs(t, err, domain.ErrInvoiceInactive)

	active, err := env.Invoices.ListInvoices(ctx, domain.ListFilter{OnlyActive: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreateInvoiceNeedsActiveConfig(t *testing.T) {
	env := billing.New(t)
	book := stateBook(t, env)
	order := env.Order(t, book, "1000", "0")
	cmd := billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, order)

	_, err := env.Invoices.CreateInvoice(context.Background(), cmd)
	assert.ErrorIs(t, err, taxdomain.ErrConfigurationMissing)

	_, err = env.Taxes.Publish(context.Background(), taxdomain.PublishRequest{Rates: billing.Rates()})
	require.NoError(t, err)
	_, err = env.Invoices.CreateInvoice(context.Background(), cmd)
	assert.ErrorIs(t, err, feedomain.ErrConfigurationMissing)
}

func TestVariableFeeNeedsTiming(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	order := env.Order(t, book, "1000", "0")

	_, err := env.Invoices.CreateInvoice(context.Background(), billing.Command(domain.TypeSupplier, book.Supplier.ID, "", order))
	assert.ErrorIs(t, err, feedomain.ErrPaymentTimingRequired)
	assert.Nil(t, getOrder(t, env, order.ID).SupplierInvoiceID)
}

func TestInvoiceNumberCollisionRetries(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	ctx := context.Background()
	first := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, env.Order(t, book, "100", "0"))
	require.Equal(t, "FAT-000001", first.Number)

	// Rewind the counter so the next draw collides with the stored number.
	require.NoError(t, env.DB.Model(&sequence.Sequence{}).
		Where("name = ?", sequence.InvoiceNumbers).
		Update("last_value", 0).Error)

	order := env.Order(t, book, "200", "0")
	second, err := env.Invoices.CreateInvoice(ctx, billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, order))
	require.NoError(t, err)
	assert.Equal(t, "FAT-000002", second.Number)
	assert.Equal(t, second.ID, *getOrder(t, env, order.ID).SupplierInvoiceID)
}

// pinnedCounter counts order codes normally and always hands out 1 for
// invoice numbers.
type pinnedCounter struct {
	mu      sync.Mutex
	next    map[string]int64
	invoice int
}

func (c *pinnedCounter) Next(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == sequence.InvoiceNumbers {
		c.invoice++
		return 1, nil
	}
	c.next[name]++
	return c.next[name], nil
}

func TestInvoiceNumberExhaustionClaimsNothing(t *testing.T) {
	counter := &pinnedCounter{next: map[string]int64{}}
	env := newEnv(t, testkit.WithCounter(counter))
	book := stateBook(t, env)
	first := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, env.Order(t, book, "100", "0"))
	require.Equal(t, "FAT-000001", first.Number)

	order := env.Order(t, book, "200", "0")
	available := env.Available(t, book.LineID)
	_, err := env.Invoices.CreateInvoice(context.Background(),
		billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, order))
	assert.ErrorIs(t, err, sequence.ErrCodeGenerationExhausted)
	assert.Equal(t, 4, counter.invoice)

	stored := getOrder(t, env, order.ID)
	assert.Nil(t, stored.SupplierInvoiceID)
	assert.Equal(t, serviceorderdomain.StatusAuthorized, stored.Status)
	assert.True(t, available.Equal(env.Available(t, book.LineID)))

	invoices, err := env.Invoices.ListInvoices(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

// editingCounter runs onInvoice once, the first time an invoice number is
// drawn, which is after the orders were priced and before they are claimed.
type editingCounter struct {
	mu        sync.Mutex
	next      map[string]int64
	onInvoice func()
}

func (c *editingCounter) Next(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	c.next[name]++
	n := c.next[name]
	hook := c.onInvoice
	if name == sequence.InvoiceNumbers {
		c.onInvoice = nil
	} else {
		hook = nil
	}
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return n, nil
}

func TestOrderEditedWhilePricingIsNotClaimed(t *testing.T) {
	counter := &editingCounter{next: map[string]int64{}}
	env := newEnv(t, testkit.WithCounter(counter))
	book := stateBook(t, env)
	ctx := context.Background()
	order := env.Order(t, book, "0", "1000")

	counter.onInvoice = func() {
		_, err := env.Orders.UpdateOrder(ctx, serviceorderdomain.UpdateOrderCommand{
			ID:          order.ID,
			LaborLineID: &book.LineID,
			GrossLabor:  d("5000"),
		})
		require.NoError(t, err)
	}

	cmd := billing.Command(domain.TypeSupplier, book.Supplier.ID, partydomain.TimingAfterClosing, order)
	_, err := env.Invoices.CreateInvoice(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrOrdersUnavailable)

	stored := getOrder(t, env, order.ID)
	assert.Nil(t, stored.SupplierInvoiceID)
	assert.True(t, d("5000").Equal(stored.FinalValue))

	invoices, err := env.Invoices.ListInvoices(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	// Priced again, the invoice carries the edited value.
	inv, err := env.Invoices.CreateInvoice(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(inv.NetTotal), inv.NetTotal.String())
	assert.Equal(t, inv.ID, *getOrder(t, env, order.ID).SupplierInvoiceID)
}

func TestLineTaxKeepsFullPrecision(t *testing.T) {
	env := newEnv(t)
	book := stateBook(t, env)
	first := env.Order(t, book, "0", "1000.01")
	second := env.Order(t, book, "2000.01", "0")

	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, first, second)

	// 5.85% of each order, summed before any rounding.
	require.Len(t, inv.Lines, 2)
	assert.True(t, d("58.500585").Equal(inv.Lines[0].TaxAmount), inv.Lines[0].TaxAmount.String())
	assert.True(t, d("117.000585").Equal(inv.Lines[1].TaxAmount), inv.Lines[1].TaxAmount.String())
	assert.True(t, d("175.50117").Equal(inv.TaxTotal), inv.TaxTotal.String())
}
