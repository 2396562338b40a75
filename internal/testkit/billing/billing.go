// Package billing extends testkit with orders, rate tables and invoices so
// invoice and advance tests start from a priced, claimable book.
package billing

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	commitmentdomain "github.com/smallbiznis/backoffice/internal/commitment/domain"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	feerepo "github.com/smallbiznis/backoffice/internal/fee/repository"
	feeservice "github.com/smallbiznis/backoffice/internal/fee/service"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/backoffice/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/backoffice/internal/invoice/service"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	serviceorderdomain "github.com/smallbiznis/backoffice/internal/serviceorder/domain"
	serviceorderrepo "github.com/smallbiznis/backoffice/internal/serviceorder/repository"
	serviceorderservice "github.com/smallbiznis/backoffice/internal/serviceorder/service"
	taxdomain "github.com/smallbiznis/backoffice/internal/tax/domain"
	taxrepo "github.com/smallbiznis/backoffice/internal/tax/repository"
	taxservice "github.com/smallbiznis/backoffice/internal/tax/service"
	"github.com/smallbiznis/backoffice/internal/testkit"
	"github.com/stretchr/testify/require"
)

// PeriodStart and PeriodEnd bound the month every Env invoice covers.
var (
	PeriodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	PeriodEnd   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

type Env struct {
	*testkit.Env

	Taxes       taxdomain.Service
	Fees        feedomain.Service
	OrderRepo   serviceorderdomain.Repository
	Orders      serviceorderdomain.Service
	InvoiceRepo invoicedomain.Repository
	Invoices    invoicedomain.Service
}

// New builds the services without publishing any rate table; call
// PublishRates to make invoicing possible.
func New(t testing.TB, opts ...testkit.Option) *Env {
	t.Helper()

	opts = append([]testkit.Option{testkit.WithModels(
		&taxdomain.TaxConfig{},
		&feedomain.FeeConfig{},
		&invoicedomain.Invoice{},
		&invoicedomain.Line{},
		&invoicedomain.TaxLine{},
	)}, opts...)
	base := testkit.New(t, opts...)

	env := &Env{
		Env:         base,
		OrderRepo:   serviceorderrepo.Provide(),
		InvoiceRepo: invoicerepo.Provide(),
	}
	env.Taxes = taxservice.NewService(taxservice.Params{
		DB: base.DB, Log: base.Log, GenID: base.Node, Repo: taxrepo.Provide(), Clock: base.Clock,
	})
	env.Fees = feeservice.NewService(feeservice.Params{
		DB: base.DB, Log: base.Log, GenID: base.Node, Repo: feerepo.Provide(), Clock: base.Clock,
	})
	env.Orders = serviceorderservice.NewService(serviceorderservice.Params{
		DB:          base.DB,
		Log:         base.Log,
		GenID:       base.Node,
		Repo:        env.OrderRepo,
		Clock:       base.Clock,
		Commitments: base.Commitments,
		Parties:     base.Parties,
		Codes:       base.Codes,
	})
	env.Invoices = invoiceservice.NewService(invoiceservice.Params{
		DB:      base.DB,
		Log:     base.Log,
		GenID:   base.Node,
		Repo:    env.InvoiceRepo,
		Orders:  env.OrderRepo,
		Parties: base.Parties,
		Taxes:   env.Taxes,
		Fees:    env.Fees,
		Codes:   base.Codes,
		Clock:   base.Clock,
		Policy:  base.Policy,
	})
	return env
}

// Rates is the withholding table used across tests. State is the
// 1.2 / 0.65 / 3.0 / 1.0 table summing to 5.85%.
func Rates() []taxdomain.JurisdictionRate {
	return []taxdomain.JurisdictionRate{
		{Category: partydomain.TaxMunicipal, IR: 2},
		{Category: partydomain.TaxState, IR: 1.2, PIS: 0.65, COFINS: 3.0, CSLL: 1.0},
		{Category: partydomain.TaxFederal, IR: 1.5, PIS: 0.65, COFINS: 3.0, CSLL: 1.0},
		{Category: partydomain.TaxRetention, IR: 1, PIS: 1, COFINS: 1, CSLL: 1},
	}
}

// PublishRates activates Rates and the default fee bands with base.
func (e *Env) PublishRates(t testing.TB, base feedomain.FeeBase) {
	t.Helper()
	ctx := context.Background()
	_, err := e.Taxes.Publish(ctx, taxdomain.PublishRequest{Rates: Rates()})
	require.NoError(t, err)
	_, err = e.Fees.Publish(ctx, feedomain.PublishRequest{
		OperationalFeeBase: base,
		Bands:              feedomain.DefaultBands(),
	})
	require.NoError(t, err)
}

// Book is one client, one supplier and a "both" commitment line with room
// for every order a test creates.
type Book struct {
	Client   partydomain.Client
	Supplier partydomain.Supplier
	LineID   snowflake.ID
}

func (e *Env) Book(t testing.TB, client partydomain.CreateClientRequest, supplier partydomain.CreateSupplierRequest) Book {
	t.Helper()
	c := e.Client(t, client)
	s := e.Supplier(t, supplier)
	contract := e.Contract(t, c.ID, "1000000")
	line := e.Line(t, contract.ID, commitmentdomain.LineTypeBoth, "500000")
	return Book{Client: c, Supplier: s, LineID: line.ID}
}

// ClientBook opens another client with its own contract line for an
// existing supplier.
func (e *Env) ClientBook(t testing.TB, supplier partydomain.Supplier, client partydomain.CreateClientRequest) Book {
	t.Helper()
	c := e.Client(t, client)
	contract := e.Contract(t, c.ID, "1000000")
	line := e.Line(t, contract.ID, commitmentdomain.LineTypeBoth, "500000")
	return Book{Client: c, Supplier: supplier, LineID: line.ID}
}

// Order creates an undiscounted order of parts and labor on the book's line.
func (e *Env) Order(t testing.TB, b Book, parts, labor string) serviceorderdomain.ServiceOrder {
	t.Helper()
	lineID := b.LineID
	cmd := serviceorderdomain.CreateOrderCommand{
		ClientID:     b.Client.ID,
		SupplierID:   b.Supplier.ID,
		VehiclePlate: "ABC1D23",
		GrossParts:   testkit.D(parts),
		GrossLabor:   testkit.D(labor),
	}
	if cmd.GrossParts.IsPositive() {
		cmd.PartsLineID = &lineID
	}
	if cmd.GrossLabor.IsPositive() {
		cmd.LaborLineID = &lineID
	}
	order, err := e.Orders.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)
	return order
}

// SupplierInvoice bills orders to the book's supplier for March 2026.
func (e *Env) SupplierInvoice(t testing.TB, b Book, timing partydomain.PaymentTiming, orders ...serviceorderdomain.ServiceOrder) invoicedomain.Invoice {
	t.Helper()
	inv, err := e.Invoices.CreateInvoice(context.Background(), Command(invoicedomain.TypeSupplier, b.Supplier.ID, timing, orders...))
	require.NoError(t, err)
	return inv
}

func Command(typ invoicedomain.Type, counterpart snowflake.ID, timing partydomain.PaymentTiming, orders ...serviceorderdomain.ServiceOrder) invoicedomain.CreateInvoiceCommand {
	ids := make([]snowflake.ID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return invoicedomain.CreateInvoiceCommand{
		Type:          typ,
		CounterpartID: counterpart,
		OrderIDs:      ids,
		PeriodStart:   PeriodStart,
		PeriodEnd:     PeriodEnd,
		PaymentTiming: timing,
	}
}
