package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/backoffice/internal/advance/domain"
	"github.com/smallbiznis/backoffice/internal/advance/repository"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/locking"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/smallbiznis/backoffice/internal/testkit"
	"github.com/smallbiznis/backoffice/internal/testkit/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d = testkit.D

// dueAt is when March invoices of a client on default terms fall due.
var dueAt = billing.PeriodEnd.AddDate(0, 0, 30)

type fixture struct {
	env  *billing.Env
	svc  domain.Service
	book billing.Book
	// invoice is a 2000 net supplier invoice with 1740 due.
	invoice invoicedomain.Invoice
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := billing.New(t, testkit.WithModels(&domain.AdvanceRequest{}, &domain.Allocation{}))
	env.PublishRates(t, feedomain.FeeBaseNetTotal)

	book := env.Book(t,
		partydomain.CreateClientRequest{FeeMode: partydomain.FeeModeVariable},
		partydomain.CreateSupplierRequest{Email: "shop@supplier.test"},
	)
	inv := env.SupplierInvoice(t, book, partydomain.TimingAfterClosing, env.Order(t, book, "2000", "0"))
	require.True(t, d("1740").Equal(inv.AmountDue), inv.AmountDue.String())
	require.Equal(t, dueAt, inv.DueAt)

	svc := NewService(Params{
		DB:       env.DB,
		Log:      env.Log,
		GenID:    env.Node,
		Repo:     repository.Provide(),
		Invoices: env.InvoiceRepo,
		Parties:  env.Parties,
		Fees:     env.Fees,
		Locker:   locking.NewLocalLocker(),
		Clock:    env.Clock,
	})
	return fixture{env: env, svc: svc, book: book, invoice: inv}
}

func (f fixture) request(t *testing.T, amount string, daysAhead int) domain.AdvanceRequest {
	t.Helper()
	adv, err := f.svc.CreateAdvanceRequest(context.Background(), f.command(amount, daysAhead))
	require.NoError(t, err)
	return adv
}

func (f fixture) command(amount string, daysAhead int) domain.CreateAdvanceCommand {
	return domain.CreateAdvanceCommand{
		SupplierID:      f.book.Supplier.ID,
		RequestedAmount: d(amount),
		DesiredDate:     dueAt.AddDate(0, 0, -daysAhead),
	}
}

func TestPreviewTwentyDaysAhead(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.CalculateAdvancePreview(context.Background(), domain.PreviewCommand{
		SupplierID:      f.book.Supplier.ID,
		RequestedAmount: d("1000"),
		DesiredDate:     dueAt.AddDate(0, 0, -20),
	})
	require.NoError(t, err)

	assert.Equal(t, 20, p.DaysAhead)
	assert.Equal(t, 8.0, p.FeePct)
	assert.True(t, d("80").Equal(p.DiscountAmount))
	assert.True(t, d("920").Equal(p.NetReceivable))
	assert.True(t, d("1740").Equal(p.EligibleAmount))
	require.Len(t, p.Draws, 1)
	assert.Equal(t, f.invoice.Number, p.Draws[0].Number)

	list, err := f.svc.ListAdvances(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list, "preview stores nothing")
}

func TestPreviewRejectsDaysOutsideBands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, days := range []int{0, 31, -1} {
		_, err := f.svc.CalculateAdvancePreview(ctx, domain.PreviewCommand{
			SupplierID:      f.book.Supplier.ID,
			RequestedAmount: d("100"),
			DesiredDate:     dueAt.AddDate(0, 0, -days),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRange, "days %d", days)
		assert.ErrorIs(t, err, feedomain.ErrInvalidRange)
	}
}

func TestCreateHoldsInvoiceAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, "1000", 20)
	assert.Equal(t, domain.StatusPending, first.Status)
	require.Len(t, first.Allocations, 1)
	assert.Equal(t, f.invoice.ID, first.Allocations[0].InvoiceID)

	// 1740 due, 1000 held.
	_, err := f.svc.CreateAdvanceRequest(ctx, f.command("800", 20))
	assert.ErrorIs(t, err, domain.ErrInsufficientPendingAmount)

	second := f.request(t, "740", 3)
	assert.Equal(t, 2.5, second.FeePct)

	_, err = f.svc.CancelAdvance(ctx, domain.CancelAdvanceCommand{ID: first.ID, SupplierID: f.book.Supplier.ID})
	require.NoError(t, err)
	f.request(t, "800", 20)
}

func TestConcurrentRequestsDoNotOverdraw(t *testing.T) {
	f := newFixture(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateAdvanceRequest(context.Background(), f.command("1000", 10))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientPendingAmount):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
}

func TestApproveAndPayWritesBackToInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adv := f.request(t, "1000", 20)

	_, err := f.svc.PayAdvance(ctx, domain.PayAdvanceCommand{ID: adv.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition, "pending cannot be paid")

	adv, err = f.svc.ApproveAdvance(ctx, domain.ApproveAdvanceCommand{ID: adv.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, adv.Status)
	assert.NotNil(t, adv.DecidedAt)

	adv, err = f.svc.PayAdvance(ctx, domain.PayAdvanceCommand{ID: adv.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, adv.Status)
	assert.NotNil(t, adv.PaidAt)

	inv, err := f.env.Invoices.GetInvoice(ctx, f.invoice.ID)
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(inv.AmountAdvanced))
	assert.True(t, d("1000").Equal(inv.AmountPaid))
	assert.True(t, d("740").Equal(inv.AmountRemaining))
	assert.Equal(t, invoicedomain.StatusPartiallyPaid, inv.Status)

	_, err = f.svc.PayAdvance(ctx, domain.PayAdvanceCommand{ID: adv.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	// The paid draw is no longer a hold; what is left is the remaining amount.
	p, err := f.svc.CalculateAdvancePreview(ctx, domain.PreviewCommand{
		SupplierID: f.book.Supplier.ID, RequestedAmount: d("740"), DesiredDate: dueAt.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	assert.True(t, d("740").Equal(p.EligibleAmount))
}

func TestPayFailsWhenInvoiceWithdrawn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adv := f.request(t, "500", 10)
	_, err := f.svc.ApproveAdvance(ctx, domain.ApproveAdvanceCommand{ID: adv.ID})
	require.NoError(t, err)

	_, err = f.env.Invoices.DeactivateInvoice(ctx, invoicedomain.DeactivateInvoiceCommand{InvoiceID: f.invoice.ID})
	require.NoError(t, err)

	_, err = f.svc.PayAdvance(ctx, domain.PayAdvanceCommand{ID: adv.ID})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceInactive)

	stored, err := f.svc.GetAdvance(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status, "nothing written")
}

func TestRejectAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rejected := f.request(t, "100", 5)
	rejected, err := f.svc.RejectAdvance(ctx, domain.RejectAdvanceCommand{ID: rejected.ID, Reason: " limit reached "})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "limit reached", rejected.RejectReason)

	_, err = f.svc.ApproveAdvance(ctx, domain.ApproveAdvanceCommand{ID: rejected.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = f.svc.CancelAdvance(ctx, domain.CancelAdvanceCommand{ID: rejected.ID, SupplierID: f.book.Supplier.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	pending := f.request(t, "100", 5)
	other := f.env.Supplier(t, partydomain.CreateSupplierRequest{})
	_, err = f.svc.CancelAdvance(ctx, domain.CancelAdvanceCommand{ID: pending.ID, SupplierID: other.ID})
	assert.ErrorIs(t, err, domain.ErrNotRequester)

	approved, err := f.svc.ApproveAdvance(ctx, domain.ApproveAdvanceCommand{ID: pending.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelAdvance(ctx, domain.CancelAdvanceCommand{ID: approved.ID, SupplierID: f.book.Supplier.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.svc.ApproveAdvance(ctx, domain.ApproveAdvanceCommand{ID: f.env.Node.Generate()})
	assert.ErrorIs(t, err, domain.ErrAdvanceNotFound)

	list, err := f.svc.ListAdvances(ctx, domain.ListFilter{SupplierID: f.book.Supplier.ID, Status: domain.StatusRejected})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rejected.ID, list[0].ID)
}

func TestFlatFeeClientInvoicesExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flat := f.env.ClientBook(t, f.book.Supplier, partydomain.CreateClientRequest{
		FeeMode:     partydomain.FeeModeFlat,
		FlatFeeRate: 5,
	})
	flatInv := f.env.SupplierInvoice(t, flat, "", f.env.Order(t, flat, "5000", "0"))
	require.True(t, d("4750").Equal(flatInv.AmountDue))

	p, err := f.svc.CalculateAdvancePreview(ctx, domain.PreviewCommand{
		SupplierID: f.book.Supplier.ID, RequestedAmount: d("1000"), DesiredDate: dueAt.AddDate(0, 0, -8),
	})
	require.NoError(t, err)
	assert.True(t, d("1740").Equal(p.EligibleAmount))
	require.Len(t, p.Excluded, 1)
	assert.Equal(t, flatInv.Number, p.Excluded[0].Number)
	assert.Equal(t, domain.ExcludedFlatFeeClient, p.Excluded[0].Reason)

	_, err = f.svc.CreateAdvanceRequest(ctx, f.command("2000", 8))
	assert.ErrorIs(t, err, domain.ErrInsufficientPendingAmount)

	adv := f.request(t, "1000", 8)
	assert.Equal(t, 4.0, adv.FeePct)
	assert.NotEmpty(t, adv.Metadata["excluded_invoices"])
}

func TestDrawSpansInvoicesByDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A client on 20 day terms has an earlier due date.
	early := f.env.ClientBook(t, f.book.Supplier, partydomain.CreateClientRequest{
		FeeMode:         partydomain.FeeModeVariable,
		PaymentTermDays: 20,
	})
	earlyInv := f.env.SupplierInvoice(t, early, partydomain.TimingDeferred, f.env.Order(t, early, "600", "0"))
	require.Equal(t, billing.PeriodEnd.AddDate(0, 0, 20), earlyInv.DueAt)

	adv, err := f.svc.CreateAdvanceRequest(ctx, domain.CreateAdvanceCommand{
		SupplierID:      f.book.Supplier.ID,
		RequestedAmount: d("1000"),
		DesiredDate:     dueAt.Add(-12 * 24 * time.Hour),
	})
	require.NoError(t, err)

	require.Len(t, adv.Allocations, 2)
	assert.Equal(t, earlyInv.ID, adv.Allocations[0].InvoiceID)
	assert.True(t, d("600").Equal(adv.Allocations[0].Amount))
	assert.Equal(t, f.invoice.ID, adv.Allocations[1].InvoiceID)
	assert.True(t, d("400").Equal(adv.Allocations[1].Amount))
	assert.Equal(t, dueAt, adv.ScheduledDate)
	assert.Equal(t, 12, adv.DaysAhead)
	assert.Equal(t, 6.0, adv.FeePct)
}
