package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/backoffice/internal/fee/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var due = time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func defaultConfig() feedomain.FeeConfig {
	return feedomain.FeeConfig{ID: 7, Version: 1, Active: true, OperationalFeeBase: feedomain.FeeBaseNetTotal, Bands: feedomain.DefaultBands()}
}

func single(available string) []Candidate {
	return []Candidate{{InvoiceID: 1, Number: "FAT-000001", DueAt: due, Available: d(available)}}
}

func TestPriceTwentyDaysAhead(t *testing.T) {
	p, err := Price(defaultConfig(), single("5000"), d("1000"), due.AddDate(0, 0, -20))
	require.NoError(t, err)

	assert.Equal(t, 20, p.DaysAhead)
	assert.Equal(t, 8.0, p.FeePct)
	assert.True(t, d("80").Equal(p.DiscountAmount), p.DiscountAmount.String())
	assert.True(t, d("920").Equal(p.NetReceivable), p.NetReceivable.String())
	assert.Equal(t, due, p.ScheduledDate)
	assert.EqualValues(t, 7, p.FeeConfigID)
	require.Len(t, p.Draws, 1)
	assert.True(t, d("1000").Equal(p.Draws[0].Amount))
}

func TestBandByDaysAhead(t *testing.T) {
	cases := []struct {
		days int
		pct  float64
	}{
		{1, 2.5}, {5, 2.5}, {6, 4}, {11, 4}, {12, 6}, {18, 6}, {19, 8}, {24, 8}, {25, 10}, {30, 10},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d days", tc.days), func(t *testing.T) {
			p, err := Price(defaultConfig(), single("100"), d("100"), due.AddDate(0, 0, -tc.days))
			require.NoError(t, err)
			assert.Equal(t, tc.days, p.DaysAhead)
			assert.Equal(t, tc.pct, p.FeePct)
		})
	}

	for _, days := range []int{0, 31, -3} {
		_, err := Price(defaultConfig(), single("100"), d("100"), due.AddDate(0, 0, -days))
		assert.ErrorIs(t, err, ErrInvalidRange, "days %d", days)
	}
}

func TestDaysAheadRoundsUp(t *testing.T) {
	assert.Equal(t, 20, DaysAhead(due, due.AddDate(0, 0, -19).Add(-time.Hour)))
	assert.Equal(t, 1, DaysAhead(due, due.Add(-time.Minute)))
	assert.Equal(t, 0, DaysAhead(due, due))
}

func TestAllocateByAscendingDueDate(t *testing.T) {
	candidates := []Candidate{
		{InvoiceID: 1, Number: "FAT-000001", DueAt: due.AddDate(0, 0, -20), Available: d("300")},
		{InvoiceID: 2, Number: "FAT-000002", DueAt: due.AddDate(0, 0, -25), Available: d("500")},
		{InvoiceID: 3, Number: "FAT-000003", DueAt: due, Available: d("1000")},
		{InvoiceID: 4, Number: "FAT-000004", DueAt: due.AddDate(0, 0, -30), Available: d("0")},
	}

	draws, err := Allocate(candidates, d("900"))
	require.NoError(t, err)
	require.Len(t, draws, 3)
	assert.Equal(t, "FAT-000002", draws[0].Number)
	assert.True(t, d("500").Equal(draws[0].Amount))
	assert.Equal(t, "FAT-000001", draws[1].Number)
	assert.True(t, d("300").Equal(draws[1].Amount))
	assert.Equal(t, "FAT-000003", draws[2].Number)
	assert.True(t, d("100").Equal(draws[2].Amount))
	assert.Equal(t, due, ScheduledDate(draws))

	draws, err = Allocate(candidates, d("400"))
	require.NoError(t, err)
	require.Len(t, draws, 1)
	assert.Equal(t, "FAT-000002", draws[0].Number)
	assert.Equal(t, due.AddDate(0, 0, -25), ScheduledDate(draws))
}

func TestAllocateInsufficient(t *testing.T) {
	_, err := Allocate(single("999.99"), d("1000"))
	assert.ErrorIs(t, err, ErrInsufficientPendingAmount)

	_, err = Allocate(nil, d("1"))
	assert.ErrorIs(t, err, ErrInsufficientPendingAmount)

	_, err = Price(defaultConfig(), single("10"), decimal.Zero, due.AddDate(0, 0, -3))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusApproved}:  true,
		{StatusPending, StatusRejected}:  true,
		{StatusPending, StatusCancelled}: true,
		{StatusApproved, StatusPaid}:     true,
	}
	now := due
	for _, from := range all {
		for _, to := range all {
			a := AdvanceRequest{Status: from}
			err := a.Transition(to, now)
			if allowed[[2]Status{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, a.Status)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidStateTransition, "%s -> %s", from, to)
			assert.Equal(t, from, a.Status)
		}
	}

	for _, s := range []Status{StatusRejected, StatusPaid, StatusCancelled} {
		assert.True(t, s.Terminal())
	}
	assert.False(t, StatusPending.Terminal())
}

func TestTransitionStampsTime(t *testing.T) {
	a := AdvanceRequest{Status: StatusPending}
	require.NoError(t, a.Transition(StatusApproved, due))
	require.NotNil(t, a.DecidedAt)
	require.NoError(t, a.Transition(StatusPaid, due.Add(time.Hour)))
	require.NotNil(t, a.PaidAt)
	assert.Equal(t, due.Add(time.Hour), *a.PaidAt)
}
