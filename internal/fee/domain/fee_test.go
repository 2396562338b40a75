package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	partydomain "github.com/smallbiznis/backoffice/internal/party/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestDefaultBandLookup(t *testing.T) {
	cfg := FeeConfig{Bands: DefaultBands()}

	cases := map[int]float64{1: 2.5, 5: 2.5, 6: 4, 11: 4, 12: 6, 18: 6, 19: 8, 20: 8, 24: 8, 25: 10, 30: 10}
	for days, want := range cases {
		band, err := cfg.BandFor(days)
		require.NoError(t, err, "days=%d", days)
		assert.Equal(t, want, band.FeePct, "days=%d", days)
	}

	for _, days := range []int{0, 31, -3} {
		_, err := cfg.BandFor(days)
		assert.ErrorIs(t, err, ErrInvalidRange, "days=%d", days)
	}
}

func TestBandGap(t *testing.T) {
	cfg := FeeConfig{Bands: []AdvanceBand{{MinDays: 1, MaxDays: 10, FeePct: 3}}}
	_, err := cfg.BandFor(15)
	assert.ErrorIs(t, err, ErrBandMissing)
}

func TestValidateBands(t *testing.T) {
	require.NoError(t, ValidateBands(DefaultBands()))
	assert.ErrorIs(t, ValidateBands(nil), ErrNoBands)
	assert.ErrorIs(t, ValidateBands([]AdvanceBand{{MinDays: 1, MaxDays: 10}, {MinDays: 10, MaxDays: 20}}), ErrInvalidBand)
	assert.ErrorIs(t, ValidateBands([]AdvanceBand{{MinDays: 0, MaxDays: 5}}), ErrInvalidBand)
	assert.ErrorIs(t, ValidateBands([]AdvanceBand{{MinDays: 20, MaxDays: 31}}), ErrInvalidBand)
}

func TestAdvanceDiscount(t *testing.T) {
	cfg := FeeConfig{Bands: DefaultBands()}
	band, err := cfg.BandFor(20)
	require.NoError(t, err)

	discount, net := AdvanceDiscount(d("1000"), band.FeePct)
	assert.True(t, discount.Equal(d("80")), discount.String())
	assert.True(t, net.Equal(d("920")), net.String())
}

func TestOperationalFeeModes(t *testing.T) {
	net := d("1000")
	tax := decimal.Zero

	flat := partydomain.Client{FeeMode: partydomain.FeeModeFlat, FlatFeeRate: 5}
	fee, err := ComputeOperationalFee(flat, "", net, tax, FeeBaseNetTotal)
	require.NoError(t, err)
	assert.True(t, fee.Amount.Equal(d("50")))

	variable := partydomain.Client{FeeMode: partydomain.FeeModeVariable}
	for timing, want := range map[partydomain.PaymentTiming]string{
		partydomain.TimingUpfront:      "150",
		partydomain.TimingAfterClosing: "130",
		partydomain.TimingDeferred:     "0",
	} {
		fee, err := ComputeOperationalFee(variable, timing, net, tax, FeeBaseNetTotal)
		require.NoError(t, err)
		assert.True(t, fee.Amount.Equal(d(want)), "%s: %s", timing, fee.Amount)
	}

	custom := 9.5
	variable.UpfrontRate = &custom
	fee, err = ComputeOperationalFee(variable, partydomain.TimingUpfront, net, tax, FeeBaseNetTotal)
	require.NoError(t, err)
	assert.True(t, fee.Amount.Equal(d("95")))

	_, err = ComputeOperationalFee(variable, "", net, tax, FeeBaseNetTotal)
	assert.ErrorIs(t, err, ErrPaymentTimingRequired)

	none := partydomain.Client{FeeMode: partydomain.FeeModeNone}
	fee, err = ComputeOperationalFee(none, partydomain.TimingUpfront, net, tax, FeeBaseNetTotal)
	require.NoError(t, err)
	assert.True(t, fee.Amount.IsZero())
}

// The fee base decides whether withheld tax is subtracted before the fee
// is charged. Both modes are pinned here.
func TestOperationalFeeBaseModes(t *testing.T) {
	client := partydomain.Client{FeeMode: partydomain.FeeModeVariable}
	net := d("1000")
	tax := d("58.50")

	onNet, err := ComputeOperationalFee(client, partydomain.TimingAfterClosing, net, tax, FeeBaseNetTotal)
	require.NoError(t, err)
	assert.True(t, onNet.BaseAmt.Equal(d("1000")))
	assert.True(t, onNet.Amount.Equal(d("130")), onNet.Amount.String())
	assert.True(t, net.Sub(tax).Sub(onNet.Amount).Equal(d("811.50")))

	afterTax, err := ComputeOperationalFee(client, partydomain.TimingAfterClosing, net, tax, FeeBaseAfterTax)
	require.NoError(t, err)
	assert.True(t, afterTax.BaseAmt.Equal(d("941.50")))
	assert.True(t, afterTax.Amount.Equal(d("122.395")), afterTax.Amount.String())
	assert.True(t, net.Sub(tax).Sub(afterTax.Amount).Equal(d("819.105")))

	_, err = ComputeOperationalFee(client, partydomain.TimingAfterClosing, net, tax, "gross")
	assert.ErrorIs(t, err, ErrInvalidFeeBase)
}
