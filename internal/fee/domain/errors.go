package domain

import "errors"

var (
	ErrConfigurationMissing  = errors.New("fee_configuration_missing")
	ErrInvalidRange          = errors.New("days_ahead_out_of_range")
	ErrBandMissing           = errors.New("advance_band_missing")
	ErrNoBands               = errors.New("advance_bands_required")
	ErrInvalidBand           = errors.New("invalid_advance_band")
	ErrInvalidFeeBase        = errors.New("invalid_fee_base")
	ErrInvalidFeeMode        = errors.New("invalid_fee_mode")
	ErrPaymentTimingRequired = errors.New("payment_timing_required")
	ErrNotFound              = errors.New("fee_config_not_found")
	ErrConcurrentPublish     = errors.New("fee_config_concurrent_publish")
)
