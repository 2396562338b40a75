package domain

import "errors"

var (
	ErrConfigurationMissing = errors.New("tax_configuration_missing")
	ErrUnknownCategory      = errors.New("unknown_tax_category")
	ErrDuplicateCategory    = errors.New("duplicate_tax_category")
	ErrNotFound             = errors.New("tax_config_not_found")
	ErrConcurrentPublish    = errors.New("tax_config_concurrent_publish")
)
