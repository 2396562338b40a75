package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PolicyConfig holds operational knobs that may change without a deploy.
// Rate tables are not part of it; those are versioned records in the database.
type PolicyConfig struct {
	DefaultPaymentTermDays int `mapstructure:"defaultPaymentTermDays"`
	CASMaxAttempts         int `mapstructure:"casMaxAttempts"`
	CodeMaxAttempts        int `mapstructure:"codeMaxAttempts"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		DefaultPaymentTermDays: 30,
		CASMaxAttempts:         5,
		CodeMaxAttempts:        3,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(withPolicyDefaults(cfg))
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/backoffice")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	v.SetDefault("policy.defaultPaymentTermDays", defaults.DefaultPaymentTermDays)
	v.SetDefault("policy.casMaxAttempts", defaults.CASMaxAttempts)
	v.SetDefault("policy.codeMaxAttempts", defaults.CodeMaxAttempts)

	configFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		configFound = false
	}

	cfg, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	if configFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePolicy(v)
			if err != nil {
				log.Warn("policy reload failed", zap.Error(err))
				return
			}
			if err := validatePolicyConfig(updated); err != nil {
				log.Warn("invalid policy ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("policy reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// Get returns the current snapshot. Callers read it once per operation.
func (h *PolicyHolder) Get() PolicyConfig {
	if h == nil {
		return DefaultPolicyConfig()
	}
	return h.current.Load().(PolicyConfig)
}

// decodePolicy reads the merged settings so keys missing from the file keep
// their defaults.
func decodePolicy(v *viper.Viper) (PolicyConfig, error) {
	var file struct {
		Policy PolicyConfig `mapstructure:"policy"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return PolicyConfig{}, err
	}
	return file.Policy, nil
}

func withPolicyDefaults(cfg PolicyConfig) PolicyConfig {
	defaults := DefaultPolicyConfig()
	if cfg.DefaultPaymentTermDays <= 0 {
		cfg.DefaultPaymentTermDays = defaults.DefaultPaymentTermDays
	}
	if cfg.CASMaxAttempts <= 0 {
		cfg.CASMaxAttempts = defaults.CASMaxAttempts
	}
	if cfg.CodeMaxAttempts <= 0 {
		cfg.CodeMaxAttempts = defaults.CodeMaxAttempts
	}
	return cfg
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if cfg.DefaultPaymentTermDays <= 0 {
		return errors.New("policy.defaultPaymentTermDays must be positive")
	}
	if cfg.CASMaxAttempts <= 0 {
		return errors.New("policy.casMaxAttempts must be positive")
	}
	if cfg.CodeMaxAttempts <= 0 {
		return errors.New("policy.codeMaxAttempts must be positive")
	}
	return nil
}
