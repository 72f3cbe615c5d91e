package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig is the hot-reloadable platform pricing policy.
type PricingConfig struct {
	// FeeRate is the platform fee in percent of the media price.
	FeeRate        int64 `mapstructure:"feeRate"`
	MinPrice       int64 `mapstructure:"minPrice"`
	MaxPrice       int64 `mapstructure:"maxPrice"`
	MinUploadBytes int64 `mapstructure:"minUploadBytes"`
	MaxUploadBytes int64 `mapstructure:"maxUploadBytes"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		FeeRate:        10,
		MinPrice:       500,
		MaxPrice:       50000,
		MinUploadBytes: 10 * 1024,
		MaxUploadBytes: 300 * 1024 * 1024,
	}
}

// Fee returns the platform fee and the creator payout for price.
func (c PricingConfig) Fee(price int64) (fee int64, payout int64) {
	fee = roundPercent(price, c.FeeRate)
	return fee, price - fee
}

// roundPercent computes round(amount*rate/100), halves away from zero.
func roundPercent(amount, rate int64) int64 {
	product := amount * rate
	if product >= 0 {
		return (product + 50) / 100
	}
	return -((-product + 50) / 100)
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingHolder returns a holder that never reloads.
func NewStaticPricingHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder(log *zap.Logger) (*PricingConfigHolder, error) {
	log = log.Named("config.pricing")
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/privatedrops/config")
	v.AddConfigPath("/etc/privatedrops")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PRIVATEDROPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.feeRate", defaults.FeeRate)
	v.SetDefault("pricing.minPrice", defaults.MinPrice)
	v.SetDefault("pricing.maxPrice", defaults.MaxPrice)
	v.SetDefault("pricing.minUploadBytes", defaults.MinUploadBytes)
	v.SetDefault("pricing.maxUploadBytes", defaults.MaxUploadBytes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Warn("pricing reload failed", zap.Error(err))
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Warn("invalid pricing ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing reloaded", zap.String("file", e.Name), zap.Int64("fee_rate", updated.FeeRate))
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.FeeRate < 0 || cfg.FeeRate > 100 {
		return errors.New("pricing.feeRate must be between 0 and 100")
	}
	if cfg.MinPrice <= 0 || cfg.MaxPrice < cfg.MinPrice {
		return errors.New("pricing.minPrice/maxPrice are inconsistent")
	}
	if cfg.MinUploadBytes < 0 || cfg.MaxUploadBytes <= cfg.MinUploadBytes {
		return errors.New("pricing.minUploadBytes/maxUploadBytes are inconsistent")
	}
	return nil
}
