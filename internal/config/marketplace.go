package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MarketplaceConfig carries tunables that may change without a restart.
type MarketplaceConfig struct {
	DefaultPageSize       int `mapstructure:"defaultPageSize"`
	MaxPageSize           int `mapstructure:"maxPageSize"`
	BookingCreatePerMin   int `mapstructure:"bookingCreatePerMin"`
	NotificationQueueSize int `mapstructure:"notificationQueueSize"`
	NotificationWorkers   int `mapstructure:"notificationWorkers"`
}

func DefaultMarketplaceConfig() MarketplaceConfig {
	return MarketplaceConfig{
		DefaultPageSize:       10,
		MaxPageSize:           100,
		BookingCreatePerMin:   30,
		NotificationQueueSize: 1024,
		NotificationWorkers:   4,
	}
}

type MarketplaceConfigHolder struct {
	current atomic.Value // holds MarketplaceConfig
}

// NewStaticMarketplaceConfigHolder returns a holder that never reloads.
func NewStaticMarketplaceConfigHolder(cfg MarketplaceConfig) *MarketplaceConfigHolder {
	holder := &MarketplaceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMarketplaceConfigHolder() (*MarketplaceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("marketplace")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/servicehub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SERVICEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMarketplaceConfig()
	v.SetDefault("marketplace.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("marketplace.maxPageSize", defaults.MaxPageSize)
	v.SetDefault("marketplace.bookingCreatePerMin", defaults.BookingCreatePerMin)
	v.SetDefault("marketplace.notificationQueueSize", defaults.NotificationQueueSize)
	v.SetDefault("marketplace.notificationWorkers", defaults.NotificationWorkers)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg MarketplaceConfig
	if err := v.UnmarshalKey("marketplace", &cfg); err != nil {
		return nil, err
	}
	if err := validateMarketplaceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMarketplaceConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MarketplaceConfig
		if err := v.UnmarshalKey("marketplace", &updated); err != nil {
			log.Printf("[marketplace-config] reload failed: %v", err)
			return
		}
		if err := validateMarketplaceConfig(updated); err != nil {
			log.Printf("[marketplace-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[marketplace-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MarketplaceConfigHolder) Get() MarketplaceConfig {
	return h.current.Load().(MarketplaceConfig)
}

func validateMarketplaceConfig(cfg MarketplaceConfig) error {
	if cfg.DefaultPageSize <= 0 {
		return errors.New("marketplace.defaultPageSize must be positive")
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		return errors.New("marketplace.maxPageSize must be >= defaultPageSize")
	}
	if cfg.BookingCreatePerMin < 0 {
		return errors.New("marketplace.bookingCreatePerMin cannot be negative")
	}
	if cfg.NotificationQueueSize <= 0 {
		return errors.New("marketplace.notificationQueueSize must be positive")
	}
	if cfg.NotificationWorkers <= 0 {
		return errors.New("marketplace.notificationWorkers must be positive")
	}
	return nil
}
