package core

import (
	"fmt"
	"strings"
	"time"
)

type ReconcilerConfig struct {
	Interval      time.Duration `koanf:"interval" mapstructure:"interval"`
	OracleTimeout time.Duration `koanf:"oracle_timeout" mapstructure:"oracle_timeout"`
	WorkerCount   int           `koanf:"worker_count" mapstructure:"worker_count"`
}

type LinkingConfig struct {
	CodePrefix string `koanf:"code_prefix" mapstructure:"code_prefix"`
	CodeLength int    `koanf:"code_length" mapstructure:"code_length"`
}

type PurchaseConfig struct {
	// URLTemplate renders the storefront page for an asset; it must
	// contain one %d verb for the asset id.
	URLTemplate string `koanf:"url_template" mapstructure:"url_template"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Linking     LinkingConfig    `koanf:"linking" mapstructure:"linking"`
	Purchase    PurchaseConfig   `koanf:"purchase" mapstructure:"purchase"`
	Reconciler  ReconcilerConfig `koanf:"reconciler" mapstructure:"reconciler"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "storefront",
		Linking: LinkingConfig{
			CodePrefix: "DISC-VFY-",
			CodeLength: 4,
		},
		Purchase: PurchaseConfig{
			URLTemplate: "https://www.roblox.com/game-pass/%d",
		},
		Reconciler: ReconcilerConfig{
			Interval:      30 * time.Second,
			OracleTimeout: 8 * time.Second,
			WorkerCount:   4,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Linking.CodePrefix) == "" {
		return fmt.Errorf("core: linking.code_prefix is required")
	}
	if c.Linking.CodeLength <= 0 {
		return fmt.Errorf("core: linking.code_length must be positive")
	}
	if !strings.Contains(c.Purchase.URLTemplate, "%d") {
		return fmt.Errorf("core: purchase.url_template must contain a %%d asset id verb")
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("core: reconciler.interval must be positive")
	}
	if c.Reconciler.OracleTimeout <= 0 {
		return fmt.Errorf("core: reconciler.oracle_timeout must be positive")
	}
	if c.Reconciler.OracleTimeout >= c.Reconciler.Interval {
		return fmt.Errorf("core: reconciler.oracle_timeout must be shorter than reconciler.interval")
	}
	if c.Reconciler.WorkerCount <= 0 {
		return fmt.Errorf("core: reconciler.worker_count must be positive")
	}
	return nil
}
