package fleet

import (
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/fanout"
	"github.com/oursky/pi-fleet-manager/pkg/kv"
	"github.com/oursky/pi-fleet-manager/pkg/utils/defaults"
	"github.com/oursky/pi-fleet-manager/pkg/utils/tomltypes"
)

type Config struct {
	MaxConcurrency  *int                `toml:"maxConcurrency,omitempty" validate:"omitempty,min=1"`
	RegistryKey     *string             `toml:"registryKey,omitempty" validate:"omitempty,excludesall=/"`
	DisableMonitor  bool                `toml:"disableMonitor"`
	MonitorInterval *tomltypes.Duration `toml:"monitorInterval,omitempty"`
}

func (c *Config) GetMaxConcurrency() int {
	return defaults.Value(c.MaxConcurrency, fanout.DefaultMaxConcurrency)
}

func (c *Config) GetRegistryKey() string {
	return defaults.Value(c.RegistryKey, "pis_config.json")
}

func (c *Config) GetMonitorInterval() time.Duration {
	return defaults.Value(c.MonitorInterval.Value(), 30*time.Second)
}

var kvNamespace = kv.RegisterNamespace("fleet-registry")
