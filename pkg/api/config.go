package api

import (
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/utils/defaults"
	"github.com/oursky/pi-fleet-manager/pkg/utils/tomltypes"
)

type Config struct {
	Addr         *string             `toml:"addr,omitempty" validate:"omitempty,tcp_addr"`
	WriteTimeout *tomltypes.Duration `toml:"writeTimeout,omitempty"`
}

func (c *Config) GetAddr() string {
	return defaults.Value(c.Addr, "0.0.0.0:8080")
}

// GetWriteTimeout bounds a whole response, so it has to cover a bulk
// command across the fleet.
func (c *Config) GetWriteTimeout() time.Duration {
	return defaults.Value(c.WriteTimeout.Value(), 2*time.Minute)
}
