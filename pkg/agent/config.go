package agent

import (
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/utils/defaults"
	"github.com/oursky/pi-fleet-manager/pkg/utils/tomltypes"
)

type Config struct {
	Port           *int                `toml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	StatusTimeout  *tomltypes.Duration `toml:"statusTimeout,omitempty"`
	CommandTimeout *tomltypes.Duration `toml:"commandTimeout,omitempty"`
	RPS            *float64            `toml:"rps,omitempty" validate:"omitempty,gt=0"`
	Burst          *int                `toml:"burst,omitempty" validate:"omitempty,min=1"`
}

func (c *Config) GetPort() int {
	return defaults.Value(c.Port, 5000)
}

func (c *Config) GetStatusTimeout() time.Duration {
	return defaults.Value(c.StatusTimeout.Value(), 5*time.Second)
}

// GetCommandTimeout applies to both single and bulk dispatch.
func (c *Config) GetCommandTimeout() time.Duration {
	return defaults.Value(c.CommandTimeout.Value(), 10*time.Second)
}
