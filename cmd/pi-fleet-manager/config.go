package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/api"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/kv"
	"github.com/oursky/pi-fleet-manager/pkg/slack"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Agent agent.Config `toml:"agent"`
	Fleet fleet.Config `toml:"fleet"`
	Store kv.Config    `toml:"store"`
	Slack slack.Config `toml:"slack"`
	API   api.Config   `toml:"api"`
}

// NewConfig loads the TOML config at path. An empty path gives the
// defaults.
func NewConfig(path string) (*Config, error) {
	var config Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
