package kv

import (
	"fmt"

	"github.com/oursky/pi-fleet-manager/pkg/cmd"
	"github.com/oursky/pi-fleet-manager/pkg/utils/defaults"

	"go.uber.org/zap"
)

type Type string

const (
	TypeFS            Type = "FS"
	TypeInMemory      Type = "InMemory"
	TypeKubeConfigMap Type = "KubeConfigMap"
)

type Config struct {
	Type          Type    `toml:"type,omitempty" validate:"omitempty,oneof=FS InMemory KubeConfigMap"`
	Dir           *string `toml:"dir,omitempty"`
	KubeNamespace string  `toml:"kubeNamespace,omitempty" validate:"required_if=Type KubeConfigMap"`
}

func (c *Config) GetType() Type {
	if c.Type == "" {
		return TypeFS
	}
	return c.Type
}

func (c *Config) GetDir() string {
	return defaults.Value(c.Dir, "data")
}

// ModuleStore is a Store that also participates in the process lifecycle.
type ModuleStore interface {
	Store
	cmd.Module
}

func NewStore(logger *zap.Logger, config *Config) (ModuleStore, error) {
	switch config.GetType() {
	case TypeFS:
		return NewFSStore(logger, config.GetDir()), nil

	case TypeInMemory:
		return NewInMemoryStore(), nil

	case TypeKubeConfigMap:
		return NewKubeConfigMapStore(logger, config.KubeNamespace)
	}
	return nil, fmt.Errorf("invalid kv store type: %s", config.Type)
}
