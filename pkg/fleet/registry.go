package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/kv"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAgentExists   = errors.New("agent already exists")
	ErrAgentNotFound = errors.New("agent not found")
)

// Registry is the durable list of managed agents. The whole list is stored
// as one JSON document; every call re-reads it.
type Registry struct {
	logger *zap.Logger
	store  kv.Store
	key    string
	lock   *sync.RWMutex
}

func NewRegistry(logger *zap.Logger, config *Config, store kv.Store) *Registry {
	return &Registry{
		logger: logger.Named("registry"),
		store:  store,
		key:    config.GetRegistryKey(),
		lock:   new(sync.RWMutex),
	}
}

// Start creates an empty document on first run.
func (r *Registry) Start(ctx context.Context, g *errgroup.Group) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	doc, err := r.store.Get(ctx, kvNamespace, r.key)
	if err != nil {
		return fmt.Errorf("cannot read registry: %w", err)
	}
	if strings.TrimSpace(doc) != "" {
		agents, err := decodeAgents(doc)
		if err != nil {
			return err
		}
		r.logger.Info("registry loaded", zap.Int("count", len(agents)))
		return nil
	}

	r.logger.Info("initializing empty registry", zap.String("key", r.key))
	return r.save(ctx, []agent.Agent{})
}

func decodeAgents(doc string) ([]agent.Agent, error) {
	agents := []agent.Agent{}
	if strings.TrimSpace(doc) == "" {
		return agents, nil
	}
	if err := json.Unmarshal([]byte(doc), &agents); err != nil {
		return nil, fmt.Errorf("malformed registry document: %w", err)
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	return agents, nil
}

func (r *Registry) load(ctx context.Context) ([]agent.Agent, error) {
	doc, err := r.store.Get(ctx, kvNamespace, r.key)
	if err != nil {
		return nil, fmt.Errorf("cannot read registry: %w", err)
	}
	return decodeAgents(doc)
}

func (r *Registry) save(ctx context.Context, agents []agent.Agent) error {
	doc, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, kvNamespace, r.key, string(doc)); err != nil {
		return fmt.Errorf("cannot write registry: %w", err)
	}
	return nil
}

func (r *Registry) List(ctx context.Context) ([]agent.Agent, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.load(ctx)
}

// Add appends a new agent. An absent or blank name defaults to the IP.
func (r *Registry) Add(ctx context.Context, ip string, name *string) ([]agent.Agent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	agents, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	if lo.ContainsBy(agents, func(a agent.Agent) bool { return a.IP == ip }) {
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, ip)
	}

	a := agent.Agent{IP: ip, Name: ip}
	if name != nil && strings.TrimSpace(*name) != "" {
		a.Name = *name
	}
	agents = append(agents, a)

	if err := r.save(ctx, agents); err != nil {
		return nil, err
	}
	r.logger.Info("agent added", zap.String("ip", a.IP), zap.String("name", a.Name))
	return agents, nil
}

// Remove deletes the agent with the given IP, if any.
func (r *Registry) Remove(ctx context.Context, ip string) ([]agent.Agent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	agents, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	remaining := lo.Reject(agents, func(a agent.Agent, _ int) bool { return a.IP == ip })
	if err := r.save(ctx, remaining); err != nil {
		return nil, err
	}
	if len(remaining) != len(agents) {
		r.logger.Info("agent removed", zap.String("ip", ip))
	}
	return remaining, nil
}

func (r *Registry) Rename(ctx context.Context, ip string, name string) (*agent.Agent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	agents, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	_, i, ok := lo.FindIndexOf(agents, func(a agent.Agent) bool { return a.IP == ip })
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, ip)
	}
	agents[i].Name = name

	if err := r.save(ctx, agents); err != nil {
		return nil, err
	}
	r.logger.Info("agent renamed", zap.String("ip", ip), zap.String("name", name))
	renamed := agents[i]
	return &renamed, nil
}
