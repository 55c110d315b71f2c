package fleet

import (
	"context"
	"fmt"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/fanout"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type AgentClient interface {
	QueryStatus(ctx context.Context, a agent.Agent) agent.StatusOutcome
	SendCommand(ctx context.Context, ip string, cmd agent.Command) agent.CommandOutcome
}

// Service coordinates the registry and the agent client. It holds no state
// of its own between calls.
type Service struct {
	logger         *zap.Logger
	registry       *Registry
	client         AgentClient
	maxConcurrency int
	commands       *prometheus.CounterVec
}

func NewService(logger *zap.Logger, config *Config, registry *Registry, client AgentClient, r prometheus.Registerer) *Service {
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pi_fleet",
		Name:      "command_total",
		Help:      "Number of commands dispatched to agents, by command and result.",
	}, []string{"command", "result"})
	r.MustRegister(commands)

	return &Service{
		logger:         logger.Named("fleet"),
		registry:       registry,
		client:         client,
		maxConcurrency: config.GetMaxConcurrency(),
		commands:       commands,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// PollAll queries every registered agent, returning one outcome per agent in
// registry order.
func (s *Service) PollAll(ctx context.Context) ([]agent.StatusOutcome, error) {
	agents, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := fanout.Run(agents, s.maxConcurrency,
		func(a agent.Agent) agent.StatusOutcome {
			return s.client.QueryStatus(ctx, a)
		},
		func(a agent.Agent, r any) agent.StatusOutcome {
			s.logger.Error("status poll panicked", zap.String("ip", a.IP), zap.Any("panic", r))
			return agent.Offline(a)
		},
	)

	s.logger.Debug("polled agents", zap.Int("count", len(statuses)))
	return statuses, nil
}

// DispatchOne sends cmd to a single agent. The IP does not have to be
// registered.
func (s *Service) DispatchOne(ctx context.Context, ip string, cmd agent.Command) agent.CommandOutcome {
	outcome := s.client.SendCommand(ctx, ip, cmd)
	s.record(cmd, outcome)
	return outcome
}

// DispatchBulk sends cmd to every IP concurrently. The result has one
// outcome per input IP, in input order; duplicates are sent twice.
func (s *Service) DispatchBulk(ctx context.Context, ips []string, cmd agent.Command) []agent.CommandOutcome {
	s.logger.Info("dispatching bulk command",
		zap.String("command", string(cmd.Kind)),
		zap.Int("count", len(ips)),
	)

	outcomes := fanout.Run(ips, s.maxConcurrency,
		func(ip string) agent.CommandOutcome {
			return s.client.SendCommand(ctx, ip, cmd)
		},
		func(ip string, r any) agent.CommandOutcome {
			s.logger.Error("command dispatch panicked", zap.String("ip", ip), zap.Any("panic", r))
			return agent.Failed(ip, fmt.Errorf("internal error: %v", r))
		},
	)

	for _, o := range outcomes {
		s.record(cmd, o)
	}
	return outcomes
}

func (s *Service) record(cmd agent.Command, outcome agent.CommandOutcome) {
	result := "success"
	if !outcome.Success {
		result = "failure"
	}
	s.commands.WithLabelValues(string(cmd.Kind), result).Inc()
}
