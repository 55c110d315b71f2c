package fleet

import (
	"context"
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/utils/channels"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MonitorState is the result of one background poll of the whole fleet.
type MonitorState struct {
	Epoch     int64
	UpdatedAt time.Time
	Agents    []agent.StatusOutcome
}

func (s *MonitorState) Lookup(ip string) (*agent.StatusOutcome, bool) {
	for i := range s.Agents {
		if s.Agents[i].IP == ip {
			return &s.Agents[i], true
		}
	}
	return nil, false
}

// Monitor polls the fleet periodically and publishes each result.
type Monitor struct {
	logger   *zap.Logger
	service  *Service
	enabled  bool
	interval time.Duration
	state    *channels.Broadcaster[*MonitorState]
	metrics  *metrics
}

func NewMonitor(logger *zap.Logger, config *Config, service *Service, r prometheus.Registerer) *Monitor {
	m := &Monitor{
		logger:   logger.Named("monitor"),
		service:  service,
		enabled:  !config.DisableMonitor,
		interval: config.GetMonitorInterval(),
		state:    channels.NewBroadcaster[*MonitorState](nil),
	}
	m.metrics = newMetrics(m.state, r)
	return m
}

func (m *Monitor) State() *channels.Broadcaster[*MonitorState] {
	return m.state
}

func (m *Monitor) Start(ctx context.Context, g *errgroup.Group) error {
	if !m.enabled {
		m.logger.Info("monitor disabled")
		return nil
	}

	g.Go(func() error {
		m.run(ctx)
		return nil
	})
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	epoch := int64(1)
	for {
		if state := m.poll(ctx, epoch); state != nil {
			m.state.Publish(state)
			epoch++
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

func (m *Monitor) poll(ctx context.Context, epoch int64) *MonitorState {
	statuses, err := m.service.PollAll(ctx)
	if err != nil {
		m.logger.Warn("failed to poll fleet", zap.Error(err))
		return nil
	}
	if ctx.Err() != nil {
		// shutting down; outcomes are likely cancellations, not real state
		return nil
	}

	online := lo.CountBy(statuses, func(s agent.StatusOutcome) bool { return s.Online })
	m.logger.Info("polled fleet",
		zap.Int64("epoch", epoch),
		zap.Int("count", len(statuses)),
		zap.Int("online", online),
	)

	return &MonitorState{
		Epoch:     epoch,
		UpdatedAt: time.Now(),
		Agents:    statuses,
	}
}
