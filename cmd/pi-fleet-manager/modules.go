package main

import (
	"fmt"
	"net/http"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/api"
	"github.com/oursky/pi-fleet-manager/pkg/cmd"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/kv"
	"github.com/oursky/pi-fleet-manager/pkg/slack"
	"github.com/oursky/pi-fleet-manager/pkg/utils/defaults"
	"github.com/oursky/pi-fleet-manager/pkg/utils/ratelimit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func initModules(logger *zap.Logger, config *Config) ([]cmd.Module, error) {
	registry := prometheus.NewPedanticRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	limit := rate.Inf
	if config.Agent.RPS != nil {
		limit = rate.Limit(*config.Agent.RPS)
	}
	// timeouts are applied per call by the agent client
	client := &http.Client{
		Transport: ratelimit.NewTransport(
			http.DefaultTransport,
			limit,
			defaults.Value(config.Agent.Burst, config.Fleet.GetMaxConcurrency()),
		),
	}

	var modules []cmd.Module

	store, err := kv.NewStore(logger, &config.Store)
	if err != nil {
		return nil, fmt.Errorf("cannot setup store: %w", err)
	}
	modules = append(modules, store)

	agents := fleet.NewRegistry(logger, &config.Fleet, store)
	modules = append(modules, agents)

	service := fleet.NewService(
		logger,
		&config.Fleet,
		agents,
		agent.NewClient(logger, &config.Agent, client),
		registry,
	)

	monitor := fleet.NewMonitor(logger, &config.Fleet, service, registry)
	modules = append(modules, monitor)

	if config.Slack.Enabled && config.Fleet.DisableMonitor {
		logger.Warn("slack notifications need the monitor; notifier will stay idle")
	}
	notifier := slack.NewNotifier(logger, &config.Slack, monitor)
	modules = append(modules, notifier)

	server := api.NewServer(logger, &config.API, agents, service, registry)
	modules = append(modules, server)

	return modules, nil
}
