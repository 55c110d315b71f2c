package fleet

import (
	"github.com/oursky/pi-fleet-manager/pkg/utils/channels"
	"github.com/oursky/pi-fleet-manager/pkg/utils/promutil"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	state *channels.Broadcaster[*MonitorState]

	epoch  *promutil.MetricDesc
	online *promutil.MetricDesc
	agents *promutil.MetricDesc
}

func newMetrics(state *channels.Broadcaster[*MonitorState], r prometheus.Registerer) *metrics {
	m := &metrics{
		state: state,

		epoch: promutil.NewMetricDesc(prometheus.Opts{
			Namespace: "pi_fleet",
			Subsystem: "monitor",
			Name:      "epoch",
			Help:      "Number of completed fleet polls.",
		}),
		online: promutil.NewMetricDesc(prometheus.Opts{
			Namespace: "pi_fleet",
			Subsystem: "agent",
			Name:      "online",
			Help:      "Describes whether the agent answered its last status poll.",
		}, "ip", "name"),
		agents: promutil.NewMetricDesc(prometheus.Opts{
			Namespace: "pi_fleet",
			Subsystem: "monitor",
			Name:      "agents",
			Help:      "Number of registered agents at the last poll.",
		}),
	}
	r.MustRegister(m)
	return m
}

func (m *metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.epoch.Desc()
	ch <- m.online.Desc()
	ch <- m.agents.Desc()
}

func (m *metrics) Collect(ch chan<- prometheus.Metric) {
	state := m.state.Value()
	if state == nil {
		return
	}

	ch <- m.epoch.Counter(float64(state.Epoch))
	ch <- m.agents.Gauge(float64(len(state.Agents)))
	for _, a := range state.Agents {
		ch <- m.online.GaugeBool(a.Online, a.IP, a.Name)
	}
}
