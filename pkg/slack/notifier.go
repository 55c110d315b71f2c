package slack

import (
	"context"
	"fmt"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/utils/channels"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackutilsx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type FleetState interface {
	State() *channels.Broadcaster[*fleet.MonitorState]
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts to a Slack channel whenever an agent goes offline or comes
// back online.
type Notifier struct {
	logger    *zap.Logger
	enabled   bool
	api       poster
	channelID string
	fleet     FleetState
}

func NewNotifier(logger *zap.Logger, config *Config, fleet FleetState) *Notifier {
	if !config.Enabled {
		return &Notifier{enabled: false}
	}

	logger = logger.Named("slack-notifier")
	return &Notifier{
		logger:    logger,
		enabled:   true,
		api:       slack.New(config.BotToken, slack.OptionLog(zap.NewStdLog(logger))),
		channelID: config.ChannelID,
		fleet:     fleet,
	}
}

func (n *Notifier) Start(ctx context.Context, g *errgroup.Group) error {
	if !n.enabled {
		return nil
	}

	sub := channels.NewSubscriber(ctx, n.fleet.State())
	g.Go(func() error {
		n.run(ctx, sub)
		return nil
	})
	return nil
}

func (n *Notifier) run(ctx context.Context, sub *channels.Subscriber[*fleet.MonitorState]) {
	var tracker transitionTracker

	for {
		wait := sub.Wait()
		if wait == nil {
			return
		}

		select {
		case <-ctx.Done():
			return

		case s := <-wait:
			if s == nil {
				continue
			}
			n.logger.Debug("new fleet state", zap.Int64("epoch", s.Epoch), zap.Int("count", len(s.Agents)))
			for _, t := range tracker.observe(s) {
				n.notify(ctx, t)
			}
		}
	}
}

type transition struct {
	agent  agent.StatusOutcome
	online bool
}

// transitionTracker remembers the last known online flag per agent. The
// first observed state only seeds it.
type transitionTracker struct {
	seeded bool
	online map[string]bool
}

func (t *transitionTracker) observe(s *fleet.MonitorState) []transition {
	if t.online == nil {
		t.online = make(map[string]bool)
	}

	var changes []transition
	seen := make(map[string]struct{}, len(s.Agents))
	for _, a := range s.Agents {
		seen[a.IP] = struct{}{}
		prev, known := t.online[a.IP]
		if t.seeded && known && prev != a.Online {
			changes = append(changes, transition{agent: a, online: a.Online})
		}
		t.online[a.IP] = a.Online
	}

	for ip := range t.online {
		if _, ok := seen[ip]; !ok {
			delete(t.online, ip)
		}
	}

	t.seeded = true
	return changes
}

func (n *Notifier) notify(ctx context.Context, t transition) {
	const colorGreen = "#16a34a" // green-600
	const colorRed = "#7f1d1d"   // red-900

	msg := fmt.Sprintf("%s is offline.", t.agent.Name)
	color := colorRed
	if t.online {
		msg = fmt.Sprintf("%s is back online.", t.agent.Name)
		color = colorGreen
	}

	n.logger.Info("agent status changed",
		zap.String("ip", t.agent.IP),
		zap.Bool("online", t.online),
	)

	attachment := slack.Attachment{
		Color: color,
		Title: msg,
		Fields: []slack.AttachmentField{{
			Title: "IP",
			Value: slackutilsx.EscapeMessage(t.agent.IP),
			Short: true,
		}},
	}
	_, _, err := n.api.PostMessageContext(ctx, n.channelID, slack.MsgOptionAttachments(attachment))
	if err != nil {
		n.logger.Warn("failed to send message",
			zap.Error(err),
			zap.String("channelID", n.channelID),
		)
	}
}
