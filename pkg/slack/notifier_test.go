package slack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/agent"
	"github.com/oursky/pi-fleet-manager/pkg/fleet"
	"github.com/oursky/pi-fleet-manager/pkg/utils/channels"

	"github.com/slack-go/slack"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type fakePoster struct {
	lock     sync.Mutex
	channels []string
	posted   chan struct{}
}

func (p *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	p.lock.Lock()
	p.channels = append(p.channels, channelID)
	p.lock.Unlock()
	p.posted <- struct{}{}
	return channelID, "1", nil
}

type fakeFleet struct {
	state *channels.Broadcaster[*fleet.MonitorState]
}

func (f *fakeFleet) State() *channels.Broadcaster[*fleet.MonitorState] {
	return f.state
}

func state(epoch int64, statuses ...agent.StatusOutcome) *fleet.MonitorState {
	return &fleet.MonitorState{Epoch: epoch, UpdatedAt: time.Now(), Agents: statuses}
}

func status(ip string, online bool) agent.StatusOutcome {
	return agent.StatusOutcome{IP: ip, Name: "Pi " + ip, Online: online, Data: map[string]any{}}
}

func TestTransitionTracker(t *testing.T) {
	Convey("Given a transition tracker", t, func() {
		var tracker transitionTracker

		Convey("the first state only seeds it", func() {
			changes := tracker.observe(state(1, status("10.0.0.5", false)))
			So(changes, ShouldBeEmpty)
		})

		Convey("online and offline flips are reported", func() {
			tracker.observe(state(1, status("10.0.0.5", true), status("10.0.0.6", false)))

			changes := tracker.observe(state(2, status("10.0.0.5", false), status("10.0.0.6", true)))
			So(len(changes), ShouldEqual, 2)
			So(changes[0].agent.IP, ShouldEqual, "10.0.0.5")
			So(changes[0].online, ShouldBeFalse)
			So(changes[1].agent.IP, ShouldEqual, "10.0.0.6")
			So(changes[1].online, ShouldBeTrue)

			So(tracker.observe(state(3, status("10.0.0.5", false), status("10.0.0.6", true))), ShouldBeEmpty)
		})

		Convey("newly added agents are not reported", func() {
			tracker.observe(state(1, status("10.0.0.5", true)))
			changes := tracker.observe(state(2, status("10.0.0.5", true), status("10.0.0.7", false)))
			So(changes, ShouldBeEmpty)
		})

		Convey("removed agents are forgotten", func() {
			tracker.observe(state(1, status("10.0.0.5", true)))
			tracker.observe(state(2))
			So(tracker.online, ShouldBeEmpty)

			changes := tracker.observe(state(3, status("10.0.0.5", false)))
			So(changes, ShouldBeEmpty)
		})
	})
}

func TestNotifier(t *testing.T) {
	Convey("Given a running notifier", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		source := &fakeFleet{state: channels.NewBroadcaster[*fleet.MonitorState](nil)}
		poster := &fakePoster{posted: make(chan struct{}, 8)}
		notifier := &Notifier{
			logger:    zap.NewNop(),
			enabled:   true,
			api:       poster,
			channelID: "C123",
			fleet:     source,
		}

		g, gctx := errgroup.WithContext(ctx)
		So(notifier.Start(gctx, g), ShouldBeNil)
		Reset(func() {
			cancel()
			g.Wait()
		})

		Convey("it posts when an agent goes offline", func() {
			source.state.Publish(state(1, status("10.0.0.5", true)))
			// states are coalesced; let the first one be observed
			time.Sleep(100 * time.Millisecond)
			source.state.Publish(state(2, status("10.0.0.5", false)))

			select {
			case <-poster.posted:
			case <-time.After(2 * time.Second):
			}

			poster.lock.Lock()
			defer poster.lock.Unlock()
			So(poster.channels, ShouldResemble, []string{"C123"})
		})
	})

	Convey("A disabled notifier starts nothing", t, func() {
		notifier := NewNotifier(zap.NewNop(), &Config{Enabled: false}, nil)
		var g errgroup.Group
		So(notifier.Start(context.Background(), &g), ShouldBeNil)
		So(g.Wait(), ShouldBeNil)
	})
}
