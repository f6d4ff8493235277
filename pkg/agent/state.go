package agent

import (
	"context"
	"errors"
	"net/netip"

	"github.com/wxnode/wxnode-go/pkg/persistence"
	"github.com/wxnode/wxnode-go/pkg/publish"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/subscription"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Status is a point-in-time view of the agent.
type Status struct {
	State         State
	Gateway       transport.Endpoint
	Will          *transport.Will
	LoopRunning   bool
	Loop          publish.Config
	LoopStats     publish.Stats
	LastLoopError error
	Subscriptions []subscription.Subscription
	Values        sensor.Values
}

// Status returns the current agent status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	st := Status{
		State:         a.state,
		Gateway:       a.gateway,
		LastLoopError: a.loopErr,
	}
	if a.will != nil {
		w := *a.will
		st.Will = &w
	}
	if a.loop != nil {
		st.LoopRunning = true
		st.Loop = a.loop.Config()
		st.LoopStats = a.loop.Stats()
	}
	a.mu.Unlock()

	st.Subscriptions = a.subs.List()
	st.Values = a.sim.Values()
	return st
}

func (a *Agent) snapshot() *persistence.AgentState {
	st := a.Status()
	out := &persistence.AgentState{
		DeviceID: a.enc.Device(),
		Channels: make(map[string]float64, sensor.NumChannels),
	}
	if st.State == Connected {
		out.Gateway = &persistence.GatewayRecord{Addr: st.Gateway.Addr.String(), Port: st.Gateway.Port}
	}
	if st.Will != nil {
		out.Will = &persistence.WillRecord{Topic: st.Will.Topic, Message: string(st.Will.Message), QoS: uint8(st.Will.QoS)}
	}
	if st.LoopRunning {
		out.Loop = &persistence.LoopRecord{Topic: st.Loop.Topic, QoS: uint8(st.Loop.QoS)}
	}
	for _, s := range st.Subscriptions {
		out.Subscriptions = append(out.Subscriptions, persistence.SubscriptionRecord{Topic: s.Topic.Name, QoS: uint8(s.QoS)})
	}
	for i, v := range st.Values {
		out.Channels[sensor.ChannelID(i).String()] = v
	}
	return out
}

func (a *Agent) persist() {
	if a.cfg.Store == nil {
		return
	}
	if err := a.cfg.Store.Save(a.snapshot()); err != nil {
		a.cfg.Logger.Warn("failed to save agent state", "path", a.cfg.Store.Path(), "error", err)
	}
}

// Restore re-applies a saved state: channel values and the will first, then
// the gateway connection, subscriptions and the publish loop. Individual
// failures after a successful connect are logged and skipped.
func (a *Agent) Restore(ctx context.Context, saved *persistence.AgentState) error {
	if saved == nil {
		return nil
	}

	for name, v := range saved.Channels {
		if id, err := sensor.ParseChannel(name); err == nil {
			a.sim.Set(id, v)
		}
	}

	if saved.Will != nil {
		a.mu.Lock()
		a.will = &transport.Will{
			Topic:   saved.Will.Topic,
			Message: []byte(saved.Will.Message),
			QoS:     transport.QoS(saved.Will.QoS),
		}
		a.mu.Unlock()
	}

	if saved.Gateway == nil {
		return nil
	}
	addr, err := netip.ParseAddr(saved.Gateway.Addr)
	if err != nil {
		return errors.Join(transport.ErrInvalidAddress, err)
	}
	ep := transport.Endpoint{Addr: addr, Port: saved.Gateway.Port}
	if err := a.Connect(ctx, ep, nil); err != nil {
		return err
	}

	for _, s := range saved.Subscriptions {
		if _, err := a.Subscribe(ctx, s.Topic, transport.QoS(s.QoS)); err != nil {
			a.cfg.Logger.Warn("failed to restore subscription", "topic", s.Topic, "error", err)
		}
	}
	if saved.Loop != nil {
		if err := a.StartLoop(saved.Loop.Topic, transport.QoS(saved.Loop.QoS)); err != nil {
			a.cfg.Logger.Warn("failed to restore publish loop", "topic", saved.Loop.Topic, "error", err)
		}
	}
	return nil
}
