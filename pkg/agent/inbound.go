package agent

import (
	"fmt"
	"io"

	"github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// dispatch is the handler given to the transport. It routes through the
// subscription table so a message for a topic unsubscribed in the meantime
// is dropped.
func (a *Agent) dispatch(topic transport.Topic, payload []byte) {
	if !a.subs.Dispatch(topic, payload) {
		a.cfg.Logger.Debug("dropping message for unknown topic", "topic", topic.Name, "id", topic.ID)
	}
}

// printInbound writes a received publication to the agent's output. Payloads
// that parse as telemetry records get a decoded summary line.
func (a *Agent) printInbound(topic transport.Topic, payload []byte) {
	msg := log.MessageEvent{Op: log.OpDeliver, Topic: topic.Name, TopicID: topic.ID, Status: log.StatusOK}
	msg.SetPayload(payload)
	a.cfg.Events.Message(log.DirectionIn, log.LayerTransport, a.gatewayString(), msg)
	a.cfg.Metrics.IncInbound()

	a.outMu.Lock()
	defer a.outMu.Unlock()
	writeInbound(a.cfg.Output, topic, payload)
}

func writeInbound(w io.Writer, topic transport.Topic, payload []byte) {
	fmt.Fprintf(w, "### got publication for topic '%s' [%d] ###\n", topic.Name, topic.ID)
	w.Write(payload)
	fmt.Fprintln(w)

	rs, err := record.Parse(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "    device %s at %d:", rs.Device, rs.Timestamp)
	for i, v := range rs.Values {
		fmt.Fprintf(w, " %s=%.2f%s", sensor.ChannelID(i), v, sensor.ChannelID(i).Unit())
	}
	fmt.Fprintln(w)
}
