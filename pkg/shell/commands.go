package shell

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wxnode/wxnode-go/pkg/agent"
	"github.com/wxnode/wxnode-go/pkg/subscription"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

func (d *Dispatcher) builtins() []Command {
	return []Command{
		{Name: "con", Usage: "<addr> [port] [<will topic> <will message>]", Help: "connect to MQTT broker", Run: d.cmdCon},
		{Name: "discon", Help: "disconnect from the current broker", Run: d.cmdDiscon},
		{Name: "pub", Usage: "<topic name> <data> [QoS level]", Help: "publish something", Run: d.cmdPub},
		{Name: "loop", Usage: "<topic name> [QoS level]", Help: "start looping publish", Run: d.cmdLoop},
		{Name: "stop", Help: "stop the publish loop", Run: d.cmdStop},
		{Name: "sub", Usage: "<topic name> [QoS level]", Help: "subscribe topic", Run: d.cmdSub},
		{Name: "unsub", Usage: "<topic name>", Help: "unsubscribe from topic", Run: d.cmdUnsub},
		{Name: "will", Usage: "<will topic name> <will message content>", Help: "register a last will", Run: d.cmdWill},
		{Name: "set", Usage: "<channel> <value>", Help: "override a simulated channel", Run: d.cmdSet},
		{Name: "status", Help: "show connection, loop and subscriptions", Run: d.cmdStatus},
		{Name: "discover", Usage: "[seconds]", Help: "browse for gateways via mDNS", Run: d.cmdDiscover},
		{Name: "help", Aliases: []string{"?"}, Help: "list commands", Run: d.cmdHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Help: "exit the agent", Run: d.cmdQuit},
	}
}

func (d *Dispatcher) cmdCon(ctx context.Context, argv []string) int {
	if len(argv) < 2 || len(argv) == 4 {
		return d.usage(argv)
	}

	port := ""
	if len(argv) >= 3 {
		port = argv[2]
	}
	ep, err := transport.ParseEndpoint(argv[1], port)
	if err != nil {
		d.printf("error parsing address: %v\n", err)
		return 1
	}

	var will *transport.Will
	if len(argv) >= 5 {
		will = &transport.Will{Topic: argv[3], Message: []byte(argv[4])}
	}

	ctx, cancel := d.bounded(ctx)
	defer cancel()
	if err := d.agent.Connect(ctx, ep, will); err != nil {
		d.printf("error: unable to connect to %s: %v\n", ep, err)
		return 1
	}
	d.printf("Successfully connected to gateway at %s\n", ep)
	return 0
}

func (d *Dispatcher) cmdDiscon(ctx context.Context, argv []string) int {
	ctx, cancel := d.bounded(ctx)
	defer cancel()

	err := d.agent.Disconnect(ctx)
	switch {
	case errors.Is(err, agent.ErrNotConnected):
		d.println("error: not connected to any broker")
		return 1
	case err != nil:
		d.printf("error: unable to disconnect: %v\n", err)
		return 1
	}
	d.println("Disconnect successful")
	return 0
}

func (d *Dispatcher) cmdPub(ctx context.Context, argv []string) int {
	if len(argv) < 3 {
		return d.usage(argv)
	}
	qos := transport.QoS0
	if len(argv) >= 4 {
		qos = transport.ParseQoS(argv[3])
	}
	data := []byte(argv[2])

	d.printf("pub with topic: %s and data %s and QoS %d\n", argv[1], argv[2], qos)

	ctx, cancel := d.bounded(ctx)
	defer cancel()
	topic, err := d.agent.PublishOnce(ctx, argv[1], data, qos)
	if err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	d.printf("Published %d bytes to topic '%s [%d]'\n", len(data), topic.Name, topic.ID)
	return 0
}

func (d *Dispatcher) cmdLoop(ctx context.Context, argv []string) int {
	if len(argv) < 2 {
		return d.usage(argv)
	}
	qos := transport.QoS0
	if len(argv) >= 3 {
		qos = transport.ParseQoS(argv[2])
	}

	if err := d.agent.StartLoop(argv[1], qos); err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	d.printf("Publishing to '%s' with QoS %d in the background (use 'stop' to end)\n", argv[1], qos)
	return 0
}

func (d *Dispatcher) cmdStop(ctx context.Context, argv []string) int {
	if err := d.agent.StopLoop(); err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	d.println("Publish loop stopped")
	return 0
}

func (d *Dispatcher) cmdSub(ctx context.Context, argv []string) int {
	if len(argv) < 2 {
		return d.usage(argv)
	}
	qos := transport.QoS0
	if len(argv) >= 3 {
		qos = transport.ParseQoS(argv[2])
	}

	ctx, cancel := d.bounded(ctx)
	defer cancel()
	_, err := d.agent.Subscribe(ctx, argv[1], qos)
	switch {
	case errors.Is(err, subscription.ErrTopicTooLong):
		d.println("error: topic name exceeds maximum possible size")
		return 1
	case errors.Is(err, subscription.ErrTableFull):
		d.println("error: no memory to store new subscriptions")
		return 1
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		d.printf("error: already subscribed to %s\n", argv[1])
		return 1
	case err != nil:
		d.printf("error: %v\n", err)
		return 1
	}
	d.printf("Now subscribed to %s\n", argv[1])
	return 0
}

func (d *Dispatcher) cmdUnsub(ctx context.Context, argv []string) int {
	if len(argv) < 2 {
		return d.usage(argv)
	}

	ctx, cancel := d.bounded(ctx)
	defer cancel()
	err := d.agent.Unsubscribe(ctx, argv[1])
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		d.printf("error: no subscription for topic '%s' found\n", argv[1])
		return 1
	case errors.Is(err, agent.ErrUnsubscribeFailed):
		d.printf("Unsubscription from '%s' failed\n", argv[1])
		return 1
	case err != nil:
		d.printf("error: %v\n", err)
		return 1
	}
	d.printf("Unsubscribed from '%s'\n", argv[1])
	return 0
}

func (d *Dispatcher) cmdWill(ctx context.Context, argv []string) int {
	if len(argv) < 3 {
		return d.usage(argv)
	}

	ctx, cancel := d.bounded(ctx)
	defer cancel()
	if err := d.agent.SetWill(ctx, argv[1], []byte(argv[2])); err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	d.println("Successfully updated last will topic and message")
	return 0
}

func (d *Dispatcher) cmdSet(ctx context.Context, argv []string) int {
	if len(argv) < 3 {
		return d.usage(argv)
	}
	v, err := strconv.ParseFloat(argv[2], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		d.printf("error: invalid value '%s'\n", argv[2])
		return 1
	}

	id, stored, err := d.agent.SetChannel(argv[1], v)
	if err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	d.printf("%s set to %.2f%s\n", id, stored, id.Unit())
	return 0
}

func (d *Dispatcher) cmdStatus(ctx context.Context, argv []string) int {
	st := d.agent.Status()

	d.mu.Lock()
	defer d.mu.Unlock()

	w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	if st.State == agent.Connected {
		fmt.Fprintf(w, "Gateway:\t%s\n", st.Gateway)
	} else {
		fmt.Fprintf(w, "Gateway:\tnot connected\n")
	}
	if st.Will != nil {
		fmt.Fprintf(w, "Last will:\t%s = %s\n", st.Will.Topic, st.Will.Message)
	}
	switch {
	case st.LoopRunning:
		s := st.LoopStats
		fmt.Fprintf(w, "Loop:\t%s QoS %d every %s (%d cycles, %d published, %d failed)\n",
			st.Loop.Topic, st.Loop.QoS, st.Loop.Interval, s.Cycles, s.Published, s.Failed)
	case st.LastLoopError != nil:
		fmt.Fprintf(w, "Loop:\tstopped (%v)\n", st.LastLoopError)
	default:
		fmt.Fprintf(w, "Loop:\tstopped\n")
	}
	fmt.Fprintf(w, "Values:\t%s\n", st.Values)
	fmt.Fprintf(w, "Subscriptions:\t%d/%d\n", len(st.Subscriptions), subscription.DefaultCapacity)
	for _, s := range st.Subscriptions {
		fmt.Fprintf(w, "\t%s [%d] QoS %d\n", s.Topic.Name, s.Topic.ID, s.QoS)
	}
	w.Flush()
	return 0
}

func (d *Dispatcher) cmdDiscover(ctx context.Context, argv []string) int {
	if d.discover == nil {
		d.println("error: discovery is not available")
		return 1
	}
	var timeout time.Duration
	if len(argv) >= 2 {
		secs, err := strconv.Atoi(argv[1])
		if err != nil || secs <= 0 {
			return d.usage(argv)
		}
		timeout = time.Duration(secs) * time.Second
	}

	d.println("Browsing for gateways...")
	found, err := d.discover(timeout).FindAll(ctx)
	if err != nil {
		d.printf("error: %v\n", err)
		return 1
	}
	if len(found) == 0 {
		d.println("No gateways found")
		return 0
	}
	for _, gw := range found {
		line := "  " + gw.Instance
		if ep, err := gw.Endpoint(); err == nil {
			line += "  " + ep.String()
		}
		if p := gw.Protocol(); p != "" {
			line += "  (" + p + ")"
		}
		d.println(line)
	}
	return 0
}

func (d *Dispatcher) cmdHelp(ctx context.Context, argv []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Command\tDescription")
	fmt.Fprintln(w, "-------\t-----------")
	for _, c := range d.Commands() {
		fmt.Fprintf(w, "%s\t%s\n", strings.TrimSpace(c.Name+" "+c.Usage), c.Help)
	}
	w.Flush()
	return 0
}

func (d *Dispatcher) cmdQuit(ctx context.Context, argv []string) int {
	d.println("Exiting...")
	if d.quit != nil {
		d.quit()
	}
	return 0
}
