// Package shell implements the agent's command dispatcher.
//
// Commands are looked up by name in a table. Every handler checks its
// argument count before touching the agent and returns 0 on success, 1 on
// any validation or transport error.
package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wxnode/wxnode-go/pkg/agent"
	"github.com/wxnode/wxnode-go/pkg/discovery"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// DefaultTimeout bounds a single command's transport work.
const DefaultTimeout = 15 * time.Second

// Agent is the part of the agent the commands drive.
type Agent interface {
	Connect(ctx context.Context, ep transport.Endpoint, will *transport.Will) error
	Disconnect(ctx context.Context) error
	PublishOnce(ctx context.Context, name string, data []byte, qos transport.QoS) (transport.Topic, error)
	StartLoop(name string, qos transport.QoS) error
	StopLoop() error
	Subscribe(ctx context.Context, name string, qos transport.QoS) (transport.Topic, error)
	Unsubscribe(ctx context.Context, name string) error
	SetWill(ctx context.Context, topic string, msg []byte) error
	SetChannel(name string, v float64) (sensor.ChannelID, float64, error)
	Status() agent.Status
}

// Discoverer finds gateways for the discover command.
type Discoverer interface {
	FindAll(ctx context.Context) ([]*discovery.Gateway, error)
}

// Command is one dispatch table entry. argv[0] is the command name.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Help    string
	Run     func(ctx context.Context, argv []string) int
}

// Dispatcher maps command lines to handlers.
type Dispatcher struct {
	agent    Agent
	discover func(timeout time.Duration) Discoverer
	timeout  time.Duration
	quit     func()

	mu  sync.Mutex
	out io.Writer

	commands []Command
	index    map[string]*Command
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOutput sets where command output goes.
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) { d.out = w }
}

// WithTimeout bounds each command's transport work.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithDiscovery enables the discover command. newBrowser is called with the
// browse duration requested on the command line, or zero for the default.
func WithDiscovery(newBrowser func(timeout time.Duration) Discoverer) Option {
	return func(d *Dispatcher) { d.discover = newBrowser }
}

// WithQuit sets the function the quit command calls.
func WithQuit(fn func()) Option {
	return func(d *Dispatcher) { d.quit = fn }
}

// New creates a dispatcher over the given agent.
func New(a Agent, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		agent:   a,
		out:     io.Discard,
		timeout: DefaultTimeout,
		index:   make(map[string]*Command),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.register(d.builtins())
	return d
}

func (d *Dispatcher) register(cmds []Command) {
	d.commands = cmds
	for i := range d.commands {
		c := &d.commands[i]
		d.index[c.Name] = c
		for _, alias := range c.Aliases {
			d.index[alias] = c
		}
	}
}

// SetOutput redirects command output.
func (d *Dispatcher) SetOutput(w io.Writer) {
	d.mu.Lock()
	d.out = w
	d.mu.Unlock()
}

// Commands returns the command table sorted by name.
func (d *Dispatcher) Commands() []Command {
	cmds := make([]Command, len(d.commands))
	copy(cmds, d.commands)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Execute splits a line into fields and runs the named command.
// An empty line is a no-op.
func (d *Dispatcher) Execute(ctx context.Context, line string) int {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return 0
	}
	return d.Run(ctx, argv)
}

// Run dispatches argv to the command named by argv[0].
func (d *Dispatcher) Run(ctx context.Context, argv []string) int {
	c, ok := d.index[strings.ToLower(argv[0])]
	if !ok {
		d.printf("Unknown command: %s (type 'help' for commands)\n", argv[0])
		return 1
	}
	return c.Run(ctx, argv)
}

func (d *Dispatcher) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

func (d *Dispatcher) println(args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, args...)
}

func (d *Dispatcher) usage(argv []string) int {
	c := d.index[strings.ToLower(argv[0])]
	d.printf("usage: %s %s\n", argv[0], c.Usage)
	return 1
}

// bounded derives the per-command transport context.
func (d *Dispatcher) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
