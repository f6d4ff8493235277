package agent

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wxnode/wxnode-go/pkg/metrics"
	"github.com/wxnode/wxnode-go/pkg/persistence"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/subscription"
	"github.com/wxnode/wxnode-go/pkg/transport"
	"github.com/wxnode/wxnode-go/pkg/transport/mocks"
)

var testGateway = transport.Endpoint{Addr: netip.MustParseAddr("fec0:affe::1"), Port: 1883}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	agent *Agent
	tr    *mocks.MockAdapter
	out   *syncBuffer
	lost  func(error)
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	f := &fixture{tr: mocks.NewMockAdapter(t), out: &syncBuffer{}}
	f.tr.EXPECT().OnConnectionLost(mock.Anything).Run(func(fn func(error)) { f.lost = fn }).Return().Once()

	sim, err := sensor.NewSimulator(sensor.NewSource(1), sensor.DefaultRanges())
	require.NoError(t, err)
	enc, err := record.NewEncoder("2", sensor.DefaultRanges())
	require.NoError(t, err)

	cfg := Config{Interval: time.Hour, Output: f.out}
	for _, m := range mutate {
		m(&cfg)
	}
	f.agent = New(f.tr, sim, enc, cfg)
	require.NotNil(t, f.lost, "agent did not register for connection loss")
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.tr.EXPECT().Connect(mock.Anything, testGateway, true, (*transport.Will)(nil)).Return(nil).Once()
	require.NoError(t, f.agent.Connect(context.Background(), testGateway, nil))
}

func TestConnect(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	st := f.agent.Status()
	assert.Equal(t, Connected, st.State)
	assert.Equal(t, testGateway, st.Gateway)

	err := f.agent.Connect(context.Background(), testGateway, nil)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnectFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.tr.EXPECT().Connect(mock.Anything, testGateway, true, (*transport.Will)(nil)).Return(transport.ErrTimeout).Once()

	err := f.agent.Connect(context.Background(), testGateway, nil)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, Disconnected, f.agent.Status().State)
}

func TestConnectPassesWill(t *testing.T) {
	f := newFixture(t)
	will := &transport.Will{Topic: "status/2", Message: []byte("offline")}
	f.tr.EXPECT().Connect(mock.Anything, testGateway, true, will).Return(nil).Once()

	require.NoError(t, f.agent.Connect(context.Background(), testGateway, will))
	assert.Equal(t, will, f.agent.Status().Will)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.agent.Disconnect(context.Background()), ErrNotConnected)

	f.connect(t)
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS0, mock.Anything).
		Return(transport.Topic{Name: "weather/device3", ID: 1}, nil).Once()
	_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS0)
	require.NoError(t, err)

	f.tr.EXPECT().Disconnect(mock.Anything).Return(nil).Once()
	require.NoError(t, f.agent.Disconnect(context.Background()))

	st := f.agent.Status()
	assert.Equal(t, Disconnected, st.State)
	assert.Empty(t, st.Subscriptions)
}

func TestSubscribeThenUnsubscribeLeavesTableEmpty(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	topic := transport.Topic{Name: "weather/device2", ID: 1}
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device2", transport.QoS1, mock.Anything).Return(topic, nil).Once()
	f.tr.EXPECT().Unsubscribe(mock.Anything, "weather/device2").Return(nil).Once()

	got, err := f.agent.Subscribe(context.Background(), "weather/device2", transport.QoS1)
	require.NoError(t, err)
	assert.Equal(t, topic, got)
	require.Len(t, f.agent.Subscriptions(), 1)

	require.NoError(t, f.agent.Unsubscribe(context.Background(), "weather/device2"))
	assert.Empty(t, f.agent.Subscriptions())
}

func TestSubscribeFailureReleasesSlot(t *testing.T) {
	f := newFixture(t)
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS0, mock.Anything).
		Return(transport.Topic{}, transport.ErrNoGateway).Once()

	_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS0)
	assert.ErrorIs(t, err, transport.ErrNoGateway)
	assert.Empty(t, f.agent.Subscriptions())
}

func TestSubscribeRejectsLongTopicWithoutTransportCall(t *testing.T) {
	f := newFixture(t)

	_, err := f.agent.Subscribe(context.Background(), strings.Repeat("x", subscription.MaxTopicLen+1), transport.QoS0)
	assert.ErrorIs(t, err, subscription.ErrTopicTooLong)
}

func TestUnsubscribe(t *testing.T) {
	t.Run("Absent", func(t *testing.T) {
		f := newFixture(t)
		err := f.agent.Unsubscribe(context.Background(), "weather/device9")
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("TransportFailureKeepsSlot", func(t *testing.T) {
		f := newFixture(t)
		f.connect(t)
		f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS0, mock.Anything).
			Return(transport.Topic{Name: "weather/device3", ID: 4}, nil).Once()
		f.tr.EXPECT().Unsubscribe(mock.Anything, "weather/device3").Return(transport.ErrTimeout).Once()

		_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS0)
		require.NoError(t, err)

		err = f.agent.Unsubscribe(context.Background(), "weather/device3")
		assert.ErrorIs(t, err, ErrUnsubscribeFailed)
		assert.Contains(t, err.Error(), "Unsubscription from 'weather/device3' failed")
		assert.Len(t, f.agent.Subscriptions(), 1)
	})
}

func TestInboundPublicationIsPrinted(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, func(c *Config) { c.Metrics = m })
	f.connect(t)

	var handler transport.Handler
	topic := transport.Topic{Name: "weather/device3", ID: 7}
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS1, mock.Anything).
		Run(func(_ context.Context, _ string, _ transport.QoS, h transport.Handler) { handler = h }).
		Return(topic, nil).Once()

	_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS1)
	require.NoError(t, err)
	require.NotNil(t, handler)

	payload := `{"ts": 1700000000000, "values":{"temperature": "1.50", "humidity": "48.50", "windDirection": "180.00", "windIntensity": "0.00", "rainHeight": "50.00","device": "3"}}`
	handler(topic, []byte(payload))

	out := f.out.String()
	assert.Contains(t, out, "### got publication for topic 'weather/device3' [7] ###\n"+payload+"\n")
	assert.Contains(t, out, "device 3 at 1700000000000:")
	assert.Contains(t, out, "temperature=1.50°")
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP wxnode_inbound_messages_total Messages received on subscribed topics.
# TYPE wxnode_inbound_messages_total counter
wxnode_inbound_messages_total 1
`), "wxnode_inbound_messages_total"))

	// Messages for topics no longer in the table are dropped.
	handler(transport.Topic{Name: "weather/other", ID: 8}, []byte("x"))
	assert.NotContains(t, f.out.String(), "weather/other")
}

func TestConnectionLost(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS0, mock.Anything).
		Return(transport.Topic{Name: "weather/device3", ID: 1}, nil).Once()
	_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS0)
	require.NoError(t, err)

	f.lost(errors.New("keepalive timeout"))

	st := f.agent.Status()
	assert.Equal(t, Disconnected, st.State)
	assert.Empty(t, st.Subscriptions)
	assert.ErrorIs(t, f.agent.Disconnect(context.Background()), ErrNotConnected)
}

func TestPublishOnce(t *testing.T) {
	f := newFixture(t)
	topic := transport.Topic{Name: "test/topic", ID: 3}
	f.tr.EXPECT().Register(mock.Anything, "test/topic").Return(topic, nil).Once()
	f.tr.EXPECT().Publish(mock.Anything, topic, []byte("hello"), transport.QoS1).Return(nil).Once()

	got, err := f.agent.PublishOnce(context.Background(), "test/topic", []byte("hello"), transport.QoS1)
	require.NoError(t, err)
	assert.Equal(t, topic, got)
}

func TestPublishOnceRegisterFailure(t *testing.T) {
	f := newFixture(t)
	f.tr.EXPECT().Register(mock.Anything, "test/topic").Return(transport.Topic{}, transport.ErrNoGateway).Once()

	_, err := f.agent.PublishOnce(context.Background(), "test/topic", []byte("hello"), transport.QoS0)
	assert.ErrorIs(t, err, transport.ErrNoGateway)
}

func TestLoopLifecycle(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, func(c *Config) {
		c.Metrics = m
		c.Clock = func() time.Time { return time.UnixMilli(1700000000000) }
	})

	topic := transport.Topic{Name: "weather", ID: 1}
	published := make(chan struct{})
	f.tr.EXPECT().Register(mock.Anything, "weather").Return(topic, nil).Once()
	f.tr.EXPECT().Publish(mock.Anything, topic, mock.Anything, transport.QoS0).
		Run(func(context.Context, transport.Topic, []byte, transport.QoS) { close(published) }).
		Return(nil).Once()

	assert.ErrorIs(t, f.agent.StopLoop(), ErrLoopNotRunning)

	require.NoError(t, f.agent.StartLoop("weather", transport.QoS0))
	assert.ErrorIs(t, f.agent.StartLoop("other", transport.QoS0), ErrLoopRunning)

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not publish")
	}

	st := f.agent.Status()
	assert.True(t, st.LoopRunning)
	assert.Equal(t, "weather", st.Loop.Topic)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP wxnode_loop_running 1 while the publish loop runs.
# TYPE wxnode_loop_running gauge
wxnode_loop_running 1
`), "wxnode_loop_running"))

	require.NoError(t, f.agent.StopLoop())
	assert.False(t, f.agent.Status().LoopRunning)
	assert.ErrorIs(t, f.agent.StopLoop(), ErrLoopNotRunning)
}

func TestSetWillAppliesOnNextConnect(t *testing.T) {
	f := newFixture(t)
	f.tr.EXPECT().UpdateWillTopic(mock.Anything, "status/2", transport.QoS0).Return(nil).Once()
	f.tr.EXPECT().UpdateWillMessage(mock.Anything, []byte("offline")).Return(nil).Once()

	require.NoError(t, f.agent.SetWill(context.Background(), "status/2", []byte("offline")))

	want := &transport.Will{Topic: "status/2", Message: []byte("offline"), QoS: transport.QoS0}
	f.tr.EXPECT().Connect(mock.Anything, testGateway, true, want).Return(nil).Once()
	require.NoError(t, f.agent.Connect(context.Background(), testGateway, nil))
}

func TestSetWillTopicFailure(t *testing.T) {
	f := newFixture(t)
	f.tr.EXPECT().UpdateWillTopic(mock.Anything, "status/2", transport.QoS0).Return(transport.ErrFailed).Once()

	err := f.agent.SetWill(context.Background(), "status/2", []byte("offline"))
	assert.ErrorIs(t, err, transport.ErrFailed)
	assert.Nil(t, f.agent.Status().Will)
}

func TestSetChannel(t *testing.T) {
	f := newFixture(t)

	id, v, err := f.agent.SetChannel("temp", 120)
	require.NoError(t, err)
	assert.Equal(t, sensor.Temperature, id)
	assert.Equal(t, 50.0, v)
	assert.Equal(t, 50.0, f.agent.Status().Values[sensor.Temperature])

	_, _, err = f.agent.SetChannel("pressure", 1)
	assert.ErrorIs(t, err, sensor.ErrUnknownChannel)
}

func TestStatePersistedAndRestored(t *testing.T) {
	dir := t.TempDir()
	store := persistence.NewStateStoreInDir(dir)

	f := newFixture(t, func(c *Config) { c.Store = store })
	f.connect(t)
	f.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS1, mock.Anything).
		Return(transport.Topic{Name: "weather/device3", ID: 1}, nil).Once()
	_, err := f.agent.Subscribe(context.Background(), "weather/device3", transport.QoS1)
	require.NoError(t, err)

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.NotNil(t, saved.Gateway)
	assert.Equal(t, "fec0:affe::1", saved.Gateway.Addr)
	assert.Equal(t, uint16(1883), saved.Gateway.Port)
	require.Len(t, saved.Subscriptions, 1)
	assert.Equal(t, persistence.SubscriptionRecord{Topic: "weather/device3", QoS: 1}, saved.Subscriptions[0])

	g := newFixture(t)
	g.tr.EXPECT().Connect(mock.Anything, testGateway, true, (*transport.Will)(nil)).Return(nil).Once()
	g.tr.EXPECT().Subscribe(mock.Anything, "weather/device3", transport.QoS1, mock.Anything).
		Return(transport.Topic{Name: "weather/device3", ID: 1}, nil).Once()

	require.NoError(t, g.agent.Restore(context.Background(), saved))
	st := g.agent.Status()
	assert.Equal(t, Connected, st.State)
	assert.Len(t, st.Subscriptions, 1)
}

func TestCloseKeepsPersistedState(t *testing.T) {
	store := persistence.NewStateStoreInDir(t.TempDir())
	f := newFixture(t, func(c *Config) { c.Store = store })
	f.connect(t)

	f.tr.EXPECT().Disconnect(mock.Anything).Return(nil).Once()
	require.NoError(t, f.agent.Close(context.Background()))

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotNil(t, saved.Gateway, "Close must not erase the last gateway")
}
