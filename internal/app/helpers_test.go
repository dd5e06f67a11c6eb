package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeSource fails the first `failures` subscriptions and hands every
// successful stream to the test through streams.
type fakeSource struct {
	mu       sync.Mutex
	failures int
	calls    int
	streams  chan *fakeStream
}

func newFakeSource(failures int) *fakeSource {
	return &fakeSource{failures: failures, streams: make(chan *fakeStream, 4)}
}

func (s *fakeSource) Subscribe(context.Context) (domain.EventStream, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	if fail {
		return nil, errors.New("dial tcp: connection refused")
	}
	st := &fakeStream{events: make(chan domain.UpstreamEvent, 8)}
	s.streams <- st
	return st, nil
}

func (s *fakeSource) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case st := <-s.streams:
		return st
	case <-time.After(time.Second):
		t.Fatal("no subscription established")
		return nil
	}
}

type fakeStream struct {
	events chan domain.UpstreamEvent
	closed atomic.Bool
}

func (s *fakeStream) Events() <-chan domain.UpstreamEvent { return s.events }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

type sent struct {
	method  string
	target  string
	channel domain.Channel
	data    any
}

type recordingBroadcaster struct {
	mu          sync.Mutex
	sent        []sent
	subscribers map[domain.Channel]int
}

func (r *recordingBroadcaster) record(s sent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return 1
}

func (r *recordingBroadcaster) BroadcastToChannel(ch domain.Channel, data any) int {
	return r.record(sent{method: "channel", channel: ch, data: data})
}

func (r *recordingBroadcaster) SendToUser(userID string, ch domain.Channel, data any) int {
	return r.record(sent{method: "user", target: userID, channel: ch, data: data})
}

func (r *recordingBroadcaster) SendToRole(role domain.Role, ch domain.Channel, data any) int {
	return r.record(sent{method: "role", target: string(role), channel: ch, data: data})
}

func (r *recordingBroadcaster) Subscribers(ch domain.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribers[ch]
}

func (r *recordingBroadcaster) calls() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

// memoryTransport is a hub.Transport that keeps every frame in memory.
type memoryTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   int
	closeReason string
}

func (m *memoryTransport) WriteText(data []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, append([]byte(nil), data...))
	return nil
}

func (m *memoryTransport) WriteClose(code int, reason string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCode, m.closeReason = code, reason
	return nil
}

func (m *memoryTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type frame struct {
	Type    domain.EnvelopeType `json:"type"`
	Channel string              `json:"channel"`
	Data    json.RawMessage     `json:"data"`
}

func (m *memoryTransport) waitFrames(t *testing.T, n int) []frame {
	t.Helper()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.frames) >= n
	}, time.Second, time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame, len(m.frames))
	for i, raw := range m.frames {
		require.NoError(t, json.Unmarshal(raw, &out[i]))
	}
	return out
}

type testGatewayParts struct {
	hub         *hub.Hub
	broadcaster *hub.Broadcaster
	dispatcher  *hub.Dispatcher
	metrics     *metrics.GatewayMetrics
	clock       *clockwork.FakeClock
}

func newTestHub(t *testing.T) *testGatewayParts {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
	h := hub.New(hub.NewRegistry(), clock, m, hub.Options{SendBufferSize: 64})
	b := hub.NewBroadcaster(h)
	t.Cleanup(h.Shutdown)
	return &testGatewayParts{
		hub:         h,
		broadcaster: b,
		dispatcher:  hub.NewDispatcher(h, b, hub.DefaultMaxMessagesPerMinute),
		metrics:     m,
		clock:       clock,
	}
}

func (p *testGatewayParts) connect(t *testing.T, userID string, role domain.Role, channels ...domain.Channel) *memoryTransport {
	t.Helper()
	tr := &memoryTransport{}
	c, err := p.hub.Register(domain.Principal{UserID: userID, Role: role}, tr)
	require.NoError(t, err)
	for _, ch := range channels {
		p.dispatcher.Handle(context.Background(), c, []byte(`{"type":"subscribe","channel":"`+string(ch)+`"}`))
	}
	tr.waitFrames(t, 1+len(channels))
	return tr
}
