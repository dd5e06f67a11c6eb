package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeTransport records frames written by a connection's writer.
type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   int
	closeReason string
	writeErr    error

	// When set, WriteText signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func newBlockingTransport() *fakeTransport {
	return &fakeTransport{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (f *fakeTransport) WriteText(data []byte, _ time.Time) error {
	if f.release != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) WriteClose(code int, reason string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode = code
	f.closeReason = reason
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) closeFrame() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closeReason
}

type testEnvelope struct {
	Type      domain.EnvelopeType `json:"type"`
	Channel   string              `json:"channel"`
	Data      json.RawMessage     `json:"data"`
	Timestamp int64               `json:"timestamp"`
}

func (e testEnvelope) errorPayload(t *testing.T) domain.ErrorPayload {
	t.Helper()
	require.Equal(t, domain.TypeError, e.Type)
	var p domain.ErrorPayload
	require.NoError(t, json.Unmarshal(e.Data, &p))
	return p
}

func (f *fakeTransport) envelopes(t *testing.T) []testEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]testEnvelope, 0, len(f.frames))
	for _, frame := range f.frames {
		var env testEnvelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

// waitForEnvelopes waits until at least n frames arrived and returns all of them.
func (f *fakeTransport) waitForEnvelopes(t *testing.T, n int) []testEnvelope {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.frames) >= n
	}, time.Second, time.Millisecond, "expected at least %d frames", n)
	return f.envelopes(t)
}

type testHub struct {
	hub         *Hub
	clock       *clockwork.FakeClock
	metrics     *metrics.GatewayMetrics
	broadcaster *Broadcaster
	dispatcher  *Dispatcher
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	return newTestHubWithOptions(t, Options{SendBufferSize: 128, WriteTimeout: time.Second})
}

func newTestHubWithOptions(t *testing.T, opts Options) *testHub {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
	h := New(NewRegistry(), clock, m, opts)
	b := NewBroadcaster(h)
	d := NewDispatcher(h, b, DefaultMaxMessagesPerMinute)

	t.Cleanup(h.Shutdown)

	return &testHub{hub: h, clock: clock, metrics: m, broadcaster: b, dispatcher: d}
}

// connect registers a principal and waits for its welcome envelope.
func (th *testHub) connect(t *testing.T, userID string, role domain.Role) (*Connection, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	c, err := th.hub.Register(domain.Principal{UserID: userID, Email: userID + "@sgg.ga", Role: role}, ft)
	require.NoError(t, err)
	ft.waitForEnvelopes(t, 1)
	return c, ft
}
