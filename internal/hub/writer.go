package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Transport is the write side of a client socket. Only the connection's writer
// goroutine calls WriteText while it runs; WriteClose is only called after it exited.
type Transport interface {
	WriteText(data []byte, deadline time.Time) error
	WriteClose(code int, reason string, deadline time.Time) error
	Close() error
}

type clientWriter struct {
	transport    Transport
	clock        clockwork.Clock
	writeTimeout time.Duration
	sendChannel  chan []byte
	doneChannel  chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	closed       atomic.Bool
}

func newClientWriter(transport Transport, clock clockwork.Clock, bufferSize int, writeTimeout time.Duration) *clientWriter {
	cw := &clientWriter{
		transport:    transport,
		clock:        clock,
		writeTimeout: writeTimeout,
		sendChannel:  make(chan []byte, bufferSize),
		doneChannel:  make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			if err := cw.transport.WriteText(msg, cw.deadline()); err != nil {
				// The reader sees the closed socket and unregisters the connection.
				cw.closed.Store(true)
				_ = cw.transport.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// enqueue never blocks.
func (cw *clientWriter) enqueue(msg []byte) error {
	if cw.closed.Load() {
		return errConnectionClosed
	}
	select {
	case cw.sendChannel <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// stop closes the transport after an optional final frame and a close frame.
// Safe to call more than once and from any goroutine except the writer itself.
func (cw *clientWriter) stop(final []byte, code int, reason string) {
	cw.stopOnce.Do(func() {
		cw.closed.Store(true)
		close(cw.doneChannel)

		// No concurrent writes: the run goroutine has exited after this.
		cw.wg.Wait()

		if final != nil {
			_ = cw.transport.WriteText(final, cw.deadline())
		}
		_ = cw.transport.WriteClose(code, reason, cw.deadline())
		_ = cw.transport.Close()
	})
}

func (cw *clientWriter) isOpen() bool {
	return !cw.closed.Load()
}

func (cw *clientWriter) deadline() time.Time {
	return cw.clock.Now().Add(cw.writeTimeout)
}
