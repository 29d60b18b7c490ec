package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/TayDaGreatDIY/phase-2-complete/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// clientWriter owns the single in-order send path for one connection.
// All writes to the underlying transport happen on its goroutine, so two
// concurrent broadcasts targeting the same connection queue instead of racing.
// A write error or deadline expiry marks the writer dead and reports the
// failure exactly once via onFailure.
type clientWriter struct {
	connection *websocket.Conn
	clock      clockwork.Clock
	sendCh     chan []byte
	doneCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	dead       atomic.Bool
	onFailure  func()
}

// newClientWriter starts the writer goroutine. onFailure is invoked from a
// fresh goroutine when a write fails, never while holding writer state.
func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, onFailure func()) *clientWriter {
	cw := &clientWriter{
		connection: connection,
		clock:      clock,
		sendCh:     make(chan []byte, messageBufferSize),
		doneCh:     make(chan struct{}),
		onFailure:  onFailure,
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.fail()
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.fail()
				return
			}
		case <-cw.doneCh:
			return
		}
	}
}

// enqueue hands an already-serialized message to the writer without blocking.
// Returns false if the writer is dead or its buffer is saturated; the caller
// treats either as a failed send.
func (cw *clientWriter) enqueue(data []byte) bool {
	if cw.dead.Load() {
		return false
	}
	select {
	case <-cw.doneCh:
		return false
	default:
	}
	select {
	case cw.sendCh <- data:
		return true
	default:
		return false
	}
}

// fail marks the writer dead and reports the failure off the writer goroutine,
// so the registry can tear the connection down without deadlocking on wg.Wait.
func (cw *clientWriter) fail() {
	cw.dead.Store(true)
	if cw.onFailure != nil {
		go cw.onFailure()
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		cw.dead.Store(true)
		close(cw.doneCh)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		cw.dead.Store(true)
		close(cw.doneCh)

		// The run goroutine must exit before the close frame is written,
		// otherwise two goroutines write the same connection.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
