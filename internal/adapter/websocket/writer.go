package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	defaultSendBuffer = 64
)

var errSendBufferFull = errors.New("send buffer full")

// clientWriter owns all writes to one websocket. Frames are queued on a
// bounded buffer and written by a single goroutine, which also sends pings.
type clientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	metrics     *metrics.WebSocketMetrics
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, bufferSize int, m *metrics.WebSocketMetrics) *clientWriter {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		metrics:     m,
		sendChannel: make(chan []byte, bufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	return cw
}

func (cw *clientWriter) start() {
	cw.wg.Add(1)
	go cw.run()
}

// SendText queues payload without blocking. A full buffer drops the frame.
func (cw *clientWriter) SendText(payload []byte) error {
	select {
	case <-cw.doneChannel:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case cw.sendChannel <- payload:
		return nil
	default:
		if cw.metrics != nil {
			cw.metrics.MessagesDropped.Inc()
		}
		return errSendBufferFull
	}
}

// Close stops the writer and sends a normal close frame carrying reason.
func (cw *clientWriter) Close(reason string) error {
	cw.stopGraceful(reason)
	return nil
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = cw.connection.Close()
				return
			}
			if cw.metrics != nil {
				cw.metrics.MessagesSent.Inc()
				cw.metrics.SendDuration.Observe(cw.clock.Since(start).Seconds())
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if cw.metrics != nil {
					cw.metrics.PingFailures.Inc()
				}
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must exit before anything else is written.
		cw.wg.Wait()
		cw.flush()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// flush writes frames still queued when the writer stopped, so replies
// sent just before a close are not lost.
func (cw *clientWriter) flush() {
	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (cw *clientWriter) configurePongHandler() {
	cw.touch()
	cw.connection.SetPongHandler(func(string) error {
		cw.touch()
		return nil
	})
}

// touch extends the read deadline after any sign of client activity.
func (cw *clientWriter) touch() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
