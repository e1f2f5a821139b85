package relay

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// defaultWriteTimeout bounds each frame write. A peer that stops
// reading stalls the write half; the deadline turns that into a write
// error instead of an indefinite block. The hub already drops oldest
// chunks for slow subscribers, so a stalled peer loses nothing another
// viewer would have kept.
const defaultWriteTimeout = 10 * time.Second

// viewer handles one accepted WebSocket connection: an outbound half
// that writes hub chunks to the peer as binary messages, and an inbound
// half that drains peer frames to detect close requests. The handler
// terminates as soon as either half ends.
type viewer struct {
	log          *slog.Logger
	conn         *websocket.Conn
	sub          *Subscription
	writeTimeout time.Duration
}

func (v *viewer) run() {
	v.log.Info("viewer connected", "subprotocol", v.conn.Subprotocol())

	writeDone := make(chan struct{})
	readDone := make(chan struct{})

	go func() {
		defer close(writeDone)
		v.writeLoop()
	}()
	go func() {
		defer close(readDone)
		v.readLoop()
	}()

	select {
	case <-writeDone:
	case <-readDone:
	}

	// First half finished; release the subscription and the socket so
	// the other half unwinds, then wait for it. No writes happen after
	// this point because the write loop only ends or is ended here.
	v.sub.Cancel()
	v.conn.Close()
	<-writeDone
	<-readDone

	v.log.Info("viewer disconnected",
		"delivered", v.sub.Delivered(),
		"dropped", v.sub.Dropped(),
	)
}

// writeLoop forwards subscription chunks to the peer until the
// subscription closes or a write fails.
func (v *viewer) writeLoop() {
	for chunk := range v.sub.Chunks() {
		v.conn.SetWriteDeadline(time.Now().Add(v.writeTimeout))
		if err := v.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			v.log.Debug("viewer write failed", "error", err)
			return
		}
	}
}

// readLoop drains inbound frames. Ping and close frames are handled by
// the transport; data frames from viewers carry no meaning here and are
// discarded.
func (v *viewer) readLoop() {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				v.log.Debug("viewer sent close", "error", err)
			}
			return
		}
	}
}
