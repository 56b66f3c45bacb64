package bus

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// StreamHandler exposes the bus over a websocket at the transport edge.
// Each connection becomes one bus subscriber; when the bus disconnects a
// slow session the socket is closed and the client reconciles via the pull
// endpoints on reconnect.
func StreamHandler(b *Bus, logger *slog.Logger) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()

		id := "ws-" + uuid.NewString()
		ch, cancel, err := b.Subscribe(id)
		if err != nil {
			logger.Warn("stream subscribe rejected", "error", err)
			return
		}
		defer cancel()

		hello := Event{
			Type:      TypeConnectionEstablished,
			Timestamp: time.Now().UTC(),
		}
		if err := websocket.JSON.Send(conn, hello); err != nil {
			return
		}

		logger.Info("stream client connected", "subscriber_id", id)
		for ev := range ch {
			if err := websocket.JSON.Send(conn, ev); err != nil {
				logger.Info("stream client disconnected", "subscriber_id", id)
				return
			}
		}
		// Channel closed: the bus ended this session (overflow or shutdown).
		logger.Info("stream session ended by bus", "subscriber_id", id)
	})
}
