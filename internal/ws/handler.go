// Package ws bridges websocket connections to the session coordinator: one
// reader loop feeding the inbox, one writer goroutine draining the outbox.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrasnow/quizwire/internal/protocol"
	"github.com/dkrasnow/quizwire/internal/session"
)

const writeTimeout = 3 * time.Second

func Handler(coord *session.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan protocol.ServerMessage, 16)

		coord.Inbox() <- session.Join{
			ConnID: connID,
			Outbox: out,
			Device: session.Device{
				RemoteAddr: r.RemoteAddr,
				UserAgent:  r.UserAgent(),
			},
		}
		// Disconnect implicitly releases every role the connection held.
		defer func() { coord.Inbox() <- session.Leave{ConnID: connID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshaling server message", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Outbox closed: the coordinator kicked us or shut down. Close
			// the socket so the reader loop unblocks.
			conn.Close(websocket.StatusNormalClosure, "session closed")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				// Malformed payloads are dropped, not answered.
				log.Debug("bad client payload", zap.String("conn", connID), zap.Error(err))
				continue
			}
			if cm.Type == "" {
				continue
			}

			coord.Inbox() <- session.FromClient{ConnID: connID, Msg: cm}
		}
	}
}
