package fakeserver

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/triviabluff/client-go/pkg/protocol"
)

// handleWS accepts the push channel for one session/player pair. The
// channel is server-to-client only; anything the client writes is treated
// as keepalive and discarded.
func (srv *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID := chi.URLParam(r, "playerID")

	room := srv.hub.Get(sessionID)
	if room == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // test double; no origin policy
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := room.Attach(playerID)
	defer room.Detach(playerID, out)

	room.Send(playerID, protocol.EvtConnectionEstablished,
		protocol.ConnectionEstablished{PlayerID: playerID})
	room.BroadcastExcept(playerID, protocol.EvtPlayerConnected,
		protocol.PlayerConnected{PlayerID: playerID})
	defer room.BroadcastExcept(playerID, protocol.EvtPlayerDisconnected,
		protocol.PlayerDisconnected{PlayerID: playerID})

	// Writer goroutine drains the room outbox.
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for frame := range out {
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			err := conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	// Reader loop: keepalive only.
	for {
		_, _, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				srv.log.Debug("ws closed",
					zap.String("session_id", sessionID),
					zap.String("player_id", playerID),
					zap.Error(err))
			}
			return
		}
	}
}
