package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"liveroom/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events streams a room's StateChangeEvents over a websocket in sequence
// order. The engine drops us if we fall behind; the client reconnects and
// resumes from the room snapshot.
func (ctl *RoomController) Events(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	events, cancel, err := ctl.Engine.Subscribe(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		log.Error().Str("module", "adapters.http").Err(err).Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(roomID)).Msg("event subscriber connected")

	// Reader only watches for the peer hanging up.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		_ = ws.Close()
	}()
	for ev := range events {
		if err := ws.WriteJSON(ev); err != nil {
			return
		}
	}
}
