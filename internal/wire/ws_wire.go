package wire

import (
	"tcg-server/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireWS(r chi.Router, wsHandler *adaptor.WSHandler) {
	r.Method("GET", "/ws", wsHandler)
}
