package engine

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getmockd/wscheck/pkg/websocket"
)

// plainBody is the fixed response for every non-upgrade request.
const plainBody = "wscheck harness: connect with a WebSocket client\n"

// handler dispatches each accepted request: upgrade requests go to the
// gatekeeper, everything else gets the plain responder. Exactly one of
// the two runs per request; there is no routing. errSink, when set,
// receives handshake failures so the transport's control channel can
// carry them.
type handler struct {
	gatekeeper *websocket.Gatekeeper
	log        *slog.Logger
	errSink    func(error)
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsUpgradeRequest(r) {
		h.servePlain(w, r)
		return
	}
	if err := h.gatekeeper.HandleUpgrade(w, r); err != nil {
		// Handshake failure; the response has already been written.
		h.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		if h.errSink != nil {
			h.errSink(fmt.Errorf("upgrade %s: %w", r.RemoteAddr, err))
		}
	}
}

// servePlain unconditionally answers 200 with a fixed plaintext body,
// independent of method and path.
func (h *handler) servePlain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(plainBody))
}
