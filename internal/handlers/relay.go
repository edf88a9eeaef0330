package handlers

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/coder/websocket"

	"github.com/gluk-w/firedesk/internal/logutil"
)

const relayReadLimit = 4 * 1024 * 1024

// Close codes the relay uses when it cannot bridge the two sides.
const (
	closeBadSubprotocol     websocket.StatusCode = 4400
	closeBackendUnreachable websocket.StatusCode = 4502
)

// Relay bridges a client WebSocket to an Xpra session's WebSocket endpoint,
// selected by ?host= and ?port=. The client must negotiate the "binary"
// subprotocol (Xpra's framing); frames are forwarded byte-identically in
// both directions until either side closes.
func (a *API) Relay(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(r.URL.Query().Get("port"))
	if err != nil || port < 1 || port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid or missing port")
		return
	}

	clientConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{"binary"},
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Relay: accept error: %v", err)
		return
	}
	defer clientConn.CloseNow()

	if clientConn.Subprotocol() != "binary" {
		clientConn.Close(closeBadSubprotocol, "binary subprotocol required")
		return
	}

	dialCtx, dialCancel := context.WithTimeout(r.Context(), a.RelayConnectTimeout)
	defer dialCancel()

	backendURL := fmt.Sprintf("ws://%s/", net.JoinHostPort(host, strconv.Itoa(port)))
	backendConn, _, err := websocket.Dial(dialCtx, backendURL, &websocket.DialOptions{
		Subprotocols: []string{"binary"},
	})
	if err != nil {
		log.Printf("Relay: backend dial %s: %v", logutil.SanitizeForLog(backendURL), err)
		clientConn.Close(closeBackendUnreachable, "cannot connect to session backend")
		return
	}
	defer backendConn.CloseNow()

	clientConn.SetReadLimit(relayReadLimit)
	backendConn.SetReadLimit(relayReadLimit)

	relayCtx, relayCancel := context.WithCancel(r.Context())
	defer relayCancel()

	// Client → Backend
	go func() {
		defer relayCancel()
		for {
			msgType, data, err := clientConn.Read(relayCtx)
			if err != nil {
				return
			}
			if err := backendConn.Write(relayCtx, msgType, data); err != nil {
				return
			}
		}
	}()

	// Backend → Client
	func() {
		defer relayCancel()
		for {
			msgType, data, err := backendConn.Read(relayCtx)
			if err != nil {
				return
			}
			if err := clientConn.Write(relayCtx, msgType, data); err != nil {
				return
			}
		}
	}()

	clientConn.Close(websocket.StatusNormalClosure, "")
	backendConn.Close(websocket.StatusNormalClosure, "")
}
