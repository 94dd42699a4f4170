package transport

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// maxWebSocketReadBytes bounds a single inbound frame; MCP tool
// arguments are small JSON objects, so this is generous rather than
// tight.
const maxWebSocketReadBytes = 4 << 20 // 4 MiB

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSStream adapts a *websocket.Conn to jsonrpc2.ObjectStream using
// text-frame JSON messages (spec §4.8 "WebSocket transport: one JSON-RPC
// message per text frame"), grounded on bennypowers-cem/serve's
// connWrapper: a single write mutex serializes concurrent WriteObject
// calls the same way connWrapper serializes broadcasts.
type WSStream struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteObject marshals v and sends it as a single text frame.
func (s *WSStream) WriteObject(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// ReadObject blocks for the next text frame and unmarshals it into v.
func (s *WSStream) ReadObject(v any) error {
	return s.conn.ReadJSON(v)
}

// Close closes the underlying WebSocket connection.
func (s *WSStream) Close() error {
	return s.conn.Close()
}

// Handler upgrades incoming HTTP requests to WebSocket MCP sessions,
// enforcing an optional bearer token before handing the connection to
// accept. Grounded on bennypowers-cem/serve's websocketManager.
// HandleConnection, minus the broadcast/page-tracking concerns that
// file needs and devbridge does not (MCP sessions never fan out to other
// clients).
type Handler struct {
	AuthToken string // empty disables the check
	Logger    *log.Logger
	// Accept is invoked once per successfully authenticated connection,
	// in its own goroutine, with the upgraded stream. Accept owns the
	// stream's lifetime and must Close it when the session ends.
	Accept func(stream *WSStream, r *http.Request)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("websocket upgrade failed", "err", err)
		}
		return
	}
	conn.SetReadLimit(maxWebSocketReadBytes)

	if h.AuthToken != "" && !h.authorized(r) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid or missing bearer token"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	stream := &WSStream{conn: conn}
	h.Accept(stream, r)
}

// authorized checks the Authorization: Bearer <token> header, falling
// back to a ?token= query parameter for browser-based MCP clients that
// cannot set custom headers on a WebSocket handshake.
func (h *Handler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == h.AuthToken
	}
	return r.URL.Query().Get("token") == h.AuthToken
}
