package transport

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerAuthorizedBearerHeader(t *testing.T) {
	h := &Handler{AuthToken: "secret"}
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.True(t, h.authorized(req))

	req.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, h.authorized(req))
}

func TestHandlerAuthorizedQueryFallback(t *testing.T) {
	h := &Handler{AuthToken: "secret"}
	req := httptest.NewRequest(http.MethodGet, "/mcp?token=secret", nil)
	assert.True(t, h.authorized(req))

	req = httptest.NewRequest(http.MethodGet, "/mcp?token=wrong", nil)
	assert.False(t, h.authorized(req))
}

func TestHandlerRejectsUnauthorizedUpgrade(t *testing.T) {
	var accepted bool
	h := &Handler{
		AuthToken: "secret",
		Accept: func(stream *WSStream, r *http.Request) {
			accepted = true
		},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		defer conn.Close()
	}
	_ = resp
	assert.False(t, accepted)
}

func TestHandlerAcceptsAuthorizedConnection(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	h := &Handler{
		AuthToken: "secret",
		Accept: func(stream *WSStream, r *http.Request) {
			defer wg.Done()
			var got map[string]string
			require.NoError(t, stream.ReadObject(&got))
			require.NoError(t, stream.WriteObject(map[string]string{"echo": got["hello"]}))
		},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	q := u.Query()
	q.Set("token", "secret")
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"hello": "world"}))

	var reply map[string]string
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "world", reply["echo"])

	wg.Wait()
}
