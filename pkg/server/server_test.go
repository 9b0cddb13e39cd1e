package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgarciatw/graphQL-Library/pkg/config"
	"github.com/hectorgarciatw/graphQL-Library/pkg/graphql"
	"github.com/hectorgarciatw/graphQL-Library/pkg/logging"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.HTTPPort = 0 // pick a free port
	cfg.Auth.Secret = "test-secret"

	s := New(cfg, WithLogger(logging.Nop()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = s.Stop(stopCtx)
	})

	return s
}

// endpoint converts the server's listen address into a dialable URL.
func endpoint(t *testing.T, s *Server, scheme string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	return scheme + "://127.0.0.1:" + port + "/graphql"
}

func post(t *testing.T, url, token, query string, vars map[string]interface{}) *graphql.Response {
	t.Helper()

	body, err := json.Marshal(graphql.Request{Query: query, Variables: vars})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var resp graphql.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&resp))
	return &resp
}

func TestServerEndToEnd(t *testing.T) {
	s := startTestServer(t)
	url := endpoint(t, s, "http")

	// Sign up and log in.
	resp := post(t, url, "",
		`mutation { createUser(username: "alice", favoriteGenre: "fantasy", password: "s3cret") { username } }`, nil)
	require.Empty(t, resp.Errors)

	resp = post(t, url, "",
		`mutation { login(username: "alice", password: "s3cret") { value favoriteGenre } }`, nil)
	require.Empty(t, resp.Errors)
	login := resp.Data.(map[string]interface{})["login"].(map[string]interface{})
	token := login["value"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "fantasy", login["favoriteGenre"])

	// The token authenticates follow-up requests.
	resp = post(t, url, token, `{ me { username } }`, nil)
	require.Empty(t, resp.Errors)
	me := resp.Data.(map[string]interface{})["me"].(map[string]interface{})
	assert.Equal(t, "alice", me["username"])

	// Mutations are gated on authentication.
	resp = post(t, url, "",
		`mutation { addBook(title: "The Hobbit", author: "Tolkien", published: 1937, genres: ["fantasy"]) { title } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, graphql.CodeUnauthenticated, resp.Errors[0].Extensions["code"])

	resp = post(t, url, token,
		`mutation { addBook(title: "The Hobbit", author: "Tolkien", published: 1937, genres: ["fantasy"]) { title author { name bookCount } } }`, nil)
	require.Empty(t, resp.Errors)
	book := resp.Data.(map[string]interface{})["addBook"].(map[string]interface{})
	assert.Equal(t, "The Hobbit", book["title"])
	assert.Equal(t, "Tolkien", book["author"].(map[string]interface{})["name"])

	resp = post(t, url, "", `{ bookCount authorCount allBooks { title } }`, nil)
	require.Empty(t, resp.Errors)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["bookCount"])
	assert.Equal(t, float64(1), data["authorCount"])
	assert.Len(t, data["allBooks"], 1)
}

func TestServerSubscriptionOverWebSocket(t *testing.T) {
	s := startTestServer(t)
	url := endpoint(t, s, "http")
	wsURL := endpoint(t, s, "ws")

	// A user to authenticate the mutation.
	resp := post(t, url, "",
		`mutation { createUser(username: "alice", favoriteGenre: "fantasy", password: "s3cret") { username } }`, nil)
	require.Empty(t, resp.Errors)
	resp = post(t, url, "",
		`mutation { login(username: "alice", password: "s3cret") { value } }`, nil)
	require.Empty(t, resp.Errors)
	token := resp.Data.(map[string]interface{})["login"].(map[string]interface{})["value"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"graphql-transport-ws"},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	writeWS := func(v map[string]interface{}) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
	}
	readWS := func() map[string]interface{} {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	writeWS(map[string]interface{}{"type": "connection_init"})
	require.Equal(t, "connection_ack", readWS()["type"])

	writeWS(map[string]interface{}{
		"id":   "1",
		"type": "subscribe",
		"payload": map[string]interface{}{
			"query": `subscription { bookAdded { title author { name } } }`,
		},
	})

	// Give the subscription time to register before mutating.
	time.Sleep(100 * time.Millisecond)

	resp = post(t, url, token,
		`mutation { addBook(title: "The Hobbit", author: "Tolkien", published: 1937, genres: ["fantasy"]) { title } }`, nil)
	require.Empty(t, resp.Errors)

	msg := readWS()
	require.Equal(t, "next", msg["type"])
	payload := msg["payload"].(map[string]interface{})
	book := payload["data"].(map[string]interface{})["bookAdded"].(map[string]interface{})
	assert.Equal(t, "The Hobbit", book["title"])
	assert.Equal(t, "Tolkien", book["author"].(map[string]interface{})["name"])
}

func TestServerRejectsStartWithoutSecret(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPPort = 0

	s := New(cfg, WithLogger(logging.Nop()))
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsRunning())
}

func TestServerStopIsIdempotent(t *testing.T) {
	s := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}
