package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jwkoh/maeul-market/internal/auth"
	"github.com/jwkoh/maeul-market/internal/chat"
	chatrepo "github.com/jwkoh/maeul-market/internal/chat/repo"
	chatservice "github.com/jwkoh/maeul-market/internal/chat/service"
	"github.com/jwkoh/maeul-market/internal/posts"
	"github.com/jwkoh/maeul-market/internal/storage/sqlite"
	"github.com/jwkoh/maeul-market/internal/ws"
	"github.com/jwkoh/maeul-market/internal/ws/hub"
)

type socketEnv struct {
	srv    *httptest.Server
	tokens *auth.TokenManager
	hub    *hub.Hub
	svc    *chatservice.Service
	db     *sqlx.DB
}

func newSocketEnv(t *testing.T) *socketEnv {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "ws_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := hub.NewHub()
	go h.Run()

	svc := chatservice.New(chatrepo.New(context.Background(), db), posts.NewRepo(db), ws.NewBroadcaster(h))
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))
		r.Get("/ws", WSHandler(h, svc, log))
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &socketEnv{srv: srv, tokens: tokens, hub: h, svc: svc, db: db}
}

func (e *socketEnv) createUser(t *testing.T, nickname string) int64 {
	t.Helper()

	var id int64
	err := e.db.QueryRow(`INSERT INTO users (nickname) VALUES (?) RETURNING id`, nickname).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *socketEnv) createPost(t *testing.T, userID int64, title string) int64 {
	t.Helper()

	var id int64
	err := e.db.QueryRow(`INSERT INTO posts (user_id, title) VALUES (?, ?) RETURNING id`, userID, title).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *socketEnv) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()

	token, err := e.tokens.Issue(userID, "")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	// First frame is always the hello.
	frame := readFrame(t, conn)
	require.Equal(t, ws.EventHello, frame["type"])

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// readUntilType drains frames until one of the wanted type arrives and
// returns every frame read along the way, the wanted one last.
func readUntilType(t *testing.T, conn *websocket.Conn, wantType string) []map[string]any {
	t.Helper()

	var frames []map[string]any
	for i := 0; i < 10; i++ {
		frame := readFrame(t, conn)
		frames = append(frames, frame)
		if frame["type"] == wantType {
			return frames
		}
	}
	t.Fatalf("no %q frame within 10 reads", wantType)
	return nil
}

func TestWSHandler_SendMessageAck(t *testing.T) {
	req := require.New(t)
	env := newSocketEnv(t)

	seller := env.createUser(t, "seller")
	buyer := env.createUser(t, "buyer")
	post := env.createPost(t, seller, "stroller")
	roomID, _, err := env.svc.GetOrCreateRoom(context.Background(), post, buyer)
	req.NoError(err)

	conn := env.dial(t, buyer)

	// Rejected sends answer with ok=false and a machine-readable message.
	req.NoError(conn.WriteJSON(ClientMsg{Type: "send_message", RoomID: roomID, Content: "   "}))
	frames := readUntilType(t, conn, ws.EventSendResult)
	ack := frames[len(frames)-1]
	req.Equal(false, ack["ok"])
	req.Equal("empty_content", ack["message"])
	req.NotContains(ack, "error")
	req.NotContains(ack, "messageId")

	req.NoError(conn.WriteJSON(ClientMsg{Type: "send_message", RoomID: roomID, Content: "still there?"}))
	frames = readUntilType(t, conn, ws.EventSendResult)
	ack = frames[len(frames)-1]
	req.Equal(true, ack["ok"])
	req.Positive(ack["messageId"].(float64))
	req.NotContains(ack, "message")
}

func TestWSHandler_JoinValidationAndFanout(t *testing.T) {
	req := require.New(t)
	env := newSocketEnv(t)

	seller := env.createUser(t, "seller")
	buyer := env.createUser(t, "buyer")
	post := env.createPost(t, seller, "bassinet")
	roomID, _, err := env.svc.GetOrCreateRoom(context.Background(), post, buyer)
	req.NoError(err)

	conn := env.dial(t, buyer)

	// Malformed join frames must not create junk subscriptions.
	req.NoError(conn.WriteJSON(ClientMsg{Type: "join_room", RoomID: 0}))
	req.NoError(conn.WriteJSON(ClientMsg{Type: "join_community_post", PostID: 0}))
	req.NoError(conn.WriteJSON(ClientMsg{Type: "join_community_post", PostID: -7}))
	req.NoError(conn.WriteJSON(ClientMsg{Type: "join_room", RoomID: roomID}))

	// The ack doubles as a barrier: the handler loop is sequential, so once
	// it answers, every join frame above has been processed.
	req.NoError(conn.WriteJSON(ClientMsg{Type: "send_message", RoomID: roomID, Content: ""}))
	readUntilType(t, conn, ws.EventSendResult)

	env.hub.Broadcast("room:0", []byte(`{"type":"junk"}`))
	env.hub.Broadcast("community_post:0", []byte(`{"type":"junk"}`))
	env.hub.Broadcast("community_post:-7", []byte(`{"type":"junk"}`))

	// A real message lands on the joined room topic. The hub is FIFO, so if
	// any junk subscription existed its frame would arrive first.
	sent, err := env.svc.SendMessage(context.Background(), roomID, seller, "ready for pickup", chat.TypeText)
	req.NoError(err)

	frames := readUntilType(t, conn, ws.EventNewMessage)
	for _, frame := range frames {
		req.NotEqual("junk", frame["type"])
	}

	last := frames[len(frames)-1]
	msg, ok := last["message"].(map[string]any)
	req.True(ok)
	req.EqualValues(sent.ID, msg["id"].(float64))
	req.Equal("ready for pickup", msg["content"])
}
