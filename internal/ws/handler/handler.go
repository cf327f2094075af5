package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/jwkoh/maeul-market/internal/auth"
	"github.com/jwkoh/maeul-market/internal/chat"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
	"github.com/jwkoh/maeul-market/internal/ws"
	"github.com/jwkoh/maeul-market/internal/ws/hub"
)

// ChatAccess is the slice of the chat service the socket needs: the admission
// check for room topics and the write path for send_message frames.
type ChatAccess interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	SendMessage(ctx context.Context, roomID, callerID int64, content, messageType string) (chat.Message, error)
}

type ClientMsg struct {
	Type        string `json:"type"`
	RoomID      int64  `json:"roomId"`
	PostID      int64  `json:"postId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the connection and serves the client loop. The route
// sits behind the auth middleware, so the user is known before the upgrade;
// their user topic is subscribed immediately.
func WSHandler(h *hub.Hub, chats ChatAccess, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.handler.WSHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := auth.UserID(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer conn.Close()

		hc := hub.NewConnection(conn, userID)
		go hc.WritePump()

		h.Register(hc)
		defer h.Unregister(hc)

		h.Subscribe(hc, ws.UserTopic(userID))

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hello, _ := json.Marshal(map[string]any{"type": ws.EventHello, "ok": true})
		hc.Send(hello)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error("ws read error", sl.Err(err))
				}
				return
			}

			var msg ClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error("ws bad json", sl.Err(err))
				continue
			}

			switch msg.Type {
			case "join_room":
				if msg.RoomID <= 0 {
					continue
				}
				// Non-members are ignored without a reply; the socket must
				// not leak whether a room id exists.
				member, err := chats.IsMember(r.Context(), msg.RoomID, userID)
				if err != nil {
					log.Error("ws membership check failed", sl.Err(err))
					continue
				}
				if !member {
					continue
				}
				h.Subscribe(hc, ws.RoomTopic(msg.RoomID))

			case "leave_room":
				h.Unsubscribe(hc, ws.RoomTopic(msg.RoomID))

			case "join_community_post":
				if msg.PostID <= 0 {
					continue
				}
				h.Subscribe(hc, ws.CommunityPostTopic(msg.PostID))

			case "leave_community_post":
				h.Unsubscribe(hc, ws.CommunityPostTopic(msg.PostID))

			case "send_message":
				sent, err := chats.SendMessage(r.Context(), msg.RoomID, userID, msg.Content, msg.MessageType)
				ack := ws.SendResult{Type: ws.EventSendResult, OK: err == nil}
				if err != nil {
					ack.Message = sendErrorCode(err)
					if !errors.Is(err, chat.ErrNotMember) &&
						!errors.Is(err, chat.ErrRoomNotFound) &&
						!errors.Is(err, chat.ErrEmptyContent) {
						log.Error("ws send failed", sl.Err(err))
					}
				} else {
					ack.MessageID = sent.ID
				}
				if payload, err := json.Marshal(ack); err == nil {
					hc.Send(payload)
				}

			default:
				log.Info("ws unknown message type", slog.String("message_type", msg.Type))
			}
		}
	}
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, chat.ErrNotMember):
		return "room_forbidden"
	case errors.Is(err, chat.ErrRoomNotFound):
		return "room_not_found"
	default:
		return "internal_error"
	}
}
