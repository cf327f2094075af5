package chathandler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/jwkoh/maeul-market/internal/auth"
	"github.com/jwkoh/maeul-market/internal/chat"
	chatservice "github.com/jwkoh/maeul-market/internal/chat/service"
	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
	"github.com/jwkoh/maeul-market/internal/transport/httpapi"
)

type Handler struct {
	service *chatservice.Service
	log     *slog.Logger
}

func New(service *chatservice.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type CreateRoomRequest struct {
	PostID int64 `json:"postId"`
}

type CreateRoomResponse struct {
	resp.Response
	RoomID  int64 `json:"roomId"`
	Created bool  `json:"created"`
}

type GetRoomsResponse struct {
	resp.Response
	Rooms []chat.RoomSummary `json:"rooms"`
}

type GetPostRoomsResponse struct {
	resp.Response
	Rooms []chat.PostRoomSummary `json:"rooms"`
}

type GetRoomResponse struct {
	resp.Response
	Room chat.RoomDetail `json:"room"`
}

type GetMessagesResponse struct {
	resp.Response
	Messages []chat.Message `json:"messages"`
}

type SendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type SendMessageResponse struct {
	resp.Response
	Message chat.Message `json:"message"`
}

type MarkReadResponse struct {
	resp.Response
	LastReadMessageID int64 `json:"lastReadMessageId"`
}

// CreateRoom opens (or returns) the caller's room on a listing.
func (h *Handler) CreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.CreateRoom"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRoomRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.PostID <= 0 {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		userID := auth.UserID(r)

		roomID, created, err := h.service.GetOrCreateRoom(r.Context(), req.PostID, userID)
		if err != nil {
			log.Error("failed to create room", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		if created {
			log.Info("room created",
				slog.Int64("room_id", roomID),
				slog.Int64("post_id", req.PostID),
			)
		}

		render.JSON(w, r, CreateRoomResponse{
			Response: resp.OK(),
			RoomID:   roomID,
			Created:  created,
		})
	}
}

// GetRooms returns the caller's chat list, newest conversation first.
func (h *Handler) GetRooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.GetRooms"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := auth.UserID(r)

		rooms, err := h.service.ListRooms(r.Context(), userID)
		if err != nil {
			log.Error("failed to get rooms", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		if rooms == nil {
			rooms = []chat.RoomSummary{}
		}

		render.JSON(w, r, GetRoomsResponse{
			Response: resp.OK(),
			Rooms:    rooms,
		})
	}
}

// GetPostRooms lists conversations on one listing: all of them for the
// seller, only the caller's own for anyone else.
func (h *Handler) GetPostRooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.GetPostRooms"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		postID, ok := pathID(r, "postId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_post_id", "invalid postId")
			return
		}

		userID := auth.UserID(r)

		rooms, err := h.service.ListRoomsForPost(r.Context(), postID, userID)
		if err != nil {
			log.Error("failed to get post rooms", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, GetPostRoomsResponse{
			Response: resp.OK(),
			Rooms:    rooms,
		})
	}
}

func (h *Handler) GetRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.GetRoom"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		userID := auth.UserID(r)

		room, err := h.service.RoomDetail(r.Context(), roomID, userID)
		if err != nil {
			log.Error("failed to get room", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, GetRoomResponse{
			Response: resp.OK(),
			Room:     room,
		})
	}
}

// GetMessages pages the room history backwards: ?before=<id> returns the page
// older than that message, no cursor returns the latest page.
func (h *Handler) GetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.GetMessages"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		userID := auth.UserID(r)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		beforeID, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)

		msgs, err := h.service.Messages(r.Context(), roomID, userID, limit, beforeID)
		if err != nil {
			log.Error("failed to get messages", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}

		render.JSON(w, r, GetMessagesResponse{
			Response: resp.OK(),
			Messages: msgs,
		})
	}
}

func (h *Handler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.SendMessage"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		var req SendMessageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		userID := auth.UserID(r)

		msg, err := h.service.SendMessage(r.Context(), roomID, userID, req.Content, req.MessageType)
		if err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, SendMessageResponse{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

// CreateAppointment stores a structured appointment message; listing owner
// only.
func (h *Handler) CreateAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.CreateAppointment"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		var req chat.Appointment
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		userID := auth.UserID(r)

		msg, err := h.service.CreateAppointment(r.Context(), roomID, userID, req)
		if err != nil {
			log.Error("failed to create appointment", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, SendMessageResponse{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

// MarkRead moves the caller's read watermark to the newest message.
func (h *Handler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.MarkRead"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		userID := auth.UserID(r)

		watermark, err := h.service.MarkRoomRead(r.Context(), roomID, userID)
		if err != nil {
			log.Error("failed to mark room read", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, MarkReadResponse{
			Response:          resp.OK(),
			LastReadMessageID: watermark,
		})
	}
}

func (h *Handler) LeaveRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chat.LeaveRoom"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roomID, ok := pathID(r, "roomId")
		if !ok {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_room_id", "invalid roomId")
			return
		}

		userID := auth.UserID(r)

		if err := h.service.LeaveRoom(r.Context(), roomID, userID); err != nil {
			log.Error("failed to leave room", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		log.Info("room left", slog.Int64("room_id", roomID))

		render.JSON(w, r, resp.OK())
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
