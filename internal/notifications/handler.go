package notifications

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/jwkoh/maeul-market/internal/auth"
	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
	"github.com/jwkoh/maeul-market/internal/transport/httpapi"
)

// ChatCounter is the one count the badge endpoint needs.
type ChatCounter interface {
	CountRoomsWithNews(ctx context.Context, userID int64) (int64, error)
}

type Handler struct {
	chats ChatCounter
	log   *slog.Logger
}

func NewHandler(chats ChatCounter, log *slog.Logger) *Handler {
	return &Handler{chats: chats, log: log}
}

type CountsResponse struct {
	resp.Response
	ChatCount int64 `json:"chatCount"`
}

// GetCounts reports the number of rooms with unread counterpart messages.
// Recomputed on every call; nothing is stored per notification.
func (h *Handler) GetCounts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notifications.GetCounts"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := auth.UserID(r)

		count, err := h.chats.CountRoomsWithNews(r.Context(), userID)
		if err != nil {
			log.Error("failed to count rooms with news", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, CountsResponse{
			Response:  resp.OK(),
			ChatCount: count,
		})
	}
}
