package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/jwkoh/maeul-market/internal/auth"
	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
	"github.com/jwkoh/maeul-market/internal/users"
)

type Handler struct {
	repo  *Repo
	users *users.Repo
	views *ViewCache
	log   *slog.Logger
}

func NewHandler(repo *Repo, usersRepo *users.Repo, views *ViewCache, log *slog.Logger) *Handler {
	return &Handler{repo: repo, users: usersRepo, views: views, log: log}
}

type GetPostResponse struct {
	resp.Response
	Post           Post    `json:"post"`
	SellerNickname string  `json:"sellerNickname"`
	ImageURLs      *string `json:"imageUrls"`
}

// GetPost returns one listing with its seller's nickname. Each authenticated
// visitor bumps the view counter at most once per window.
func (h *Handler) GetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.posts.GetPost"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		postID, err := strconv.ParseInt(chi.URLParam(r, "postId"), 10, 64)
		if err != nil || postID <= 0 {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_post_id", "invalid postId")
			return
		}

		post, err := h.repo.Get(r.Context(), postID)
		if err != nil {
			if errors.Is(err, ErrPostNotFound) {
				resp.WriteError(w, r, http.StatusNotFound, "post_not_found", "post not found")
				return
			}
			log.Error("failed to get post", sl.Err(err))
			resp.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		visitorID := auth.UserID(r)
		if visitorID != post.UserID && !h.views.Seen(visitorID, postID, time.Now()) {
			if err := h.repo.IncrementViews(r.Context(), postID); err != nil {
				log.Warn("failed to count view", sl.Err(err))
			} else {
				post.Views++
			}
		}

		nickname, err := h.users.Nickname(r.Context(), post.UserID)
		if err != nil {
			log.Warn("failed to get seller nickname", sl.Err(err))
		}

		var images *string
		if post.ImageURLs.Valid && post.ImageURLs.String != "" {
			images = &post.ImageURLs.String
		}

		render.JSON(w, r, GetPostResponse{
			Response:       resp.OK(),
			Post:           post,
			SellerNickname: nickname,
			ImageURLs:      images,
		})
	}
}
