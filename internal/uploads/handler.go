package uploads

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
	"github.com/jwkoh/maeul-market/internal/lib/logger/sl"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type PresignUploadRequest struct {
	ContentType string `json:"contentType"`
}

type PresignUploadResponse struct {
	resp.Response
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

type PresignDownloadRequest struct {
	Key string `json:"key"`
}

type PresignDownloadResponse struct {
	resp.Response
	URL string `json:"url"`
}

func (h *Handler) PresignUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignUpload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignUploadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		key, url, err := h.service.PresignUpload(r.Context(), req.ContentType)
		if err != nil {
			writeUploadError(w, r, log, "presign upload error", err)
			return
		}

		render.JSON(w, r, PresignUploadResponse{
			Response:  resp.OK(),
			Key:       key,
			UploadURL: url,
		})
	}
}

func (h *Handler) PresignDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignDownload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignDownloadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			resp.WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid body")
			return
		}

		url, err := h.service.PresignDownload(r.Context(), req.Key)
		if err != nil {
			writeUploadError(w, r, log, "presign download error", err)
			return
		}

		render.JSON(w, r, PresignDownloadResponse{
			Response: resp.OK(),
			URL:      url,
		})
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	switch {
	case errors.Is(err, ErrContentTypeIsRequired):
		resp.WriteError(w, r, http.StatusBadRequest, "content_type_required", err.Error())
	case errors.Is(err, ErrInvalidContentType):
		resp.WriteError(w, r, http.StatusBadRequest, "invalid_content_type", err.Error())
	case errors.Is(err, ErrInvalidKey):
		resp.WriteError(w, r, http.StatusBadRequest, "invalid_key", err.Error())
	default:
		log.Error(msg, sl.Err(err))
		resp.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
