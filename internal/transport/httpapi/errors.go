package httpapi

import (
	"errors"
	"net/http"

	"github.com/jwkoh/maeul-market/internal/chat"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, chat.ErrPostNotFound):
		return http.StatusNotFound, "post_not_found", err.Error()

	case errors.Is(err, chat.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found", err.Error()

	case errors.Is(err, chat.ErrOwnPost):
		return http.StatusBadRequest, "own_post", err.Error()

	case errors.Is(err, chat.ErrNotMember):
		return http.StatusForbidden, "room_forbidden", err.Error()

	case errors.Is(err, chat.ErrNotPostOwner):
		return http.StatusForbidden, "not_post_owner", err.Error()

	case errors.Is(err, chat.ErrEmptyContent):
		return http.StatusBadRequest, "empty_content", err.Error()

	case errors.Is(err, chat.ErrInvalidAppointment):
		return http.StatusBadRequest, "invalid_appointment", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
