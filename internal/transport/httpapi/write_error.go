package httpapi

import (
	"net/http"

	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
)

func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := MapError(err)
	resp.WriteError(w, r, status, code, msg)
}
