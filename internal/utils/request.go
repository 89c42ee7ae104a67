package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"busticket/internal/apperr"

	"github.com/go-chi/chi/v5"
)

// ParseID reads a positive integer URL parameter.
func ParseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError{Field: name, Msg: "must be a positive integer"}
	}
	return id, nil
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.ValidationError{Msg: "Invalid request body", Err: err}
	}
	return nil
}

// ClientIP prefers X-Forwarded-For, then the remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
