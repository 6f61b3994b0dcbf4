package handlers

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gouauth/internal/apperr"
)

var validate = validator.New()

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// respondError maps domain errors to their status/code pair. Anything that
// is not an apperr surfaces as a plain 500 with no detail.
func respondError(w http.ResponseWriter, r *http.Request, lg *zap.SugaredLogger, err error) {
	e := apperr.From(err)
	if e == nil {
		lg.Errorw("unhandled error", "error", err)
		respondJSON(w, r, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}
	if e.Kind == apperr.KindInternal {
		lg.Errorw("internal error", "error", errors.Unwrap(e))
	}
	respondJSON(w, r, e.Status(), errorBody{Code: e.Code, Message: e.Message})
}

// decode unmarshals and validates a request body.
func decode(r *http.Request, dst interface{}) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperr.Invalid("INVALID_BODY", "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Invalid("VALIDATION_FAILED", err.Error())
	}
	return nil
}

// clientIP strips the port RealIP may have left on RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func queryBool(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}
