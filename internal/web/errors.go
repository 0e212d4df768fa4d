package web

import (
	"context"
	"errors"
	"log"
	"net/http"

	"facerank/internal/back"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// nolint:gochecknoglobals
var (
	errRateLimited    = &back.Error{Code: "rate_limited", Message: "too many votes, slow down"}
	internalErrorBody = []byte(`{"code":"internal","message":"internal error"}`)
)

func badRequest(msg string) error {
	return &back.Error{Code: back.ErrInvalidArgument.Code, Message: msg}
}

func statusOfCode(code string) int {
	switch code {
	case back.ErrInvalidVote.Code, back.ErrInvalidArgument.Code:
		return http.StatusBadRequest
	case back.ErrSelfVote.Code:
		return http.StatusForbidden
	case back.ErrNotFound.Code:
		return http.StatusNotFound
	case back.ErrUnavailable.Code:
		return http.StatusConflict
	case back.ErrPhotoInactive.Code:
		return http.StatusGone
	case back.ErrDuplicateVote.Code, errRateLimited.Code:
		return http.StatusTooManyRequests
	case back.ErrConcurrencyConflict.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponseOf maps an error to what is sent to the client. Only engine
// errors have their message sent, anything else is logged and hidden.
func errorResponseOf(err error) (int, ErrorResponse) {
	var e *back.Error
	if errors.As(err, &e) {
		code := statusOfCode(e.Code)
		log.Printf("debug: %d %s: %s", code, e.Code, e.Message)
		return code, ErrorResponse{Code: e.Code, Message: e.Message}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Printf("warning: request aborted: %s", err)
		return http.StatusServiceUnavailable, ErrorResponse{Code: "timeout", Message: "request timed out"}
	}

	log.Printf("error: %s", err)
	return http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "internal error"}
}
