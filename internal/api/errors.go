package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}

	switch docerrors.GetCode(err) {
	case docerrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case docerrors.ErrCodeProviderRateLimited:
		return http.StatusTooManyRequests
	case docerrors.ErrCodeRebuildInProgress:
		return http.StatusConflict
	case docerrors.ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	case docerrors.ErrCodeProviderUnavailable, docerrors.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case docerrors.ErrCodeEmbeddingFailed, docerrors.ErrCodeCompletionFailed:
		return http.StatusBadGateway
	}

	switch docerrors.GetCategory(err) {
	case docerrors.CategoryValidation:
		return http.StatusBadRequest
	case docerrors.CategoryProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": {"code", "message"}} and logs it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := docerrors.GetCode(err)
	msg := err.Error()
	if de, ok := docerrors.As(err); ok {
		msg = de.Message
	}
	if code == "" {
		code = docerrors.ErrCodeInternal
	}

	status := statusFor(err)
	attrs := append([]any{
		slog.String("request_id", requestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
	}, docerrors.FormatForLog(err)...)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}
