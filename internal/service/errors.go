package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitevent/internal/apperr"
)

// toConnectError maps the apperr taxonomy onto Connect codes. Anything that is
// not a caller error is logged and hidden behind a generic message.
func toConnectError(op string, err error) error {
	if !apperr.IsDomain(err) {
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal server error"))
	}

	var code connect.Code
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = connect.CodeInvalidArgument
	case errors.Is(err, apperr.ErrNotFound):
		code = connect.CodeNotFound
	default:
		code = connect.CodeAborted
	}

	slog.Info(op+" rejected", "code", code, "reason", apperr.Message(err))
	return connect.NewError(code, errors.New(apperr.Message(err)))
}
