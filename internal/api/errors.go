package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camcap/pkg/capture"
)

// mapCaptureError converts a coded capture error to an HTTP status.
func mapCaptureError(err error) error {
	var ce *capture.Error
	if !errors.As(err, &ce) {
		return huma.Error500InternalServerError("Internal server error", err)
	}
	msg := ce.Error()
	switch ce.Code {
	case capture.ErrInvalidFormat, capture.ErrInvalidControlValue:
		return huma.Error422UnprocessableEntity(msg, err)
	case capture.ErrStreamState:
		return huma.Error409Conflict(msg, err)
	case capture.ErrDeviceUnavailable:
		return huma.Error503ServiceUnavailable(msg, err)
	case capture.ErrUnsupportedOperation:
		return huma.Error501NotImplemented(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
