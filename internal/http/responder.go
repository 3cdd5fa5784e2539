package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
	"github.com/example/meeting-tracker/internal/logging"
)

var (
	errBadRequestBody = errors.New("request body is malformed")
	errInvalidID      = errors.New("identifier must be a positive integer")
	errBodyTooLarge   = errors.New("request body is too large")

	errMeetingNotFound  = errors.New("meeting not found")
	errDocumentNotFound = errors.New("document not found")
	errAttendeeNotFound = errors.New("attendee not found")
	errUserNotFound     = errors.New("user not found")
	errLocationNotFound = errors.New("location not found")
)

// Reason codes for failures detected before a service is called.
const (
	codeBadRequest = "bad_request"
	codeTooLarge   = "too_large"
	codeNotFound   = "not_found"
)

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).Error("failed to encode response", zap.Error(err))
	}
}

// writeError answers a request rejected before reaching a service.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	r.writeJSON(ctx, w, status, r.errorBody(ctx, code, message))
}

// handleServiceError maps an application error to its status and reason
// code. Services have already logged the failure.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	r.writeServiceError(ctx, w, err, nil)
}

func (r responder) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, decorate func(*errorResponse)) {
	kind := application.ErrorKind(err)
	status := statusForKind(kind)

	body := r.errorBody(ctx, kind, publicMessage(err, status))
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		body.Errors = vErr.FieldErrors
	}
	if decorate != nil {
		decorate(&body)
	}
	r.writeJSON(ctx, w, status, body)
}

func (r responder) errorBody(ctx context.Context, code, message string) errorResponse {
	body := errorResponse{ErrorCode: code, Message: message}
	if id, ok := RequestIDFromContext(ctx); ok {
		body.RequestID = id
	}
	return body
}

func (r responder) loggerFor(ctx context.Context) *zap.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "validation":
		return http.StatusUnprocessableEntity
	case "not_found", "empty":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps unexpected errors opaque. Application errors carry
// messages that never include filesystem paths.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		var ioErr *application.IOError
		if errors.As(err, &ioErr) {
			return ioErr.Error()
		}
		return "internal server error"
	}
	if errors.Is(err, application.ErrEmptyBundle) {
		return "meeting has no downloadable documents"
	}
	return err.Error()
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	MeetingID int64             `json:"meeting_id,omitempty"`
	Created   []documentDTO     `json:"created,omitempty"`
}
