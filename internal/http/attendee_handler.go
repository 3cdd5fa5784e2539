package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
)

type attendanceService interface {
	Register(ctx context.Context, userID, meetingID int64) (application.Attendee, error)
	Update(ctx context.Context, attendeeID, userID, meetingID int64) (application.Attendee, error)
	Remove(ctx context.Context, attendeeID int64) (bool, error)
	RemoveByPair(ctx context.Context, userID, meetingID int64) (bool, error)
	Get(ctx context.Context, attendeeID int64) (application.Attendee, error)
	List(ctx context.Context) ([]application.Attendee, error)
	AttendeesOfMeeting(ctx context.Context, meetingID int64) ([]application.User, error)
	MeetingsOfUser(ctx context.Context, userID int64) ([]application.Meeting, error)
	CountForMeeting(ctx context.Context, meetingID int64) (int, error)
	Exists(ctx context.Context, userID, meetingID int64) (bool, error)
}

// AttendeeHandler serves attendance registrations and queries.
type AttendeeHandler struct {
	service   attendanceService
	responder responder
	logger    *zap.Logger
}

func NewAttendeeHandler(service attendanceService, logger *zap.Logger) *AttendeeHandler {
	base := defaultLogger(logger)
	return &AttendeeHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AttendeeHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "AttendeeHandler", operation, fields...)
}

func (h *AttendeeHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req attendeeRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Register", zap.String("error_kind", code)).Warn("failed to decode attendee request", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	attendee, err := h.service.Register(ctx, req.UserID, req.MeetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *AttendeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	var req attendeeRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Update", zap.Int64("attendee_id", id), zap.String("error_kind", code)).Warn("failed to decode attendee update", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	attendee, err := h.service.Update(ctx, id, req.UserID, req.MeetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *AttendeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	attendee, err := h.service.Get(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *AttendeeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendees, err := h.service.List(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	out := make([]attendeeDTO, len(attendees))
	for i, a := range attendees {
		out[i] = toAttendeeDTO(a)
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listAttendeesResponse{Attendees: out})
}

func (h *AttendeeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	removed, err := h.service.Remove(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !removed {
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errAttendeeNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// RemoveByPair answers 200 whether or not a row existed; repeating the
// call is safe and reports removed=false.
func (h *AttendeeHandler) RemoveByPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, meetingID, ok := h.pairFromQuery(w, r)
	if !ok {
		return
	}

	removed, err := h.service.RemoveByPair(ctx, userID, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, removedResponse{Removed: removed})
}

func (h *AttendeeHandler) Exists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, meetingID, ok := h.pairFromQuery(w, r)
	if !ok {
		return
	}

	exists, err := h.service.Exists(ctx, userID, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, existsResponse{Exists: exists})
}

func (h *AttendeeHandler) OfMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	users, err := h.service.AttendeesOfMeeting(ctx, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	out := make([]userDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listUsersResponse{Users: out})
}

func (h *AttendeeHandler) CountForMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	count, err := h.service.CountForMeeting(ctx, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, countResponse{Count: count})
}

func (h *AttendeeHandler) MeetingsOfUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	meetings, err := h.service.MeetingsOfUser(ctx, userID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	out := make([]meetingDTO, len(meetings))
	for i, m := range meetings {
		out[i] = toMeetingDTO(m)
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listMeetingsResponse{Meetings: out})
}

func (h *AttendeeHandler) pairFromQuery(w http.ResponseWriter, r *http.Request) (userID, meetingID int64, ok bool) {
	var err error
	if userID, err = queryID(r, "user_id"); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, err)
		return 0, 0, false
	}
	if meetingID, err = queryID(r, "meeting_id"); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, err)
		return 0, 0, false
	}
	return userID, meetingID, true
}

type attendeeRequest struct {
	UserID    int64 `json:"user_id"`
	MeetingID int64 `json:"meeting_id"`
}

type attendeeResponse struct {
	Attendee attendeeDTO `json:"attendee"`
}

type listAttendeesResponse struct {
	Attendees []attendeeDTO `json:"attendees"`
}

type removedResponse struct {
	Removed bool `json:"removed"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type countResponse struct {
	Count int `json:"count"`
}

type attendeeDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	MeetingID int64  `json:"meeting_id"`
	CreatedAt string `json:"created_at"`
}

func toAttendeeDTO(a application.Attendee) attendeeDTO {
	return attendeeDTO{
		ID:        a.ID,
		UserID:    a.UserID,
		MeetingID: a.MeetingID,
		CreatedAt: formatTimestamp(a.CreatedAt),
	}
}
