package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
)

type meetingService interface {
	Create(ctx context.Context, params application.CreateMeetingParams) (application.Meeting, error)
	Update(ctx context.Context, meetingID int64, input application.MeetingInput) (application.Meeting, bool, error)
	Delete(ctx context.Context, meetingID int64) (bool, error)
	Get(ctx context.Context, meetingID int64) (application.Meeting, error)
	List(ctx context.Context, filter application.MeetingFilter) ([]application.Meeting, error)
}

// MeetingHandler serves /api/meetings.
type MeetingHandler struct {
	service   meetingService
	responder responder
	logger    *zap.Logger
}

func NewMeetingHandler(service meetingService, logger *zap.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, fields...)
}

// Create accepts either a JSON body or a multipart form with a "meeting"
// JSON part and any number of "files" parts.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		req     meetingRequest
		uploads []application.FileUpload
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			status, code, msg := badRequestStatus(err)
			h.log(ctx, "Create", zap.String("error_kind", code)).Warn("failed to parse multipart form", zap.Error(err))
			h.responder.writeError(ctx, w, status, code, msg)
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("meeting")), &req); err != nil {
			h.log(ctx, "Create", zap.String("error_kind", codeBadRequest)).Warn("failed to decode meeting part", zap.Error(err))
			h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
			return
		}
		var (
			release func()
			err     error
		)
		uploads, release, err = openUploads(r.MultipartForm)
		if err != nil {
			h.log(ctx, "Create").Error("failed to open uploaded parts", zap.Error(err))
			h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
			return
		}
		defer release()
	} else if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Create", zap.String("error_kind", code)).Warn("failed to decode meeting request", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	params := application.CreateMeetingParams{
		Input:      req.toInput(),
		LocationID: req.LocationID,
		Files:      uploads,
	}
	if req.Location != nil {
		inline := req.Location.toInput()
		params.InlineLocation = &inline
	}

	meeting, err := h.service.Create(ctx, params)
	if err != nil {
		h.responder.writeServiceError(ctx, w, err, func(body *errorResponse) {
			if meeting.ID > 0 {
				body.MeetingID = meeting.ID
				body.Created = toDocumentDTOs(meeting.Documents)
			}
		})
		return
	}

	h.log(ctx, "Create", zap.Int64("meeting_id", meeting.ID)).Debug("meeting created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	meeting, err := h.service.Get(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

// List filters by ?from, ?to and ?location_id.
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter application.MeetingFilter
	var err error
	if filter.StartsAfter, err = optionalQueryTime(r, "from"); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if filter.EndsBefore, err = optionalQueryTime(r, "to"); err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if strings.TrimSpace(r.URL.Query().Get("location_id")) != "" {
		locationID, err := queryID(r, "location_id")
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
			return
		}
		filter.LocationID = &locationID
	}

	meetings, err := h.service.List(ctx, filter)
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

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	var req meetingRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Update", zap.Int64("meeting_id", id), zap.String("error_kind", code)).Warn("failed to decode meeting update", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}
	input := req.toInput()
	if req.LocationID != nil {
		input.LocationID = req.LocationID
	}

	meeting, updated, err := h.service.Update(ctx, id, *input)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !updated {
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errMeetingNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	deleted, err := h.service.Delete(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !deleted {
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errMeetingNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

type meetingRequest struct {
	Title      string           `json:"title"`
	StartDate  time.Time        `json:"start_date"`
	EndDate    time.Time        `json:"end_date"`
	AllDay     bool             `json:"all_day"`
	Color      string           `json:"color"`
	LocationID *int64           `json:"location_id"`
	Location   *locationRequest `json:"location"`
}

func (r meetingRequest) toInput() *application.MeetingInput {
	return &application.MeetingInput{
		Title:     r.Title,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		AllDay:    r.AllDay,
		Color:     strings.TrimSpace(r.Color),
	}
}

type meetingResponse struct {
	Meeting meetingDTO `json:"meeting"`
}

type listMeetingsResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

type meetingDTO struct {
	ID         int64         `json:"id"`
	Title      string        `json:"title"`
	StartDate  string        `json:"start_date"`
	EndDate    string        `json:"end_date"`
	AllDay     bool          `json:"all_day"`
	Color      string        `json:"color"`
	LocationID *int64        `json:"location_id"`
	Location   *locationDTO  `json:"location,omitempty"`
	Documents  []documentDTO `json:"documents,omitempty"`
	CreatedAt  string        `json:"created_at"`
	UpdatedAt  string        `json:"updated_at"`
}

func toMeetingDTO(m application.Meeting) meetingDTO {
	dto := meetingDTO{
		ID:         m.ID,
		Title:      m.Title,
		StartDate:  formatTimestamp(m.StartDate),
		EndDate:    formatTimestamp(m.EndDate),
		AllDay:     m.AllDay,
		Color:      m.Color,
		LocationID: m.LocationID,
		Documents:  toDocumentDTOs(m.Documents),
		CreatedAt:  formatTimestamp(m.CreatedAt),
		UpdatedAt:  formatTimestamp(m.UpdatedAt),
	}
	if m.Location != nil {
		loc := toLocationDTO(*m.Location)
		dto.Location = &loc
	}
	return dto
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
