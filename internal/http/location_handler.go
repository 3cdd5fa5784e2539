package http

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
)

type locationService interface {
	Create(ctx context.Context, input application.LocationInput) (application.Location, error)
	Update(ctx context.Context, locationID int64, input application.LocationInput) (application.Location, error)
	Get(ctx context.Context, locationID int64) (application.Location, error)
	List(ctx context.Context) ([]application.Location, error)
	Search(ctx context.Context, query string) ([]application.Location, error)
	Delete(ctx context.Context, locationID int64) (bool, error)
}

type LocationHandler struct {
	service   locationService
	responder responder
	logger    *zap.Logger
}

func NewLocationHandler(service locationService, logger *zap.Logger) *LocationHandler {
	base := defaultLogger(logger)
	return &LocationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *LocationHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "LocationHandler", operation, fields...)
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Create", zap.String("error_kind", code)).Warn("failed to decode location request", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	location, err := h.service.Create(ctx, req.toInput())
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, locationResponse{Location: toLocationDTO(location)})
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Update", zap.Int64("location_id", id), zap.String("error_kind", code)).Warn("failed to decode location update", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	location, err := h.service.Update(ctx, id, req.toInput())
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, locationResponse{Location: toLocationDTO(location)})
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	location, err := h.service.Get(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, locationResponse{Location: toLocationDTO(location)})
}

// List narrows by name when ?q is given.
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		locations []application.Location
		err       error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		locations, err = h.service.Search(ctx, q)
	} else {
		locations, err = h.service.List(ctx)
	}
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	out := make([]locationDTO, len(locations))
	for i, l := range locations {
		out[i] = toLocationDTO(l)
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listLocationsResponse{Locations: out})
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errLocationNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

type locationRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r locationRequest) toInput() application.LocationInput {
	return application.LocationInput{
		Name:      strings.TrimSpace(r.Name),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
}

type locationResponse struct {
	Location locationDTO `json:"location"`
}

type listLocationsResponse struct {
	Locations []locationDTO `json:"locations"`
}

type locationDTO struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func toLocationDTO(l application.Location) locationDTO {
	return locationDTO{ID: l.ID, Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude}
}
