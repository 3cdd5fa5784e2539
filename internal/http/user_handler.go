package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
)

type userService interface {
	Create(ctx context.Context, input application.UserInput) (application.User, error)
	Update(ctx context.Context, userID int64, input application.UserInput) (application.User, error)
	Get(ctx context.Context, userID int64) (application.User, error)
	GetByDeviceID(ctx context.Context, deviceID string) (application.User, error)
	List(ctx context.Context) ([]application.User, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *zap.Logger
}

func NewUserHandler(service userService, logger *zap.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation, fields...)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Create", zap.String("error_kind", code)).Warn("failed to decode user request", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	user, err := h.service.Create(ctx, req.toInput())
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	userID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		status, code, msg := badRequestStatus(err)
		h.log(ctx, "Update", zap.Int64("user_id", userID), zap.String("error_kind", code)).Warn("failed to decode user update", zap.Error(err))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}

	user, err := h.service.Update(ctx, userID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	user, err := h.service.Get(ctx, userID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// List returns every user, or the single match for ?device_id.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if deviceID := strings.TrimSpace(r.URL.Query().Get("device_id")); deviceID != "" {
		user, err := h.service.GetByDeviceID(ctx, deviceID)
		if err != nil {
			h.responder.handleServiceError(ctx, w, err)
			return
		}
		h.responder.writeJSON(ctx, w, http.StatusOK, userResponse{User: toUserDTO(user)})
		return
	}

	users, err := h.service.List(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	deleted, err := h.service.Delete(ctx, userID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !deleted {
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errUserNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

type userRequest struct {
	DeviceID        string     `json:"device_id"`
	UserName        string     `json:"user_name"`
	InstitutionName string     `json:"institution_name"`
	LastLoginDate   *time.Time `json:"last_login_date"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		DeviceID:        strings.TrimSpace(r.DeviceID),
		UserName:        strings.TrimSpace(r.UserName),
		InstitutionName: strings.TrimSpace(r.InstitutionName),
		LastLoginDate:   r.LastLoginDate,
	}
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID              int64   `json:"id"`
	DeviceID        string  `json:"device_id"`
	UserName        string  `json:"user_name"`
	InstitutionName string  `json:"institution_name"`
	LastLoginDate   *string `json:"last_login_date"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	dto := userDTO{
		ID:              user.ID,
		DeviceID:        user.DeviceID,
		UserName:        user.UserName,
		InstitutionName: user.InstitutionName,
		CreatedAt:       formatTimestamp(user.CreatedAt),
		UpdatedAt:       formatTimestamp(user.UpdatedAt),
	}
	if user.LastLoginDate != nil {
		formatted := formatTimestamp(*user.LastLoginDate)
		dto.LastLoginDate = &formatted
	}
	return dto
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}
