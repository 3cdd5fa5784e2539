package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
)

type documentService interface {
	Upload(ctx context.Context, ownerID int64, files []application.FileUpload) ([]application.MeetingDocument, error)
	DownloadOne(ctx context.Context, documentID int64) (application.DownloadedFile, error)
	DownloadBundle(ctx context.Context, ownerID int64) ([]byte, error)
	DeleteOne(ctx context.Context, documentID int64) (bool, error)
	ListForOwner(ctx context.Context, ownerID int64) ([]application.MeetingDocument, error)
}

// DocumentHandler serves meeting documents.
type DocumentHandler struct {
	service   documentService
	responder responder
	logger    *zap.Logger
}

func NewDocumentHandler(service documentService, logger *zap.Logger) *DocumentHandler {
	base := defaultLogger(logger)
	return &DocumentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DocumentHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "DocumentHandler", operation, fields...)
}

// Upload stores the "files" parts of a multipart form against a meeting.
// When a file fails, the documents stored before it are listed in the
// error body under "created".
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	logger := h.log(ctx, "Upload", zap.Int64("meeting_id", meetingID))

	if !isMultipart(r) {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status, code, msg := badRequestStatus(err)
		logger.Warn("failed to parse multipart form", zap.Error(err), zap.String("error_kind", code))
		h.responder.writeError(ctx, w, status, code, msg)
		return
	}
	uploads, release, err := openUploads(r.MultipartForm)
	if err != nil {
		logger.Error("failed to open uploaded parts", zap.Error(err))
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	defer release()

	created, err := h.service.Upload(ctx, meetingID, uploads)
	if err != nil {
		h.responder.writeServiceError(ctx, w, err, func(body *errorResponse) {
			body.Created = toDocumentDTOs(created)
		})
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusCreated, listDocumentsResponse{Documents: toDocumentDTOs(created)})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	docs, err := h.service.ListForOwner(ctx, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	out := toDocumentDTOs(docs)
	if out == nil {
		out = []documentDTO{}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listDocumentsResponse{Documents: out})
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	file, err := h.service.DownloadOne(ctx, documentID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.writeAttachment(ctx, w, file.FileName, file.ContentType, file.Content)
}

func (h *DocumentHandler) Bundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetingID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	archive, err := h.service.DownloadBundle(ctx, meetingID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.writeAttachment(ctx, w, application.BundleName(meetingID), "application/zip", archive)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID, err := pathID(r, "id")
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	deleted, err := h.service.DeleteOne(ctx, documentID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !deleted {
		h.responder.writeError(ctx, w, http.StatusNotFound, codeNotFound, errDocumentNotFound)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func (h *DocumentHandler) writeAttachment(ctx context.Context, w http.ResponseWriter, name, contentType string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.log(ctx, "writeAttachment").Warn("client write failed", zap.Error(err))
	}
}

// contentDisposition quotes the plain name and adds the RFC 5987 form for
// non-ASCII clients.
func contentDisposition(name string) string {
	if name == "" {
		name = "download"
	}
	return fmt.Sprintf(`attachment; filename=%q; filename*=UTF-8''%s`, asciiFallback(name), url.PathEscape(name))
}

func asciiFallback(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

type listDocumentsResponse struct {
	Documents []documentDTO `json:"documents"`
}

type documentDTO struct {
	ID          int64  `json:"id"`
	MeetingID   int64  `json:"meeting_id"`
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
}

func toDocumentDTOs(docs []application.MeetingDocument) []documentDTO {
	if len(docs) == 0 {
		return nil
	}
	out := make([]documentDTO, len(docs))
	for i, d := range docs {
		out[i] = documentDTO{
			ID:          d.ID,
			MeetingID:   d.MeetingID,
			FileName:    d.FileName,
			DownloadURL: d.DownloadURL,
		}
	}
	return out
}
