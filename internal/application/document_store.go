package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/filestore"
	"github.com/example/meeting-tracker/internal/persistence"
)

// DocumentRepository captures the metadata operations needed by DocumentStore.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc DocumentRecord) (DocumentRecord, error)
	GetDocument(ctx context.Context, id int64) (DocumentRecord, error)
	ListDocumentsForMeeting(ctx context.Context, meetingID int64) ([]DocumentRecord, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// MeetingReader looks up the meeting that owns a document batch.
type MeetingReader interface {
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
}

// FileStorage places and retrieves document bytes. Open and Remove accept
// the stored path recorded for a document; Open reports unresolvable paths
// with an error matching fs.ErrNotExist.
type FileStorage interface {
	NewKey(originalName string) string
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(storedPath string) (io.ReadCloser, error)
	Remove(storedPath string) error
	CreateScratch() (*os.File, error)
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".zip":  "application/zip",
}

// ContentTypeFor returns the MIME type for a file name's extension.
func ContentTypeFor(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// DocumentStore owns uploaded meeting files: placement, retrieval, bundling
// and removal. Meetings are only an owner id here.
type DocumentStore struct {
	docs        DocumentRepository
	meetings    MeetingReader
	files       FileStorage
	downloadURL func(id int64) string
	logger      *zap.Logger
}

// NewDocumentStore constructs a document store with the provided dependencies.
func NewDocumentStore(docs DocumentRepository, meetings MeetingReader, files FileStorage, downloadURL func(int64) string) *DocumentStore {
	return NewDocumentStoreWithLogger(docs, meetings, files, downloadURL, nil)
}

// NewDocumentStoreWithLogger constructs a document store with a specified logger.
func NewDocumentStoreWithLogger(docs DocumentRepository, meetings MeetingReader, files FileStorage, downloadURL func(int64) string, logger *zap.Logger) *DocumentStore {
	if downloadURL == nil {
		downloadURL = func(id int64) string { return fmt.Sprintf("/api/documents/%d/download", id) }
	}
	return &DocumentStore{
		docs:        docs,
		meetings:    meetings,
		files:       files,
		downloadURL: downloadURL,
		logger:      defaultLogger(logger),
	}
}

func (s *DocumentStore) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "DocumentStore", operation, fields...)
}

// Upload stores each file under a fresh key and records its metadata. The
// first failing file stops the batch: documents created before it are
// returned together with an *IOError naming the failed file.
func (s *DocumentStore) Upload(ctx context.Context, ownerID int64, files []FileUpload) (created []MeetingDocument, err error) {
	logger := s.loggerWith(ctx, "Upload", zap.Int64("meeting_id", ownerID), zap.Int("file_count", len(files)))
	defer func() {
		logOutcome(logger, err, "documents uploaded", "failed to upload documents", zap.Int("created", len(created)))
	}()

	if vErr := validateUploads(files); vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.requireOwner(ctx, ownerID); err != nil {
		return
	}

	created = make([]MeetingDocument, 0, len(files))
	for _, file := range files {
		var doc MeetingDocument
		doc, err = s.storeOne(ctx, ownerID, file)
		if err != nil {
			return
		}
		created = append(created, doc)
	}
	return
}

func (s *DocumentStore) storeOne(ctx context.Context, ownerID int64, file FileUpload) (MeetingDocument, error) {
	name := displayName(file.FileName)
	key := s.files.NewKey(name)

	if _, err := s.files.Put(ctx, key, file.Content); err != nil {
		return MeetingDocument{}, &IOError{FileName: name, Op: "write", Err: err}
	}

	record, err := s.docs.CreateDocument(ctx, DocumentRecord{
		MeetingID:   ownerID,
		FileName:    name,
		StoragePath: key,
	})
	if err != nil {
		if rmErr := s.files.Remove(key); rmErr != nil {
			s.loggerWith(ctx, "Upload").Warn("orphaned blob after metadata failure",
				zap.String("storage_key", key), zap.Error(rmErr))
		}
		if errors.Is(err, persistence.ErrForeignKey) || errors.Is(err, persistence.ErrNotFound) {
			return MeetingDocument{}, notFound("meeting")
		}
		return MeetingDocument{}, &IOError{FileName: name, Op: "record", Err: err}
	}

	return s.present(record), nil
}

func validateUploads(files []FileUpload) *ValidationError {
	vErr := &ValidationError{}
	if len(files) == 0 {
		vErr.add("files", "at least one file is required")
		return vErr
	}
	for i, file := range files {
		field := fmt.Sprintf("files[%d]", i)
		switch {
		case displayName(file.FileName) == "":
			vErr.add(field, "file name is required")
		case file.Content == nil:
			vErr.add(field, "file content is required")
		}
	}
	return vErr
}

// displayName strips any client-side directory from an uploaded file name.
func displayName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// DownloadOne returns a single document's bytes and MIME type.
func (s *DocumentStore) DownloadOne(ctx context.Context, documentID int64) (file DownloadedFile, err error) {
	logger := s.loggerWith(ctx, "DownloadOne", zap.Int64("document_id", documentID))
	defer func() {
		logOutcome(logger, err, "document downloaded", "failed to download document", zap.Int("bytes", len(file.Content)))
	}()

	var record DocumentRecord
	record, err = s.docs.GetDocument(ctx, documentID)
	if err != nil {
		err = mapDocumentRepoError(err)
		return
	}

	var rc io.ReadCloser
	rc, err = s.files.Open(record.StoragePath)
	if err != nil {
		err = mapOpenError(record.FileName, err)
		return
	}
	defer rc.Close()

	var content []byte
	content, err = io.ReadAll(rc)
	if err != nil {
		err = &IOError{FileName: record.FileName, Op: "read", Err: err}
		return
	}

	file = DownloadedFile{
		FileName:    record.FileName,
		ContentType: ContentTypeFor(record.FileName),
		Content:     content,
	}
	return
}

// DownloadBundle zips every resolvable document of the owner. Documents
// whose files are missing are skipped; ErrEmptyBundle is returned when
// nothing remains. The scratch file backing the archive is always removed.
func (s *DocumentStore) DownloadBundle(ctx context.Context, ownerID int64) (archive []byte, err error) {
	logger := s.loggerWith(ctx, "DownloadBundle", zap.Int64("meeting_id", ownerID))
	var included, skipped int
	defer func() {
		logOutcome(logger, err, "bundle built", "failed to build bundle",
			zap.Int("included", included), zap.Int("skipped", skipped), zap.Int("bytes", len(archive)))
	}()

	var records []DocumentRecord
	records, err = s.docs.ListDocumentsForMeeting(ctx, ownerID)
	if err != nil {
		err = mapDocumentRepoError(err)
		return
	}
	if len(records) == 0 {
		err = ErrEmptyBundle
		return
	}

	var scratch *os.File
	scratch, err = s.files.CreateScratch()
	if err != nil {
		err = &IOError{FileName: "bundle", Op: "create", Err: err}
		return
	}
	defer func() {
		scratch.Close()
		if rmErr := os.Remove(scratch.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("scratch file not removed", zap.Error(rmErr))
		}
	}()

	zw := zip.NewWriter(scratch)
	names := newEntryNamer()
	for _, record := range records {
		if err = ctx.Err(); err != nil {
			return
		}

		var added bool
		added, err = s.addToArchive(ctx, zw, names, record)
		if err != nil {
			return
		}
		if !added {
			skipped++
			logger.Warn("document file missing from bundle", zap.Int64("document_id", record.ID))
			continue
		}
		included++
	}

	if included == 0 {
		err = ErrEmptyBundle
		return
	}
	if err = zw.Close(); err != nil {
		err = &IOError{FileName: "bundle", Op: "write", Err: err}
		return
	}

	if _, err = scratch.Seek(0, io.SeekStart); err != nil {
		err = &IOError{FileName: "bundle", Op: "read", Err: err}
		return
	}
	archive, err = io.ReadAll(scratch)
	if err != nil {
		archive = nil
		err = &IOError{FileName: "bundle", Op: "read", Err: err}
	}
	return
}

// BundleName is the download file name for an owner's bundle.
func BundleName(ownerID int64) string {
	return fmt.Sprintf("Meeting_%d_Documents.zip", ownerID)
}

func (s *DocumentStore) addToArchive(ctx context.Context, zw *zip.Writer, names *entryNamer, record DocumentRecord) (bool, error) {
	rc, err := s.files.Open(record.StoragePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &IOError{FileName: record.FileName, Op: "read", Err: err}
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     names.next(record.FileName),
		Method:   zip.Deflate,
		Modified: record.CreatedAt,
	})
	if err != nil {
		return false, &IOError{FileName: record.FileName, Op: "write", Err: err}
	}
	if _, err := io.Copy(w, filestore.NewContextReader(ctx, rc)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, &IOError{FileName: record.FileName, Op: "write", Err: err}
	}
	return true, nil
}

// DeleteOne removes a document's file and metadata. It reports false when
// no such document exists.
func (s *DocumentStore) DeleteOne(ctx context.Context, documentID int64) (deleted bool, err error) {
	logger := s.loggerWith(ctx, "DeleteOne", zap.Int64("document_id", documentID))
	defer func() {
		logOutcome(logger, err, "document deleted", "failed to delete document", zap.Bool("deleted", deleted))
	}()

	var record DocumentRecord
	record, err = s.docs.GetDocument(ctx, documentID)
	if err != nil {
		err = mapDocumentRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		return
	}

	if err = s.files.Remove(record.StoragePath); err != nil {
		err = &IOError{FileName: record.FileName, Op: "remove", Err: err}
		return
	}

	err = s.docs.DeleteDocument(ctx, documentID)
	if err != nil {
		err = mapDocumentRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		return
	}
	deleted = true
	return
}

// ListForOwner returns the owner's documents in upload order.
func (s *DocumentStore) ListForOwner(ctx context.Context, ownerID int64) (docs []MeetingDocument, err error) {
	logger := s.loggerWith(ctx, "ListForOwner", zap.Int64("meeting_id", ownerID))
	defer func() {
		logOutcome(logger, err, "documents listed", "failed to list documents", zap.Int("result_count", len(docs)))
	}()

	var records []DocumentRecord
	records, err = s.docs.ListDocumentsForMeeting(ctx, ownerID)
	if err != nil {
		err = mapDocumentRepoError(err)
		return
	}
	docs = make([]MeetingDocument, len(records))
	for i, record := range records {
		docs[i] = s.present(record)
	}
	return
}

// removeFiles unlinks stored files after their rows are gone. Failures are
// logged only; the database no longer references the files.
func (s *DocumentStore) removeFiles(ctx context.Context, records []DocumentRecord) {
	logger := s.loggerWith(ctx, "removeFiles")
	for _, record := range records {
		if err := s.files.Remove(record.StoragePath); err != nil {
			logger.Warn("document file not removed",
				zap.Int64("document_id", record.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *DocumentStore) requireOwner(ctx context.Context, ownerID int64) error {
	if ownerID <= 0 {
		return notFound("meeting")
	}
	if _, err := s.meetings.GetMeeting(ctx, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return notFound("meeting")
		}
		return err
	}
	return nil
}

func (s *DocumentStore) present(record DocumentRecord) MeetingDocument {
	return MeetingDocument{
		ID:          record.ID,
		MeetingID:   record.MeetingID,
		FileName:    record.FileName,
		DownloadURL: s.downloadURL(record.ID),
		CreatedAt:   record.CreatedAt,
	}
}

func mapDocumentRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return notFound("document")
	}
	return err
}

func mapOpenError(fileName string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound("document file")
	}
	return &IOError{FileName: fileName, Op: "read", Err: err}
}

// entryNamer hands out unique archive entry names, turning a repeated
// "report.pdf" into "report (1).pdf", "report (2).pdf" and so on.
type entryNamer struct {
	used map[string]struct{}
}

func newEntryNamer() *entryNamer {
	return &entryNamer{used: make(map[string]struct{})}
}

func (n *entryNamer) next(name string) string {
	name = displayName(name)
	if name == "" {
		name = "document"
	}
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, taken := n.used[strings.ToLower(candidate)]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	n.used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

