package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/meeting-tracker/internal/persistence"
)

// DocumentRepository implements persistence.DocumentRepository for SQLite
type DocumentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewDocumentRepository creates a new SQLite document metadata repository
func NewDocumentRepository(pool *ConnectionPool) *DocumentRepository {
	return &DocumentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const documentColumns = `id, meeting_id, file_name, file_path, created_at`

// CreateDocument inserts a metadata row. A meeting id that does not exist
// fails with persistence.ErrForeignKey.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc persistence.MeetingDocument) (persistence.MeetingDocument, error) {
	if doc.FileName == "" || doc.FilePath == "" {
		return persistence.MeetingDocument{}, persistence.ErrConstraintViolation
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	err := r.helper.QueryRow(ctx, `
		INSERT INTO meeting_documents (meeting_id, file_name, file_path, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`,
		doc.MeetingID,
		doc.FileName,
		doc.FilePath,
		formatTime(doc.CreatedAt),
	).Scan(&doc.ID)
	if err != nil {
		return persistence.MeetingDocument{}, r.mapper.MapError(err)
	}
	return doc, nil
}

// GetDocument retrieves document metadata by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id int64) (persistence.MeetingDocument, error) {
	if id <= 0 {
		return persistence.MeetingDocument{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+documentColumns+` FROM meeting_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return persistence.MeetingDocument{}, r.mapper.MapError(err)
	}
	return doc, nil
}

// ListDocumentsForMeeting returns the meeting's documents in upload order.
func (r *DocumentRepository) ListDocumentsForMeeting(ctx context.Context, meetingID int64) ([]persistence.MeetingDocument, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+documentColumns+`
		FROM meeting_documents
		WHERE meeting_id = ?
		ORDER BY id ASC
	`, meetingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectDocuments(rows, r.mapper)
}

// DeleteDocument removes a metadata row.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM meeting_documents WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func collectDocuments(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.MeetingDocument, error) {
	var docs []persistence.MeetingDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return docs, nil
}

func scanDocument(s scanner) (persistence.MeetingDocument, error) {
	var (
		doc       persistence.MeetingDocument
		createdAt string
	)
	if err := s.Scan(&doc.ID, &doc.MeetingID, &doc.FileName, &doc.FilePath, &createdAt); err != nil {
		return persistence.MeetingDocument{}, err
	}
	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.MeetingDocument{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return doc, nil
}
