package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-tracker/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository for SQLite
type MeetingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const meetingColumns = `id, title, start_at, end_at, all_day, color, location_id, created_at, updated_at`

// CreateMeeting inserts the meeting. When inline is non-nil the location is
// inserted first in the same transaction and the meeting references it.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting, inline *persistence.Location) (persistence.Meeting, error) {
	if strings.TrimSpace(meeting.Title) == "" {
		return persistence.Meeting{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = meeting.CreatedAt

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if inline != nil {
			location, err := insertLocation(ctx, tx, *inline)
			if err != nil {
				return err
			}
			meeting.LocationID = &location.ID
		}

		return r.helper.QueryRowTx(ctx, tx, `
			INSERT INTO meetings (title, start_at, end_at, all_day, color, location_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			meeting.Title,
			formatTime(meeting.Start),
			formatTime(meeting.End),
			meeting.AllDay,
			meeting.Color,
			nullableID(meeting.LocationID),
			formatTime(meeting.CreatedAt),
			formatTime(meeting.UpdatedAt),
		).Scan(&meeting.ID)
	})
	if err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return meeting, nil
}

// ReplaceMeeting overwrites every mutable column in a single statement.
// CreatedAt is left untouched.
func (r *MeetingRepository) ReplaceMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID <= 0 {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE meetings
		SET title = ?, start_at = ?, end_at = ?, all_day = ?, color = ?, location_id = ?, updated_at = ?
		WHERE id = ?
	`,
		meeting.Title,
		formatTime(meeting.Start),
		formatTime(meeting.End),
		meeting.AllDay,
		meeting.Color,
		nullableID(meeting.LocationID),
		formatTime(time.Now().UTC()),
		meeting.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetMeeting retrieves a meeting by ID.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id int64) (persistence.Meeting, error) {
	if id <= 0 {
		return persistence.Meeting{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	meeting, err := scanMeeting(row)
	if err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}
	return meeting, nil
}

// ListMeetings returns meetings ordered by start time. Filter bounds are
// inclusive: StartsAfter keeps meetings starting at or after it, EndsBefore
// keeps meetings ending at or before it.
func (r *MeetingRepository) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.StartsAfter != nil {
		clauses = append(clauses, "start_at >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, "end_at <= ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	if filter.LocationID != nil {
		clauses = append(clauses, "location_id = ?")
		args = append(args, *filter.LocationID)
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectMeetings(rows, r.mapper)
}

// DeleteMeeting removes attendees, documents, and the meeting in one
// transaction and returns the document rows it removed. The rows are read
// under the same write lock as the deletes, so the result names every file
// the meeting owned at commit time. The explicit child deletes keep the
// cascade independent of whether the connection enforces foreign keys.
func (r *MeetingRepository) DeleteMeeting(ctx context.Context, id int64) ([]persistence.MeetingDocument, error) {
	if id <= 0 {
		return nil, persistence.ErrNotFound
	}

	var removed []persistence.MeetingDocument
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		removed = nil

		rows, err := r.helper.QueryTx(ctx, tx, `
			SELECT `+documentColumns+`
			FROM meeting_documents
			WHERE meeting_id = ?
			ORDER BY id ASC
		`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		docs, err := collectDocuments(rows, r.mapper)
		rows.Close()
		if err != nil {
			return err
		}

		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM attendees WHERE meeting_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM meeting_documents WHERE meeting_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM meetings WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		removed = docs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func scanMeeting(s scanner) (persistence.Meeting, error) {
	var (
		meeting                          persistence.Meeting
		start, end, createdAt, updatedAt string
		locationID                       sql.NullInt64
	)
	if err := s.Scan(
		&meeting.ID,
		&meeting.Title,
		&start,
		&end,
		&meeting.AllDay,
		&meeting.Color,
		&locationID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Meeting{}, err
	}

	if locationID.Valid {
		id := locationID.Int64
		meeting.LocationID = &id
	}

	var err error
	if meeting.Start, err = parseTime(start); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if meeting.End, err = parseTime(end); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if meeting.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if meeting.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Meeting{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return meeting, nil
}

func collectMeetings(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.Meeting, error) {
	var meetings []persistence.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return meetings, nil
}
