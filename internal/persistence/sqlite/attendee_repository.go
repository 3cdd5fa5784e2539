package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/meeting-tracker/internal/persistence"
)

// AttendeeRepository implements persistence.AttendeeRepository for SQLite
type AttendeeRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAttendeeRepository creates a new SQLite attendee repository
func NewAttendeeRepository(pool *ConnectionPool) *AttendeeRepository {
	return &AttendeeRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const attendeeColumns = `id, user_id, meeting_id, created_at`

// CreateAttendee checks and inserts under one IMMEDIATE transaction, so two
// concurrent registrations of the same pair serialize on the write lock. The
// UNIQUE(user_id, meeting_id) constraint backs the check.
func (r *AttendeeRepository) CreateAttendee(ctx context.Context, attendee persistence.Attendee) (persistence.Attendee, error) {
	if attendee.CreatedAt.IsZero() {
		attendee.CreatedAt = time.Now().UTC()
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := r.helper.QueryRowTx(ctx, tx,
			`SELECT COUNT(*) FROM attendees WHERE user_id = ? AND meeting_id = ?`,
			attendee.UserID, attendee.MeetingID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return persistence.ErrDuplicate
		}

		return r.helper.QueryRowTx(ctx, tx, `
			INSERT INTO attendees (user_id, meeting_id, created_at)
			VALUES (?, ?, ?)
			RETURNING id
		`, attendee.UserID, attendee.MeetingID, formatTime(attendee.CreatedAt)).Scan(&attendee.ID)
	})
	if err != nil {
		return persistence.Attendee{}, r.mapper.MapError(err)
	}
	return attendee, nil
}

// UpdateAttendee replaces both foreign keys of an existing row. The duplicate
// check ignores the row being updated.
func (r *AttendeeRepository) UpdateAttendee(ctx context.Context, attendee persistence.Attendee) error {
	if attendee.ID <= 0 {
		return persistence.ErrNotFound
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var clash int
		err := r.helper.QueryRowTx(ctx, tx,
			`SELECT COUNT(*) FROM attendees WHERE user_id = ? AND meeting_id = ? AND id <> ?`,
			attendee.UserID, attendee.MeetingID, attendee.ID,
		).Scan(&clash)
		if err != nil {
			return err
		}
		if clash > 0 {
			return persistence.ErrDuplicate
		}

		result, err := r.helper.ExecTx(ctx, tx,
			`UPDATE attendees SET user_id = ?, meeting_id = ? WHERE id = ?`,
			attendee.UserID, attendee.MeetingID, attendee.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return r.mapper.MapError(err)
}

// GetAttendee retrieves an attendance row by ID.
func (r *AttendeeRepository) GetAttendee(ctx context.Context, id int64) (persistence.Attendee, error) {
	if id <= 0 {
		return persistence.Attendee{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE id = ?`, id)
	attendee, err := scanAttendee(row)
	if err != nil {
		return persistence.Attendee{}, r.mapper.MapError(err)
	}
	return attendee, nil
}

// ListAttendees returns every attendance row ordered by ID.
func (r *AttendeeRepository) ListAttendees(ctx context.Context) ([]persistence.Attendee, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+attendeeColumns+` FROM attendees ORDER BY id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var attendees []persistence.Attendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return attendees, nil
}

// DeleteAttendee removes an attendance row by ID.
func (r *AttendeeRepository) DeleteAttendee(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM attendees WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// DeleteAttendeeByPair removes the registration of userID at meetingID.
func (r *AttendeeRepository) DeleteAttendeeByPair(ctx context.Context, userID, meetingID int64) error {
	result, err := r.helper.Exec(ctx,
		`DELETE FROM attendees WHERE user_id = ? AND meeting_id = ?`,
		userID, meetingID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// ListMeetingAttendees returns the users registered for a meeting.
func (r *AttendeeRepository) ListMeetingAttendees(ctx context.Context, meetingID int64) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT u.id, u.device_id, u.user_name, u.institution_name, u.last_login_at, u.created_at, u.updated_at
		FROM attendees a
		JOIN users u ON u.id = a.user_id
		WHERE a.meeting_id = ?
		ORDER BY a.id ASC
	`, meetingID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectUsers(rows, r.mapper)
}

// ListUserMeetings returns the meetings a user is registered for.
func (r *AttendeeRepository) ListUserMeetings(ctx context.Context, userID int64) ([]persistence.Meeting, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT m.id, m.title, m.start_at, m.end_at, m.all_day, m.color, m.location_id, m.created_at, m.updated_at
		FROM attendees a
		JOIN meetings m ON m.id = a.meeting_id
		WHERE a.user_id = ?
		ORDER BY m.start_at ASC, m.id ASC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectMeetings(rows, r.mapper)
}

// CountMeetingAttendees returns how many users are registered for a meeting.
func (r *AttendeeRepository) CountMeetingAttendees(ctx context.Context, meetingID int64) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM attendees WHERE meeting_id = ?`, meetingID).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// AttendeeExists reports whether userID is registered for meetingID.
func (r *AttendeeRepository) AttendeeExists(ctx context.Context, userID, meetingID int64) (bool, error) {
	var one int
	err := r.helper.QueryRow(ctx,
		`SELECT 1 FROM attendees WHERE user_id = ? AND meeting_id = ? LIMIT 1`,
		userID, meetingID,
	).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return true, nil
}

func scanAttendee(s scanner) (persistence.Attendee, error) {
	var (
		attendee  persistence.Attendee
		createdAt string
	)
	if err := s.Scan(&attendee.ID, &attendee.UserID, &attendee.MeetingID, &createdAt); err != nil {
		return persistence.Attendee{}, err
	}
	var err error
	if attendee.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Attendee{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return attendee, nil
}
