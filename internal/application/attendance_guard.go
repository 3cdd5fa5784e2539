package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/persistence"
)

// AttendeeRepository captures the persistence operations needed by AttendanceGuard.
// CreateAttendee and UpdateAttendee must check and write the (user, meeting)
// pair in a single transaction.
type AttendeeRepository interface {
	CreateAttendee(ctx context.Context, attendee Attendee) (Attendee, error)
	UpdateAttendee(ctx context.Context, attendee Attendee) error
	GetAttendee(ctx context.Context, id int64) (Attendee, error)
	ListAttendees(ctx context.Context) ([]Attendee, error)
	DeleteAttendee(ctx context.Context, id int64) error
	DeleteAttendeeByPair(ctx context.Context, userID, meetingID int64) error
	ListMeetingAttendees(ctx context.Context, meetingID int64) ([]User, error)
	ListUserMeetings(ctx context.Context, userID int64) ([]Meeting, error)
	CountMeetingAttendees(ctx context.Context, meetingID int64) (int, error)
	AttendeeExists(ctx context.Context, userID, meetingID int64) (bool, error)
}

// UserReader looks up users by id.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (User, error)
}

// AttendanceGuard registers users for meetings, allowing at most one
// registration per (user, meeting) pair.
type AttendanceGuard struct {
	attendees AttendeeRepository
	users     UserReader
	meetings  MeetingReader
	logger    *zap.Logger
}

// NewAttendanceGuard constructs an attendance guard with the provided dependencies.
func NewAttendanceGuard(attendees AttendeeRepository, users UserReader, meetings MeetingReader) *AttendanceGuard {
	return NewAttendanceGuardWithLogger(attendees, users, meetings, nil)
}

// NewAttendanceGuardWithLogger constructs an attendance guard with a specified logger.
func NewAttendanceGuardWithLogger(attendees AttendeeRepository, users UserReader, meetings MeetingReader, logger *zap.Logger) *AttendanceGuard {
	return &AttendanceGuard{
		attendees: attendees,
		users:     users,
		meetings:  meetings,
		logger:    defaultLogger(logger),
	}
}

func (g *AttendanceGuard) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, g.logger, "AttendanceGuard", operation, fields...)
}

// Register records that a user attends a meeting. A second registration of
// the same pair fails with a ConflictError, including when both calls race.
func (g *AttendanceGuard) Register(ctx context.Context, userID, meetingID int64) (attendee Attendee, err error) {
	logger := g.loggerWith(ctx, "Register", zap.Int64("user_id", userID), zap.Int64("meeting_id", meetingID))
	defer func() {
		logOutcome(logger, err, "attendee registered", "failed to register attendee", zap.Int64("attendee_id", attendee.ID))
	}()

	if err = g.requireParticipants(ctx, userID, meetingID); err != nil {
		return
	}

	attendee, err = g.attendees.CreateAttendee(ctx, Attendee{UserID: userID, MeetingID: meetingID})
	if err != nil {
		attendee = Attendee{}
		err = mapAttendeeRepoError(err)
	}
	return
}

// Update moves an existing registration to a new (user, meeting) pair.
func (g *AttendanceGuard) Update(ctx context.Context, attendeeID, userID, meetingID int64) (attendee Attendee, err error) {
	logger := g.loggerWith(ctx, "Update",
		zap.Int64("attendee_id", attendeeID),
		zap.Int64("user_id", userID),
		zap.Int64("meeting_id", meetingID),
	)
	defer func() {
		logOutcome(logger, err, "attendee updated", "failed to update attendee")
	}()

	var existing Attendee
	existing, err = g.attendees.GetAttendee(ctx, attendeeID)
	if err != nil {
		err = mapAttendeeRepoError(err)
		return
	}

	if err = g.requireParticipants(ctx, userID, meetingID); err != nil {
		return
	}

	attendee = Attendee{
		ID:        existing.ID,
		UserID:    userID,
		MeetingID: meetingID,
		CreatedAt: existing.CreatedAt,
	}
	if err = g.attendees.UpdateAttendee(ctx, attendee); err != nil {
		attendee = Attendee{}
		err = mapAttendeeRepoError(err)
	}
	return
}

// Remove deletes a registration by id. It reports false when none existed.
func (g *AttendanceGuard) Remove(ctx context.Context, attendeeID int64) (removed bool, err error) {
	logger := g.loggerWith(ctx, "Remove", zap.Int64("attendee_id", attendeeID))
	defer func() {
		logOutcome(logger, err, "attendee removed", "failed to remove attendee", zap.Bool("removed", removed))
	}()

	removed, err = absentIsFalse(g.attendees.DeleteAttendee(ctx, attendeeID))
	return
}

// RemoveByPair deletes the registration for a (user, meeting) pair. It is
// safe to repeat: later calls report false.
func (g *AttendanceGuard) RemoveByPair(ctx context.Context, userID, meetingID int64) (removed bool, err error) {
	logger := g.loggerWith(ctx, "RemoveByPair", zap.Int64("user_id", userID), zap.Int64("meeting_id", meetingID))
	defer func() {
		logOutcome(logger, err, "attendee removed", "failed to remove attendee", zap.Bool("removed", removed))
	}()

	removed, err = absentIsFalse(g.attendees.DeleteAttendeeByPair(ctx, userID, meetingID))
	return
}

// Get returns a single registration.
func (g *AttendanceGuard) Get(ctx context.Context, attendeeID int64) (Attendee, error) {
	attendee, err := g.attendees.GetAttendee(ctx, attendeeID)
	if err != nil {
		return Attendee{}, mapAttendeeRepoError(err)
	}
	return attendee, nil
}

// List returns every registration.
func (g *AttendanceGuard) List(ctx context.Context) ([]Attendee, error) {
	return g.attendees.ListAttendees(ctx)
}

// AttendeesOfMeeting returns the users registered for a meeting.
func (g *AttendanceGuard) AttendeesOfMeeting(ctx context.Context, meetingID int64) ([]User, error) {
	return g.attendees.ListMeetingAttendees(ctx, meetingID)
}

// MeetingsOfUser returns the meetings a user is registered for.
func (g *AttendanceGuard) MeetingsOfUser(ctx context.Context, userID int64) ([]Meeting, error) {
	return g.attendees.ListUserMeetings(ctx, userID)
}

// CountForMeeting returns how many users are registered for a meeting.
func (g *AttendanceGuard) CountForMeeting(ctx context.Context, meetingID int64) (int, error) {
	return g.attendees.CountMeetingAttendees(ctx, meetingID)
}

// Exists reports whether the pair is registered.
func (g *AttendanceGuard) Exists(ctx context.Context, userID, meetingID int64) (bool, error) {
	return g.attendees.AttendeeExists(ctx, userID, meetingID)
}

func (g *AttendanceGuard) requireParticipants(ctx context.Context, userID, meetingID int64) error {
	if _, err := g.users.GetUser(ctx, userID); err != nil {
		if isRepoNotFound(err) {
			return notFound("user")
		}
		return err
	}
	if _, err := g.meetings.GetMeeting(ctx, meetingID); err != nil {
		if isRepoNotFound(err) {
			return notFound("meeting")
		}
		return err
	}
	return nil
}

func mapAttendeeRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return notFound("attendee")
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict("already registered")
	case errors.Is(err, persistence.ErrForeignKey):
		// user or meeting vanished after the existence checks
		return notFound("user or meeting")
	}
	return err
}

func isRepoNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

func absentIsFalse(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if isRepoNotFound(err) {
		return false, nil
	}
	return false, err
}
