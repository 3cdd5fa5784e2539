package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByDeviceID(ctx context.Context, deviceID string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// LocationRepository exposes CRUD operations for locations.
type LocationRepository interface {
	CreateLocation(ctx context.Context, location Location) (Location, error)
	UpdateLocation(ctx context.Context, location Location) error
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, nameContains string) ([]Location, error)
	// DeleteLocation returns ErrInUse when any meeting still references the location.
	DeleteLocation(ctx context.Context, id int64) error
}

// MeetingFilter narrows meeting queries.
type MeetingFilter struct {
	StartsAfter *time.Time
	EndsBefore  *time.Time
	LocationID  *int64
}

// MeetingRepository stores meetings. Deletes cascade to documents and attendees.
type MeetingRepository interface {
	// CreateMeeting inserts the meeting and, when inline is non-nil, the
	// location it references, in one transaction.
	CreateMeeting(ctx context.Context, meeting Meeting, inline *Location) (Meeting, error)
	// ReplaceMeeting overwrites every mutable column in a single statement.
	ReplaceMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	// DeleteMeeting removes attendees, documents, and the meeting in one
	// transaction and returns the document rows that were removed.
	DeleteMeeting(ctx context.Context, id int64) ([]MeetingDocument, error)
}

// DocumentRepository stores meeting document metadata.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc MeetingDocument) (MeetingDocument, error)
	GetDocument(ctx context.Context, id int64) (MeetingDocument, error)
	ListDocumentsForMeeting(ctx context.Context, meetingID int64) ([]MeetingDocument, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// AttendeeRepository stores attendance registrations.
type AttendeeRepository interface {
	// CreateAttendee checks for an existing (user, meeting) row and inserts
	// in one transaction. ErrDuplicate reports an existing registration.
	CreateAttendee(ctx context.Context, attendee Attendee) (Attendee, error)
	// UpdateAttendee replaces both keys; the duplicate check excludes the row itself.
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
