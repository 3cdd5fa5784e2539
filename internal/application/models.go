package application

import (
	"io"
	"time"
)

// DefaultMeetingColor is applied when a meeting is saved without a color.
const DefaultMeetingColor = "#007bff"

// Meeting is a calendar entry together with its location and documents.
type Meeting struct {
	ID         int64
	Title      string
	StartDate  time.Time
	EndDate    time.Time
	AllDay     bool
	Color      string
	LocationID *int64
	Location   *Location
	Documents  []MeetingDocument
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MeetingDocument is a file attached to a meeting as exposed to callers.
type MeetingDocument struct {
	ID          int64
	MeetingID   int64
	FileName    string
	DownloadURL string
	CreatedAt   time.Time
}

// DocumentRecord is the stored form of a document. StoragePath never leaves
// the server.
type DocumentRecord struct {
	ID          int64
	MeetingID   int64
	FileName    string
	StoragePath string
	CreatedAt   time.Time
}

// Attendee links a user to a meeting.
type Attendee struct {
	ID        int64
	UserID    int64
	MeetingID int64
	CreatedAt time.Time
}

// User is a device-identified account.
type User struct {
	ID              int64
	DeviceID        string
	UserName        string
	InstitutionName string
	LastLoginDate   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Location is a named place with coordinates.
type Location struct {
	ID        int64
	Name      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MeetingInput captures caller provided meeting fields.
type MeetingInput struct {
	Title      string
	StartDate  time.Time
	EndDate    time.Time
	AllDay     bool
	Color      string
	LocationID *int64
}

// LocationInput captures caller provided location fields.
type LocationInput struct {
	Name      string
	Latitude  *float64
	Longitude *float64
}

// UserInput captures caller provided user fields.
type UserInput struct {
	DeviceID        string
	UserName        string
	InstitutionName string
	LastLoginDate   *time.Time
}

// FileUpload is one file of an upload batch.
type FileUpload struct {
	FileName string
	Content  io.Reader
}

// DownloadedFile is a single document ready to be sent to a client.
type DownloadedFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// CreateMeetingParams wraps the data required to create a meeting. At most
// one of LocationID and InlineLocation may be set; Input.LocationID is
// treated the same as LocationID.
type CreateMeetingParams struct {
	Input          *MeetingInput
	LocationID     *int64
	InlineLocation *LocationInput
	Files          []FileUpload
}

// MeetingFilter narrows meeting listings. Nil fields do not filter.
type MeetingFilter struct {
	StartsAfter *time.Time
	EndsBefore  *time.Time
	LocationID  *int64
}
