package persistence

import "time"

// User represents a device-identified account that can attend meetings.
type User struct {
	ID              int64
	DeviceID        string
	UserName        string
	InstitutionName string
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Location represents a named place a meeting can reference.
type Location struct {
	ID        int64
	Name      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meeting represents a calendar entry stored in persistence.
type Meeting struct {
	ID         int64
	Title      string
	Start      time.Time
	End        time.Time
	AllDay     bool
	Color      string
	LocationID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MeetingDocument is the metadata row for an uploaded file. FilePath is the
// storage key or, for legacy rows, whatever path was recorded at upload time.
type MeetingDocument struct {
	ID        int64
	MeetingID int64
	FileName  string
	FilePath  string
	CreatedAt time.Time
}

// Attendee links one user to one meeting.
type Attendee struct {
	ID        int64
	UserID    int64
	MeetingID int64
	CreatedAt time.Time
}
