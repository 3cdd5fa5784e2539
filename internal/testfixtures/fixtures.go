package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/meeting-tracker/internal/application"
)

var (
	userCounter     uint64
	locationCounter uint64
	meetingCounter  uint64
)

var referenceTime = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user input.
type UserOption func(*application.UserInput)

// NewUserInput returns a user input with a unique device id.
func NewUserInput(opts ...UserOption) application.UserInput {
	idx := atomic.AddUint64(&userCounter, 1)
	input := application.UserInput{
		DeviceID:        fmt.Sprintf("device-%03d", idx),
		UserName:        fmt.Sprintf("User %03d", idx),
		InstitutionName: "Ministry of Education",
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// WithDeviceID overrides the generated device id.
func WithDeviceID(id string) UserOption {
	return func(in *application.UserInput) {
		in.DeviceID = id
	}
}

// WithUserName overrides the generated user name.
func WithUserName(name string) UserOption {
	return func(in *application.UserInput) {
		in.UserName = name
	}
}

// --------------------------- Location fixtures ---------------------------

// LocationOption configures a generated location input.
type LocationOption func(*application.LocationInput)

// NewLocationInput returns a valid location input with a unique name.
func NewLocationInput(opts ...LocationOption) application.LocationInput {
	idx := atomic.AddUint64(&locationCounter, 1)
	lat, long := 39.92, 32.85
	input := application.LocationInput{
		Name:      fmt.Sprintf("Location %03d", idx),
		Latitude:  &lat,
		Longitude: &long,
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// WithLocationName overrides the generated location name.
func WithLocationName(name string) LocationOption {
	return func(in *application.LocationInput) {
		in.Name = name
	}
}

// WithCoordinates overrides the generated coordinates.
func WithCoordinates(lat, long float64) LocationOption {
	return func(in *application.LocationInput) {
		in.Latitude = &lat
		in.Longitude = &long
	}
}

// ---------------------------- Meeting fixtures ---------------------------

// MeetingOption configures a generated meeting input.
type MeetingOption func(*application.MeetingInput)

// NewMeetingInput returns a one hour meeting starting a day after the
// previous fixture, so listings have a stable order.
func NewMeetingInput(opts ...MeetingOption) *application.MeetingInput {
	idx := atomic.AddUint64(&meetingCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	input := &application.MeetingInput{
		Title:     fmt.Sprintf("Meeting %03d", idx),
		StartDate: start,
		EndDate:   start.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(input)
	}
	return input
}

// WithTitle overrides the generated title.
func WithTitle(title string) MeetingOption {
	return func(in *application.MeetingInput) {
		in.Title = title
	}
}

// WithSpan overrides the meeting start and end.
func WithSpan(start, end time.Time) MeetingOption {
	return func(in *application.MeetingInput) {
		in.StartDate = start
		in.EndDate = end
	}
}

// AtLocation references an existing location.
func AtLocation(id int64) MeetingOption {
	return func(in *application.MeetingInput) {
		in.LocationID = &id
	}
}

// ------------------------------ File fixtures ----------------------------

// Upload returns an in-memory upload with the given name and content.
func Upload(name, content string) application.FileUpload {
	return application.FileUpload{FileName: name, Content: strings.NewReader(content)}
}

// Uploads returns one upload per name, each containing its own name.
func Uploads(names ...string) []application.FileUpload {
	out := make([]application.FileUpload, 0, len(names))
	for _, name := range names {
		out = append(out, Upload(name, "content of "+name))
	}
	return out
}
