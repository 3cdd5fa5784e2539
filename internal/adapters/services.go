package adapters

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/application"
	"github.com/example/meeting-tracker/internal/persistence"
)

// Storage is the complete repository surface the services need.
type Storage interface {
	persistence.UserRepository
	persistence.LocationRepository
	persistence.MeetingRepository
	persistence.DocumentRepository
	persistence.AttendeeRepository
}

// Services groups the application services wired against one storage.
type Services struct {
	Documents  *application.DocumentStore
	Attendance *application.AttendanceGuard
	Meetings   *application.MeetingAggregate
	Locations  *application.LocationService
	Users      *application.UserService
}

// NewServices wires every application service to storage and files.
func NewServices(storage Storage, files application.FileStorage, publicBaseURL string, logger *zap.Logger) *Services {
	users := NewUserRepository(storage)
	locations := NewLocationRepository(storage)
	meetings := NewMeetingRepository(storage)
	documents := NewDocumentRepository(storage)
	attendees := NewAttendeeRepository(storage)

	store := application.NewDocumentStoreWithLogger(documents, meetings, files, DownloadURL(publicBaseURL), logger)

	return &Services{
		Documents:  store,
		Attendance: application.NewAttendanceGuardWithLogger(attendees, users, meetings, logger),
		Meetings:   application.NewMeetingAggregateWithLogger(meetings, locations, store, logger),
		Locations:  application.NewLocationServiceWithLogger(locations, logger),
		Users:      application.NewUserServiceWithLogger(users, logger),
	}
}

// DownloadURL builds document links under publicBaseURL. An empty base
// yields root-relative links.
func DownloadURL(publicBaseURL string) func(int64) string {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	return func(id int64) string {
		return fmt.Sprintf("%s/api/documents/%d/download", base, id)
	}
}
