// Package adapters translates between persistence records and application
// models so the application layer never imports storage types directly.
// Errors pass through unchanged; the application maps persistence sentinels.
package adapters

import (
	"context"
	"time"

	"github.com/example/meeting-tracker/internal/application"
	"github.com/example/meeting-tracker/internal/persistence"
)

// UserRepository adapts persistence.UserRepository to application.UserRepository.
type UserRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository wraps repo.
func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	stored, err := a.repo.CreateUser(ctx, toPersistenceUser(user))
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) UpdateUser(ctx context.Context, user application.User) error {
	return a.repo.UpdateUser(ctx, toPersistenceUser(user))
}

func (a *UserRepository) GetUser(ctx context.Context, id int64) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) GetUserByDeviceID(ctx context.Context, deviceID string) (application.User, error) {
	stored, err := a.repo.GetUserByDeviceID(ctx, deviceID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationUser), nil
}

func (a *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	return a.repo.DeleteUser(ctx, id)
}

// LocationRepository adapts persistence.LocationRepository to application.LocationRepository.
type LocationRepository struct {
	repo persistence.LocationRepository
}

// NewLocationRepository wraps repo.
func NewLocationRepository(repo persistence.LocationRepository) *LocationRepository {
	return &LocationRepository{repo: repo}
}

func (a *LocationRepository) CreateLocation(ctx context.Context, location application.Location) (application.Location, error) {
	stored, err := a.repo.CreateLocation(ctx, toPersistenceLocation(location))
	if err != nil {
		return application.Location{}, err
	}
	return toApplicationLocation(stored), nil
}

func (a *LocationRepository) UpdateLocation(ctx context.Context, location application.Location) error {
	return a.repo.UpdateLocation(ctx, toPersistenceLocation(location))
}

func (a *LocationRepository) GetLocation(ctx context.Context, id int64) (application.Location, error) {
	stored, err := a.repo.GetLocation(ctx, id)
	if err != nil {
		return application.Location{}, err
	}
	return toApplicationLocation(stored), nil
}

func (a *LocationRepository) ListLocations(ctx context.Context, nameContains string) ([]application.Location, error) {
	models, err := a.repo.ListLocations(ctx, nameContains)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationLocation), nil
}

func (a *LocationRepository) DeleteLocation(ctx context.Context, id int64) error {
	return a.repo.DeleteLocation(ctx, id)
}

// MeetingRepository adapts persistence.MeetingRepository to application.MeetingRepository.
type MeetingRepository struct {
	repo persistence.MeetingRepository
}

// NewMeetingRepository wraps repo.
func NewMeetingRepository(repo persistence.MeetingRepository) *MeetingRepository {
	return &MeetingRepository{repo: repo}
}

func (a *MeetingRepository) CreateMeeting(ctx context.Context, meeting application.Meeting, inline *application.Location) (application.Meeting, error) {
	var loc *persistence.Location
	if inline != nil {
		converted := toPersistenceLocation(*inline)
		loc = &converted
	}
	stored, err := a.repo.CreateMeeting(ctx, toPersistenceMeeting(meeting), loc)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *MeetingRepository) ReplaceMeeting(ctx context.Context, meeting application.Meeting) error {
	return a.repo.ReplaceMeeting(ctx, toPersistenceMeeting(meeting))
}

func (a *MeetingRepository) GetMeeting(ctx context.Context, id int64) (application.Meeting, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *MeetingRepository) ListMeetings(ctx context.Context, filter application.MeetingFilter) ([]application.Meeting, error) {
	models, err := a.repo.ListMeetings(ctx, persistence.MeetingFilter{
		StartsAfter: cloneTime(filter.StartsAfter),
		EndsBefore:  cloneTime(filter.EndsBefore),
		LocationID:  cloneID(filter.LocationID),
	})
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationMeeting), nil
}

func (a *MeetingRepository) DeleteMeeting(ctx context.Context, id int64) ([]application.DocumentRecord, error) {
	removed, err := a.repo.DeleteMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapSlice(removed, toApplicationDocument), nil
}

// DocumentRepository adapts persistence.DocumentRepository to application.DocumentRepository.
type DocumentRepository struct {
	repo persistence.DocumentRepository
}

// NewDocumentRepository wraps repo.
func NewDocumentRepository(repo persistence.DocumentRepository) *DocumentRepository {
	return &DocumentRepository{repo: repo}
}

func (a *DocumentRepository) CreateDocument(ctx context.Context, doc application.DocumentRecord) (application.DocumentRecord, error) {
	stored, err := a.repo.CreateDocument(ctx, toPersistenceDocument(doc))
	if err != nil {
		return application.DocumentRecord{}, err
	}
	return toApplicationDocument(stored), nil
}

func (a *DocumentRepository) GetDocument(ctx context.Context, id int64) (application.DocumentRecord, error) {
	stored, err := a.repo.GetDocument(ctx, id)
	if err != nil {
		return application.DocumentRecord{}, err
	}
	return toApplicationDocument(stored), nil
}

func (a *DocumentRepository) ListDocumentsForMeeting(ctx context.Context, meetingID int64) ([]application.DocumentRecord, error) {
	models, err := a.repo.ListDocumentsForMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationDocument), nil
}

func (a *DocumentRepository) DeleteDocument(ctx context.Context, id int64) error {
	return a.repo.DeleteDocument(ctx, id)
}

// AttendeeRepository adapts persistence.AttendeeRepository to application.AttendeeRepository.
type AttendeeRepository struct {
	repo persistence.AttendeeRepository
}

// NewAttendeeRepository wraps repo.
func NewAttendeeRepository(repo persistence.AttendeeRepository) *AttendeeRepository {
	return &AttendeeRepository{repo: repo}
}

func (a *AttendeeRepository) CreateAttendee(ctx context.Context, attendee application.Attendee) (application.Attendee, error) {
	stored, err := a.repo.CreateAttendee(ctx, toPersistenceAttendee(attendee))
	if err != nil {
		return application.Attendee{}, err
	}
	return toApplicationAttendee(stored), nil
}

func (a *AttendeeRepository) UpdateAttendee(ctx context.Context, attendee application.Attendee) error {
	return a.repo.UpdateAttendee(ctx, toPersistenceAttendee(attendee))
}

func (a *AttendeeRepository) GetAttendee(ctx context.Context, id int64) (application.Attendee, error) {
	stored, err := a.repo.GetAttendee(ctx, id)
	if err != nil {
		return application.Attendee{}, err
	}
	return toApplicationAttendee(stored), nil
}

func (a *AttendeeRepository) ListAttendees(ctx context.Context) ([]application.Attendee, error) {
	models, err := a.repo.ListAttendees(ctx)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationAttendee), nil
}

func (a *AttendeeRepository) DeleteAttendee(ctx context.Context, id int64) error {
	return a.repo.DeleteAttendee(ctx, id)
}

func (a *AttendeeRepository) DeleteAttendeeByPair(ctx context.Context, userID, meetingID int64) error {
	return a.repo.DeleteAttendeeByPair(ctx, userID, meetingID)
}

func (a *AttendeeRepository) ListMeetingAttendees(ctx context.Context, meetingID int64) ([]application.User, error) {
	models, err := a.repo.ListMeetingAttendees(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationUser), nil
}

func (a *AttendeeRepository) ListUserMeetings(ctx context.Context, userID int64) ([]application.Meeting, error) {
	models, err := a.repo.ListUserMeetings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(models, toApplicationMeeting), nil
}

func (a *AttendeeRepository) CountMeetingAttendees(ctx context.Context, meetingID int64) (int, error) {
	return a.repo.CountMeetingAttendees(ctx, meetingID)
}

func (a *AttendeeRepository) AttendeeExists(ctx context.Context, userID, meetingID int64) (bool, error) {
	return a.repo.AttendeeExists(ctx, userID, meetingID)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:              model.ID,
		DeviceID:        model.DeviceID,
		UserName:        model.UserName,
		InstitutionName: model.InstitutionName,
		LastLoginDate:   cloneTime(model.LastLoginAt),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:              user.ID,
		DeviceID:        user.DeviceID,
		UserName:        user.UserName,
		InstitutionName: user.InstitutionName,
		LastLoginAt:     cloneTime(user.LastLoginDate),
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
}

func toApplicationLocation(model persistence.Location) application.Location {
	return application.Location{
		ID:        model.ID,
		Name:      model.Name,
		Latitude:  model.Latitude,
		Longitude: model.Longitude,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceLocation(location application.Location) persistence.Location {
	return persistence.Location{
		ID:        location.ID,
		Name:      location.Name,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		CreatedAt: location.CreatedAt,
		UpdatedAt: location.UpdatedAt,
	}
}

func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	return application.Meeting{
		ID:         model.ID,
		Title:      model.Title,
		StartDate:  model.Start,
		EndDate:    model.End,
		AllDay:     model.AllDay,
		Color:      model.Color,
		LocationID: cloneID(model.LocationID),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	return persistence.Meeting{
		ID:         meeting.ID,
		Title:      meeting.Title,
		Start:      meeting.StartDate,
		End:        meeting.EndDate,
		AllDay:     meeting.AllDay,
		Color:      meeting.Color,
		LocationID: cloneID(meeting.LocationID),
		CreatedAt:  meeting.CreatedAt,
		UpdatedAt:  meeting.UpdatedAt,
	}
}

func toApplicationDocument(model persistence.MeetingDocument) application.DocumentRecord {
	return application.DocumentRecord{
		ID:          model.ID,
		MeetingID:   model.MeetingID,
		FileName:    model.FileName,
		StoragePath: model.FilePath,
		CreatedAt:   model.CreatedAt,
	}
}

func toPersistenceDocument(doc application.DocumentRecord) persistence.MeetingDocument {
	return persistence.MeetingDocument{
		ID:        doc.ID,
		MeetingID: doc.MeetingID,
		FileName:  doc.FileName,
		FilePath:  doc.StoragePath,
		CreatedAt: doc.CreatedAt,
	}
}

func toApplicationAttendee(model persistence.Attendee) application.Attendee {
	return application.Attendee{
		ID:        model.ID,
		UserID:    model.UserID,
		MeetingID: model.MeetingID,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceAttendee(attendee application.Attendee) persistence.Attendee {
	return persistence.Attendee{
		ID:        attendee.ID,
		UserID:    attendee.UserID,
		MeetingID: attendee.MeetingID,
		CreatedAt: attendee.CreatedAt,
	}
}

func mapSlice[From, To any](in []From, convert func(From) To) []To {
	out := make([]To, 0, len(in))
	for _, v := range in {
		out = append(out, convert(v))
	}
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneID(value *int64) *int64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
