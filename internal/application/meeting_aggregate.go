package application

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/persistence"
)

// MeetingRepository captures the persistence operations needed by MeetingAggregate.
type MeetingRepository interface {
	// CreateMeeting stores the meeting and, when inline is non-nil, the
	// location it points at, in one transaction.
	CreateMeeting(ctx context.Context, meeting Meeting, inline *Location) (Meeting, error)
	// ReplaceMeeting overwrites every mutable field in one write.
	ReplaceMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	// DeleteMeeting removes attendees, documents and the meeting in one
	// transaction and returns the document records it removed.
	DeleteMeeting(ctx context.Context, id int64) ([]DocumentRecord, error)
}

// LocationReader looks up locations by id.
type LocationReader interface {
	GetLocation(ctx context.Context, id int64) (Location, error)
}

// MeetingAggregate keeps a meeting, its location reference and its
// documents consistent across create, update and delete.
type MeetingAggregate struct {
	meetings  MeetingRepository
	locations LocationReader
	documents *DocumentStore
	logger    *zap.Logger
}

// NewMeetingAggregate constructs a meeting aggregate with the provided dependencies.
func NewMeetingAggregate(meetings MeetingRepository, locations LocationReader, documents *DocumentStore) *MeetingAggregate {
	return NewMeetingAggregateWithLogger(meetings, locations, documents, nil)
}

// NewMeetingAggregateWithLogger constructs a meeting aggregate with a specified logger.
func NewMeetingAggregateWithLogger(meetings MeetingRepository, locations LocationReader, documents *DocumentStore, logger *zap.Logger) *MeetingAggregate {
	return &MeetingAggregate{
		meetings:  meetings,
		locations: locations,
		documents: documents,
		logger:    defaultLogger(logger),
	}
}

func (a *MeetingAggregate) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, a.logger, "MeetingAggregate", operation, fields...)
}

// Create validates and stores a meeting, then attaches the initial files.
// When an upload fails the created meeting is returned with the error and
// Documents holds the files stored before the failure.
func (a *MeetingAggregate) Create(ctx context.Context, params CreateMeetingParams) (meeting Meeting, err error) {
	logger := a.loggerWith(ctx, "Create", zap.Int("file_count", len(params.Files)))
	defer func() {
		logOutcome(logger, err, "meeting created", "failed to create meeting",
			zap.Int64("meeting_id", meeting.ID), zap.Int("document_count", len(meeting.Documents)))
	}()

	if params.Input == nil {
		err = singleFieldError("meeting", "meeting details are required")
		return
	}

	locationID := params.LocationID
	if locationID == nil {
		locationID = params.Input.LocationID
	}

	input := normalizeMeetingInput(*params.Input)
	vErr := validateMeetingInput(input)
	if locationID != nil && params.InlineLocation != nil {
		vErr.add("location", "provide either location_id or location, not both")
	}

	var inline *Location
	if params.InlineLocation != nil && locationID == nil {
		normalized := normalizeLocationInput(*params.InlineLocation)
		vErr.merge(prefixFields("location.", validateLocationInput(normalized)))
		inline = &Location{
			Name:      normalized.Name,
			Latitude:  derefFloat(normalized.Latitude),
			Longitude: derefFloat(normalized.Longitude),
		}
	}
	if len(params.Files) > 0 {
		vErr.merge(validateUploads(params.Files))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = a.requireLocation(ctx, locationID); err != nil {
		return
	}
	if inline != nil {
		logger.Warn("inline location is deprecated; reference an existing location_id instead",
			zap.String("location_name", inline.Name))
	}

	draft := Meeting{
		Title:      input.Title,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		AllDay:     input.AllDay,
		Color:      input.Color,
		LocationID: locationID,
	}
	meeting, err = a.meetings.CreateMeeting(ctx, draft, inline)
	if err != nil {
		meeting = Meeting{}
		err = mapMeetingWriteError(err)
		return
	}

	meeting.Location = a.lookupLocation(ctx, meeting.LocationID)
	meeting.Documents = []MeetingDocument{}

	if len(params.Files) > 0 {
		var docs []MeetingDocument
		docs, err = a.documents.Upload(ctx, meeting.ID, params.Files)
		meeting.Documents = append(meeting.Documents, docs...)
	}
	return
}

// Update replaces every field of an existing meeting. It reports false when
// the meeting does not exist. Documents are not touched.
func (a *MeetingAggregate) Update(ctx context.Context, meetingID int64, input MeetingInput) (meeting Meeting, updated bool, err error) {
	logger := a.loggerWith(ctx, "Update", zap.Int64("meeting_id", meetingID))
	defer func() {
		logOutcome(logger, err, "meeting updated", "failed to update meeting", zap.Bool("updated", updated))
	}()

	if meetingID <= 0 {
		return
	}
	if _, err = a.meetings.GetMeeting(ctx, meetingID); err != nil {
		if isRepoNotFound(err) {
			err = nil
		}
		return
	}

	input = normalizeMeetingInput(input)
	if vErr := validateMeetingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = a.requireLocation(ctx, input.LocationID); err != nil {
		return
	}

	err = a.meetings.ReplaceMeeting(ctx, Meeting{
		ID:         meetingID,
		Title:      input.Title,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		AllDay:     input.AllDay,
		Color:      input.Color,
		LocationID: input.LocationID,
	})
	if err != nil {
		if isRepoNotFound(err) {
			err = nil
			return
		}
		err = mapMeetingWriteError(err)
		return
	}

	updated = true
	meeting, err = a.Get(ctx, meetingID)
	return
}

// Delete removes a meeting with its attendees and documents. The files
// unlinked afterwards are exactly those whose rows the delete removed, so an
// upload racing the delete cannot leave a file behind. A file that cannot be
// removed is logged and does not fail the call.
func (a *MeetingAggregate) Delete(ctx context.Context, meetingID int64) (deleted bool, err error) {
	logger := a.loggerWith(ctx, "Delete", zap.Int64("meeting_id", meetingID))
	var documentCount int
	defer func() {
		logOutcome(logger, err, "meeting deleted", "failed to delete meeting",
			zap.Bool("deleted", deleted), zap.Int("document_count", documentCount))
	}()

	if meetingID <= 0 {
		return
	}

	var records []DocumentRecord
	records, err = a.meetings.DeleteMeeting(ctx, meetingID)
	if err != nil {
		if isRepoNotFound(err) {
			err = nil
		}
		return
	}
	deleted = true
	documentCount = len(records)

	a.documents.removeFiles(ctx, records)
	return
}

// Get returns a meeting with its location and documents.
func (a *MeetingAggregate) Get(ctx context.Context, meetingID int64) (Meeting, error) {
	meeting, err := a.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		if isRepoNotFound(err) {
			return Meeting{}, notFound("meeting")
		}
		return Meeting{}, err
	}

	meeting.Location = a.lookupLocation(ctx, meeting.LocationID)
	meeting.Documents, err = a.documents.ListForOwner(ctx, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	return meeting, nil
}

// List returns meetings matching the filter, ordered by start time, with
// their locations populated.
func (a *MeetingAggregate) List(ctx context.Context, filter MeetingFilter) (meetings []Meeting, err error) {
	logger := a.loggerWith(ctx, "List")
	defer func() {
		logOutcome(logger, err, "meetings listed", "failed to list meetings", zap.Int("result_count", len(meetings)))
	}()

	if filter.StartsAfter != nil && filter.EndsBefore != nil && filter.EndsBefore.Before(*filter.StartsAfter) {
		err = singleFieldError("to", "to must not be before from")
		return
	}

	meetings, err = a.meetings.ListMeetings(ctx, filter)
	if err != nil {
		return
	}

	seen := make(map[int64]*Location)
	for i := range meetings {
		id := meetings[i].LocationID
		if id == nil {
			continue
		}
		loc, ok := seen[*id]
		if !ok {
			loc = a.lookupLocation(ctx, id)
			seen[*id] = loc
		}
		meetings[i].Location = loc
	}
	return
}

func (a *MeetingAggregate) requireLocation(ctx context.Context, locationID *int64) error {
	if locationID == nil {
		return nil
	}
	if *locationID <= 0 {
		return singleFieldError("location_id", "location does not exist")
	}
	if _, err := a.locations.GetLocation(ctx, *locationID); err != nil {
		if isRepoNotFound(err) {
			return singleFieldError("location_id", "location does not exist")
		}
		return err
	}
	return nil
}

func (a *MeetingAggregate) lookupLocation(ctx context.Context, locationID *int64) *Location {
	if locationID == nil {
		return nil
	}
	loc, err := a.locations.GetLocation(ctx, *locationID)
	if err != nil {
		if !isRepoNotFound(err) {
			a.loggerWith(ctx, "lookupLocation").Warn("location lookup failed",
				zap.Int64("location_id", *locationID), zap.Error(err))
		}
		return nil
	}
	return &loc
}

func normalizeMeetingInput(input MeetingInput) MeetingInput {
	input.Title = plainText(input.Title)
	input.Color = strings.TrimSpace(input.Color)
	if input.Color == "" {
		input.Color = DefaultMeetingColor
	}
	return input
}

func validateMeetingInput(input MeetingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if input.EndDate.IsZero() {
		vErr.add("end_date", "end date is required")
	}
	if !input.StartDate.IsZero() && !input.EndDate.IsZero() && !input.StartDate.Before(input.EndDate) {
		vErr.add("end_date", "end date must be after start date")
	}

	return vErr
}

func mapMeetingWriteError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrForeignKey):
		return singleFieldError("location_id", "location does not exist")
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict("location name already exists")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return singleFieldError("meeting", "meeting violates a storage constraint")
	}
	return err
}

func prefixFields(prefix string, vErr *ValidationError) *ValidationError {
	if !vErr.HasErrors() {
		return nil
	}
	out := &ValidationError{}
	for field, msg := range vErr.FieldErrors {
		out.add(prefix+field, msg)
	}
	return out
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
