package application

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type aggregateHarness struct {
	*storeHarness
	aggregate *MeetingAggregate
	locations *locationRepoStub
	attendees *attendeeRepoStub
	users     *userRepoStub
}

func newAggregateHarness(t *testing.T) *aggregateHarness {
	t.Helper()
	sh := newStoreHarness(t)
	locations := newLocationRepoStub()
	users := newUserRepoStub()
	attendees := newAttendeeRepoStub(users)
	sh.meetings.locations = locations
	sh.meetings.attendees = attendees

	return &aggregateHarness{
		storeHarness: sh,
		aggregate:    NewMeetingAggregate(sh.meetings, locations, sh.store),
		locations:    locations,
		attendees:    attendees,
		users:        users,
	}
}

var (
	nineAM = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	tenAM  = nineAM.Add(time.Hour)
)

func validInput() *MeetingInput {
	return &MeetingInput{Title: "Quarterly review", StartDate: nineAM, EndDate: tenAM}
}

func TestMeetingAggregate_Create(t *testing.T) {
	t.Run("requires meeting details", func(t *testing.T) {
		h := newAggregateHarness(t)

		_, err := h.aggregate.Create(context.Background(), CreateMeetingParams{})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("validates title and dates", func(t *testing.T) {
		h := newAggregateHarness(t)

		_, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input: &MeetingInput{Title: "<b></b>", StartDate: tenAM, EndDate: nineAM},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"title", "end_date"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("defaults color and strips markup", func(t *testing.T) {
		h := newAggregateHarness(t)

		meeting, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input: &MeetingInput{Title: "<script>x()</script>R&D <i>sync</i>", StartDate: nineAM, EndDate: tenAM},
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if meeting.Color != DefaultMeetingColor {
			t.Fatalf("expected default color, got %q", meeting.Color)
		}
		if meeting.Title != "R&D sync" {
			t.Fatalf("expected sanitized title, got %q", meeting.Title)
		}
		if meeting.Documents == nil || len(meeting.Documents) != 0 {
			t.Fatalf("expected empty document list, got %v", meeting.Documents)
		}
	})

	t.Run("references an existing location", func(t *testing.T) {
		h := newAggregateHarness(t)
		loc, _ := h.locations.CreateLocation(context.Background(), Location{Name: "Ankara HQ", Latitude: 39.9, Longitude: 32.8})

		meeting, err := h.aggregate.Create(context.Background(), CreateMeetingParams{Input: validInput(), LocationID: &loc.ID})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if meeting.Location == nil || meeting.Location.Name != "Ankara HQ" {
			t.Fatalf("expected location populated, got %+v", meeting.Location)
		}
	})

	t.Run("unknown location id is a validation error", func(t *testing.T) {
		h := newAggregateHarness(t)

		_, err := h.aggregate.Create(context.Background(), CreateMeetingParams{Input: validInput(), LocationID: ptr(int64(12))})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["location_id"] == "" {
			t.Fatalf("expected location_id validation error, got %v", err)
		}
		if len(h.meetings.rows) != 1 {
			t.Fatalf("expected no meeting stored, have %d", len(h.meetings.rows))
		}
	})

	t.Run("inline location is created with the meeting", func(t *testing.T) {
		h := newAggregateHarness(t)

		meeting, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input:          validInput(),
			InlineLocation: &LocationInput{Name: "Izmir Office", Latitude: ptr(38.4), Longitude: ptr(27.1)},
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if meeting.LocationID == nil || meeting.Location == nil || meeting.Location.Name != "Izmir Office" {
			t.Fatalf("expected inline location stored, got %+v", meeting)
		}
	})

	t.Run("both location forms is a validation error", func(t *testing.T) {
		h := newAggregateHarness(t)

		_, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input:          validInput(),
			LocationID:     ptr(int64(1)),
			InlineLocation: &LocationInput{Name: "Izmir Office", Latitude: ptr(38.4), Longitude: ptr(27.1)},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["location"] == "" {
			t.Fatalf("expected location validation error, got %v", err)
		}
	})

	t.Run("inline location fields are validated", func(t *testing.T) {
		h := newAggregateHarness(t)

		_, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input:          validInput(),
			InlineLocation: &LocationInput{Name: "", Latitude: ptr(95.0)},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"location.name", "location.latitude", "location.longitude"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("attaches initial files", func(t *testing.T) {
		h := newAggregateHarness(t)

		meeting, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input: validInput(),
			Files: []FileUpload{upload("agenda.pdf", "a"), upload("notes.txt", "n")},
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if len(meeting.Documents) != 2 || meeting.Documents[0].MeetingID != meeting.ID {
			t.Fatalf("unexpected documents %+v", meeting.Documents)
		}
	})

	t.Run("upload failure returns the meeting with the error", func(t *testing.T) {
		h := newAggregateHarness(t)
		h.files.failPutOn = 2
		h.files.putErr = fs.ErrPermission

		meeting, err := h.aggregate.Create(context.Background(), CreateMeetingParams{
			Input: validInput(),
			Files: []FileUpload{upload("agenda.pdf", "a"), upload("notes.txt", "n")},
		})

		if !errors.Is(err, ErrIOFailure) {
			t.Fatalf("expected io failure, got %v", err)
		}
		if meeting.ID == 0 || len(meeting.Documents) != 1 {
			t.Fatalf("expected created meeting with one document, got %+v", meeting)
		}
	})
}

func TestMeetingAggregate_Update(t *testing.T) {
	t.Run("missing meeting reports false", func(t *testing.T) {
		h := newAggregateHarness(t)

		for _, id := range []int64{0, -3, 999} {
			_, updated, err := h.aggregate.Update(context.Background(), id, *validInput())
			if err != nil || updated {
				t.Fatalf("Update(%d) = %v, %v; want false, nil", id, updated, err)
			}
		}
	})

	t.Run("replaces every field in one write", func(t *testing.T) {
		h := newAggregateHarness(t)
		ctx := context.Background()
		created, _ := h.aggregate.Create(ctx, CreateMeetingParams{Input: &MeetingInput{
			Title: "Old", StartDate: nineAM, EndDate: tenAM, AllDay: true, Color: "#ff0000",
		}})

		meeting, updated, err := h.aggregate.Update(ctx, created.ID, MeetingInput{
			Title: "New", StartDate: nineAM.Add(24 * time.Hour), EndDate: tenAM.Add(24 * time.Hour),
		})
		if err != nil || !updated {
			t.Fatalf("expected update, got %v, %v", updated, err)
		}
		if len(h.meetings.replaced) != 1 {
			t.Fatalf("expected one replace, got %d", len(h.meetings.replaced))
		}
		if meeting.Title != "New" || meeting.AllDay || meeting.Color != DefaultMeetingColor {
			t.Fatalf("expected full replacement, got %+v", meeting)
		}
	})

	t.Run("invalid input on an existing meeting is rejected", func(t *testing.T) {
		h := newAggregateHarness(t)
		ctx := context.Background()
		created, _ := h.aggregate.Create(ctx, CreateMeetingParams{Input: validInput()})

		_, updated, err := h.aggregate.Update(ctx, created.ID, MeetingInput{Title: "x", StartDate: tenAM, EndDate: nineAM})

		var vErr *ValidationError
		if updated || !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v, %v", updated, err)
		}
		if len(h.meetings.replaced) != 0 {
			t.Fatal("expected no write")
		}
	})
}

func TestMeetingAggregate_Delete(t *testing.T) {
	t.Run("cascades documents and attendees", func(t *testing.T) {
		h := newAggregateHarness(t)
		ctx := context.Background()
		meeting, err := h.aggregate.Create(ctx, CreateMeetingParams{
			Input: validInput(),
			Files: []FileUpload{upload("a.txt", "a"), upload("b.txt", "b"), upload("c.txt", "c")},
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		user, _ := h.users.CreateUser(ctx, User{DeviceID: "d", UserName: "u"})
		if _, err := h.attendees.CreateAttendee(ctx, Attendee{UserID: user.ID, MeetingID: meeting.ID}); err != nil {
			t.Fatalf("seed attendee: %v", err)
		}
		docIDs := make([]int64, 0, len(meeting.Documents))
		for _, doc := range meeting.Documents {
			docIDs = append(docIDs, doc.ID)
		}

		deleted, err := h.aggregate.Delete(ctx, meeting.ID)
		if err != nil || !deleted {
			t.Fatalf("expected deletion, got %v, %v", deleted, err)
		}

		if h.docs.count() != 0 {
			t.Fatalf("expected no document rows, have %d", h.docs.count())
		}
		for _, id := range docIDs {
			if _, err := h.store.DownloadOne(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected document %d not found, got %v", id, err)
			}
		}
		if n, _ := h.attendees.CountMeetingAttendees(ctx, meeting.ID); n != 0 {
			t.Fatalf("expected attendees removed, have %d", n)
		}
		entries, _ := os.ReadDir(h.files.Root())
		if len(entries) != 0 {
			t.Fatalf("expected files unlinked, found %d", len(entries))
		}
		if _, err := h.aggregate.Get(ctx, meeting.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected meeting not found, got %v", err)
		}
	})

	t.Run("upload landing just before the delete is removed too", func(t *testing.T) {
		h := newAggregateHarness(t)
		ctx := context.Background()
		meeting, err := h.aggregate.Create(ctx, CreateMeetingParams{Input: validInput(), Files: []FileUpload{upload("a.txt", "a")}})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		h.meetings.beforeDelete = func(id int64) {
			if _, err := h.store.Upload(ctx, id, []FileUpload{upload("late.txt", "late")}); err != nil {
				t.Errorf("late upload: %v", err)
			}
		}

		deleted, err := h.aggregate.Delete(ctx, meeting.ID)
		if err != nil || !deleted {
			t.Fatalf("expected deletion, got %v, %v", deleted, err)
		}
		if h.docs.count() != 0 {
			t.Fatalf("expected no document rows, have %d", h.docs.count())
		}
		entries, _ := os.ReadDir(h.files.Root())
		if len(entries) != 0 {
			t.Fatalf("expected every file unlinked, found %v", entries)
		}
	})

	t.Run("missing meeting reports false", func(t *testing.T) {
		h := newAggregateHarness(t)

		deleted, err := h.aggregate.Delete(context.Background(), 999)
		if err != nil || deleted {
			t.Fatalf("expected false, nil; got %v, %v", deleted, err)
		}
	})

	t.Run("file removal failure does not fail the delete", func(t *testing.T) {
		h := newAggregateHarness(t)
		ctx := context.Background()
		meeting, _ := h.aggregate.Create(ctx, CreateMeetingParams{Input: validInput(), Files: []FileUpload{upload("a.txt", "a")}})
		h.files.removeErr = fs.ErrPermission

		deleted, err := h.aggregate.Delete(ctx, meeting.ID)
		if err != nil || !deleted {
			t.Fatalf("expected deletion, got %v, %v", deleted, err)
		}
		entries, _ := os.ReadDir(filepath.Clean(h.files.Root()))
		if len(entries) != 1 {
			t.Fatalf("expected orphaned file left behind, found %d", len(entries))
		}
	})
}

func TestMeetingAggregate_GetAndList(t *testing.T) {
	h := newAggregateHarness(t)
	ctx := context.Background()
	loc, _ := h.locations.CreateLocation(ctx, Location{Name: "Ankara HQ"})

	later, _ := h.aggregate.Create(ctx, CreateMeetingParams{Input: &MeetingInput{
		Title: "Later", StartDate: nineAM.Add(48 * time.Hour), EndDate: tenAM.Add(48 * time.Hour), LocationID: &loc.ID,
	}, Files: []FileUpload{upload("a.txt", "a")}})
	if _, err := h.aggregate.Create(ctx, CreateMeetingParams{Input: validInput()}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := h.aggregate.Get(ctx, later.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Location == nil || len(got.Documents) != 1 {
		t.Fatalf("expected location and documents, got %+v", got)
	}

	byLocation, err := h.aggregate.List(ctx, MeetingFilter{LocationID: &loc.ID})
	if err != nil || len(byLocation) != 1 || byLocation[0].ID != later.ID {
		t.Fatalf("unexpected location listing %+v, %v", byLocation, err)
	}
	if byLocation[0].Location == nil {
		t.Fatal("expected location populated in listing")
	}

	from, to := tenAM, nineAM
	if _, err := h.aggregate.List(ctx, MeetingFilter{StartsAfter: &from, EndsBefore: &to}); ErrorKind(err) != "validation" {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}
