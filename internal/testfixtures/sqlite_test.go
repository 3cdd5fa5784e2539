package testfixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/meeting-tracker/internal/application"
)

func TestSQLiteHarness(t *testing.T) {
	h := NewSQLiteHarness(t)
	ctx := context.Background()
	svc := h.Services()

	meeting, err := svc.Meetings.Create(ctx, application.CreateMeetingParams{
		Input: NewMeetingInput(WithTitle("Kickoff")),
		Files: Uploads("agenda.pdf"),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if meeting.Title != "Kickoff" || len(meeting.Documents) != 1 {
		t.Fatalf("unexpected meeting %+v", meeting)
	}

	if _, err := os.Stat(filepath.Join(h.Files.Root(), "key-0001-agenda.pdf")); err != nil {
		t.Fatalf("expected predictable storage key: %v", err)
	}
	if h.Tokens.Issued() != 1 {
		t.Fatalf("expected one token issued, got %d", h.Tokens.Issued())
	}
	if meeting.Documents[0].DownloadURL != "/api/documents/1/download" {
		t.Fatalf("unexpected download url %q", meeting.Documents[0].DownloadURL)
	}
}

func TestFixturesAreUnique(t *testing.T) {
	a, b := NewUserInput(), NewUserInput()
	if a.DeviceID == b.DeviceID {
		t.Fatalf("expected distinct device ids, got %q twice", a.DeviceID)
	}
	m1, m2 := NewMeetingInput(), NewMeetingInput()
	if !m1.StartDate.Before(m2.StartDate) || !m1.StartDate.Before(m1.EndDate) {
		t.Fatalf("expected ordered, valid spans: %v %v", m1, m2)
	}
	l := NewLocationInput(WithCoordinates(41.0, 29.0))
	if *l.Latitude != 41.0 || *l.Longitude != 29.0 {
		t.Fatalf("unexpected coordinates %v, %v", *l.Latitude, *l.Longitude)
	}
}

func TestHarnessOptions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewSQLiteHarness(t, WithLogger(zap.New(core)))
	ctx := context.Background()
	svc := h.Services()

	user, err := svc.Users.Create(ctx, NewUserInput(WithDeviceID("tablet-7"), WithUserName("Ayse")))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.DeviceID != "tablet-7" || user.UserName != "Ayse" {
		t.Fatalf("unexpected user %+v", user)
	}

	location, err := svc.Locations.Create(ctx, NewLocationInput(WithLocationName("Hall B")))
	if err != nil {
		t.Fatalf("create location: %v", err)
	}

	start := ReferenceTime().Add(2 * time.Hour)
	meeting, err := svc.Meetings.Create(ctx, application.CreateMeetingParams{
		Input: NewMeetingInput(WithSpan(start, start.Add(30*time.Minute)), AtLocation(location.ID)),
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if !meeting.StartDate.Equal(start) || meeting.Location == nil || meeting.Location.Name != "Hall B" {
		t.Fatalf("unexpected meeting %+v", meeting)
	}

	if logs.Len() == 0 {
		t.Fatalf("expected services to log through the harness logger")
	}
}
