package application

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type guardHarness struct {
	guard     *AttendanceGuard
	users     *userRepoStub
	meetings  *meetingRepoStub
	attendees *attendeeRepoStub
	user      User
	meeting   Meeting
}

func newGuardHarness(t *testing.T) *guardHarness {
	t.Helper()
	users := newUserRepoStub()
	meetings := newMeetingRepoStub()
	attendees := newAttendeeRepoStub(users)
	meetings.attendees = attendees

	user, err := users.CreateUser(context.Background(), User{DeviceID: "device-1", UserName: "Ayse"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	meeting := meetings.add(Meeting{Title: "Budget review"})

	return &guardHarness{
		guard:     NewAttendanceGuard(attendees, users, meetings),
		users:     users,
		meetings:  meetings,
		attendees: attendees,
		user:      user,
		meeting:   meeting,
	}
}

func TestAttendanceGuard_Register(t *testing.T) {
	t.Run("registers once then conflicts", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()

		attendee, err := h.guard.Register(ctx, h.user.ID, h.meeting.ID)
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if attendee.ID == 0 || attendee.UserID != h.user.ID || attendee.MeetingID != h.meeting.ID {
			t.Fatalf("unexpected attendee %+v", attendee)
		}

		_, err = h.guard.Register(ctx, h.user.ID, h.meeting.ID)
		var cErr *ConflictError
		if !errors.As(err, &cErr) || cErr.Reason != "already registered" {
			t.Fatalf("expected already registered conflict, got %v", err)
		}
	})

	t.Run("missing user is reported before meeting", func(t *testing.T) {
		h := newGuardHarness(t)

		_, err := h.guard.Register(context.Background(), 404, 405)

		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) || nfErr.Entity != "user" {
			t.Fatalf("expected user NotFoundError, got %v", err)
		}
	})

	t.Run("missing meeting is not found", func(t *testing.T) {
		h := newGuardHarness(t)

		_, err := h.guard.Register(context.Background(), h.user.ID, 405)

		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) || nfErr.Entity != "meeting" {
			t.Fatalf("expected meeting NotFoundError, got %v", err)
		}
		if n, _ := h.guard.CountForMeeting(context.Background(), 405); n != 0 {
			t.Fatalf("expected no rows, got %d", n)
		}
	})

	t.Run("concurrent registrations admit exactly one", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()

		const callers = 20
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := h.guard.Register(ctx, h.user.ID, h.meeting.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if succeeded != 1 || conflicts != callers-1 {
			t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, succeeded, conflicts)
		}
		if n, _ := h.guard.CountForMeeting(ctx, h.meeting.ID); n != 1 {
			t.Fatalf("expected one stored registration, got %d", n)
		}
	})
}

func TestAttendanceGuard_Update(t *testing.T) {
	t.Run("moves a registration", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()
		other := h.meetings.add(Meeting{Title: "Retro"})
		attendee, _ := h.guard.Register(ctx, h.user.ID, h.meeting.ID)

		updated, err := h.guard.Update(ctx, attendee.ID, h.user.ID, other.ID)
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if updated.ID != attendee.ID || updated.MeetingID != other.ID {
			t.Fatalf("unexpected attendee %+v", updated)
		}
	})

	t.Run("keeping the same pair is not a duplicate", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()
		attendee, _ := h.guard.Register(ctx, h.user.ID, h.meeting.ID)

		if _, err := h.guard.Update(ctx, attendee.ID, h.user.ID, h.meeting.ID); err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
	})

	t.Run("colliding with another registration conflicts", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()
		other := h.meetings.add(Meeting{Title: "Retro"})
		first, _ := h.guard.Register(ctx, h.user.ID, h.meeting.ID)
		if _, err := h.guard.Register(ctx, h.user.ID, other.ID); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		_, err := h.guard.Update(ctx, first.ID, h.user.ID, other.ID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("missing attendee is not found", func(t *testing.T) {
		h := newGuardHarness(t)

		_, err := h.guard.Update(context.Background(), 77, h.user.ID, h.meeting.ID)

		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) || nfErr.Entity != "attendee" {
			t.Fatalf("expected attendee NotFoundError, got %v", err)
		}
	})
}

func TestAttendanceGuard_Remove(t *testing.T) {
	t.Run("remove by id", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()
		attendee, _ := h.guard.Register(ctx, h.user.ID, h.meeting.ID)

		removed, err := h.guard.Remove(ctx, attendee.ID)
		if err != nil || !removed {
			t.Fatalf("expected removal, got %v, %v", removed, err)
		}
		removed, err = h.guard.Remove(ctx, attendee.ID)
		if err != nil || removed {
			t.Fatalf("expected false, nil on repeat, got %v, %v", removed, err)
		}
	})

	t.Run("remove by pair is idempotent", func(t *testing.T) {
		h := newGuardHarness(t)
		ctx := context.Background()
		if _, err := h.guard.Register(ctx, h.user.ID, h.meeting.ID); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		removed, err := h.guard.RemoveByPair(ctx, h.user.ID, h.meeting.ID)
		if err != nil || !removed {
			t.Fatalf("expected removal, got %v, %v", removed, err)
		}
		removed, err = h.guard.RemoveByPair(ctx, h.user.ID, h.meeting.ID)
		if err != nil || removed {
			t.Fatalf("expected false, nil on repeat, got %v, %v", removed, err)
		}
		if exists, _ := h.guard.Exists(ctx, h.user.ID, h.meeting.ID); exists {
			t.Fatal("expected pair to be gone")
		}
	})
}

func TestAttendanceGuard_Queries(t *testing.T) {
	h := newGuardHarness(t)
	ctx := context.Background()
	second, _ := h.users.CreateUser(ctx, User{DeviceID: "device-2", UserName: "Mehmet"})
	other := h.meetings.add(Meeting{Title: "Retro"})

	for _, pair := range [][2]int64{{h.user.ID, h.meeting.ID}, {second.ID, h.meeting.ID}, {h.user.ID, other.ID}} {
		if _, err := h.guard.Register(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("Register(%v) returned error: %v", pair, err)
		}
	}

	if n, err := h.guard.CountForMeeting(ctx, h.meeting.ID); err != nil || n != 2 {
		t.Fatalf("expected 2 attendees, got %d, %v", n, err)
	}
	users, err := h.guard.AttendeesOfMeeting(ctx, h.meeting.ID)
	if err != nil || len(users) != 2 {
		t.Fatalf("expected 2 users, got %d, %v", len(users), err)
	}
	meetings, err := h.guard.MeetingsOfUser(ctx, h.user.ID)
	if err != nil || len(meetings) != 2 {
		t.Fatalf("expected 2 meetings, got %d, %v", len(meetings), err)
	}
	all, err := h.guard.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 registrations, got %d, %v", len(all), err)
	}
	if _, err := h.guard.Get(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if exists, _ := h.guard.Exists(ctx, second.ID, other.ID); exists {
		t.Fatal("unexpected registration")
	}
}
