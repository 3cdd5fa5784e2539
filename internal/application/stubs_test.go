package application

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/meeting-tracker/internal/filestore"
	"github.com/example/meeting-tracker/internal/persistence"
)

type docRepoStub struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]DocumentRecord
	createErr error
	deleteErr error
}

func newDocRepoStub() *docRepoStub {
	return &docRepoStub{rows: make(map[int64]DocumentRecord)}
}

func (r *docRepoStub) CreateDocument(ctx context.Context, doc DocumentRecord) (DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return DocumentRecord{}, r.createErr
	}
	r.nextID++
	doc.ID = r.nextID
	doc.CreatedAt = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	r.rows[doc.ID] = doc
	return doc, nil
}

func (r *docRepoStub) GetDocument(ctx context.Context, id int64) (DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.rows[id]
	if !ok {
		return DocumentRecord{}, persistence.ErrNotFound
	}
	return doc, nil
}

func (r *docRepoStub) ListDocumentsForMeeting(ctx context.Context, meetingID int64) ([]DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DocumentRecord
	for _, doc := range r.rows {
		if doc.MeetingID == meetingID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *docRepoStub) DeleteDocument(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *docRepoStub) deleteForMeeting(meetingID int64) []DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []DocumentRecord
	for id, doc := range r.rows {
		if doc.MeetingID == meetingID {
			removed = append(removed, doc)
			delete(r.rows, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed
}

func (r *docRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type meetingRepoStub struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]Meeting
	locations  *locationRepoStub
	docs       *docRepoStub
	attendees  *attendeeRepoStub
	createErr  error
	replaced   []Meeting
	deletedIDs []int64
	// beforeDelete runs ahead of the delete, outside the lock.
	beforeDelete func(id int64)
}

func newMeetingRepoStub() *meetingRepoStub {
	return &meetingRepoStub{rows: make(map[int64]Meeting)}
}

func (r *meetingRepoStub) CreateMeeting(ctx context.Context, meeting Meeting, inline *Location) (Meeting, error) {
	if r.createErr != nil {
		return Meeting{}, r.createErr
	}
	if inline != nil {
		loc, err := r.locations.CreateLocation(ctx, *inline)
		if err != nil {
			return Meeting{}, err
		}
		meeting.LocationID = &loc.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	meeting.ID = r.nextID
	r.rows[meeting.ID] = meeting
	return meeting, nil
}

func (r *meetingRepoStub) ReplaceMeeting(ctx context.Context, meeting Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[meeting.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	meeting.CreatedAt = existing.CreatedAt
	r.rows[meeting.ID] = meeting
	r.replaced = append(r.replaced, meeting)
	return nil
}

func (r *meetingRepoStub) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.rows[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

func (r *meetingRepoStub) ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Meeting
	for _, m := range r.rows {
		if filter.LocationID != nil && (m.LocationID == nil || *m.LocationID != *filter.LocationID) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *meetingRepoStub) DeleteMeeting(ctx context.Context, id int64) ([]DocumentRecord, error) {
	if r.beforeDelete != nil {
		r.beforeDelete(id)
	}

	r.mu.Lock()
	if _, ok := r.rows[id]; !ok {
		r.mu.Unlock()
		return nil, persistence.ErrNotFound
	}
	delete(r.rows, id)
	r.deletedIDs = append(r.deletedIDs, id)
	r.mu.Unlock()

	var removed []DocumentRecord
	if r.docs != nil {
		removed = r.docs.deleteForMeeting(id)
	}
	if r.attendees != nil {
		r.attendees.deleteForMeeting(id)
	}
	return removed, nil
}

func (r *meetingRepoStub) add(m Meeting) Meeting {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.rows[m.ID] = m
	return m
}

type locationRepoStub struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Location
	inUse  map[int64]bool
}

func newLocationRepoStub() *locationRepoStub {
	return &locationRepoStub{rows: make(map[int64]Location), inUse: make(map[int64]bool)}
}

func (r *locationRepoStub) CreateLocation(ctx context.Context, location Location) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if strings.EqualFold(existing.Name, location.Name) {
			return Location{}, persistence.ErrDuplicate
		}
	}
	r.nextID++
	location.ID = r.nextID
	r.rows[location.ID] = location
	return location, nil
}

func (r *locationRepoStub) UpdateLocation(ctx context.Context, location Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[location.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.rows[location.ID] = location
	return nil
}

func (r *locationRepoStub) GetLocation(ctx context.Context, id int64) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.rows[id]
	if !ok {
		return Location{}, persistence.ErrNotFound
	}
	return loc, nil
}

func (r *locationRepoStub) ListLocations(ctx context.Context, nameContains string) ([]Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Location
	for _, loc := range r.rows {
		if strings.Contains(strings.ToLower(loc.Name), strings.ToLower(nameContains)) {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *locationRepoStub) DeleteLocation(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	if r.inUse[id] {
		return persistence.ErrInUse
	}
	delete(r.rows, id)
	return nil
}

type userRepoStub struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{rows: make(map[int64]User)}
}

func (r *userRepoStub) CreateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.DeviceID == user.DeviceID {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.rows[user.ID] = user
	return user, nil
}

func (r *userRepoStub) UpdateUser(ctx context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	for id, existing := range r.rows {
		if id != user.ID && existing.DeviceID == user.DeviceID {
			return persistence.ErrDuplicate
		}
	}
	r.rows[user.ID] = user
	return nil
}

func (r *userRepoStub) GetUser(ctx context.Context, id int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.rows[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *userRepoStub) GetUserByDeviceID(ctx context.Context, deviceID string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.rows {
		if user.DeviceID == deviceID {
			return user, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

func (r *userRepoStub) ListUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.rows))
	for _, user := range r.rows {
		out = append(out, user)
	}
	return out, nil
}

func (r *userRepoStub) DeleteUser(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// attendeeRepoStub serializes check-and-insert under a mutex, standing in
// for the storage transaction.
type attendeeRepoStub struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Attendee
	users  *userRepoStub
}

func newAttendeeRepoStub(users *userRepoStub) *attendeeRepoStub {
	return &attendeeRepoStub{rows: make(map[int64]Attendee), users: users}
}

func (r *attendeeRepoStub) pairTaken(userID, meetingID, exceptID int64) bool {
	for id, a := range r.rows {
		if id != exceptID && a.UserID == userID && a.MeetingID == meetingID {
			return true
		}
	}
	return false
}

func (r *attendeeRepoStub) CreateAttendee(ctx context.Context, attendee Attendee) (Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pairTaken(attendee.UserID, attendee.MeetingID, 0) {
		return Attendee{}, persistence.ErrDuplicate
	}
	r.nextID++
	attendee.ID = r.nextID
	r.rows[attendee.ID] = attendee
	return attendee, nil
}

func (r *attendeeRepoStub) UpdateAttendee(ctx context.Context, attendee Attendee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[attendee.ID]; !ok {
		return persistence.ErrNotFound
	}
	if r.pairTaken(attendee.UserID, attendee.MeetingID, attendee.ID) {
		return persistence.ErrDuplicate
	}
	r.rows[attendee.ID] = attendee
	return nil
}

func (r *attendeeRepoStub) GetAttendee(ctx context.Context, id int64) (Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return Attendee{}, persistence.ErrNotFound
	}
	return a, nil
}

func (r *attendeeRepoStub) ListAttendees(ctx context.Context) ([]Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attendee, 0, len(r.rows))
	for _, a := range r.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *attendeeRepoStub) DeleteAttendee(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *attendeeRepoStub) DeleteAttendeeByPair(ctx context.Context, userID, meetingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.rows {
		if a.UserID == userID && a.MeetingID == meetingID {
			delete(r.rows, id)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *attendeeRepoStub) ListMeetingAttendees(ctx context.Context, meetingID int64) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, a := range r.rows {
		if a.MeetingID == meetingID {
			user, err := r.users.GetUser(ctx, a.UserID)
			if err == nil {
				out = append(out, user)
			}
		}
	}
	return out, nil
}

func (r *attendeeRepoStub) ListUserMeetings(ctx context.Context, userID int64) ([]Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Meeting
	for _, a := range r.rows {
		if a.UserID == userID {
			out = append(out, Meeting{ID: a.MeetingID})
		}
	}
	return out, nil
}

func (r *attendeeRepoStub) CountMeetingAttendees(ctx context.Context, meetingID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.rows {
		if a.MeetingID == meetingID {
			n++
		}
	}
	return n, nil
}

func (r *attendeeRepoStub) AttendeeExists(ctx context.Context, userID, meetingID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pairTaken(userID, meetingID, 0), nil
}

func (r *attendeeRepoStub) deleteForMeeting(meetingID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.rows {
		if a.MeetingID == meetingID {
			delete(r.rows, id)
		}
	}
}

// faultyFiles wraps a real store and fails selected calls.
type faultyFiles struct {
	*filestore.Local
	failPutOn  int
	puts       int
	putErr     error
	removeErr  error
	failOpenOn string
	openErr    error
}

func (f *faultyFiles) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	f.puts++
	if f.failPutOn > 0 && f.puts == f.failPutOn {
		return 0, f.putErr
	}
	return f.Local.Put(ctx, key, r)
}

func (f *faultyFiles) Open(storedPath string) (io.ReadCloser, error) {
	if f.failOpenOn != "" && storedPath == f.failOpenOn {
		return nil, f.openErr
	}
	return f.Local.Open(storedPath)
}

func (f *faultyFiles) Remove(storedPath string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Local.Remove(storedPath)
}

type storeHarness struct {
	store    *DocumentStore
	docs     *docRepoStub
	meetings *meetingRepoStub
	files    *faultyFiles
	meeting  Meeting
}

func newStoreHarness(t *testing.T) *storeHarness {
	t.Helper()
	base := t.TempDir()
	local, err := filestore.NewLocal(filepath.Join(base, "uploads"), filepath.Join(base, "scratch"), nil)
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	files := &faultyFiles{Local: local}
	docs := newDocRepoStub()
	meetings := newMeetingRepoStub()
	meetings.docs = docs
	meeting := meetings.add(Meeting{Title: "Planning"})

	return &storeHarness{
		store:    NewDocumentStore(docs, meetings, files, nil),
		docs:     docs,
		meetings: meetings,
		files:    files,
		meeting:  meeting,
	}
}

func (h *storeHarness) scratchEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.files.ScratchDir())
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	return entries
}

func upload(name, content string) FileUpload {
	return FileUpload{FileName: name, Content: strings.NewReader(content)}
}

func ptr[T any](v T) *T { return &v }
