package application

import (
	"context"
	"errors"
	"testing"
)

func TestLocationService_Create(t *testing.T) {
	t.Run("validates required attributes and ranges", func(t *testing.T) {
		svc := NewLocationService(newLocationRepoStub())

		_, err := svc.Create(context.Background(), LocationInput{Name: "  ", Latitude: ptr(-91.0), Longitude: ptr(181.0)})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "latitude", "longitude"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists a valid location", func(t *testing.T) {
		svc := NewLocationService(newLocationRepoStub())

		loc, err := svc.Create(context.Background(), LocationInput{Name: " Ankara HQ ", Latitude: ptr(39.9), Longitude: ptr(32.8)})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if loc.ID == 0 || loc.Name != "Ankara HQ" || loc.Latitude != 39.9 {
			t.Fatalf("unexpected location %+v", loc)
		}
	})

	t.Run("duplicate names conflict", func(t *testing.T) {
		svc := NewLocationService(newLocationRepoStub())
		input := LocationInput{Name: "Ankara HQ", Latitude: ptr(0.0), Longitude: ptr(0.0)}
		if _, err := svc.Create(context.Background(), input); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		input.Name = "ankara hq"
		_, err := svc.Create(context.Background(), input)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
}

func TestLocationService_UpdateAndGet(t *testing.T) {
	repo := newLocationRepoStub()
	svc := NewLocationService(repo)
	ctx := context.Background()
	loc, _ := repo.CreateLocation(ctx, Location{Name: "Old"})

	updated, err := svc.Update(ctx, loc.ID, LocationInput{Name: "New", Latitude: ptr(1.5), Longitude: ptr(2.5)})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "New" || updated.Longitude != 2.5 {
		t.Fatalf("unexpected location %+v", updated)
	}

	if _, err := svc.Update(ctx, 99, LocationInput{Name: "X", Latitude: ptr(0.0), Longitude: ptr(0.0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocationService_Search(t *testing.T) {
	repo := newLocationRepoStub()
	svc := NewLocationService(repo)
	ctx := context.Background()
	for _, name := range []string{"Ankara HQ", "Izmir Office", "Ankara Annex"} {
		repo.CreateLocation(ctx, Location{Name: name})
	}

	found, err := svc.Search(ctx, "ankara")
	if err != nil || len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d, %v", len(found), err)
	}
	all, err := svc.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 locations, got %d, %v", len(all), err)
	}
}

func TestLocationService_Delete(t *testing.T) {
	repo := newLocationRepoStub()
	svc := NewLocationService(repo)
	ctx := context.Background()
	free, _ := repo.CreateLocation(ctx, Location{Name: "Free"})
	busy, _ := repo.CreateLocation(ctx, Location{Name: "Busy"})
	repo.inUse[busy.ID] = true

	cases := []struct {
		name        string
		id          int64
		wantDeleted bool
		wantErr     error
	}{
		{name: "unreferenced location", id: free.ID, wantDeleted: true},
		{name: "already gone", id: free.ID, wantDeleted: false},
		{name: "referenced by a meeting", id: busy.ID, wantErr: ErrConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deleted, err := svc.Delete(ctx, tc.id)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || deleted != tc.wantDeleted {
				t.Fatalf("got %v, %v; want %v, nil", deleted, err, tc.wantDeleted)
			}
		})
	}
}
