package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/persistence"
)

// LocationRepository captures the persistence operations needed by the location service.
type LocationRepository interface {
	CreateLocation(ctx context.Context, location Location) (Location, error)
	UpdateLocation(ctx context.Context, location Location) error
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, nameContains string) ([]Location, error)
	DeleteLocation(ctx context.Context, id int64) error
}

// LocationService validates and persists locations.
type LocationService struct {
	locations LocationRepository
	logger    *zap.Logger
}

// NewLocationService constructs a location service with the provided dependencies.
func NewLocationService(locations LocationRepository) *LocationService {
	return NewLocationServiceWithLogger(locations, nil)
}

// NewLocationServiceWithLogger constructs a location service with a specified logger.
func NewLocationServiceWithLogger(locations LocationRepository, logger *zap.Logger) *LocationService {
	return &LocationService{locations: locations, logger: defaultLogger(logger)}
}

func (s *LocationService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "LocationService", operation, fields...)
}

// Create validates input and persists a new location.
func (s *LocationService) Create(ctx context.Context, input LocationInput) (location Location, err error) {
	logger := s.loggerWith(ctx, "Create")
	defer func() {
		logOutcome(logger, err, "location created", "failed to create location", zap.Int64("location_id", location.ID))
	}()

	input = normalizeLocationInput(input)
	if vErr := validateLocationInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	location, err = s.locations.CreateLocation(ctx, Location{
		Name:      input.Name,
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
	})
	if err != nil {
		location = Location{}
		err = mapLocationRepoError(err)
	}
	return
}

// Update replaces an existing location's fields.
func (s *LocationService) Update(ctx context.Context, locationID int64, input LocationInput) (location Location, err error) {
	logger := s.loggerWith(ctx, "Update", zap.Int64("location_id", locationID))
	defer func() {
		logOutcome(logger, err, "location updated", "failed to update location")
	}()

	input = normalizeLocationInput(input)
	if vErr := validateLocationInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.locations.UpdateLocation(ctx, Location{
		ID:        locationID,
		Name:      input.Name,
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
	})
	if err != nil {
		err = mapLocationRepoError(err)
		return
	}

	location, err = s.Get(ctx, locationID)
	return
}

// Get returns a single location.
func (s *LocationService) Get(ctx context.Context, locationID int64) (Location, error) {
	location, err := s.locations.GetLocation(ctx, locationID)
	if err != nil {
		return Location{}, mapLocationRepoError(err)
	}
	return location, nil
}

// List returns all locations ordered by name.
func (s *LocationService) List(ctx context.Context) ([]Location, error) {
	return s.locations.ListLocations(ctx, "")
}

// Search returns locations whose name contains the query, ignoring case.
// An empty query lists everything.
func (s *LocationService) Search(ctx context.Context, query string) ([]Location, error) {
	return s.locations.ListLocations(ctx, plainText(query))
}

// Delete removes a location. It reports false when none existed and a
// ConflictError while any meeting still references it.
func (s *LocationService) Delete(ctx context.Context, locationID int64) (deleted bool, err error) {
	logger := s.loggerWith(ctx, "Delete", zap.Int64("location_id", locationID))
	defer func() {
		logOutcome(logger, err, "location deleted", "failed to delete location", zap.Bool("deleted", deleted))
	}()

	deleted, err = absentIsFalse(s.locations.DeleteLocation(ctx, locationID))
	if err != nil {
		err = mapLocationRepoError(err)
	}
	return
}

func normalizeLocationInput(input LocationInput) LocationInput {
	input.Name = plainText(input.Name)
	return input
}

func validateLocationInput(input LocationInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	switch {
	case input.Latitude == nil:
		vErr.add("latitude", "latitude is required")
	case *input.Latitude < -90 || *input.Latitude > 90:
		vErr.add("latitude", "latitude must be between -90 and 90")
	}
	switch {
	case input.Longitude == nil:
		vErr.add("longitude", "longitude is required")
	case *input.Longitude < -180 || *input.Longitude > 180:
		vErr.add("longitude", "longitude must be between -180 and 180")
	}

	return vErr
}

func mapLocationRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return notFound("location")
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict("location name already exists")
	case errors.Is(err, persistence.ErrInUse):
		return conflict("location is referenced by meetings")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return singleFieldError("location", "location violates a storage constraint")
	}
	return err
}
