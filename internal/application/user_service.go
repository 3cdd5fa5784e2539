package application

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/example/meeting-tracker/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByDeviceID(ctx context.Context, deviceID string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserService orchestrates validation and persistence for device users.
type UserService struct {
	users  UserRepository
	logger *zap.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository) *UserService {
	return NewUserServiceWithLogger(users, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, fields...)
}

// Create validates input and persists a new user. A device id may belong
// to one user only.
func (s *UserService) Create(ctx context.Context, input UserInput) (user User, err error) {
	logger := s.loggerWith(ctx, "Create")
	defer func() {
		logOutcome(logger, err, "user created", "failed to create user", zap.Int64("user_id", user.ID))
	}()

	input = normalizeUserInput(input)
	if vErr := validateUserInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.users.CreateUser(ctx, User{
		DeviceID:        input.DeviceID,
		UserName:        input.UserName,
		InstitutionName: input.InstitutionName,
		LastLoginDate:   input.LastLoginDate,
	})
	if err != nil {
		user = User{}
		err = mapUserRepoError(err)
	}
	return
}

// Update replaces an existing user's fields.
func (s *UserService) Update(ctx context.Context, userID int64, input UserInput) (user User, err error) {
	logger := s.loggerWith(ctx, "Update", zap.Int64("user_id", userID))
	defer func() {
		logOutcome(logger, err, "user updated", "failed to update user")
	}()

	input = normalizeUserInput(input)
	if vErr := validateUserInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.users.UpdateUser(ctx, User{
		ID:              userID,
		DeviceID:        input.DeviceID,
		UserName:        input.UserName,
		InstitutionName: input.InstitutionName,
		LastLoginDate:   input.LastLoginDate,
	})
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	user, err = s.Get(ctx, userID)
	return
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, userID int64) (User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// GetByDeviceID returns the user registered with a device.
func (s *UserService) GetByDeviceID(ctx context.Context, deviceID string) (User, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return User{}, singleFieldError("device_id", "device id is required")
	}
	user, err := s.users.GetUserByDeviceID(ctx, deviceID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// List returns all users ordered by name.
func (s *UserService) List(ctx context.Context) ([]User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		if strings.EqualFold(users[i].UserName, users[j].UserName) {
			return users[i].ID < users[j].ID
		}
		return strings.ToLower(users[i].UserName) < strings.ToLower(users[j].UserName)
	})
	return users, nil
}

// Delete removes a user together with their registrations. It reports
// false when none existed.
func (s *UserService) Delete(ctx context.Context, userID int64) (deleted bool, err error) {
	logger := s.loggerWith(ctx, "Delete", zap.Int64("user_id", userID))
	defer func() {
		logOutcome(logger, err, "user deleted", "failed to delete user", zap.Bool("deleted", deleted))
	}()

	deleted, err = absentIsFalse(s.users.DeleteUser(ctx, userID))
	return
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		DeviceID:        strings.TrimSpace(input.DeviceID),
		UserName:        plainText(input.UserName),
		InstitutionName: plainText(input.InstitutionName),
		LastLoginDate:   input.LastLoginDate,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.DeviceID == "" {
		vErr.add("device_id", "device id is required")
	}
	if input.UserName == "" {
		vErr.add("user_name", "user name is required")
	}

	return vErr
}

func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return notFound("user")
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict("device id already registered")
	}
	return err
}
