package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-tracker/internal/persistence"
)

// UserRepository implements persistence.UserRepository for SQLite
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const userColumns = `id, device_id, user_name, institution_name, last_login_at, created_at, updated_at`

// CreateUser inserts a new user and returns it with its assigned id.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	user.DeviceID = strings.TrimSpace(user.DeviceID)
	if user.DeviceID == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (device_id, user_name, institution_name, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.helper.QueryRow(ctx, query,
		user.DeviceID,
		user.UserName,
		user.InstitutionName,
		formatNullableTime(user.LastLoginAt),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	).Scan(&user.ID)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	return user, nil
}

// UpdateUser updates an existing user in the database
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID <= 0 {
		return persistence.ErrNotFound
	}
	user.DeviceID = strings.TrimSpace(user.DeviceID)
	if user.DeviceID == "" {
		return persistence.ErrConstraintViolation
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET device_id = ?, user_name = ?, institution_name = ?, last_login_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		user.DeviceID,
		user.UserName,
		user.InstitutionName,
		formatNullableTime(user.LastLoginAt),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return requireAffected(result)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	if id <= 0 {
		return persistence.User{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetUserByDeviceID retrieves a user by the device identifier it registered with.
func (r *UserRepository) GetUserByDeviceID(ctx context.Context, deviceID string) (persistence.User, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE device_id = ?`, deviceID)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by creation timestamp then ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectUsers(rows, r.mapper)
}

// DeleteUser removes a user. Attendance rows go with it through ON DELETE CASCADE.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanUser(s scanner) (persistence.User, error) {
	var (
		user                 persistence.User
		lastLogin            sql.NullString
		createdAt, updatedAt string
	)

	if err := s.Scan(
		&user.ID,
		&user.DeviceID,
		&user.UserName,
		&user.InstitutionName,
		&lastLogin,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.User{}, err
	}

	var err error
	if user.LastLoginAt, err = parseNullableTime(lastLogin); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse last_login_at: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

func collectUsers(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.User, error) {
	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return users, nil
}

// requireAffected turns a zero-row write into persistence.ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// isNoRows reports whether err is the driver's empty-result error.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
