package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-tracker/internal/persistence"
)

// LocationRepository implements persistence.LocationRepository for SQLite
type LocationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLocationRepository creates a new SQLite location repository
func NewLocationRepository(pool *ConnectionPool) *LocationRepository {
	return &LocationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const locationColumns = `id, name, latitude, longitude, created_at, updated_at`

const insertLocationSQL = `
	INSERT INTO locations (name, latitude, longitude, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	RETURNING id
`

// CreateLocation inserts a location and returns it with its assigned id.
func (r *LocationRepository) CreateLocation(ctx context.Context, location persistence.Location) (persistence.Location, error) {
	var created persistence.Location
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = insertLocation(ctx, tx, location)
		return err
	})
	if err != nil {
		return persistence.Location{}, r.mapper.MapError(err)
	}
	return created, nil
}

// insertLocation is shared with meeting creation, which may carry an inline location.
func insertLocation(ctx context.Context, tx *sql.Tx, location persistence.Location) (persistence.Location, error) {
	location.Name = strings.TrimSpace(location.Name)
	if location.Name == "" {
		return persistence.Location{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if location.CreatedAt.IsZero() {
		location.CreatedAt = now
	}
	location.UpdatedAt = location.CreatedAt

	err := tx.QueryRowContext(ctx, insertLocationSQL,
		location.Name,
		location.Latitude,
		location.Longitude,
		formatTime(location.CreatedAt),
		formatTime(location.UpdatedAt),
	).Scan(&location.ID)
	if err != nil {
		return persistence.Location{}, err
	}
	return location, nil
}

// UpdateLocation overwrites name and coordinates of an existing location.
func (r *LocationRepository) UpdateLocation(ctx context.Context, location persistence.Location) error {
	if location.ID <= 0 {
		return persistence.ErrNotFound
	}
	location.Name = strings.TrimSpace(location.Name)
	if location.Name == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE locations
		SET name = ?, latitude = ?, longitude = ?, updated_at = ?
		WHERE id = ?
	`,
		location.Name,
		location.Latitude,
		location.Longitude,
		formatTime(time.Now().UTC()),
		location.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetLocation retrieves a location by ID.
func (r *LocationRepository) GetLocation(ctx context.Context, id int64) (persistence.Location, error) {
	if id <= 0 {
		return persistence.Location{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	location, err := scanLocation(row)
	if err != nil {
		return persistence.Location{}, r.mapper.MapError(err)
	}
	return location, nil
}

// ListLocations returns locations ordered by name. A non-empty nameContains
// restricts the result to names containing it, case-insensitively.
func (r *LocationRepository) ListLocations(ctx context.Context, nameContains string) ([]persistence.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	var args []any
	if term := strings.TrimSpace(nameContains); term != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(term)+"%")
	}
	query += ` ORDER BY name COLLATE NOCASE ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var locations []persistence.Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		locations = append(locations, location)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return locations, nil
}

// DeleteLocation removes a location unless a meeting still references it.
func (r *LocationRepository) DeleteLocation(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var references int
		if err := r.helper.QueryRowTx(ctx, tx, `SELECT COUNT(*) FROM meetings WHERE location_id = ?`, id).Scan(&references); err != nil {
			return r.mapper.MapError(err)
		}
		if references > 0 {
			return persistence.ErrInUse
		}

		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM locations WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

func scanLocation(s scanner) (persistence.Location, error) {
	var (
		location             persistence.Location
		createdAt, updatedAt string
	)
	if err := s.Scan(
		&location.ID,
		&location.Name,
		&location.Latitude,
		&location.Longitude,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Location{}, err
	}

	var err error
	if location.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Location{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if location.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Location{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return location, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
