package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

//go:embed schema.sql
var schema string

// Querier is the subset of pgx used by the repository.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresRepository implements domain.TrackRepository
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the tables if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to apply schema: %w", err)
	}
	return nil
}

// SaveReport persists a location report with its computed speed
func (r *PostgresRepository) SaveReport(ctx context.Context, report domain.LocationReport, speedKmh float64) error {
	query := `
		INSERT INTO location_reports (entity_id, latitude, longitude, speed_kmh, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		string(report.EntityID), report.Latitude, report.Longitude, speedKmh, report.Time(),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save location report: %w", err)
	}

	return nil
}

// SaveLabel upserts a resolved geocoding label
func (r *PostgresRepository) SaveLabel(ctx context.Context, entry domain.GeoLabelCacheEntry) error {
	query := `
		INSERT INTO geo_labels (latitude, longitude, label, source, cached_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (latitude, longitude)
		DO UPDATE SET label = EXCLUDED.label, source = EXCLUDED.source, cached_at = EXCLUDED.cached_at
	`

	_, err := r.db.Exec(ctx, query,
		entry.Key.Lat, entry.Key.Lng, entry.Label, entry.Source, time.UnixMilli(entry.CachedAtMillis),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save geo label: %w", err)
	}

	return nil
}

// RecentLabels retrieves labels cached after since, newest first
func (r *PostgresRepository) RecentLabels(ctx context.Context, since time.Time, limit int) ([]domain.GeoLabelCacheEntry, error) {
	query := `
		SELECT latitude, longitude, label, source, cached_at
		FROM geo_labels
		WHERE cached_at > $1
		ORDER BY cached_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query geo labels: %w", err)
	}
	defer rows.Close()

	var results []domain.GeoLabelCacheEntry
	for rows.Next() {
		var (
			e        domain.GeoLabelCacheEntry
			cachedAt time.Time
		)
		if err := rows.Scan(&e.Key.Lat, &e.Key.Lng, &e.Label, &e.Source, &cachedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan geo label row: %w", err)
		}
		e.CachedAtMillis = cachedAt.UnixMilli()
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read geo labels: %w", err)
	}

	return results, nil
}

// GetTrack retrieves the persisted points of an entity, oldest first
func (r *PostgresRepository) GetTrack(ctx context.Context, id domain.EntityID, from, to time.Time) ([]domain.TrackPoint, error) {
	query := `
		SELECT entity_id, latitude, longitude, speed_kmh, recorded_at
		FROM location_reports
		WHERE entity_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at ASC
		LIMIT 5000
	`

	rows, err := r.db.Query(ctx, query, string(id), from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query track: %w", err)
	}
	defer rows.Close()

	var results []domain.TrackPoint
	for rows.Next() {
		var (
			p        domain.TrackPoint
			entityID string
		)
		if err := rows.Scan(&entityID, &p.Latitude, &p.Longitude, &p.SpeedKmh, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan track row: %w", err)
		}
		p.EntityID = domain.EntityID(entityID)
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read track: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
