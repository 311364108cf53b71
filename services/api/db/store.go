package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
)

// Store wraps database access helpers for weather_observations.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool. serviceKey, when set, is used as
// the connection password so the DSN can be shared without the secret.
// Connections are opened lazily.
func New(ctx context.Context, databaseURL, serviceKey string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	if serviceKey != "" {
		cfg.ConnConfig.Password = serviceKey
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the observations table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createObservationsSQL, createObservationsIndexSQL} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}

const insertObservationSQL = `
    INSERT INTO weather_observations
        (station_id, temp, dewpt, humidity, wind_speed, wind_gust, wind_dir, pressure, precip_total, precip_rate, raw_data)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::json)
    RETURNING id
`

// InsertObservation appends one row and returns its id.
func (s *Store) InsertObservation(ctx context.Context, rec models.ObservationRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, insertObservationSQL,
		rec.StationID,
		rec.Temp,
		rec.Dewpt,
		rec.Humidity,
		rec.WindSpeed,
		rec.WindGust,
		rec.WindDir,
		rec.Pressure,
		rec.PrecipTotal,
		rec.PrecipRate,
		string(rec.RawData),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert observation")
	}
	return id, nil
}

const latestObservationSQL = `
    SELECT id, station_id, raw_data, created_at
    FROM weather_observations
    ORDER BY created_at DESC, id DESC
    LIMIT 1
`

// LatestObservation returns the most recently created row, or nil when the
// table is empty.
func (s *Store) LatestObservation(ctx context.Context) (*models.StoredObservation, error) {
	var (
		obs models.StoredObservation
		raw []byte
	)
	err := s.pool.QueryRow(ctx, latestObservationSQL).Scan(&obs.ID, &obs.StationID, &raw, &obs.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest observation")
	}
	obs.RawData = models.Snapshot(raw)
	return &obs, nil
}

// PruneOlderThan deletes rows created before cutoff and reports how many went.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM weather_observations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune observations")
	}
	return tag.RowsAffected(), nil
}
