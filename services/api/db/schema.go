package db

// raw_data is json, not jsonb, so the snapshot text is returned byte for byte.

const createObservationsSQL = `
CREATE TABLE IF NOT EXISTS weather_observations (
    id           bigserial PRIMARY KEY,
    station_id   text NULL,
    temp         double precision NULL,
    dewpt        double precision NULL,
    humidity     double precision NULL,
    wind_speed   double precision NULL,
    wind_gust    double precision NULL,
    wind_dir     double precision NULL,
    pressure     double precision NULL,
    precip_total double precision NULL,
    precip_rate  double precision NULL,
    raw_data     json NOT NULL,
    created_at   timestamptz NOT NULL DEFAULT now()
)`

const createObservationsIndexSQL = `
CREATE INDEX IF NOT EXISTS weather_observations_created_at_idx
    ON weather_observations (created_at DESC)`
