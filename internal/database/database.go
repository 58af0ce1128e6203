package database

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
)

func Connect() (*sqlx.DB, error) {
	dsn := viper.GetString("DB_DSN")
	return sqlx.Connect("pgx", dsn)
}

// One statement per entry; the pgx driver does not batch multi-statement
// strings.
var schema = []string{`
CREATE TABLE IF NOT EXISTS stations (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	code       TEXT NOT NULL UNIQUE,
	address    TEXT NOT NULL DEFAULT '',
	contact    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	status     SMALLINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, `
CREATE TABLE IF NOT EXISTS devices (
	id         BIGSERIAL PRIMARY KEY,
	imei       TEXT NOT NULL UNIQUE,
	role       TEXT NOT NULL CHECK (role IN ('indoor', 'outdoor')),
	name       TEXT NOT NULL DEFAULT '',
	station_id BIGINT REFERENCES stations(id),
	last_seen  TIMESTAMPTZ,
	vbat_mv    DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, `
CREATE INDEX IF NOT EXISTS idx_devices_station ON devices(station_id);
`, `
CREATE UNIQUE INDEX IF NOT EXISTS uq_devices_station_indoor ON devices(station_id) WHERE role = 'indoor';
`, `
CREATE TABLE IF NOT EXISTS alarm_logs (
	id          BIGSERIAL PRIMARY KEY,
	station_id  BIGINT NOT NULL REFERENCES stations(id),
	origin_imei TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('alarm', 'cancel')),
	targets     JSONB NOT NULL DEFAULT '[]',
	outcome     TEXT NOT NULL CHECK (outcome IN ('success', 'partial_failure', 'no_targets')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, `
CREATE INDEX IF NOT EXISTS idx_alarm_logs_station_created ON alarm_logs(station_id, created_at DESC);
`, `
CREATE TABLE IF NOT EXISTS comm_logs (
	id          BIGSERIAL PRIMARY KEY,
	direction   TEXT NOT NULL CHECK (direction IN ('receive', 'forward')),
	source_role TEXT NOT NULL,
	source_imei TEXT NOT NULL,
	target_role TEXT,
	target_imei TEXT,
	topic       TEXT NOT NULL,
	payload     TEXT NOT NULL,
	station_id  BIGINT REFERENCES stations(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, `
CREATE INDEX IF NOT EXISTS idx_comm_logs_created ON comm_logs(created_at DESC);
`, `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
	status        SMALLINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, `
CREATE TABLE IF NOT EXISTS user_stations (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	station_id BIGINT NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
	UNIQUE (user_id, station_id)
);
`}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
