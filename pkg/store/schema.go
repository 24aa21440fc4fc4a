package store

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS continents (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS pandemics (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS countries (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL UNIQUE,
		continent_id INTEGER REFERENCES continents(id)
	)`,
	`CREATE TABLE IF NOT EXISTS regions (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL UNIQUE,
		continent_id INTEGER REFERENCES continents(id)
	)`,
	`CREATE TABLE IF NOT EXISTS total_by_day (
		pandemic_id INTEGER NOT NULL REFERENCES pandemics(id),
		region_id   INTEGER NOT NULL REFERENCES regions(id),
		date_by_day DATE NOT NULL,
		case_count  BIGINT NOT NULL DEFAULT 0,
		death       BIGINT NOT NULL DEFAULT 0,
		recovered   BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (pandemic_id, region_id, date_by_day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_total_by_day_region ON total_by_day(region_id)`,
	`CREATE TABLE IF NOT EXISTS covid_predictions (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction_date     DATE NOT NULL,
		region_id           INTEGER,
		region_name         TEXT,
		continent_name      TEXT,
		predicted_cases     BIGINT NOT NULL,
		predicted_deaths    BIGINT,
		predicted_recovered BIGINT,
		model_version       TEXT,
		created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS load_runs (
		id          TEXT PRIMARY KEY,
		started_at  BIGINT NOT NULL,
		finished_at BIGINT,
		status      TEXT NOT NULL,
		report      TEXT,
		error       TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS continents (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS pandemics (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS countries (
		id           SERIAL PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		continent_id INTEGER REFERENCES continents(id)
	)`,
	`CREATE TABLE IF NOT EXISTS regions (
		id           SERIAL PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		continent_id INTEGER REFERENCES continents(id)
	)`,
	`CREATE TABLE IF NOT EXISTS total_by_day (
		pandemic_id INTEGER NOT NULL REFERENCES pandemics(id),
		region_id   INTEGER NOT NULL REFERENCES regions(id),
		date_by_day DATE NOT NULL,
		case_count  BIGINT NOT NULL DEFAULT 0,
		death       BIGINT NOT NULL DEFAULT 0,
		recovered   BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (pandemic_id, region_id, date_by_day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_total_by_day_region ON total_by_day(region_id)`,
	`CREATE TABLE IF NOT EXISTS covid_predictions (
		id                  BIGSERIAL PRIMARY KEY,
		prediction_date     DATE NOT NULL,
		region_id           BIGINT,
		region_name         TEXT,
		continent_name      TEXT,
		predicted_cases     BIGINT NOT NULL,
		predicted_deaths    BIGINT,
		predicted_recovered BIGINT,
		model_version       TEXT,
		created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS load_runs (
		id          TEXT PRIMARY KEY,
		started_at  BIGINT NOT NULL,
		finished_at BIGINT,
		status      TEXT NOT NULL,
		report      TEXT,
		error       TEXT
	)`,
}
