package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/banjirlab/floodmap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It serves
// single-node deployments and tests; semantics match PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS measurements (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	year               INTEGER NOT NULL,
	region_id          INTEGER NOT NULL REFERENCES regions(id),
	curah_hujan        REAL NOT NULL,
	history_banjir     REAL NOT NULL,
	kepadatan_penduduk REAL NOT NULL,
	taman_drainase     REAL NOT NULL,
	is_processed       INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (year, region_id)
);

CREATE INDEX IF NOT EXISTS idx_measurements_processed ON measurements(is_processed);
CREATE INDEX IF NOT EXISTS idx_measurements_year ON measurements(year);

CREATE TABLE IF NOT EXISTS classification_results (
	measurement_id INTEGER NOT NULL REFERENCES measurements(id),
	method         TEXT NOT NULL,
	crisp_value    REAL NOT NULL,
	category       TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (measurement_id, method)
);

CREATE TABLE IF NOT EXISTS stations (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL UNIQUE,
	address   TEXT NOT NULL DEFAULT '',
	phone     TEXT NOT NULL DEFAULT '',
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertMeasurement(ctx context.Context, m *model.Measurement) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (year, region_id, curah_hujan, history_banjir, kepadatan_penduduk, taman_drainase, is_processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		m.Year, m.RegionID,
		m.Indicators.Rainfall, m.Indicators.FloodHistory,
		m.Indicators.PopulationDensity, m.Indicators.ParkDrainage,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "sqlite: measurement for year %d region %d exists", m.Year, m.RegionID)
		}
		return eris.Wrap(err, "sqlite: insert measurement")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: measurement id")
	}
	m.ID = id
	m.Processed = false
	m.CreatedAt = now
	return nil
}

const sqliteMeasurementColumns = `m.id, m.year, m.region_id, r.name,
	m.curah_hujan, m.history_banjir, m.kepadatan_penduduk, m.taman_drainase,
	m.is_processed, m.created_at`

func scanSQLiteMeasurement(row interface{ Scan(...any) error }) (model.Measurement, error) {
	var m model.Measurement
	err := row.Scan(&m.ID, &m.Year, &m.RegionID, &m.RegionName,
		&m.Indicators.Rainfall, &m.Indicators.FloodHistory,
		&m.Indicators.PopulationDensity, &m.Indicators.ParkDrainage,
		&m.Processed, &m.CreatedAt)
	return m, err
}

func (s *SQLiteStore) ListUnprocessed(ctx context.Context) ([]model.Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMeasurementColumns+`
		 FROM measurements m JOIN regions r ON r.id = m.region_id
		 WHERE m.is_processed = 0
		 ORDER BY m.id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed")
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		m, err := scanSQLiteMeasurement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan measurement")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unprocessed iterate")
}

func (s *SQLiteStore) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, int, error) {
	where := ``
	args := []any{}
	if filter.Year != nil {
		where = ` WHERE m.year = ?`
		args = append(args, *filter.Year)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM measurements m`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count measurements")
	}

	query := `SELECT ` + sqliteMeasurementColumns + `
		 FROM measurements m JOIN regions r ON r.id = m.region_id` + where +
		` ORDER BY m.year DESC, r.name ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list measurements")
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		m, err := scanSQLiteMeasurement(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan measurement")
		}
		out = append(out, m)
	}
	return out, total, eris.Wrap(rows.Err(), "sqlite: list measurements iterate")
}

func (s *SQLiteStore) ListYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM measurements ORDER BY year DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list years")
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan year")
		}
		years = append(years, y)
	}
	return years, eris.Wrap(rows.Err(), "sqlite: list years iterate")
}

func (s *SQLiteStore) BulkUpsertMeasurements(ctx context.Context, ms []model.Measurement) (int64, error) {
	if len(ms) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurements (year, region_id, curah_hujan, history_banjir, kepadatan_penduduk, taman_drainase, is_processed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT (year, region_id) DO UPDATE SET
		   curah_hujan = excluded.curah_hujan,
		   history_banjir = excluded.history_banjir,
		   kepadatan_penduduk = excluded.kepadatan_penduduk,
		   taman_drainase = excluded.taman_drainase`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare bulk upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx,
			m.Year, m.RegionID,
			m.Indicators.Rainfall, m.Indicators.FloodHistory,
			m.Indicators.PopulationDensity, m.Indicators.ParkDrainage,
			now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk upsert year %d region %d", m.Year, m.RegionID)
		}
		n++
	}

	return n, eris.Wrap(tx.Commit(), "sqlite: commit bulk upsert")
}

func (s *SQLiteStore) WriteResult(ctx context.Context, r *model.ClassificationResult, replace bool) error {
	query := `INSERT INTO classification_results (measurement_id, method, crisp_value, category, created_at)
		 VALUES (?, ?, ?, ?, ?)`
	if replace {
		query += ` ON CONFLICT (measurement_id, method) DO UPDATE SET
			crisp_value = excluded.crisp_value,
			category = excluded.category,
			created_at = excluded.created_at`
	}

	_, err := s.db.ExecContext(ctx, query,
		r.MeasurementID, string(r.Method), r.Crisp, string(r.Category), time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "sqlite: %s result for measurement %d exists", r.Method, r.MeasurementID)
		}
		return eris.Wrapf(err, "sqlite: write %s result", r.Method)
	}
	return nil
}

func (s *SQLiteStore) ReadResults(ctx context.Context, method model.Method, ids []int64) (map[int64]model.MethodScore, error) {
	out := make(map[int64]model.MethodScore, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(method))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT measurement_id, crisp_value, category
		 FROM classification_results
		 WHERE method = ? AND measurement_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read %s results", method)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var score model.MethodScore
		if err := rows.Scan(&id, &score.Crisp, &score.Category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out[id] = score
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: read %s results iterate", method)
}

func (s *SQLiteStore) SaveClassification(ctx context.Context, measurementID int64, scores map[model.Method]model.MethodScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save classification")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, method := range model.Methods() {
		score, ok := scores[method]
		if !ok {
			return eris.Wrapf(ErrNotFound, "sqlite: missing %s score for measurement %d", method, measurementID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO classification_results (measurement_id, method, crisp_value, category, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (measurement_id, method) DO UPDATE SET
			   crisp_value = excluded.crisp_value,
			   category = excluded.category,
			   created_at = excluded.created_at`,
			measurementID, string(method), score.Crisp, string(score.Category), now)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save %s result for measurement %d", method, measurementID)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE measurements SET is_processed = 1 WHERE id = ?`, measurementID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark measurement %d processed", measurementID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: measurement %d", measurementID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save classification")
}

func (s *SQLiteStore) EnsureRegion(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO regions (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		name,
	).Scan(&id)
	return id, eris.Wrapf(err, "sqlite: ensure region %q", name)
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var out []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func (s *SQLiteStore) UpsertStation(ctx context.Context, st *model.Station) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO stations (name, address, phone, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   address = excluded.address, phone = excluded.phone,
		   latitude = excluded.latitude, longitude = excluded.longitude
		 RETURNING id`,
		st.Name, st.Address, st.Phone, st.Latitude, st.Longitude,
	).Scan(&st.ID)
	return eris.Wrapf(err, "sqlite: upsert station %q", st.Name)
}

func (s *SQLiteStore) ListStations(ctx context.Context) ([]model.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, phone, latitude, longitude FROM stations ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stations")
	}
	defer rows.Close()

	var out []model.Station
	for rows.Next() {
		var st model.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Address, &st.Phone, &st.Latitude, &st.Longitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan station")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list stations iterate")
}
