package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/banjirlab/floodmap/internal/db"
	"github.com/banjirlab/floodmap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for bulk import helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS measurements (
	id                 BIGSERIAL PRIMARY KEY,
	year               INTEGER NOT NULL,
	region_id          BIGINT NOT NULL REFERENCES regions(id),
	curah_hujan        DOUBLE PRECISION NOT NULL,
	history_banjir     DOUBLE PRECISION NOT NULL,
	kepadatan_penduduk DOUBLE PRECISION NOT NULL,
	taman_drainase     DOUBLE PRECISION NOT NULL,
	is_processed       BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (year, region_id)
);

CREATE INDEX IF NOT EXISTS idx_measurements_processed ON measurements(is_processed);
CREATE INDEX IF NOT EXISTS idx_measurements_year ON measurements(year);

CREATE TABLE IF NOT EXISTS classification_results (
	measurement_id BIGINT NOT NULL REFERENCES measurements(id),
	method         TEXT NOT NULL,
	crisp_value    DOUBLE PRECISION NOT NULL,
	category       TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (measurement_id, method)
);

CREATE TABLE IF NOT EXISTS stations (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	address   TEXT NOT NULL DEFAULT '',
	phone     TEXT NOT NULL DEFAULT '',
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertMeasurement(ctx context.Context, m *model.Measurement) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO measurements (year, region_id, curah_hujan, history_banjir, kepadatan_penduduk, taman_drainase, is_processed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		 RETURNING id`,
		m.Year, m.RegionID,
		m.Indicators.Rainfall, m.Indicators.FloodHistory,
		m.Indicators.PopulationDensity, m.Indicators.ParkDrainage,
		now,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: measurement for year %d region %d exists", m.Year, m.RegionID)
		}
		return eris.Wrap(err, "postgres: insert measurement")
	}
	m.Processed = false
	m.CreatedAt = now
	return nil
}

const measurementColumns = `m.id, m.year, m.region_id, r.name,
	m.curah_hujan, m.history_banjir, m.kepadatan_penduduk, m.taman_drainase,
	m.is_processed, m.created_at`

func scanMeasurement(row pgx.Row) (model.Measurement, error) {
	var m model.Measurement
	err := row.Scan(&m.ID, &m.Year, &m.RegionID, &m.RegionName,
		&m.Indicators.Rainfall, &m.Indicators.FloodHistory,
		&m.Indicators.PopulationDensity, &m.Indicators.ParkDrainage,
		&m.Processed, &m.CreatedAt)
	return m, err
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context) ([]model.Measurement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+measurementColumns+`
		 FROM measurements m JOIN regions r ON r.id = m.region_id
		 WHERE m.is_processed = false
		 ORDER BY m.id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed")
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan measurement")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unprocessed iterate")
}

func (s *PostgresStore) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, int, error) {
	where := ``
	args := []any{}
	argIdx := 1
	if filter.Year != nil {
		where = fmt.Sprintf(` WHERE m.year = $%d`, argIdx)
		args = append(args, *filter.Year)
		argIdx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM measurements m` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count measurements")
	}

	query := `SELECT ` + measurementColumns + `
		 FROM measurements m JOIN regions r ON r.id = m.region_id` + where +
		` ORDER BY m.year DESC, r.name ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list measurements")
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan measurement")
		}
		out = append(out, m)
	}
	return out, total, eris.Wrap(rows.Err(), "postgres: list measurements iterate")
}

func (s *PostgresStore) ListYears(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT year FROM measurements ORDER BY year DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list years")
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, eris.Wrap(err, "postgres: scan year")
		}
		years = append(years, y)
	}
	return years, eris.Wrap(rows.Err(), "postgres: list years iterate")
}

func (s *PostgresStore) BulkUpsertMeasurements(ctx context.Context, ms []model.Measurement) (int64, error) {
	rows := make([][]any, 0, len(ms))
	now := time.Now().UTC()
	for _, m := range ms {
		rows = append(rows, []any{
			m.Year, m.RegionID,
			m.Indicators.Rainfall, m.Indicators.FloodHistory,
			m.Indicators.PopulationDensity, m.Indicators.ParkDrainage,
			false, now,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "measurements",
		Columns: []string{
			"year", "region_id",
			"curah_hujan", "history_banjir", "kepadatan_penduduk", "taman_drainase",
			"is_processed", "created_at",
		},
		ConflictKeys: []string{"year", "region_id"},
		UpdateCols: []string{
			"curah_hujan", "history_banjir", "kepadatan_penduduk", "taman_drainase",
		},
	}, rows)
}

func (s *PostgresStore) WriteResult(ctx context.Context, r *model.ClassificationResult, replace bool) error {
	query := `INSERT INTO classification_results (measurement_id, method, crisp_value, category, created_at)
		 VALUES ($1, $2, $3, $4, $5)`
	if replace {
		query += ` ON CONFLICT (measurement_id, method) DO UPDATE SET crisp_value = $3, category = $4, created_at = $5`
	}

	_, err := s.pool.Exec(ctx, query,
		r.MeasurementID, string(r.Method), r.Crisp, string(r.Category), time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: %s result for measurement %d exists", r.Method, r.MeasurementID)
		}
		return eris.Wrapf(err, "postgres: write %s result", r.Method)
	}
	return nil
}

func (s *PostgresStore) ReadResults(ctx context.Context, method model.Method, ids []int64) (map[int64]model.MethodScore, error) {
	out := make(map[int64]model.MethodScore, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT measurement_id, crisp_value, category
		 FROM classification_results
		 WHERE method = $1 AND measurement_id = ANY($2)`,
		string(method), ids)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s results", method)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var score model.MethodScore
		if err := rows.Scan(&id, &score.Crisp, &score.Category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out[id] = score
	}
	return out, eris.Wrapf(rows.Err(), "postgres: read %s results iterate", method)
}

// SaveClassification upserts all method scores for one measurement and
// marks it processed in a single transaction. The processed flag is never
// observably true without all three result rows in place.
func (s *PostgresStore) SaveClassification(ctx context.Context, measurementID int64, scores map[model.Method]model.MethodScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save classification")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, method := range model.Methods() {
		score, ok := scores[method]
		if !ok {
			return eris.Wrapf(ErrNotFound, "postgres: missing %s score for measurement %d", method, measurementID)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO classification_results (measurement_id, method, crisp_value, category, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (measurement_id, method) DO UPDATE SET crisp_value = $3, category = $4, created_at = $5`,
			measurementID, string(method), score.Crisp, string(score.Category), now)
		if err != nil {
			return eris.Wrapf(err, "postgres: save %s result for measurement %d", method, measurementID)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE measurements SET is_processed = true WHERE id = $1`, measurementID)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark measurement %d processed", measurementID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: measurement %d", measurementID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save classification")
}

func (s *PostgresStore) EnsureRegion(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO regions (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&id)
	return id, eris.Wrapf(err, "postgres: ensure region %q", name)
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var out []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func (s *PostgresStore) UpsertStation(ctx context.Context, st *model.Station) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO stations (name, address, phone, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET address = $2, phone = $3, latitude = $4, longitude = $5
		 RETURNING id`,
		st.Name, st.Address, st.Phone, st.Latitude, st.Longitude,
	).Scan(&st.ID)
	return eris.Wrapf(err, "postgres: upsert station %q", st.Name)
}

func (s *PostgresStore) ListStations(ctx context.Context) ([]model.Station, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, address, phone, latitude, longitude FROM stations ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stations")
	}
	defer rows.Close()

	var out []model.Station
	for rows.Next() {
		var st model.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Address, &st.Phone, &st.Latitude, &st.Longitude); err != nil {
			return nil, eris.Wrap(err, "postgres: scan station")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list stations iterate")
}
