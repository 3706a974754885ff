package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"flockwatch/internal/metrics"
	"flockwatch/internal/models"
)

// DB is the MySQL-backed storage collaborator: metric history in, computed
// anomaly and forecast records out.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec, so split them
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id VARCHAR(100) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS metric_rows (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			entity_id VARCHAR(100) NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			metric VARCHAR(100) NOT NULL,
			value DOUBLE NOT NULL,
			INDEX idx_metric_rows_entity (entity_id),
			INDEX idx_metric_rows_timestamp (timestamp),
			INDEX idx_metric_rows_metric (metric)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS anomalies (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			entity_id VARCHAR(100) NOT NULL,
			metric VARCHAR(100) NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			score DOUBLE NOT NULL,
			severity VARCHAR(50) NOT NULL,
			method VARCHAR(50) NOT NULL,
			INDEX idx_anomalies_entity (entity_id),
			INDEX idx_anomalies_timestamp (timestamp)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			entity_id VARCHAR(100) NOT NULL,
			metric VARCHAR(100) NOT NULL,
			horizon_days INT NOT NULL,
			day_offset INT NOT NULL,
			predicted DOUBLE NOT NULL,
			lower_bound DOUBLE NOT NULL,
			upper_bound DOUBLE NOT NULL,
			generated_at DATETIME(6) NOT NULL,
			INDEX idx_forecasts_entity (entity_id),
			INDEX idx_forecasts_generated (generated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// InsertEntity records a monitored entity (a room).
func (db *DB) InsertEntity(id, name string) error {
	query := `INSERT INTO entities (id, name, created_at) VALUES (?, ?, ?)`
	_, err := db.conn.Exec(query, id, name, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return fmt.Errorf("duplicate entity %s", id)
		}
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

// ListEntities returns all monitored entity ids.
func (db *DB) ListEntities() ([]string, error) {
	query := `SELECT id FROM entities ORDER BY id`
	queryStart := time.Now()
	rows, err := db.conn.Query(query)
	metrics.RecordDBQuery("SELECT", "entities", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertMetricRows stores a batch of ingested metric rows in one
// transaction.
func (db *DB) InsertMetricRows(batch []models.MetricRow) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	stmt, err := tx.Prepare(`INSERT INTO metric_rows (entity_id, timestamp, metric, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range batch {
		if _, err := stmt.Exec(row.EntityID, row.Timestamp, row.Metric, row.Value); err != nil {
			return fmt.Errorf("failed to insert metric row for %s at %s: %w", row.Metric, row.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMetricRows retrieves rows for an entity since a cutoff, oldest
// first. Empty metricTypes means every metric.
func (db *DB) GetMetricRows(entityID string, metricTypes []string, since time.Time) ([]models.MetricRow, error) {
	var query string
	var rows *sql.Rows
	var err error

	queryStart := time.Now()
	if len(metricTypes) == 0 {
		query = `SELECT id, entity_id, timestamp, metric, value FROM metric_rows WHERE entity_id = ? AND timestamp >= ? ORDER BY timestamp ASC`
		rows, err = db.conn.Query(query, entityID, since)
	} else {
		placeholders := make([]string, len(metricTypes))
		for i := range placeholders {
			placeholders[i] = "?"
		}
		query = fmt.Sprintf(
			`SELECT id, entity_id, timestamp, metric, value FROM metric_rows WHERE entity_id = ? AND metric IN (%s) AND timestamp >= ? ORDER BY timestamp ASC`,
			strings.Join(placeholders, ","),
		)
		args := make([]interface{}, 0, len(metricTypes)+2)
		args = append(args, entityID)
		for _, mt := range metricTypes {
			args = append(args, mt)
		}
		args = append(args, since)
		rows, err = db.conn.Query(query, args...)
	}
	metrics.RecordDBQuery("SELECT", "metric_rows", time.Since(queryStart), err)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MetricRow
	for rows.Next() {
		var m models.MetricRow
		if err := rows.Scan(&m.ID, &m.EntityID, &m.Timestamp, &m.Metric, &m.Value); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentWindow groups an entity's rows from the last `days` days into
// per-timestamp observations, oldest first. Implements the forecast
// engine's HistoryStore. An unknown entity yields models.ErrNotFound.
func (db *DB) RecentWindow(entityID string, asOf time.Time, days int) ([]models.Observation, error) {
	since := asOf.AddDate(0, 0, -days)
	rows, err := db.GetMetricRows(entityID, nil, since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		known, err := db.entityExists(entityID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("entity %s: %w", entityID, models.ErrNotFound)
		}
		return nil, nil
	}

	var window []models.Observation
	byTime := make(map[time.Time]int)
	for _, row := range rows {
		if row.Timestamp.After(asOf) {
			continue
		}
		idx, ok := byTime[row.Timestamp]
		if !ok {
			window = append(window, models.Observation{
				EntityID:  entityID,
				Timestamp: row.Timestamp,
				Values:    make(map[string]float64),
			})
			idx = len(window) - 1
			byTime[row.Timestamp] = idx
		}
		window[idx].Values[row.Metric] = row.Value
	}
	return window, nil
}

func (db *DB) entityExists(entityID string) (bool, error) {
	row := db.conn.QueryRow(`SELECT 1 FROM entities WHERE id = ? LIMIT 1`, entityID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// StoreAnomalies stores scored anomalies in one transaction.
func (db *DB) StoreAnomalies(anomalies []models.AnomalyResult) error {
	if len(anomalies) == 0 {
		return nil // Nothing to store
	}

	queryStart := time.Now()
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO anomalies (entity_id, metric, timestamp, score, severity, method) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		if _, err := stmt.Exec(a.EntityID, a.Metric, a.Timestamp, a.Score, a.Severity, a.Method); err != nil {
			return fmt.Errorf("failed to insert anomaly for %s at %s: %w", a.Metric, a.Timestamp, err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("INSERT", "anomalies", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAnomalies retrieves recent anomalies for an entity, newest first.
func (db *DB) GetAnomalies(entityID string, limit int) ([]models.AnomalyResult, error) {
	query := `SELECT id, entity_id, metric, timestamp, score, severity, method FROM anomalies WHERE entity_id = ? ORDER BY timestamp DESC LIMIT ?`
	rows, err := db.conn.Query(query, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AnomalyResult
	for rows.Next() {
		var a models.AnomalyResult
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Metric, &a.Timestamp, &a.Score, &a.Severity, &a.Method); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StoreForecasts stores every day of every horizon in one transaction.
func (db *DB) StoreForecasts(forecasts []models.ForecastResult) error {
	if len(forecasts) == 0 {
		return nil
	}

	queryStart := time.Now()
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO forecasts (entity_id, metric, horizon_days, day_offset, predicted, lower_bound, upper_bound, generated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range forecasts {
		for _, day := range f.Days {
			if _, err := stmt.Exec(f.EntityID, f.Metric, f.HorizonDays, day.Offset, day.Predicted, day.Lower, day.Upper, f.GeneratedAt); err != nil {
				return fmt.Errorf("failed to insert forecast day %d for %s: %w", day.Offset, f.EntityID, err)
			}
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("INSERT", "forecasts", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats := db.conn.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
