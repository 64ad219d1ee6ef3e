package database

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"strings"

	"github.com/username/portafolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
	CREATE TABLE IF NOT EXISTS data_points (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		file_name TEXT NOT NULL,
		size_in_bytes INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_data_points_file ON data_points(file_name, size_in_bytes);
	CREATE INDEX IF NOT EXISTS idx_data_points_status ON data_points(status);

	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		data_point_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		number INTEGER NOT NULL,
		broker TEXT NOT NULL,
		ticker TEXT,
		movement_type TEXT NOT NULL,
		concertation_date TEXT,
		settlement_date TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		price TEXT NOT NULL DEFAULT '0',
		commission TEXT NOT NULL DEFAULT '0',
		commission_tax TEXT NOT NULL DEFAULT '0',
		other_taxes TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY(data_point_id) REFERENCES data_points(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_movements_data_point ON movements(data_point_id, position);
	`

// InitDB opens the database at databasePath into DB, exiting the process on failure.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}
	DB = db
}

// Open opens a SQLite database with foreign keys enabled and brings its schema up to date.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(databasePath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions from tripping over each other.
	db.SetMaxOpenConns(1)

	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Info("Database tables ensured/created.")
	return db, nil
}

func dsn(databasePath string) string {
	sep := "?"
	if strings.Contains(databasePath, "?") {
		sep = "&"
	}
	return databasePath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func migrate(db *sql.DB) error {
	if err := migrateDataPointsTable(db); err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		logger.L.Error("failed to create tables", "error", err)
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// migrateDataPointsTable upgrades data_points tables created before updated_at existed.
func migrateDataPointsTable(db *sql.DB) error {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='data_points'").Scan(&tableName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.L.Info("'data_points' table does not exist, no migration needed as table will be created.")
			return nil
		}
		return fmt.Errorf("checking for data_points table: %w", err)
	}

	columns, err := tableColumns(db, "data_points")
	if err != nil {
		return err
	}
	if !columns["updated_at"] {
		if _, err := db.Exec("ALTER TABLE data_points ADD COLUMN updated_at TEXT"); err != nil {
			logger.L.Error("Error adding 'updated_at' column to 'data_points' table", "error", err)
			return fmt.Errorf("adding updated_at column: %w", err)
		}
		logger.L.Info("Added 'updated_at' column to 'data_points' table")
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("querying table schema for %s: %w", table, err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info for %s: %w", table, err)
		}
		columnExists[name] = true
	}
	return columnExists, rows.Err()
}
