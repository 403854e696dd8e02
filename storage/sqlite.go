package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"delyzer.dev/delyzer/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB

	// SQLite allows a single writer at a time.
	writeMutex sync.Mutex
}

const departureColumns = `
    id,
    station_id,
    destination_id,
    direction,
    direction_from,
    line_number,
    line_name,
    planned_departure_time,
    delay,
    observed_at`

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	// Every connection to ":memory:" gets its own database, so
	// in memory mode is limited to a single connection.
	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "delyzer.db") + "?_journal=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS departure (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id INTEGER NOT NULL,
    destination_id INTEGER NOT NULL,
    direction TEXT NOT NULL,
    direction_from TEXT NOT NULL,
    line_number TEXT NOT NULL,
    line_name TEXT NOT NULL,
    planned_departure_time INTEGER NOT NULL,
    delay INTEGER NOT NULL,
    observed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS departure_line ON departure (line_number, direction);
CREATE INDEX IF NOT EXISTS departure_station ON departure (station_id);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating departure table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) WriteDepartures(departures []*model.Departure) error {
	if len(departures) == 0 {
		return nil
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
INSERT INTO departure (
    station_id,
    destination_id,
    direction,
    direction_from,
    line_number,
    line_name,
    planned_departure_time,
    delay,
    observed_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(departures))
	for i, d := range departures {
		d.ObservedAt = model.ObservationTime(d.ObservedAt)
		res, err := stmt.Exec(
			d.StationID,
			d.DestinationID,
			d.Direction,
			d.DirectionFrom,
			d.LineNumber,
			d.LineName,
			int(d.PlannedDepartureTime),
			d.Delay,
			d.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting departure: %w", err)
		}
		ids[i], err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting departure id: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	for i, d := range departures {
		d.ID = ids[i]
	}

	return nil
}

func (s *SQLiteStorage) ListDepartures(filter DepartureFilter) ([]*model.Departure, error) {
	query := `SELECT` + departureColumns + ` FROM departure`

	conditions := []string{}
	params := []interface{}{}
	if filter.StationID != 0 {
		conditions = append(conditions, "station_id = ?")
		params = append(params, filter.StationID)
	}
	if filter.LineNumber != "" {
		conditions = append(conditions, "line_number = ?")
		params = append(params, filter.LineNumber)
	}
	if filter.Direction != "" {
		conditions = append(conditions, "direction = ?")
		params = append(params, filter.Direction)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id ASC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing departures: %w", err)
	}
	defer rows.Close()

	departures := []*model.Departure{}
	for rows.Next() {
		d, err := scanDeparture(rows)
		if err != nil {
			return nil, err
		}
		departures = append(departures, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating departures: %w", err)
	}

	return departures, nil
}

func (s *SQLiteStorage) GetDeparture(id int64) (*model.Departure, error) {
	row := s.db.QueryRow(`SELECT`+departureColumns+` FROM departure WHERE id = ?`, id)
	d, err := scanDeparture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStorage) ClearDepartures() error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	_, err := s.db.Exec(`DELETE FROM departure`)
	if err != nil {
		return fmt.Errorf("clearing departures: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeparture(row rowScanner) (*model.Departure, error) {
	var d model.Departure
	var planned int
	err := row.Scan(
		&d.ID,
		&d.StationID,
		&d.DestinationID,
		&d.Direction,
		&d.DirectionFrom,
		&d.LineNumber,
		&d.LineName,
		&planned,
		&d.Delay,
		&d.ObservedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning departure: %w", err)
	}
	d.PlannedDepartureTime = model.TimeOfDay(planned)
	d.ObservedAt = d.ObservedAt.UTC()
	return &d, nil
}
