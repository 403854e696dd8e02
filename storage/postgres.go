package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"delyzer.dev/delyzer/model"
)

type PSQLStorage struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`DROP TABLE IF EXISTS departure;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS departure (
    id BIGSERIAL PRIMARY KEY,
    station_id INTEGER NOT NULL,
    destination_id INTEGER NOT NULL,
    direction TEXT NOT NULL,
    direction_from TEXT NOT NULL,
    line_number TEXT NOT NULL,
    line_name TEXT NOT NULL,
    planned_departure_time INTEGER NOT NULL,
    delay INTEGER NOT NULL,
    observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS departure_line ON departure (line_number, direction);
CREATE INDEX IF NOT EXISTS departure_station ON departure (station_id);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating departure table: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) Ping() error {
	return s.db.Ping()
}

func (s *PSQLStorage) WriteDepartures(departures []*model.Departure) error {
	if len(departures) == 0 {
		return nil
	}

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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(departures))
	for i, d := range departures {
		d.ObservedAt = model.ObservationTime(d.ObservedAt)
		err := stmt.QueryRow(
			d.StationID,
			d.DestinationID,
			d.Direction,
			d.DirectionFrom,
			d.LineNumber,
			d.LineName,
			int(d.PlannedDepartureTime),
			d.Delay,
			d.ObservedAt,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("inserting departure: %w", err)
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

func (s *PSQLStorage) ListDepartures(filter DepartureFilter) ([]*model.Departure, error) {
	query := `SELECT` + departureColumns + ` FROM departure`

	conditions := []string{}
	params := []interface{}{}
	paramCount := 1

	if filter.StationID != 0 {
		conditions = append(conditions, fmt.Sprintf("station_id = $%d", paramCount))
		params = append(params, filter.StationID)
		paramCount++
	}
	if filter.LineNumber != "" {
		conditions = append(conditions, fmt.Sprintf("line_number = $%d", paramCount))
		params = append(params, filter.LineNumber)
		paramCount++
	}
	if filter.Direction != "" {
		conditions = append(conditions, fmt.Sprintf("direction = $%d", paramCount))
		params = append(params, filter.Direction)
		paramCount++
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

func (s *PSQLStorage) GetDeparture(id int64) (*model.Departure, error) {
	row := s.db.QueryRow(`SELECT`+departureColumns+` FROM departure WHERE id = $1`, id)
	d, err := scanDeparture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Deletes all departures. TRUNCATE restarts the ID sequence, which is
// fine as IDs carry no meaning beyond identity.
func (s *PSQLStorage) ClearDepartures() error {
	_, err := s.db.Exec(`TRUNCATE departure RESTART IDENTITY`)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("clearing departures (%s): %w", pqErr.Code.Name(), err)
		}
		return fmt.Errorf("clearing departures: %w", err)
	}
	return nil
}
