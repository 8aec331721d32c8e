package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/errandplan/core/metrics/usage"
)

// SQLiteStore persists usage KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS usage_kpi (
        category TEXT,
        day INTEGER,
        planned REAL,
        travel REAL,
        travel_km REAL,
        occurrences INTEGER,
        unschedulable INTEGER,
        PRIMARY KEY(category, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add folds the record into the category/day aggregate.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO usage_kpi (category, day, planned, travel, travel_km, occurrences, unschedulable)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(category, day) DO UPDATE SET
            planned = planned + excluded.planned,
            travel = travel + excluded.travel,
            travel_km = travel_km + excluded.travel_km,
            occurrences = occurrences + excluded.occurrences,
            unschedulable = unschedulable + excluded.unschedulable`,
		r.Category, d.Unix(), r.PlannedMin, r.TravelMin, r.TravelKm, r.Occurrences, r.Unschedulable)
	return err
}

// Query returns the category's day aggregates in the range [start,end].
func (s *SQLiteStore) Query(category string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT category, day, planned, travel, travel_km, occurrences, unschedulable
        FROM usage_kpi WHERE category = ? AND day >= ? AND day <= ? ORDER BY day`,
		category, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var cat string
		var ts int64
		var planned, travel, km float64
		var occ, unsched int
		if err := rows.Scan(&cat, &ts, &planned, &travel, &km, &occ, &unsched); err != nil {
			return nil, err
		}
		res = append(res, core.Record{
			Category:      cat,
			Date:          time.Unix(ts, 0).UTC(),
			PlannedMin:    planned,
			TravelMin:     travel,
			TravelKm:      km,
			Occurrences:   occ,
			Unschedulable: unsched,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Categories lists every category with recorded usage, sorted.
func (s *SQLiteStore) Categories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM usage_kpi ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
