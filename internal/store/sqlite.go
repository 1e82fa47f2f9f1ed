package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-dashboard/internal/common"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const defaultLocationKey = "default_location"

// SQLiteStore persists saved locations and preferences using the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ weather.LocationStore = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Printf("WARN: sqlite: could not set WAL mode: %v", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		remote_id TEXT NOT NULL UNIQUE,
		latitude TEXT NOT NULL DEFAULT '',
		longitude TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert saves loc, assigning its id and creation time. A duplicate name or
// remote id yields weather.ErrLocationExists.
func (s *SQLiteStore) Insert(loc weather.Location) (weather.Location, error) {
	if loc.Name == "" || loc.RemoteID == "" {
		return weather.Location{}, fmt.Errorf("location needs a name and a remote id")
	}
	if !loc.HasCoordinates() {
		loc.Latitude, loc.Longitude = "", ""
	}
	loc.ID = ulid.Make().String()
	loc.CreatedAt = s.now().UTC().Truncate(time.Second)

	_, err := s.db.Exec(
		`INSERT INTO locations(id, name, remote_id, latitude, longitude, created_at) VALUES(?,?,?,?,?,?)`,
		loc.ID, loc.Name, loc.RemoteID, loc.Latitude, loc.Longitude, loc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if common.HasAny(err.Error(), "UNIQUE constraint failed", "constraint failed") {
			return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationExists, loc.Name)
		}
		return weather.Location{}, err
	}
	return loc, nil
}

const selectLocation = `SELECT id, name, remote_id, latitude, longitude, created_at FROM locations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (weather.Location, error) {
	var (
		loc     weather.Location
		created string
	)
	if err := row.Scan(&loc.ID, &loc.Name, &loc.RemoteID, &loc.Latitude, &loc.Longitude, &created); err != nil {
		return weather.Location{}, err
	}
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		loc.CreatedAt = ts
	}
	return loc, nil
}

func (s *SQLiteStore) queryOne(where string, arg string) (weather.Location, error) {
	loc, err := scanLocation(s.db.QueryRow(selectLocation+" WHERE "+where+" = ?", arg))
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, arg)
	}
	return loc, err
}

// LocationByName returns the location saved under name.
func (s *SQLiteStore) LocationByName(name string) (weather.Location, error) {
	return s.queryOne("name", name)
}

// LocationByRemoteID returns the location with the provider id remoteID.
func (s *SQLiteStore) LocationByRemoteID(remoteID string) (weather.Location, error) {
	return s.queryOne("remote_id", remoteID)
}

// UpdateCoordinates stores both components of c for remoteID.
func (s *SQLiteStore) UpdateCoordinates(remoteID string, c weather.Coordinates) error {
	if !c.Valid() {
		return fmt.Errorf("incomplete coordinates for %s", remoteID)
	}
	res, err := s.db.Exec(`UPDATE locations SET latitude = ?, longitude = ? WHERE remote_id = ?`, c.Latitude, c.Longitude, remoteID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", weather.ErrLocationNotFound, remoteID)
	}
	return nil
}

// Delete removes the location saved under name, and the default preference if
// it pointed there.
func (s *SQLiteStore) Delete(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`DELETE FROM locations WHERE name = ?`, name)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("%w: %s", weather.ErrLocationNotFound, name)
	}
	if _, err := tx.Exec(`DELETE FROM preferences WHERE key = ? AND value = ?`, defaultLocationKey, name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// List returns all saved locations in creation order.
func (s *SQLiteStore) List() ([]weather.Location, error) {
	rows, err := s.db.Query(selectLocation + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]weather.Location, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// DefaultLocation returns the name of the default location, or "" if none is set.
func (s *SQLiteStore) DefaultLocation() (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, defaultLocationKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// SetDefaultLocation records name as the default location.
func (s *SQLiteStore) SetDefaultLocation(name string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		defaultLocationKey, name,
	)
	return err
}

// Seed saves the given locations that are not stored yet, matching on
// RemoteID, and then applies defaultName when it names a saved location.
// An unknown default is logged and left unset.
func (s *SQLiteStore) Seed(seeds []weather.Location, defaultName string) error {
	for _, seed := range seeds {
		_, err := s.LocationByRemoteID(seed.RemoteID)
		if err == nil {
			continue
		}
		if !errors.Is(err, weather.ErrLocationNotFound) {
			return err
		}
		loc, err := s.Insert(seed)
		if errors.Is(err, weather.ErrLocationExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Name, err)
		}
		log.Printf("INFO: seeded location %s (%s)", loc.Name, loc.RemoteID)
	}

	if defaultName == "" {
		return nil
	}
	if _, err := s.LocationByName(defaultName); err != nil {
		log.Printf("WARN: configured default location %q is not saved: %v", defaultName, err)
		return nil
	}
	return s.SetDefaultLocation(defaultName)
}
