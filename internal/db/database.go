package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/segmentio/ksuid"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// Race is a finished race as stored.
type Race struct {
	ID               string          `json:"id"`
	RoomName         string          `json:"room_name"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	ParticipantCount int             `json:"participant_count"`
	Standings        []race.Standing `json:"standings,omitempty"`
}

type LeaderboardEntry struct {
	UserName  string `json:"user_name"`
	Wins      int    `json:"wins"`
	Races     int    `json:"races"`
	BestPlace int    `json:"best_place"`
}

type Stats struct {
	RaceCount   int `json:"race_count"`
	ResultCount int `json:"result_count"`
}

func New(dbPath string) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the API read while a finished race is being written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS races (
		id TEXT PRIMARY KEY,
		room_name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		participant_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_races_finished_at ON races(finished_at DESC);

	CREATE TABLE IF NOT EXISTS race_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		race_id TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		place INTEGER NOT NULL,
		lap_count INTEGER NOT NULL DEFAULT 0,
		checkpoint_index INTEGER NOT NULL DEFAULT 0,
		goaled BOOLEAN NOT NULL DEFAULT FALSE,
		FOREIGN KEY (race_id) REFERENCES races(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_race_results_race_id ON race_results(race_id);
	CREATE INDEX IF NOT EXISTS idx_race_results_user_name ON race_results(user_name);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Race operations

// SaveRace stores a finished race and its standings in one transaction and
// returns the race id. A result without an id gets a fresh ksuid.
func (d *Database) SaveRace(ctx context.Context, res race.Result) (string, error) {
	id := res.ID
	if id == "" {
		id = ksuid.New().String()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO races (id, room_name, started_at, finished_at, participant_count)
		VALUES (?, ?, ?, ?, ?)
	`, id, res.RoomName, res.StartedAt.UTC(), res.FinishedAt.UTC(), len(res.Standings))
	if err != nil {
		return "", fmt.Errorf("insert race: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO race_results (race_id, connection_id, user_name, place, lap_count, checkpoint_index, goaled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, s := range res.Standings {
		if _, err := stmt.ExecContext(ctx, id, s.ConnectionID.String(), s.UserName, s.Place, s.LapCount, s.CheckpointIndex, s.Goaled); err != nil {
			return "", fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetRace returns the race with its standings, or nil if it does not exist.
func (d *Database) GetRace(ctx context.Context, id string) (*Race, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, room_name, started_at, finished_at, participant_count
		FROM races WHERE id = ?
	`, id)

	var r Race
	err := row.Scan(&r.ID, &r.RoomName, &r.StartedAt, &r.FinishedAt, &r.ParticipantCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT connection_id, user_name, place, lap_count, checkpoint_index, goaled
		FROM race_results WHERE race_id = ? ORDER BY place ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s race.Standing
		var connID string
		if err := rows.Scan(&connID, &s.UserName, &s.Place, &s.LapCount, &s.CheckpointIndex, &s.Goaled); err != nil {
			return nil, err
		}
		s.ConnectionID, _ = uuid.Parse(connID)
		r.Standings = append(r.Standings, s)
	}
	return &r, rows.Err()
}

// ListRaces returns races newest first, without standings.
func (d *Database) ListRaces(ctx context.Context, limit, offset int) ([]Race, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, room_name, started_at, finished_at, participant_count
		FROM races ORDER BY finished_at DESC, id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []Race
	for rows.Next() {
		var r Race
		if err := rows.Scan(&r.ID, &r.RoomName, &r.StartedAt, &r.FinishedAt, &r.ParticipantCount); err != nil {
			return nil, err
		}
		races = append(races, r)
	}
	return races, rows.Err()
}

func (d *Database) CountRaces(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM races").Scan(&count)
	return count, err
}

func (d *Database) DeleteRace(ctx context.Context, id string) (bool, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM races WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteRacesBefore removes races that finished before t.
func (d *Database) DeleteRacesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM races WHERE finished_at < ?", t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TrimRaces keeps only the most recent keep races.
func (d *Database) TrimRaces(ctx context.Context, keep int) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM races
		WHERE id NOT IN (
			SELECT id FROM races
			ORDER BY finished_at DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Leaderboard ranks user names by wins, then best place, then races run.
func (d *Database) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT user_name,
			SUM(CASE WHEN place = 1 AND goaled THEN 1 ELSE 0 END) AS wins,
			COUNT(*) AS races,
			MIN(place) AS best_place
		FROM race_results
		GROUP BY user_name
		ORDER BY wins DESC, best_place ASC, races DESC, user_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserName, &e.Wins, &e.Races, &e.BestPlace); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (d *Database) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM races").Scan(&s.RaceCount); err != nil {
		return s, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM race_results").Scan(&s.ResultCount); err != nil {
		return s, err
	}
	return s, nil
}
