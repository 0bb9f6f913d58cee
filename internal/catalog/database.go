package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists the video catalog in SQLite.
type Database struct {
	db     *sql.DB
	dbPath string
}

// NewDatabase opens (or creates) the catalog database.
func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't handle concurrent writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		uploader TEXT,
		local_path TEXT,
		length_seconds REAL,
		format TEXT,
		width INTEGER,
		height INTEGER,
		downloaded_bytes INTEGER DEFAULT 0,
		content_length INTEGER DEFAULT 0,
		score REAL DEFAULT 0,
		thumbnail BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_videos_position ON videos(position);

	CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertVideo writes one catalog record at the given list position.
// Transient fields (downloading flag, speed) are not persisted.
func (d *Database) UpsertVideo(v *Video, position int) error {
	_, err := d.db.Exec(`
		INSERT INTO videos (id, position, url, title, uploader, local_path,
			length_seconds, format, width, height,
			downloaded_bytes, content_length, score, thumbnail, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			local_path = excluded.local_path,
			length_seconds = excluded.length_seconds,
			format = excluded.format,
			width = excluded.width,
			height = excluded.height,
			downloaded_bytes = excluded.downloaded_bytes,
			content_length = excluded.content_length,
			score = excluded.score,
			thumbnail = excluded.thumbnail,
			updated_at = CURRENT_TIMESTAMP`,
		v.ID, position, v.URL, v.Title, v.Uploader, v.LocalPath,
		v.LengthSeconds, v.Format, v.Width, v.Height,
		v.DownloadedBytes, v.ContentLength, v.Score, v.Thumbnail)
	if err != nil {
		return fmt.Errorf("failed to upsert video %s: %w", v.ID, err)
	}
	return nil
}

// DeleteVideo removes one record.
func (d *Database) DeleteVideo(id string) error {
	if _, err := d.db.Exec(`DELETE FROM videos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete video %s: %w", id, err)
	}
	return nil
}

// LoadVideos returns all records in list order.
func (d *Database) LoadVideos() ([]*Video, error) {
	rows, err := d.db.Query(`
		SELECT id, url, title, uploader, local_path,
			length_seconds, format, width, height,
			downloaded_bytes, content_length, score, thumbnail
		FROM videos ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		var v Video
		var localPath, title, uploader, format sql.NullString
		var length, score sql.NullFloat64
		var width, height, downloaded, total sql.NullInt64
		if err := rows.Scan(&v.ID, &v.URL, &title, &uploader, &localPath,
			&length, &format, &width, &height,
			&downloaded, &total, &score, &v.Thumbnail); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		v.Title = title.String
		v.Uploader = uploader.String
		v.LocalPath = localPath.String
		v.LengthSeconds = length.Float64
		v.Format = format.String
		v.Width = int(width.Int64)
		v.Height = int(height.Int64)
		v.DownloadedBytes = downloaded.Int64
		v.ContentLength = total.Int64
		v.Score = score.Float64
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

// SaveState persists a key/value pair of system state.
func (d *Database) SaveState(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to save state %s: %w", key, err)
	}
	return nil
}

// LoadState reads a system state value; missing keys return "".
func (d *Database) LoadState(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM system_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load state %s: %w", key, err)
	}
	return value, nil
}
