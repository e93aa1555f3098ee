// Package store persists processed frames to SQLite. One frame spans three
// tables: an image row, zero or more keypoint rows referencing it, and at
// most one descriptor-blob row referencing it. A frame is written inside a
// single transaction so a failure at any step leaves no trace of it.
//
// Persistence is deliberately not idempotent: the pipeline has no record
// identity that survives redelivery, so storing the same frame twice yields
// two independent image rows.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/BrianCerberus/imageflow/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	filename TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	channels INTEGER NOT NULL,
	data_size INTEGER NOT NULL,
	image_data BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS keypoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	image_id INTEGER NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	size REAL NOT NULL,
	angle REAL NOT NULL,
	response REAL NOT NULL,
	octave INTEGER NOT NULL,
	FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS descriptors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	image_id INTEGER NOT NULL,
	descriptor_data BLOB NOT NULL,
	FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_keypoints_image_id ON keypoints(image_id);
CREATE INDEX IF NOT EXISTS idx_descriptors_image_id ON descriptors(image_id);
CREATE INDEX IF NOT EXISTS idx_images_filename ON images(filename);
`

// Store owns a SQLite database handle. Close releases it; every other method
// is safe to call until then. The pipeline has a single writer, so the store
// needs no locking beyond SQLite's own transaction isolation.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps in-memory databases coherent and matches
	// the single-writer model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProcessed commits one processed frame as an atomic unit. On any
// failure the transaction is rolled back and no partial rows remain visible.
func (s *Store) SaveProcessed(ctx context.Context, d *wire.ProcessedData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO images (timestamp, filename, width, height, channels, data_size, image_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(d.Timestamp), d.Filename, d.Width, d.Height, d.Channels, d.DataSize, d.Pixels,
	)
	if err != nil {
		return fmt.Errorf("store: insert image %s: %w", d.Filename, err)
	}
	imageID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: image id: %w", err)
	}

	if len(d.KeyPoints) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO keypoints (image_id, x, y, size, angle, response, octave)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare keypoint insert: %w", err)
		}
		defer stmt.Close()

		for i := range d.KeyPoints {
			kp := &d.KeyPoints[i]
			_, err := stmt.ExecContext(ctx, imageID, kp.X, kp.Y, kp.Size, kp.Angle, kp.Response, kp.Octave)
			if err != nil {
				return fmt.Errorf("store: insert keypoint %d: %w", i, err)
			}
		}
	}

	if len(d.Descriptors) > 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO descriptors (image_id, descriptor_data) VALUES (?, ?)`,
			imageID, encodeDescriptors(d.Descriptors),
		)
		if err != nil {
			return fmt.Errorf("store: insert descriptors: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", d.Filename, err)
	}
	return nil
}

// ImageCount returns the total number of stored image rows.
func (s *Store) ImageCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "images")
}

// KeyPointCount returns the total number of stored keypoint rows.
func (s *Store) KeyPointCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "keypoints")
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return n, nil
}

// encodeDescriptors packs the flat descriptor values into one opaque blob,
// big-endian float32, the same byte layout the wire format uses.
func encodeDescriptors(values []float32) []byte {
	b := make([]byte, 0, len(values)*4)
	for _, v := range values {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}
