// Package sqlite persists indexes in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"paperpal/internal/domain"
	"paperpal/internal/vectorstore"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS vec_index (
    location   TEXT PRIMARY KEY,
    embedder   TEXT NOT NULL,
    dimension  INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS vec_record (
    location    TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    id          TEXT NOT NULL,
    document_id TEXT NOT NULL,
    content     TEXT NOT NULL,
    embedding   BLOB NOT NULL,
    PRIMARY KEY(location, seq)
)`}

// Storage keeps one vec_index row per location and its records in vec_record.
type Storage struct {
	db *sql.DB
}

// Open opens (and creates) the database at path and applies the schema.
func Open(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error { return s.db.Close() }

// Save replaces the index at location inside one transaction.
func (s *Storage) Save(ctx context.Context, location string, ix *vectorstore.Index) error {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return err
	}
	if err := ix.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_record WHERE location = ?`, location); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_index WHERE location = ?`, location); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vec_index(location, embedder, dimension, created_at) VALUES(?, ?, ?, ?)`,
		location, ix.Embedder, ix.Dimension, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vec_record(location, seq, id, document_id, content, embedding) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range ix.Records {
		if _, err := stmt.ExecContext(ctx, location, i, r.ID, r.DocumentID, r.Text, EncodeEmbedding(r.Embedding)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Load(ctx context.Context, location string) (*vectorstore.Index, error) {
	ix := &vectorstore.Index{}
	err := s.db.QueryRowContext(ctx, `SELECT embedder, dimension FROM vec_index WHERE location = ?`, location).
		Scan(&ix.Embedder, &ix.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, document_id, content, embedding FROM vec_record WHERE location = ? ORDER BY seq`, location)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r    domain.VectorRecord
			blob []byte
		)
		if err := rows.Scan(&r.Position, &r.ID, &r.DocumentID, &r.Text, &blob); err != nil {
			return nil, err
		}
		if r.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.Position, err)
		}
		ix.Records = append(ix.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := ix.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", location, err)
	}
	return ix, nil
}

func (s *Storage) Exists(ctx context.Context, location string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_index WHERE location = ?`, location).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// EncodeEmbedding stores vec as little-endian IEEE 754 float32 values.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
