/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package checkpoint

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound marks a store that has never been written; callers fall back
// to the bootstrap window instead of failing the run.
var ErrNotFound = errors.New("checkpoint: not found")

// Store persists the single timestamp marking already-processed activity.
type Store interface {
    Read(ctx context.Context) (time.Time, error)
    Write(ctx context.Context, t time.Time) error
}

// document is the persisted layout, shared by every store implementation.
type document struct {
    LastRun string `json:"last_run"`
}

func marshal(t time.Time) ([]byte, error) {
    return json.Marshal(document{LastRun: t.Format(time.RFC3339)})
}

func unmarshal(data []byte) (time.Time, error) {
    var doc document
    if err := json.Unmarshal(data, &doc); err != nil {
        return time.Time{}, fmt.Errorf("checkpoint: parse document: %w", err)
    }
    t, err := time.Parse(time.RFC3339, doc.LastRun)
    if err != nil {
        return time.Time{}, fmt.Errorf("checkpoint: parse last_run: %w", err)
    }
    return t, nil
}

// FileStore keeps the checkpoint in a local JSON file. Used in debug mode.
type FileStore struct {
    path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Read(ctx context.Context) (time.Time, error) {
    data, err := os.ReadFile(f.path)
    if err != nil {
        if os.IsNotExist(err) { return time.Time{}, ErrNotFound }
        return time.Time{}, err
    }
    return unmarshal(data)
}

func (f *FileStore) Write(ctx context.Context, t time.Time) error {
    data, err := marshal(t)
    if err != nil { return err }
    return os.WriteFile(f.path, data, 0644)
}

// PostgresStore keeps the checkpoint document in a single named row.
type PostgresStore struct {
    pool *pgxpool.Pool
    name string
}

func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
    return &PostgresStore{pool: pool, name: name}
}

func (p *PostgresStore) Read(ctx context.Context) (time.Time, error) {
    var data []byte
    err := p.pool.QueryRow(ctx, `SELECT doc FROM checkpoints WHERE name=$1`, p.name).Scan(&data)
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return time.Time{}, ErrNotFound }
        return time.Time{}, err
    }
    return unmarshal(data)
}

func (p *PostgresStore) Write(ctx context.Context, t time.Time) error {
    data, err := marshal(t)
    if err != nil { return err }
    const q = `INSERT INTO checkpoints(name, doc, updated_at) VALUES($1, $2, now())
        ON CONFLICT (name) DO UPDATE SET doc=EXCLUDED.doc, updated_at=now()`
    _, err = p.pool.Exec(ctx, q, p.name, data)
    return err
}
