/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, logger zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { logger.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { logger.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: logger}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func New(d *DB, logger zerolog.Logger) *Repository { return &Repository{db: d, log: logger} }

// EnsureSchema creates the two tables this service owns.
func (r *Repository) EnsureSchema(ctx context.Context) error {
    const q = `
        CREATE TABLE IF NOT EXISTS checkpoints(
            name TEXT PRIMARY KEY,
            doc JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE TABLE IF NOT EXISTS audit_runs(
            id BIGSERIAL PRIMARY KEY,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            issues_scanned INT,
            alerts INT,
            success BOOLEAN,
            error TEXT
        )`
    _, err := r.db.Pool.Exec(ctx, q)
    return err
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

type LastRun struct {
    StartedAt     time.Time  `json:"started_at"`
    FinishedAt    *time.Time `json:"finished_at"`
    IssuesScanned int        `json:"issues_scanned"`
    Alerts        int        `json:"alerts"`
    Success       bool       `json:"success"`
    Error         string     `json:"error"`
}

func (r *Repository) StartRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO audit_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishRun(ctx context.Context, id int64, issuesScanned, alerts int, success bool, errStr string) error {
    const q = `UPDATE audit_runs SET finished_at=now(), issues_scanned=$2, alerts=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, issuesScanned, alerts, success, errStr)
    return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
    const q = `SELECT started_at, finished_at, coalesce(issues_scanned,0), coalesce(alerts,0),
        coalesce(success,false), coalesce(error,'') FROM audit_runs ORDER BY id DESC LIMIT 1`
    lr := &LastRun{}
    row := r.db.Pool.QueryRow(ctx, q)
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.IssuesScanned, &lr.Alerts, &lr.Success, &lr.Error); err != nil {
        return nil, err
    }
    return lr, nil
}
