/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/adapters/jira"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/adapters/mail"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/checkpoint"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/http"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/jobs"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/logger"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/repo"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    if err := cfg.Validate(); err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Adapters: the debug/production split is decided exactly once, here.
    jc := jira.NewClient(cfg, log)
    var store checkpoint.Store
    var sink services.Sink
    var repository *repo.Repository
    if cfg.Debug {
        store = checkpoint.NewFileStore(cfg.CheckpointFile)
        sink = mail.NewLogSink(log)
        log.Info().Str("checkpoint_file", cfg.CheckpointFile).Msg("debug mode: local checkpoint, logged delivery")
    } else {
        db := repo.MustOpen(ctx, cfg, log)
        defer db.Close()
        repository = repo.New(db, log)
        ctx2, cancel2 := context.WithTimeout(ctx, 10*time.Second)
        if err := repository.EnsureSchema(ctx2); err != nil {
            cancel2()
            log.Fatal().Err(err).Msg("schema setup failed")
        }
        cancel2()
        store = checkpoint.NewPostgresStore(db.Pool, cfg.CheckpointName)
        sink = mail.NewSMTP(cfg, log)
    }

    svc := services.New(cfg, log, jc, store, sink, repository)

    router := http.NewRouter(cfg, log, svc)

    audit := jobs.NewCron(cfg, log, svc, repository)
    audit.Start()
    defer audit.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
