package jobs

import (
    "context"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type service interface { RunAudit(ctx context.Context) (string, error) }

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, err := time.LoadLocation(cfg.TZ)
    if err != nil { loc = time.Local }
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    if _, err := c.AddFunc(cfg.AuditCron, cr.audit); err != nil {
        log.Error().Err(err).Str("spec", cfg.AuditCron).Msg("cron: invalid schedule, audits will not run")
    }
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) audit() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute); defer cancel()
    // advisory lock keeps scheduled runs from overlapping across replicas;
    // debug mode has no DB and relies on the single local process
    if cr.repo != nil {
        const lockKey int64 = 727272
        ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
        if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
        if !ok { cr.log.Info().Msg("cron: already running elsewhere"); return }
        defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
    }
    cr.log.Info().Msg("cron: audit run")
    if _, err := cr.svc.RunAudit(ctx); err != nil { cr.log.Error().Err(err).Msg("cron: audit failed") }
}
