/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/checkpoint"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/domain"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/repo"
    "github.com/rs/zerolog"
)

// TicketSource is the issue-tracker side of the run: two primary change-set
// queries plus per-issue secondary lookups.
type TicketSource interface {
    WorklogChangedIssues(ctx context.Context, window string) ([]domain.Issue, error)
    StatusChangedIssues(ctx context.Context, window string, statuses []string) ([]domain.Issue, error)
    DevelopmentSummary(ctx context.Context, issueID string) (*domain.DevelopmentSummary, error)
    AllWorklogs(ctx context.Context, issueID string) ([]domain.WorklogEntry, error)
    ProjectLead(ctx context.Context, projectKey string) (*domain.ProjectLead, error)
}

// Sink delivers one rendered digest to one recipient.
type Sink interface {
    Deliver(ctx context.Context, recipient, subject, body string, html bool) error
}

const digestSubject = "Jira Automation Alerts"

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    src  TicketSource
    ckpt checkpoint.Store
    sink Sink
    repo *repo.Repository
    now  func() time.Time
}

func New(cfg config.Config, log zerolog.Logger, src TicketSource, ckpt checkpoint.Store, sink Sink, r *repo.Repository) *Service {
    return &Service{cfg: cfg, log: log, src: src, ckpt: ckpt, sink: sink, repo: r, now: time.Now}
}

// RunAudit executes one full audit pass: resolve window, fetch both change
// sets, evaluate rules, aggregate, deliver, and only then advance the
// checkpoint. Any failure up to and including delivery leaves the checkpoint
// untouched so the next invocation re-scans the same window.
func (s *Service) RunAudit(ctx context.Context) (string, error) {
    started := s.now()

    var runID int64
    if s.repo != nil {
        id, err := s.repo.StartRun(ctx)
        if err != nil { s.log.Error().Err(err).Msg("audit: start run record failed") } else { runID = id }
    }
    var issuesScanned, alertCount int
    var runErr error
    defer func() {
        if s.repo != nil && runID != 0 {
            errStr := ""
            if runErr != nil { errStr = runErr.Error() }
            if err := s.repo.FinishRun(ctx, runID, issuesScanned, alertCount, runErr == nil, errStr); err != nil {
                s.log.Error().Err(err).Int64("run", runID).Msg("audit: finish run record failed")
            }
        }
    }()

    last, err := s.ckpt.Read(ctx)
    havePrev := err == nil
    if err != nil {
        if !errors.Is(err, checkpoint.ErrNotFound) {
            s.log.Error().Err(err).Msg("audit: checkpoint read failed, using bootstrap window")
        }
        last = started.Add(-s.cfg.BootstrapWindow)
    }
    window := relativeWindow(last, started)
    s.log.Info().Time("checkpoint", last).Time("now", started).Str("window", window).Msg("audit: window resolved")

    worklogIssues, err := s.src.WorklogChangedIssues(ctx, window)
    if err != nil { runErr = fmt.Errorf("fetch worklog changes: %w", err); return "", runErr }
    statusIssues, err := s.src.StatusChangedIssues(ctx, window, s.cfg.WatchedStatuses)
    if err != nil { runErr = fmt.Errorf("fetch status transitions: %w", err); return "", runErr }
    issuesScanned = len(worklogIssues) + len(statusIssues)

    alerts := s.checkWorklogRules(ctx, worklogIssues, last)
    alerts = append(alerts, s.checkStatusRules(ctx, statusIssues)...)
    alertCount = len(alerts)
    s.log.Info().Int("issues", issuesScanned).Int("alerts", alertCount).Msg("audit: rules evaluated")

    digestCount := 0
    if alertCount > 0 {
        digests, err := s.aggregate(ctx, alerts)
        if err != nil { runErr = err; return "", runErr }
        digestCount = len(digests)
        for _, d := range digests {
            if err := s.sink.Deliver(ctx, d.Recipient, digestSubject, renderDigest(d), false); err != nil {
                runErr = fmt.Errorf("deliver digest to %s: %w", d.Recipient, err)
                return "", runErr
            }
        }
    }

    // checkpoint advances to the run's start time, never past it, and only
    // once every digest has been delivered (or none were needed); a stored
    // checkpoint ahead of the local clock is kept as is, never rolled back
    if havePrev && started.Before(last) {
        s.log.Warn().Time("checkpoint", last).Time("now", started).Msg("audit: checkpoint ahead of clock, leaving it untouched")
    } else if err := s.ckpt.Write(ctx, started); err != nil {
        runErr = fmt.Errorf("checkpoint write: %w", err)
        return "", runErr
    }

    msg := fmt.Sprintf("audit complete: %d issues scanned, %d alerts, %d digests delivered", issuesScanned, alertCount, digestCount)
    s.log.Info().Msg("audit: " + msg)
    return msg, nil
}

// LastRun reports the most recent run record, if a run history is wired.
func (s *Service) LastRun(ctx context.Context) (any, error) {
    if s.repo == nil { return nil, errors.New("run history not available in debug mode") }
    return s.repo.GetLastRun(ctx)
}
