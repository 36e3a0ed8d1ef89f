/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "math"
    "strings"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/domain"
)

// relativeWindow renders the elapsed time since the checkpoint as a JQL
// relative-minute offset. Rounded, not truncated, so events in the final
// partial minute are not systematically excluded; clamped at zero to absorb
// clock skew that puts the checkpoint in the future.
func relativeWindow(checkpoint, now time.Time) string {
    mins := int(math.Round(now.Sub(checkpoint).Minutes()))
    if mins < 0 { mins = 0 }
    return fmt.Sprintf("-%dm", mins)
}

// checkWorklogRules evaluates the worklog rule family over one change set.
// Secondary per-issue lookups run on a bounded worker pool; results are
// attributed by issue inside each worker, so completion order is irrelevant.
func (s *Service) checkWorklogRules(ctx context.Context, issues []domain.Issue, since time.Time) []domain.AlertRecord {
    return s.collect(issues, func(iss domain.Issue) []domain.AlertRecord {
        return s.worklogAlerts(ctx, iss, since)
    })
}

// checkStatusRules evaluates the status-transition rule family.
func (s *Service) checkStatusRules(ctx context.Context, issues []domain.Issue) []domain.AlertRecord {
    return s.collect(issues, func(iss domain.Issue) []domain.AlertRecord {
        return s.statusAlerts(ctx, iss)
    })
}

func (s *Service) collect(issues []domain.Issue, eval func(domain.Issue) []domain.AlertRecord) []domain.AlertRecord {
    if len(issues) == 0 { return nil }
    workers := s.cfg.Workers
    if workers <= 0 { workers = 8 }
    jobs := make(chan domain.Issue)
    results := make(chan []domain.AlertRecord)
    for w := 0; w < workers; w++ {
        go func() {
            for iss := range jobs { results <- eval(iss) }
        }()
    }
    go func() { for _, iss := range issues { jobs <- iss }; close(jobs) }()
    var out []domain.AlertRecord
    for range issues { out = append(out, <-results...) }
    return out
}

func (s *Service) worklogAlerts(ctx context.Context, iss domain.Issue, since time.Time) []domain.AlertRecord {
    if len(iss.Worklogs) == 0 { return nil }

    // cumulative time counts every entry on the issue, not just windowed ones
    all, err := s.src.AllWorklogs(ctx, iss.ID)
    if err != nil {
        s.log.Warn().Err(err).Str("issue", iss.Key).Msg("worklog fetch failed, treating as empty")
        all = nil
    }
    total := 0
    for _, w := range all { total += w.Seconds }

    var out []domain.AlertRecord
    raisedTotal := false
    for _, w := range iss.Worklogs {
        if w.Updated == nil || w.Updated.Before(since) { continue }
        if total > s.cfg.WorklogLimitSecs && !raisedTotal {
            out = append(out, domain.AlertRecord{
                Kind:       domain.AlertWorklogExcessiveTotal,
                ProjectKey: iss.Project.Key,
                IssueKey:   iss.Key,
                Message:    fmt.Sprintf("Issue %s has total worklogs exceeding %d hours.", iss.Key, s.cfg.WorklogLimitSecs/3600),
            })
            raisedTotal = true
        }
        if w.Comment == "" {
            out = append(out, domain.AlertRecord{
                Kind:       domain.AlertWorklogMissingComment,
                ProjectKey: iss.Project.Key,
                IssueKey:   iss.Key,
                Message:    fmt.Sprintf("Issue %s has a worklog without a comment.", iss.Key),
            })
        }
    }
    return out
}

func (s *Service) statusAlerts(ctx context.Context, iss domain.Issue) []domain.AlertRecord {
    if !s.watched(iss.Status) { return nil }

    hasLink := s.hasDevelopmentLink(ctx, iss.ID)
    if !hasLink && iss.ParentID != "" {
        // one level of inheritance only, never recursive
        hasLink = s.hasDevelopmentLink(ctx, iss.ParentID)
    }

    var out []domain.AlertRecord
    if !hasLink {
        out = append(out, domain.AlertRecord{
            Kind:       domain.AlertNoDevelopmentLink,
            ProjectKey: iss.Project.Key,
            IssueKey:   iss.Key,
            Message:    fmt.Sprintf("Issue %s moved to %s without a linked branch, commit, or PR.", iss.Key, iss.Status),
        })
    }
    if iss.Estimate == nil {
        out = append(out, domain.AlertRecord{
            Kind:       domain.AlertStoryPointsMissing,
            ProjectKey: iss.Project.Key,
            IssueKey:   iss.Key,
            Message:    fmt.Sprintf("Issue %s moved to %s without a story point estimate.", iss.Key, iss.Status),
        })
    }
    return out
}

func (s *Service) watched(status string) bool {
    for _, w := range s.cfg.WatchedStatuses {
        if strings.EqualFold(strings.TrimSpace(w), status) { return true }
    }
    return false
}

// hasDevelopmentLink answers the dev-status lookup for one issue. A failed
// or absent lookup reads as "no development data" so a legitimate alert is
// raised rather than silently skipped.
func (s *Service) hasDevelopmentLink(ctx context.Context, issueID string) bool {
    sum, err := s.src.DevelopmentSummary(ctx, issueID)
    if err != nil {
        s.log.Warn().Err(err).Str("issue", issueID).Msg("dev-status lookup failed, treating as no development data")
        return false
    }
    return sum != nil && sum.HasLink
}
