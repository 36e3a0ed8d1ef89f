/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strings"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/domain"
)

// aggregate groups alerts by project, resolves each project's recipient, and
// merges projects that share a recipient into one digest. Lead lookups are
// lazy: one per distinct project key that actually produced alerts, and none
// at all when a fixed recipient is configured.
func (s *Service) aggregate(ctx context.Context, alerts []domain.AlertRecord) ([]domain.RecipientDigest, error) {
    var keys []string
    byProject := map[string][]domain.AlertRecord{}
    for _, a := range alerts {
        if _, ok := byProject[a.ProjectKey]; !ok { keys = append(keys, a.ProjectKey) }
        byProject[a.ProjectKey] = append(byProject[a.ProjectKey], a)
    }

    fixed := strings.TrimSpace(s.cfg.EmailTo)
    var order []string
    byRecipient := map[string]*domain.RecipientDigest{}
    for _, key := range keys {
        recs := byProject[key]
        pa := domain.ProjectAlerts{Key: key, Counts: map[domain.AlertKind]int{}, Alerts: recs}
        for _, a := range recs { pa.Counts[a.Kind]++ }

        recipient := fixed
        if recipient == "" {
            lead, err := s.src.ProjectLead(ctx, key)
            if err != nil { return nil, fmt.Errorf("resolve lead for project %s: %w", key, err) }
            recipient = lead.Email
            pa.LeadName = lead.Name
            pa.ProjectName = lead.ProjectName
        }

        d, ok := byRecipient[recipient]
        if !ok {
            d = &domain.RecipientDigest{Recipient: recipient}
            byRecipient[recipient] = d
            order = append(order, recipient)
        }
        d.Projects = append(d.Projects, pa)
    }

    out := make([]domain.RecipientDigest, 0, len(order))
    for _, r := range order { out = append(out, *byRecipient[r]) }
    return out, nil
}

// renderDigest builds the plain-text body: a summary block per project
// (per-rule counts, project and lead names) followed by the alert messages.
func renderDigest(d domain.RecipientDigest) string {
    b := &strings.Builder{}
    fmt.Fprintf(b, "%s\n\n", digestSubject)
    for _, p := range d.Projects {
        name := p.ProjectName
        if name == "" { name = p.Key }
        fmt.Fprintf(b, "Project %s (%s)\n", p.Key, name)
        if p.LeadName != "" { fmt.Fprintf(b, "Lead: %s\n", p.LeadName) }
        for _, k := range domain.AlertKinds {
            if c := p.Counts[k]; c > 0 { fmt.Fprintf(b, "  %s: %d\n", k, c) }
        }
        b.WriteString("\n")
        for _, a := range p.Alerts { fmt.Fprintf(b, "- %s\n", a.Message) }
        b.WriteString("\n")
    }
    return b.String()
}
