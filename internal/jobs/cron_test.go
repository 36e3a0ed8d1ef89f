package jobs

import (
    "context"
    "testing"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/rs/zerolog"
)

type noopService struct{}

func (noopService) RunAudit(ctx context.Context) (string, error) { return "", nil }

func TestNewCron_RegistersSchedule(t *testing.T) {
    cfg := config.Config{TZ: "UTC", AuditCron: "*/15 * * * *"}
    cr := NewCron(cfg, zerolog.Nop(), noopService{}, nil)
    if got := len(cr.c.Entries()); got != 1 {
        t.Fatalf("expected 1 scheduled entry, got %d", got)
    }
}

func TestNewCron_InvalidSpecRegistersNothing(t *testing.T) {
    cfg := config.Config{TZ: "UTC", AuditCron: "not a schedule"}
    cr := NewCron(cfg, zerolog.Nop(), noopService{}, nil)
    if got := len(cr.c.Entries()); got != 0 {
        t.Fatalf("invalid spec must register no entries, got %d", got)
    }
}
