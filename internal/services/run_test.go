package services

import (
    "context"
    "errors"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/checkpoint"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/domain"
)

type fakeStore struct {
    mu      sync.Mutex
    last    time.Time
    readErr error
    wrote   *time.Time
}

func (f *fakeStore) Read(ctx context.Context) (time.Time, error) {
    if f.readErr != nil { return time.Time{}, f.readErr }
    return f.last, nil
}

func (f *fakeStore) Write(ctx context.Context, t time.Time) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.wrote = &t
    return nil
}

type fakeSink struct {
    mu        sync.Mutex
    delivered []string
    bodies    []string
    failFor   string
}

func (f *fakeSink) Deliver(ctx context.Context, recipient, subject, body string, html bool) error {
    f.mu.Lock(); defer f.mu.Unlock()
    if recipient == f.failFor { return errors.New("smtp unavailable") }
    f.delivered = append(f.delivered, recipient)
    f.bodies = append(f.bodies, body)
    return nil
}

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestRunAudit_ZeroAlertsStillAdvancesCheckpoint(t *testing.T) {
    store := &fakeStore{last: fixedNow().Add(-30 * time.Minute)}
    sink := &fakeSink{}
    svc := newTestService(&fakeSource{}, store, sink)
    svc.now = fixedNow

    msg, err := svc.RunAudit(context.Background())
    if err != nil { t.Fatal(err) }
    if !strings.Contains(msg, "0 alerts") { t.Fatalf("unexpected message: %s", msg) }
    if len(sink.delivered) != 0 { t.Fatalf("empty digests must not be delivered: %v", sink.delivered) }
    if store.wrote == nil || !store.wrote.Equal(fixedNow()) {
        t.Fatalf("checkpoint must advance to run start, got %v", store.wrote)
    }
}

func TestRunAudit_FutureCheckpointNeverRegresses(t *testing.T) {
    store := &fakeStore{last: fixedNow().Add(5 * time.Minute)}
    src := &fakeSource{}
    svc := newTestService(src, store, &fakeSink{})
    svc.now = fixedNow

    if _, err := svc.RunAudit(context.Background()); err != nil { t.Fatal(err) }
    if src.lastWindow != "-0m" { t.Fatalf("future checkpoint must clamp the window, got %q", src.lastWindow) }
    if store.wrote != nil {
        t.Fatalf("checkpoint must never move backwards, wrote %v over %v", store.wrote, store.last)
    }
}

func TestRunAudit_BootstrapWindowIsOneHour(t *testing.T) {
    store := &fakeStore{readErr: checkpoint.ErrNotFound}
    src := &fakeSource{}
    svc := newTestService(src, store, &fakeSink{})
    svc.now = fixedNow

    if _, err := svc.RunAudit(context.Background()); err != nil { t.Fatal(err) }
    if src.lastWindow != "-60m" { t.Fatalf("bootstrap window must be one hour, got %q", src.lastWindow) }
}

func TestRunAudit_PrimaryFetchFailureKeepsCheckpoint(t *testing.T) {
    store := &fakeStore{last: fixedNow().Add(-30 * time.Minute)}
    src := &fakeSource{worklogErr: errors.New("jira 503")}
    svc := newTestService(src, store, &fakeSink{})
    svc.now = fixedNow

    if _, err := svc.RunAudit(context.Background()); err == nil {
        t.Fatal("expected run failure on primary fetch error")
    }
    if store.wrote != nil { t.Fatalf("checkpoint must not advance, wrote %v", store.wrote) }
}

func statusIssuesForTwoProjects() []domain.Issue {
    return []domain.Issue{
        {ID: "1", Key: "A-1", Status: "Done", Project: domain.Project{Key: "A"}},
        {ID: "2", Key: "B-1", Status: "Done", Project: domain.Project{Key: "B"}},
    }
}

func TestRunAudit_PartialDeliveryFailureKeepsCheckpoint(t *testing.T) {
    store := &fakeStore{last: fixedNow().Add(-30 * time.Minute)}
    src := &fakeSource{
        statusIssues: statusIssuesForTwoProjects(),
        devSummary: map[string]*domain.DevelopmentSummary{
            "1": {HasLink: true},
            "2": {HasLink: true},
        },
        leads: map[string]*domain.ProjectLead{
            "A": {Email: "lead-a@example.com", Name: "Lead A", ProjectName: "Alpha"},
            "B": {Email: "lead-b@example.com", Name: "Lead B", ProjectName: "Beta"},
        },
    }
    sink := &fakeSink{failFor: "lead-b@example.com"}
    svc := newTestService(src, store, sink)
    svc.now = fixedNow

    if _, err := svc.RunAudit(context.Background()); err == nil {
        t.Fatal("expected run failure when one recipient fails")
    }
    if store.wrote != nil {
        t.Fatalf("partial delivery must leave the checkpoint untouched, wrote %v", store.wrote)
    }
}

func TestRunAudit_DeliveredAlertsAdvanceCheckpoint(t *testing.T) {
    store := &fakeStore{last: fixedNow().Add(-30 * time.Minute)}
    src := &fakeSource{
        statusIssues: statusIssuesForTwoProjects(),
        devSummary: map[string]*domain.DevelopmentSummary{
            "1": {HasLink: true},
            "2": {HasLink: true},
        },
        leads: map[string]*domain.ProjectLead{
            "A": {Email: "lead-a@example.com", Name: "Lead A", ProjectName: "Alpha"},
            "B": {Email: "lead-b@example.com", Name: "Lead B", ProjectName: "Beta"},
        },
    }
    sink := &fakeSink{}
    svc := newTestService(src, store, sink)
    svc.now = fixedNow

    if _, err := svc.RunAudit(context.Background()); err != nil { t.Fatal(err) }
    if len(sink.delivered) != 2 { t.Fatalf("expected 2 digests, delivered %v", sink.delivered) }
    if store.wrote == nil || !store.wrote.Equal(fixedNow()) {
        t.Fatalf("checkpoint must advance after full delivery, got %v", store.wrote)
    }
    for _, body := range sink.bodies {
        if !strings.Contains(body, "story point estimate") {
            t.Fatalf("digest body missing alert text:\n%s", body)
        }
    }
}
