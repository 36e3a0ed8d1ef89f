package domain

import "time"

// AlertKind enumerates the audit rules that can raise an alert.
type AlertKind string

const (
    AlertWorklogMissingComment AlertKind = "worklog_missing_comment"
    AlertWorklogExcessiveTotal AlertKind = "worklog_excessive_total"
    AlertNoDevelopmentLink     AlertKind = "no_development_link"
    AlertStoryPointsMissing    AlertKind = "story_points_missing"
)

// AlertKinds is the stable rendering order for digest counts.
var AlertKinds = []AlertKind{
    AlertWorklogMissingComment,
    AlertWorklogExcessiveTotal,
    AlertNoDevelopmentLink,
    AlertStoryPointsMissing,
}

type Project struct {
    Key  string
    Name string
}

type Issue struct {
    ID       string
    Key      string
    Status   string
    Project  Project
    ParentID string
    Estimate *float64
    Worklogs []WorklogEntry
}

type WorklogEntry struct {
    Seconds int
    Updated *time.Time
    Comment string
}

// DevelopmentSummary is decided once at the adapter boundary; downstream
// code only ever sees the boolean.
type DevelopmentSummary struct {
    HasLink bool
}

type ProjectLead struct {
    Email       string
    Name        string
    ProjectName string
}

type AlertRecord struct {
    Kind       AlertKind
    ProjectKey string
    IssueKey   string
    Message    string
}

type ProjectAlerts struct {
    Key         string
    ProjectName string
    LeadName    string
    Counts      map[AlertKind]int
    Alerts      []AlertRecord
}

type RecipientDigest struct {
    Recipient string
    Projects  []ProjectAlerts
}
