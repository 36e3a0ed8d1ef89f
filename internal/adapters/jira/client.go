/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/domain"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL string
    token   string
    basic   string
    user    string
    pass    string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string

    pointsField string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        token:   cfg.JiraPAT,
        basic:   cfg.JiraBasicAuth,
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    &http.Client{ Timeout: cfg.HTTPTimeout },
        log:     log,
        apiVer:  cfg.JiraAPIVersion,

        pointsField: cfg.StoryPointsField,
    }
}

func (c *Client) apiPath(suffix string) string {
    if c.apiVer == "2" { return "/rest/api/2" + suffix }
    return "/rest/api/3" + suffix
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if body != nil {
            b, err := json.Marshal(body)
            if err != nil { return nil, err }
            r = strings.NewReader(string(b))
        }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if body != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" {
            req.Header.Set("Authorization", "Bearer "+c.token)
        } else if c.user != "" && c.pass != "" {
            req.SetBasicAuth(c.user, c.pass)
        } else if c.basic != "" {
            req.Header.Set("Authorization", "Basic "+c.basic)
        }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            defer resp.Body.Close()
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

const searchFields = "summary,comment,worklog,status,project,parent"

func (c *Client) search(ctx context.Context, jql string, startAt, max int) (map[string]any, error) {
    fields := searchFields + "," + c.pointsField
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", fields)
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, http.MethodGet, u, nil)
    }
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": strings.Split(fields, ",")}
    u := c.apiURL("/rest/api/3/search", nil)
    return c.doJSON(ctx, http.MethodPost, u, body)
}

func (c *Client) searchIssues(ctx context.Context, jql string) ([]domain.Issue, error) {
    var out []domain.Issue
    startAt := 0
    for {
        page, err := c.search(ctx, jql, startAt, 100)
        if err != nil { return nil, err }
        arr, _ := page["issues"].([]any)
        if len(arr) == 0 { break }
        for _, it := range arr {
            if im, _ := it.(map[string]any); im != nil {
                out = append(out, c.parseIssue(im))
            }
        }
        total, _ := page["total"].(float64)
        startAtResp, _ := page["startAt"].(float64)
        maxResp, _ := page["maxResults"].(float64)
        if total == 0 { break }
        next := int(startAtResp) + int(maxResp)
        if float64(next) >= total { break }
        startAt = next
    }
    return out, nil
}

// WorklogChangedIssues returns issues with worklog activity inside the
// relative window (a "-Nm" JQL offset).
func (c *Client) WorklogChangedIssues(ctx context.Context, window string) ([]domain.Issue, error) {
    jql := fmt.Sprintf("worklogDate >= %q", window)
    return c.searchIssues(ctx, jql)
}

// StatusChangedIssues returns issues whose status changed to one of the
// watched statuses inside the relative window.
func (c *Client) StatusChangedIssues(ctx context.Context, window string, statuses []string) ([]domain.Issue, error) {
    quoted := make([]string, 0, len(statuses))
    for _, s := range statuses {
        s = strings.TrimSpace(s)
        if s == "" { continue }
        quoted = append(quoted, fmt.Sprintf("%q", s))
    }
    if len(quoted) == 0 { return nil, errors.New("jira: no watched statuses") }
    jql := fmt.Sprintf("status changed to (%s) after %q", strings.Join(quoted, ", "), window)
    return c.searchIssues(ctx, jql)
}

// DevelopmentSummary answers whether an issue carries a linked branch,
// commit, or PR. A nil summary means Jira reported no development data.
func (c *Client) DevelopmentSummary(ctx context.Context, issueID string) (*domain.DevelopmentSummary, error) {
    if issueID == "" { return nil, errors.New("jira: empty issue id") }
    q := url.Values{}
    q.Set("issueId", issueID)
    u := c.apiURL("/rest/dev-status/latest/issue/summary", q)
    out, err := c.doJSON(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    sum, _ := out["summary"].(map[string]any)
    if sum == nil { return nil, nil }
    has := false
    if br, ok := sum["branch"].(map[string]any); ok {
        if ov, ok := br["overall"].(map[string]any); ok {
            if cnt, ok := ov["count"].(float64); ok && cnt > 0 { has = true }
        }
    }
    return &domain.DevelopmentSummary{HasLink: has}, nil
}

// AllWorklogs pages through every worklog entry on the issue.
func (c *Client) AllWorklogs(ctx context.Context, issueID string) ([]domain.WorklogEntry, error) {
    if issueID == "" { return nil, errors.New("jira: empty issue id") }
    var out []domain.WorklogEntry
    startAt := 0
    for {
        q := url.Values{}
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        q.Set("maxResults", "100")
        u := c.apiURL(c.apiPath("/issue/"+url.PathEscape(issueID)+"/worklog"), q)
        wm, err := c.doJSON(ctx, http.MethodGet, u, nil)
        if err != nil { return nil, err }
        warr, _ := wm["worklogs"].([]any)
        if len(warr) == 0 { break }
        for _, w0 := range warr {
            if wi, _ := w0.(map[string]any); wi != nil {
                out = append(out, parseWorklog(wi))
            }
        }
        total, _ := wm["total"].(float64)
        startAtResp, _ := wm["startAt"].(float64)
        maxResp, _ := wm["maxResults"].(float64)
        if total == 0 { break }
        next := int(startAtResp) + int(maxResp)
        if float64(next) >= total { break }
        startAt = next
    }
    return out, nil
}

// ProjectLead resolves the lead contact for a project.
func (c *Client) ProjectLead(ctx context.Context, projectKey string) (*domain.ProjectLead, error) {
    if projectKey == "" { return nil, errors.New("jira: empty project key") }
    u := c.apiURL(c.apiPath("/project/"+url.PathEscape(projectKey)), nil)
    out, err := c.doJSON(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    lead, _ := out["lead"].(map[string]any)
    pl := &domain.ProjectLead{
        Email:       toStrAny(lead["emailAddress"]),
        Name:        toStrAny(lead["displayName"]),
        ProjectName: toStrAny(out["name"]),
    }
    if pl.Email == "" {
        return nil, fmt.Errorf("jira: project %s lead has no email address", projectKey)
    }
    return pl, nil
}

func (c *Client) parseIssue(im map[string]any) domain.Issue {
    fields, _ := im["fields"].(map[string]any)
    iss := domain.Issue{
        ID:  toStrAny(im["id"]),
        Key: toStrAny(im["key"]),
    }
    if st, ok := fields["status"].(map[string]any); ok { iss.Status = toStrAny(st["name"]) }
    if pj, ok := fields["project"].(map[string]any); ok {
        iss.Project = domain.Project{Key: toStrAny(pj["key"]), Name: toStrAny(pj["name"])}
    }
    if pa, ok := fields["parent"].(map[string]any); ok { iss.ParentID = toStrAny(pa["id"]) }
    if v, ok := fields[c.pointsField].(float64); ok { tmp := v; iss.Estimate = &tmp }
    if wl, ok := fields["worklog"].(map[string]any); ok {
        if warr, ok := wl["worklogs"].([]any); ok {
            for _, w0 := range warr {
                if wi, _ := w0.(map[string]any); wi != nil {
                    iss.Worklogs = append(iss.Worklogs, parseWorklog(wi))
                }
            }
        }
    }
    return iss
}

func parseWorklog(wi map[string]any) domain.WorklogEntry {
    w := domain.WorklogEntry{Updated: parseTimeUTC(wi["updated"])}
    if v, ok := wi["timeSpentSeconds"].(float64); ok { w.Seconds = int(v) }
    w.Comment = commentText(wi["comment"])
    return w
}

// commentText flattens a worklog comment: plain string in API v2, an ADF
// document in v3.
func commentText(v any) string {
    switch t := v.(type) {
    case string:
        return strings.TrimSpace(t)
    case map[string]any:
        b := &strings.Builder{}
        adfText(t, b)
        return strings.TrimSpace(b.String())
    }
    return ""
}

func adfText(node map[string]any, b *strings.Builder) {
    if s, ok := node["text"].(string); ok { b.WriteString(s) }
    if content, ok := node["content"].([]any); ok {
        for _, c0 := range content {
            if cn, _ := c0.(map[string]any); cn != nil { adfText(cn, b) }
        }
    }
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}
