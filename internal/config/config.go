/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "errors"
    "fmt"
    "log"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

type Config struct {
    AppEnv   string
    Debug    bool
    TZ       string
    HTTPAddr string

    DBDSN string

    JiraBaseURL    string
    JiraPAT        string
    JiraUsername   string
    JiraPassword   string
    JiraBasicAuth  string
    JiraAPIVersion string

    StoryPointsField string
    WatchedStatuses  []string
    WorklogLimitSecs int

    EmailFrom    string
    EmailTo      string
    EmailBCC     []string
    SMTPServer   string
    SMTPPort     int
    SMTPUsername string
    SMTPPassword string

    CheckpointName string
    CheckpointFile string
    BootstrapWindow time.Duration

    AuditCron   string
    Workers     int
    HTTPTimeout time.Duration

    LogFile string
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func boolean(key string, def bool) bool {
    v := strings.TrimSpace(os.Getenv(key))
    if v == "" { return def }
    b, err := strconv.ParseBool(v)
    if err != nil { return def }
    return b
}

func parseStrings(csv string) []string {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

func Load() Config {
    // .env is optional; real deployments configure the environment directly
    _ = godotenv.Load()

    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        Debug:    boolean("APP_DEBUG", false),
        TZ:       getenv("APP_TZ", "UTC"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        DBDSN: getenv("DB_DSN", ""),

        JiraBaseURL:    getenv("JIRA_BASE_URL", ""),
        JiraPAT:        getenv("JIRA_PAT", ""),
        JiraUsername:   getenv("JIRA_USERNAME", ""),
        JiraPassword:   getenv("JIRA_PASSWORD", ""),
        JiraBasicAuth:  strings.TrimSpace(getenv("JIRA_BASIC_AUTH", "")),
        JiraAPIVersion: getenv("JIRA_API_VERSION", "3"),

        StoryPointsField: getenv("JIRA_STORY_POINTS_FIELD", "customfield_10016"),
        WatchedStatuses:  parseStrings(getenv("WATCHED_STATUSES", "Done,Ready for QA")),
        WorklogLimitSecs: atoi("WORKLOG_LIMIT_SECONDS", 16*60*60),

        EmailFrom:    getenv("EMAIL_FROM", ""),
        EmailTo:      getenv("EMAIL_TO", ""),
        EmailBCC:     parseStrings(getenv("EMAIL_BCC", "")),
        SMTPServer:   getenv("SMTP_SERVER", ""),
        SMTPPort:     atoi("SMTP_PORT", 587),
        SMTPUsername: getenv("SMTP_USERNAME", ""),
        SMTPPassword: getenv("SMTP_PASSWORD", ""),

        CheckpointName:  getenv("CHECKPOINT_NAME", "jira-audit"),
        CheckpointFile:  getenv("CHECKPOINT_FILE", "last_run.json"),
        BootstrapWindow: dur("BOOTSTRAP_WINDOW", time.Hour),

        AuditCron:   getenv("CRON_SPEC", "*/15 * * * *"),
        Workers:     atoi("MAX_CONCURRENCY", 8),
        HTTPTimeout: dur("HTTP_TIMEOUT", 15*time.Second),

        LogFile: getenv("LOG_FILE", ""),
    }

    // set global timezone if available
    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    } else {
        log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
    }
    return cfg
}

// Validate fails fast on missing required settings so a misconfigured
// deployment never reaches the first fetch.
func (c Config) Validate() error {
    var missing []string
    if strings.TrimSpace(c.JiraBaseURL) == "" { missing = append(missing, "JIRA_BASE_URL") }
    if c.JiraPAT == "" && c.JiraBasicAuth == "" && (c.JiraUsername == "" || c.JiraPassword == "") {
        missing = append(missing, "JIRA_PAT, JIRA_BASIC_AUTH or JIRA_USERNAME/JIRA_PASSWORD")
    }
    if len(c.WatchedStatuses) == 0 { missing = append(missing, "WATCHED_STATUSES") }
    if !c.Debug {
        if strings.TrimSpace(c.EmailFrom) == "" { missing = append(missing, "EMAIL_FROM") }
        if len(c.EmailBCC) == 0 { missing = append(missing, "EMAIL_BCC") }
        if strings.TrimSpace(c.SMTPServer) == "" { missing = append(missing, "SMTP_SERVER") }
        if strings.TrimSpace(c.DBDSN) == "" { missing = append(missing, "DB_DSN") }
    }
    if len(missing) > 0 {
        return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
    }
    if c.WorklogLimitSecs <= 0 { return errors.New("config: WORKLOG_LIMIT_SECONDS must be positive") }
    if c.BootstrapWindow <= 0 { return errors.New("config: BOOTSTRAP_WINDOW must be positive") }
    return nil
}
