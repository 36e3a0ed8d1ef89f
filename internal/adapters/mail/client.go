/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package mail

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "net"
    "net/smtp"
    "strings"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/rs/zerolog"
)

// SMTP delivers digests over plain SMTP with STARTTLS when offered.
type SMTP struct {
    host    string
    port    int
    user    string
    pass    string
    from    string
    bcc     []string
    timeout time.Duration
    log     zerolog.Logger
}

func NewSMTP(cfg config.Config, log zerolog.Logger) *SMTP {
    return &SMTP{
        host:    cfg.SMTPServer,
        port:    cfg.SMTPPort,
        user:    cfg.SMTPUsername,
        pass:    cfg.SMTPPassword,
        from:    cfg.EmailFrom,
        bcc:     cfg.EmailBCC,
        timeout: cfg.HTTPTimeout,
        log:     log,
    }
}

func (m *SMTP) Deliver(ctx context.Context, recipient, subject, body string, html bool) error {
    if !strings.Contains(recipient, "@") {
        return fmt.Errorf("mail: invalid recipient address: %s", recipient)
    }
    if m.host == "" || m.from == "" { return errors.New("mail: missing SMTP server or sender") }

    addr := fmt.Sprintf("%s:%d", m.host, m.port)
    d := net.Dialer{Timeout: m.timeout}
    conn, err := d.DialContext(ctx, "tcp", addr)
    if err != nil { return fmt.Errorf("mail: dial %s: %w", addr, err) }
    defer conn.Close()
    if dl, ok := ctx.Deadline(); ok {
        _ = conn.SetDeadline(dl)
    } else {
        _ = conn.SetDeadline(time.Now().Add(m.timeout))
    }

    cl, err := smtp.NewClient(conn, m.host)
    if err != nil { return err }
    defer cl.Close()
    if ok, _ := cl.Extension("STARTTLS"); ok {
        if err := cl.StartTLS(&tls.Config{ServerName: m.host}); err != nil { return err }
    }
    if m.user != "" {
        if err := cl.Auth(smtp.PlainAuth("", m.user, m.pass, m.host)); err != nil { return err }
    }
    if err := cl.Mail(m.from); err != nil { return err }
    for _, rcpt := range append([]string{recipient}, m.bcc...) {
        if err := cl.Rcpt(rcpt); err != nil { return fmt.Errorf("mail: rcpt %s: %w", rcpt, err) }
    }
    w, err := cl.Data()
    if err != nil { return err }
    ctype := "text/plain"
    if html { ctype = "text/html" }
    msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s; charset=utf-8\r\n\r\n%s\r\n",
        m.from, recipient, subject, ctype, body)
    if _, err := w.Write([]byte(msg)); err != nil { return err }
    if err := w.Close(); err != nil { return err }
    if err := cl.Quit(); err != nil { return err }
    m.log.Info().Str("to", recipient).Int("bcc", len(m.bcc)).Msg("mail: digest delivered")
    return nil
}

// LogSink writes deliveries to the log instead of the wire. Selected once at
// startup when the debug flag is set.
type LogSink struct {
    log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

func (l *LogSink) Deliver(ctx context.Context, recipient, subject, body string, html bool) error {
    l.log.Info().Str("to", recipient).Str("subject", subject).Bool("html", html).Msg("debug delivery:\n" + body)
    return nil
}
