package logger

import (
    "io"
    "os"
    "time"

    "github.com/jawaidgadiwala/jira-auditor-lambda/internal/config"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "gopkg.in/natefinch/lumberjack.v2"
)

func New(cfg config.Config) zerolog.Logger {
    var out io.Writer = os.Stdout
    if cfg.AppEnv == "dev" {
        out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
    } else {
        zerolog.TimeFieldFormat = time.RFC3339
    }
    if cfg.LogFile != "" {
        rotated := &lumberjack.Logger{Filename: cfg.LogFile, MaxSize: 50, MaxBackups: 7, MaxAge: 28}
        out = zerolog.MultiLevelWriter(out, rotated)
    }
    logger := zerolog.New(out).With().Timestamp().Logger()
    log.Logger = logger
    return logger
}
