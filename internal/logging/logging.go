package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"recollect-worker/internal/config"
)

// Setup configures the standard logrus logger. When a log file is configured
// output is duplicated to a size-rotated file.
func Setup(cfg config.LogConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.File == "" {
		logrus.SetOutput(os.Stdout)
		return
	}

	logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}))
}

// RetryableHTTPLogger adapts logrus to the leveled logger interface used by
// go-retryablehttp.
type RetryableHTTPLogger struct {
	Entry *logrus.Entry
}

func (l RetryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l RetryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

func (l RetryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l RetryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l RetryableHTTPLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	e := l.Entry
	if e == nil {
		e = logrus.NewEntry(logrus.StandardLogger())
	}
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return e.WithFields(fields)
}
