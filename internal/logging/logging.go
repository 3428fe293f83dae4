package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. format is "json" or "text"; empty picks
// text in development and JSON otherwise.
func New(level, format string, isDevelopment bool) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, format, isDevelopment)
}

// NewWithOutput is New writing to out.
func NewWithOutput(out io.Writer, level, format string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if level == "" {
		if isDevelopment {
			level = "debug"
		} else {
			level = "info"
		}
	}

	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("Invalid LOG_LEVEL, using INFO")
	}

	format = strings.ToLower(format)
	if format == "json" || (format == "" && !isDevelopment) {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return log
}

// Component returns an entry tagged with the component name.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
