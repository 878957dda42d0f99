package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel, false)
	ErrorLogger = newLogger(os.Stderr, logrus.ErrorLevel, false)
)

func newLogger(out io.Writer, level logrus.Level, asJSON bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if asJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return l
}

// InitLogger rebuilds both loggers. level is a logrus level name ("debug",
// "info", ...); unknown names fall back to info.
func InitLogger(level string, asJSON bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	// InfoLogger ke stdout, ErrorLogger ke stderr
	InfoLogger = newLogger(os.Stdout, lvl, asJSON)
	ErrorLogger = newLogger(os.Stderr, logrus.WarnLevel, asJSON)
}

// SilenceLoggers discards all output. Used by tests.
func SilenceLoggers() {
	InfoLogger = newLogger(io.Discard, logrus.DebugLevel, false)
	ErrorLogger = newLogger(io.Discard, logrus.DebugLevel, false)
}
