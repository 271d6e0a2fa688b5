package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const logFileName = "magiceye.log"

// setupLogging builds the process logger. An empty level falls back to
// MAGICEYE_LOG_LEVEL and then to info.
func setupLogging(levelStr string, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	if levelStr == "" {
		levelStr = os.Getenv("MAGICEYE_LOG_LEVEL")
	}
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
		defer logger.Warnf("unknown log level %q, using info", levelStr)
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(out)
	return logger
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
