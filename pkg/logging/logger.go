// Package logging builds the process logger and its console formatter.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// New creates a logger writing to out. level is a logrus level name and
// falls back to info; format "json" selects logrus.JSONFormatter, anything
// else the colored console format.
func New(out io.Writer, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		formatter := NewColoredJSONFormatter()
		formatter.DisableColors = !isTerminal(out)
		log.SetFormatter(formatter)
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		if level != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": level,
				"default_level":   "INFO",
			}).Warn("Invalid log level specified, defaulting to INFO")
		}
		return log
	}
	log.SetLevel(parsed)
	return log
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT
func FromEnv(out io.Writer) *logrus.Logger {
	return New(out, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
