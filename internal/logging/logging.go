package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var levels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
	"fatal": log.FatalLevel,
}

// ParseLevel maps a config level name to a log level.
func ParseLevel(name string) (log.Level, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// Setup configures the default logger: timestamps, stderr output and the
// given level.
func Setup(level string) error {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)
	lvl, err := ParseLevel(level)
	log.SetLevel(lvl)
	return err
}
