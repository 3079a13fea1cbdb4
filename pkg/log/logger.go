package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(io.Discard, LevelInfo)
)

// GetLogger returns the process-wide default logger.
// Until SetupLogger or SetLogger is called, records are discarded.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide default logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// SetupLogger installs a zerolog logger on stderr at the given level and
// routes pkg/errors warnings through it.
func SetupLogger(loglevel string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	zl := NewZerologLogger(os.Stderr, level)
	SetLogger(zl)
	errors.SetZerologWarnFunc(zl.warn)
	return nil
}

// ToLogLevel parses "debug", "info", "warn" or "error".
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", fmt.Sprintf("invalid log level %q", level), level)
	}
}
