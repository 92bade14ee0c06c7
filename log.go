package framejob

import (
	"fmt"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
	"golang.org/x/xerrors"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Public
//
//
//
//////////////////////////////////////////////////////////////////////////////

// Level represents a logging level.
type Level uint32

// Possible logging levels. A logger prints messages at its own level and every
// level below it.
const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
)

// LoggerInterface is an interface that should be implemented by loggers used
// with the library. Logger provides a basic implementation, but it's also
// compatible with libraries such as Logrus.
type LoggerInterface interface {
	Debugf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

// Logger is a basic implementation of LoggerInterface.
type Logger struct {
	// Level is the minimum logging level that will be emitted by this logger.
	//
	// For example, a Level set to LevelWarn will emit warnings and errors, but
	// not information or debug messages.
	//
	// Always set this with a constant like LevelWarn because the underlying
	// values are not intended to be used directly.
	Level Level
}

// Debugf logs a debug message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.Level < LevelDebug {
		return
	}
	l.print(aurora.Blue("[DEBUG]"), format, v...)
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.Level < LevelError {
		return
	}
	l.print(aurora.Red("[ERROR]"), format, v...)
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l.Level < LevelInfo {
		return
	}
	l.print(aurora.Cyan("[INFO] "), format, v...)
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.Level < LevelWarn {
		return
	}
	l.print(aurora.Yellow("[WARN] "), format, v...)
}

// ParseLevel maps a level name like "debug" or "warn" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}

	return 0, xerrors.Errorf("unknown log level: %q", s)
}

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

func (l *Logger) print(prefix aurora.Value, format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "%v "+format+"\n", append([]interface{}{prefix}, v...)...)
}
