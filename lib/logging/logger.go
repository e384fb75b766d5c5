package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ParseLogLevel converts a string level to a LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warning", "warn":
		return WARNING
	case "error":
		return ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger Interface
// --------------------------------------------------------------------------

// ILogger is the leveled logger used throughout the library.
type ILogger interface {
	SetLevel(level LogLevel)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// Fatalf logs the message and terminates the process. It is used for
	// conditions the caller cannot recover from locally (corruption,
	// resource exhaustion, lock failures on an open dictionary).
	Fatalf(format string, args ...interface{})
	// Panicf reports a programming error (a caller bug, never a runtime
	// failure) by panicking with the formatted message.
	Panicf(format string, args ...interface{})
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

// lmdictLogger implements the ILogger interface with custom formatting
type lmdictLogger struct {
	name   string
	level  LogLevel
	logger *log.Logger
}

func (l *lmdictLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *lmdictLogger) Debugf(format string, args ...interface{}) {
	if l.level >= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *lmdictLogger) Infof(format string, args ...interface{}) {
	if l.level >= INFO {
		l.log("INFO", format, args...)
	}
}

func (l *lmdictLogger) Warningf(format string, args ...interface{}) {
	if l.level >= WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *lmdictLogger) Errorf(format string, args ...interface{}) {
	if l.level >= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *lmdictLogger) Fatalf(format string, args ...interface{}) {
	FatalfHook(l, format, args...)
}

func (l *lmdictLogger) Panicf(format string, args ...interface{}) {
	PanicfHook(l, format, args...)
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *lmdictLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Fatal/Panic Hooks
// --------------------------------------------------------------------------

// FatalfHook and PanicfHook implement the terminal log paths. They are
// package variables so the test suites can intercept conditions that would
// otherwise end the test process.
var (
	FatalfHook = func(l ILogger, format string, args ...interface{}) {
		if impl, ok := l.(*lmdictLogger); ok {
			impl.log("FATAL", format, args...)
		}
		os.Exit(1)
	}

	PanicfHook = func(l ILogger, format string, args ...interface{}) {
		panic(fmt.Sprintf(format, args...))
	}
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var loggers = xsync.NewMapOf[string, *lmdictLogger]()

var defaultLevel atomic.Int64

func init() {
	defaultLevel.Store(int64(INFO))
}

// GetLogger returns the named logger, creating it on first use. Loggers are
// shared, so a SetLevel on one call site is visible everywhere.
func GetLogger(pkgName string) ILogger {
	l, _ := loggers.LoadOrCompute(pkgName, func() *lmdictLogger {
		return &lmdictLogger{
			name:   pkgName,
			level:  LogLevel(defaultLevel.Load()),
			logger: log.New(os.Stderr, "", log.Ldate|log.Ltime),
		}
	})
	return l
}

// SetGlobalLevel sets the level of every logger created so far and the level
// new loggers start with.
func SetGlobalLevel(level LogLevel) {
	defaultLevel.Store(int64(level))
	loggers.Range(func(_ string, l *lmdictLogger) bool {
		l.SetLevel(level)
		return true
	})
}
