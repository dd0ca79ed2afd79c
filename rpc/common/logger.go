package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// logOutput is the writer all loggers created by CreateLogger write to
var logOutput io.Writer = os.Stdout

// SetLogOutput changes where loggers write to. It only affects loggers created afterwards,
// so it has to be called before InitLoggers. The cli uses it to keep stdout free for results.
func SetLogOutput(w io.Writer) {
	logOutput = w
}

// noraLogger implements the ILogger interface with custom formatting
type noraLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *noraLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *noraLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *noraLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *noraLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *noraLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

func (l *noraLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", "PANIC", l.name, message)
	panic(message)
}

// logf writes the message if the logger is configured for the given level
func (l *noraLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelNames[level], l.name, message)
}

var levelNames = map[logger.LogLevel]string{
	logger.DEBUG:   "DEBUG",
	logger.INFO:    "INFO",
	logger.WARNING: "WARN",
	logger.ERROR:   "ERROR",
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements dragonboats logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return &noraLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(logOutput, "", log.Ldate|log.Ltime),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom logger factory and sets the level of all known loggers.
// It panics if level is not one of debug, info, warn, error.
func InitLoggers(level string) {
	logLevel := parseLogLevel(level)

	// Set as the global logger factory for Dragonboat
	logger.SetLoggerFactory(CreateLogger)

	// Configure Dragonboat loggers
	for _, name := range []string{"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb"} {
		logger.GetLogger(name).SetLevel(logLevel)
	}

	// Configure nora loggers
	for _, name := range []string{"store", "database", "realtime", "storage", "firebasedb", "rpc", "transport/rpc", "server"} {
		logger.GetLogger(name).SetLevel(logLevel)
	}
}
