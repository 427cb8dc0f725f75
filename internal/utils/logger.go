package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger defines a simple interface for logging.
// This allows for easy replacement with a more sophisticated logger if needed.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
}

// defaultLogger is a basic implementation of the Logger interface.
type defaultLogger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	fatalLogger *log.Logger
	logLevel    LogLevel
	noColor     bool
	silent      bool
}

// LogLevel defines the verbosity of the logger.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorDim    = "\033[2m"
)

// Callbacks run around every log line so a live progress bar can get out of the way.
var (
	callbacksMu   sync.RWMutex
	beforeLogHook func()
	afterLogHook  func()
)

// RegisterLogCallbacks installs functions called before and after each log line.
func RegisterLogCallbacks(before, after func()) {
	callbacksMu.Lock()
	defer callbacksMu.Unlock()
	beforeLogHook = before
	afterLogHook = after
}

// UnregisterLogCallbacks removes any installed log callbacks.
func UnregisterLogCallbacks() {
	RegisterLogCallbacks(nil, nil)
}

func colorize(s string, color string, noColor bool) string {
	if noColor {
		return s
	}
	return color + s + colorReset
}

// NewDefaultLogger creates a console logger. Debug/info/warn go to stdout, error/fatal to stderr.
// Colours are dropped automatically when stdout is not a terminal.
func NewDefaultLogger(level LogLevel, noColor bool, silent bool) Logger {
	return NewLoggerWithWriters(level, noColor || !IsTerminal(os.Stdout.Fd()), silent, os.Stdout, os.Stderr)
}

// NewLoggerWithWriters is NewDefaultLogger with explicit destinations.
func NewLoggerWithWriters(level LogLevel, noColor bool, silent bool, out, errOut io.Writer) Logger {
	var debugOut, infoOut, warnOut = out, out, out
	if silent {
		debugOut = io.Discard
		infoOut = io.Discard
		warnOut = io.Discard
	}

	return &defaultLogger{
		debugLogger: log.New(debugOut, "", 0),
		infoLogger:  log.New(infoOut, "", 0),
		warnLogger:  log.New(warnOut, "", 0),
		errorLogger: log.New(errOut, "", 0),
		fatalLogger: log.New(errOut, "", 0),
		logLevel:    level,
		noColor:     noColor,
		silent:      silent,
	}
}

func (l *defaultLogger) prefix(levelStr, levelColor string) string {
	currentTime := time.Now().Format("15:04:05")
	return fmt.Sprintf("%s [%s] ",
		colorize(fmt.Sprintf("[%s]", currentTime), colorDim, l.noColor),
		colorize(levelStr, levelColor, l.noColor),
	)
}

func (l *defaultLogger) logInternal(logger *log.Logger, levelStr string, levelColor string, format string, v ...interface{}) {
	callbacksMu.RLock()
	before, after := beforeLogHook, afterLogHook
	callbacksMu.RUnlock()

	if before != nil {
		before()
	}
	logger.Print(l.prefix(levelStr, levelColor) + fmt.Sprintf(format, v...))
	if after != nil {
		after()
	}
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	if l.logLevel <= LevelDebug {
		l.logInternal(l.debugLogger, "DEBUG", colorBlue, format, v...)
	}
}

func (l *defaultLogger) Infof(format string, v ...interface{}) {
	if l.logLevel <= LevelInfo {
		l.logInternal(l.infoLogger, "INFO", colorGreen, format, v...)
	}
}

func (l *defaultLogger) Warnf(format string, v ...interface{}) {
	if l.logLevel <= LevelWarn {
		l.logInternal(l.warnLogger, "WARN", colorYellow, format, v...)
	}
}

func (l *defaultLogger) Errorf(format string, v ...interface{}) {
	if l.logLevel <= LevelError {
		l.logInternal(l.errorLogger, "ERROR", colorRed, format, v...)
	}
}

func (l *defaultLogger) Fatalf(format string, v ...interface{}) {
	l.fatalLogger.Fatal(l.prefix("FATAL", colorRed) + fmt.Sprintf(format, v...))
}

// StringToLogLevel converts a log level string to LogLevel type.
// Defaults to LevelInfo if the string is unrecognized.
func StringToLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level string '%s', defaulting to INFO.\n", levelStr)
		return LevelInfo
	}
}

// NoOpLogger discards everything. Handy in tests.
type NoOpLogger struct{}

func (l *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (l *NoOpLogger) Infof(format string, args ...interface{})  {}
func (l *NoOpLogger) Warnf(format string, args ...interface{})  {}
func (l *NoOpLogger) Errorf(format string, args ...interface{}) {}
func (l *NoOpLogger) Fatalf(format string, args ...interface{}) {}
