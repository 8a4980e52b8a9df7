// Package log is the process-wide leveled logger of the library.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	BOLD = "\033[1m"
	DIM  = "\033[2m"

	FG_WHITE = "\033[97m"
	FG_BLACK = "\033[30m"

	BG_DGRAY  = "\033[100m"
	BG_RED    = "\033[41m"
	BG_GREEN  = "\033[42m"
	BG_YELLOW = "\033[43m"
	BG_LBLUE  = "\033[104m"

	RESET = "\033[0m"
)

// log level constants
const (
	DEBUG = iota
	INFO
	IMPORTANT
	WARNING
	ERROR
	FATAL
)

var (
	WithColors = true
	Output     = os.Stdout
	DateFormat = "2006-01-02 15:04:05"
	MinLevel   = INFO
	LogUTC     = true
	LogMicro   = false

	mutex  = &sync.RWMutex{}
	labels = map[int]string{
		DEBUG:     "DBG",
		INFO:      "INF",
		IMPORTANT: "IMP",
		WARNING:   "WAR",
		ERROR:     "ERR",
		FATAL:     "!!!",
	}
	colors = map[int]string{
		DEBUG:     DIM + FG_BLACK + BG_DGRAY,
		INFO:      FG_WHITE + BG_GREEN,
		IMPORTANT: FG_WHITE + BG_LBLUE,
		WARNING:   FG_WHITE + BG_YELLOW,
		ERROR:     FG_WHITE + BG_RED,
		FATAL:     FG_WHITE + BG_RED + BOLD,
	}
)

// Wrap wraps a text with effects
func Wrap(s, effect string) string {
	if WithColors {
		s = effect + s + RESET
	}
	return s
}

// Dim dims a text
func Dim(s string) string {
	return Wrap(s, DIM)
}

// SetLogLevel sets the log level
func SetLogLevel(newLevel int) {
	mutex.Lock()
	defer mutex.Unlock()
	MinLevel = newLevel
}

// GetLogLevel returns the current log level configured.
func GetLogLevel() int {
	mutex.RLock()
	defer mutex.RUnlock()

	return MinLevel
}

// SetLogUTC configures UTC timestamps
func SetLogUTC(newLogUTC bool) {
	mutex.Lock()
	defer mutex.Unlock()
	LogUTC = newLogUTC
}

// SetLogMicro configures microsecond timestamps
func SetLogMicro(newLogMicro bool) {
	mutex.Lock()
	defer mutex.Unlock()
	LogMicro = newLogMicro
}

// Log prints out a text with the given level color and format
func Log(level int, format string, args ...interface{}) {
	mutex.Lock()
	defer mutex.Unlock()
	if level < MinLevel {
		return
	}
	datefmt := DateFormat
	if LogMicro {
		datefmt = DateFormat + ".000000"
	}
	when := time.Now().UTC().Format(datefmt)
	if !LogUTC {
		when = time.Now().Local().Format(datefmt)
	}

	what := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(what, "\n") {
		what += "\n"
	}

	l := Dim("[%s]")
	r := Wrap(" %s ", colors[level]) + " %s"

	fmt.Fprintf(Output, l+" "+r, when, labels[level], what)
}

// Debug is the log level for debugging purposes
func Debug(format string, args ...interface{}) {
	Log(DEBUG, format, args...)
}

// Info is the log level for informative messages
func Info(format string, args ...interface{}) {
	Log(INFO, format, args...)
}

// Important is the log level for things that must pay attention
func Important(format string, args ...interface{}) {
	Log(IMPORTANT, format, args...)
}

// Warning is the log level for non-critical errors
func Warning(format string, args ...interface{}) {
	Log(WARNING, format, args...)
}

// Error is the log level for errors that should be corrected
func Error(format string, args ...interface{}) {
	Log(ERROR, format, args...)
}

// Fatal is the log level for errors that must be corrected before continue
func Fatal(format string, args ...interface{}) {
	Log(FATAL, format, args...)
	os.Exit(1)
}
