package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	PROGRESS // Special level that always displays
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case PROGRESS:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format represents the log output format
type Format int

const (
	Text Format = iota
	JSON
)

// ParseFormat converts a format name to a Format, defaulting to Text
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return JSON
	}
	return Text
}

// Logger handles structured logging
type Logger struct {
	out    io.Writer
	level  Level
	format Format
	mu     sync.Mutex
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  Level
	Format Format
}

var (
	defaultLogger = New(os.Stdout, LogConfig{Level: INFO, Format: Text})

	debugColor    = color.New(color.FgCyan)
	infoColor     = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	progressColor = color.New(color.FgBlue, color.Bold)
)

// New creates a logger writing to out
func New(out io.Writer, config LogConfig) *Logger {
	return &Logger{
		out:    out,
		level:  config.Level,
		format: config.Format,
	}
}

// Configure sets up the default logger
func Configure(config LogConfig) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = config.Level
	defaultLogger.format = config.Format
}

// SetOutput redirects the default logger and returns the previous writer
func SetOutput(w io.Writer) io.Writer {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	prev := defaultLogger.out
	defaultLogger.out = w
	return prev
}

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

type logEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

func (l *Logger) log(level Level, msg string, data interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Always show PROGRESS level, otherwise respect level setting
	if level != PROGRESS && level < l.level {
		return
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")

	if l.format == JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   msg,
			Data:      data,
		}
		if err := json.NewEncoder(l.out).Encode(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode log entry: %v\n", err)
		}
		return
	}

	var levelColor *color.Color
	switch level {
	case DEBUG:
		levelColor = debugColor
	case WARN:
		levelColor = warnColor
	case ERROR:
		levelColor = errorColor
	case PROGRESS:
		levelColor = progressColor
	default:
		levelColor = infoColor
	}

	levelStr := levelColor.Sprintf("%-5s", level.String())
	fmt.Fprintf(l.out, "%s %s: %s", timestamp, levelStr, msg)
	if data != nil {
		fmt.Fprintf(l.out, " %+v", data)
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, data ...interface{}) {
	l.log(DEBUG, msg, firstOrNil(data))
}

func (l *Logger) Info(msg string, data ...interface{}) {
	l.log(INFO, msg, firstOrNil(data))
}

func (l *Logger) Warn(msg string, data ...interface{}) {
	l.log(WARN, msg, firstOrNil(data))
}

func (l *Logger) Error(msg string, err error, data ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.log(ERROR, msg, firstOrNil(data))
}

func (l *Logger) Progress(msg string, data ...interface{}) {
	l.log(PROGRESS, msg, firstOrNil(data))
}

// firstOrNil returns the first element of data if present, nil otherwise
func firstOrNil(data []interface{}) interface{} {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// CheckStart logs the start of one enumerate+classify pass
func (l *Logger) CheckStart(check, region string) {
	l.Progress(fmt.Sprintf("Checking %s...", check), map[string]interface{}{
		"region": region,
	})
}

// CheckComplete logs the number of findings one check produced
func (l *Logger) CheckComplete(check, region string, count int) {
	l.Info("Check completed", map[string]interface{}{
		"check":         check,
		"region":        region,
		"finding_count": count,
	})
}

// RegionError logs a region whose scan failed while the others continue
func (l *Logger) RegionError(task, region string, err error) {
	l.Warn(fmt.Sprintf("%s failed in region %s: %v", task, region, err), map[string]interface{}{
		"task":   task,
		"region": region,
	})
}

// ReportWritten logs a report artifact written to disk or uploaded
func (l *Logger) ReportWritten(location string, rows int) {
	l.Progress(fmt.Sprintf("Report saved: %s", location), map[string]interface{}{
		"rows": rows,
	})
}

func Debug(msg string, data ...interface{}) {
	defaultLogger.Debug(msg, data...)
}

func Info(msg string, data ...interface{}) {
	defaultLogger.Info(msg, data...)
}

func Warn(msg string, data ...interface{}) {
	defaultLogger.Warn(msg, data...)
}

func Error(msg string, err error, data ...interface{}) {
	defaultLogger.Error(msg, err, data...)
}

func Progress(msg string, data ...interface{}) {
	defaultLogger.Progress(msg, data...)
}

func CheckStart(check, region string) {
	defaultLogger.CheckStart(check, region)
}

func CheckComplete(check, region string, count int) {
	defaultLogger.CheckComplete(check, region, count)
}

func RegionError(task, region string, err error) {
	defaultLogger.RegionError(task, region, err)
}

func ReportWritten(location string, rows int) {
	defaultLogger.ReportWritten(location, rows)
}
