package logging

import (
	"log"
	"sync/atomic"
)

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

var threshold int32 = InfoLevel

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}

// SetLevel configures the lowest level which will be logged
func SetLevel(level int) {
	atomic.StoreInt32(&threshold, int32(level))
}

// Enabled returns true iff messages at the given level are currently logged
func Enabled(level int) bool {
	return int32(level) >= atomic.LoadInt32(&threshold)
}

// Printf logs a message at the given level. FatalLevel messages terminate the process, as with log.Fatalf
func Printf(level int, format string, v ...interface{}) {
	if !Enabled(level) {
		return
	}
	if level >= FatalLevel {
		log.Fatalf("["+LogLevelToString(level)+"] "+format, v...)
	}
	log.Printf("["+LogLevelToString(level)+"] "+format, v...)
}
