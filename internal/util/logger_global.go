package util

import (
	"sync"
)

// The process-wide logger. Nil until InitLogger runs; the helpers below
// degrade to no-ops so library code can log unconditionally.
var (
	globalLogger LoggerInterface
	loggerOnce   sync.Once
)

// InitLogger initializes the process-wide logger. Later calls are no-ops.
func InitLogger(logLevel, logFile string, debugToConsole bool) {
	loggerOnce.Do(func() {
		globalLogger = NewLogger(logLevel, logFile, debugToConsole)
	})
}

// LogDebug logs a debug message through the process-wide logger.
func LogDebug(msg string) {
	if globalLogger != nil {
		globalLogger.Debug(msg)
	}
}

// LogDebugf logs a formatted debug message.
func LogDebugf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debugf(format, args...)
	}
}

// LogInfo logs an info message through the process-wide logger.
func LogInfo(msg string) {
	if globalLogger != nil {
		globalLogger.Info(msg)
	}
}

// LogInfof logs a formatted info message.
func LogInfof(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Infof(format, args...)
	}
}

// LogError logs an error message through the process-wide logger.
func LogError(msg string) {
	if globalLogger != nil {
		globalLogger.Error(msg)
	}
}

// LogErrorf logs a formatted error message.
func LogErrorf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Errorf(format, args...)
	}
}
