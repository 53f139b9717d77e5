package internal

import (
	"io"
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

var (
	// Global logger instance
	globalLogger *SecureLogger
	loggerMutex  sync.RWMutex
)

// InitLogger initializes the global logger with the given configuration
func InitLogger(config *Config) error {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return NewValidationErrorWithValue("log_level", "unknown log level", config.LogLevel).
			WithSuggestion("Use one of debug, info, warn, error")
	}

	var output io.Writer = os.Stderr
	if config.LogFile != "" {
		output = &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	logger := NewSecureLogger(output, level, config.LogFormat, config.EnableDebug, config.QuietMode)
	if len(config.Cookies) > 0 {
		values := make([]string, 0, len(config.Cookies))
		for _, v := range config.Cookies {
			values = append(values, v)
		}
		logger.AddRedactor(NewValueRedactor(values...))
	}

	loggerMutex.Lock()
	globalLogger = logger
	loggerMutex.Unlock()

	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *SecureLogger {
	loggerMutex.RLock()
	logger := globalLogger
	loggerMutex.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefaultLogger(false, false)
	}
	return globalLogger
}

// Convenience functions for global logging

// LogError logs an error message using the global logger
func LogError(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// LogWarn logs a warning message using the global logger
func LogWarn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// LogInfo logs an info message using the global logger
func LogInfo(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// LogDebug logs a debug message using the global logger
func LogDebug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// LogTeraboxError logs a TeraboxError with appropriate level and detail
func LogTeraboxError(err *TeraboxError) {
	logger := GetLogger()

	if err.IsCritical() {
		logger.Error("CRITICAL: %s", err.DetailedError())
		return
	}

	switch err.Severity {
	case SeverityError:
		logger.Error("%s", err.DetailedError())
	case SeverityWarning:
		logger.Warn("%s", err.DetailedError())
	case SeverityInfo:
		logger.Info("%s", err.DetailedError())
	default:
		logger.Error("%s", err.DetailedError())
	}
}

// LogValidationError logs a ValidationError
func LogValidationError(err *ValidationError) {
	GetLogger().Error("Validation Error: %s", err.DetailedError())
}
