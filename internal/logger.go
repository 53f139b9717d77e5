package internal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// SecureLogger wraps a logrus logger and redacts credentials and session tokens
// from every entry before it is formatted.
type SecureLogger struct {
	logger    *logrus.Logger
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// CookieRedactor redacts TeraBox session cookies and auth headers
type CookieRedactor struct{}

var (
	cookieValuePattern = regexp.MustCompile(`(?i)\b(ndus|ndut_fmt|csrfToken|BDUSS|STOKEN|browserid)=[^;\s&"]+`)
	authHeaderPattern  = regexp.MustCompile(`(?i)(Authorization:\s*(?:Bearer\s+)?)[^\s;]+`)
)

func (r *CookieRedactor) Redact(input string) string {
	result := cookieValuePattern.ReplaceAllString(input, "$1=[REDACTED]")
	return authHeaderPattern.ReplaceAllString(result, "${1}[REDACTED]")
}

// URLRedactor redacts session tokens carried in query strings
type URLRedactor struct{}

var sensitiveParamPattern = regexp.MustCompile(`(?i)([?&](?:jsToken|dp-logid|dplogid|sign|token|access_token|pwd)=)[^&\s"']+`)

func (r *URLRedactor) Redact(input string) string {
	return sensitiveParamPattern.ReplaceAllString(input, "${1}[REDACTED]")
}

// ValueRedactor masks known secret values wherever they appear, such as a
// session cookie echoed without its name
type ValueRedactor struct {
	values []string
}

// minSecretLength keeps short values like "en" or "1" out of the redaction set
const minSecretLength = 8

// NewValueRedactor keeps the values long enough to be secrets
func NewValueRedactor(values ...string) *ValueRedactor {
	r := &ValueRedactor{}
	for _, v := range values {
		if len(v) >= minSecretLength {
			r.values = append(r.values, v)
		}
	}
	return r
}

func (r *ValueRedactor) Redact(input string) string {
	for _, v := range r.values {
		input = strings.ReplaceAll(input, v, "[REDACTED]")
	}
	return input
}

// redactionHook applies the logger's redactors to the message and string fields
type redactionHook struct {
	sl *SecureLogger
}

func (h *redactionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *redactionHook) Fire(entry *logrus.Entry) error {
	entry.Message = h.sl.redactSensitiveData(entry.Message)
	for key, value := range entry.Data {
		if s, ok := value.(string); ok {
			entry.Data[key] = h.sl.redactSensitiveData(s)
		}
	}
	return nil
}

// NewSecureLogger creates a new secure logger writing to output
func NewSecureLogger(output io.Writer, level logrus.Level, format string, debug, quiet bool) *SecureLogger {
	logger := logrus.New()
	logger.SetOutput(output)

	if quiet {
		level = logrus.ErrorLevel
	} else if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   output != os.Stderr,
		})
	}

	sl := &SecureLogger{
		logger: logger,
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			&CookieRedactor{},
			&URLRedactor{},
		},
	}
	logger.AddHook(&redactionHook{sl: sl})

	return sl
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	return NewSecureLogger(os.Stderr, logrus.InfoLevel, "text", debug, quiet)
}

func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

// entry attaches the caller location in debug mode
func (sl *SecureLogger) entry() *logrus.Entry {
	e := logrus.NewEntry(sl.logger)
	if !sl.debug {
		return e
	}

	for depth := 2; depth <= 5; depth++ {
		_, file, line, ok := runtime.Caller(depth)
		if ok && !strings.HasSuffix(file, "logger.go") && !strings.HasSuffix(file, "internal/log.go") {
			parts := strings.Split(file, "/")
			return e.WithField("caller", fmt.Sprintf("%s:%d", parts[len(parts)-1], line))
		}
	}
	return e
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.entry().Errorf(format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.entry().Warnf(format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.entry().Infof(format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.entry().Debugf(format, args...)
}

// WithFields returns an entry carrying structured fields; redaction still applies
func (sl *SecureLogger) WithFields(fields logrus.Fields) *logrus.Entry {
	return sl.entry().WithFields(fields)
}

// IsDebug reports whether debug entries are emitted
func (sl *SecureLogger) IsDebug() bool {
	return sl.logger.IsLevelEnabled(logrus.DebugLevel)
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.IsDebug() {
		return
	}

	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.IsDebug() {
		return
	}

	sl.Debug("HTTP Response: %s Headers: %v", resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(header http.Header) map[string]string {
	sanitized := make(map[string]string, len(header))
	for name, values := range header {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// isSensitiveHeader checks if a header contains sensitive information
func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"set-cookie",
		"x-auth-token",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// AddRedactor adds a custom redactor
func (sl *SecureLogger) AddRedactor(redactor Redactor) {
	sl.redactors = append(sl.redactors, redactor)
}
