// Package logging provides zerolog helpers that keep secrets and screen
// contents out of log output.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// ImagePlaceholder replaces inline image payloads.
const ImagePlaceholder = "[IMAGE]"

// sensitivePatterns match credentials that may reach a log line through error
// messages or echoed request bodies.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // Package-level patterns for reuse
	// OpenAI style keys (sk-..., sk-proj-...)
	regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9_-]{20,}`),

	// Generic api key assignments
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),

	// Bearer tokens and authorization headers
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9._-]{20,}["']?`),

	// Generic secret patterns
	regexp.MustCompile(`(?i)(secret|password|passwd|token)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
}

// imagePatterns match screenshots embedded in request bodies or error text.
// A base64 JPEG starts with /9j/, a PNG with iVBOR.
var imagePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // Package-level patterns for reuse
	regexp.MustCompile(`data:image/[a-z]+;base64,[A-Za-z0-9+/=]+`),
	regexp.MustCompile(`(?:/9j/|iVBOR)[A-Za-z0-9+/]{64,}={0,2}`),
}

// sensitiveFieldNames are field names whose values are always redacted.
var sensitiveFieldNames = []string{ //nolint:gochecknoglobals // Package-level patterns for reuse
	"api_key",
	"apikey",
	"api-key",
	"authorization",
	"bearer",
	"password",
	"secret",
	"token",
	"openai_api_key",
}

// SensitiveDataHook flags log events whose message contains credentials.
// zerolog hooks cannot rewrite fields, so redaction of field values happens at
// the call site (SafeValue) and in FilteringWriter for the log file.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a new SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements the zerolog.Hook interface.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s contains a credential or an inline image.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	for _, pattern := range imagePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces credentials with [REDACTED] and inline images
// with [IMAGE].
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range imagePatterns {
		result = pattern.ReplaceAllString(result, ImagePlaceholder)
	}
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveFieldName checks if a field name indicates sensitive data.
func IsSensitiveFieldName(fieldName string) bool {
	lowerName := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFieldNames {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// SafeValue returns value with sensitive data removed, or [REDACTED] when the
// field name itself is sensitive.
//
//	logger.Debug().Str("body", logging.SafeValue("body", string(raw))).Msg("inference error")
func SafeValue(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// Truncate shortens s to at most n runes, appending "..." when cut.
// Model responses are logged through it so a runaway generation cannot flood the log.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// FilteringWriter wraps an io.Writer and filters sensitive data from output.
// The CLI wraps its rotating log file with it.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a new FilteringWriter that wraps the given writer.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer, filtering sensitive data before writing.
// It reports len(p) on success so callers never see a short write.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	return len(p), nil
}
