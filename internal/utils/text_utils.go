package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// TextProcessor provides utilities for processing message text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Drop a trailing partial rune
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 drops invalid UTF-8 sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// Normalize converts text to Unicode NFC and unifies line endings
func (tp *TextProcessor) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return norm.NFC.String(text)
}

// ProcessText sanitizes, normalizes and truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	text = tp.SanitizeUTF8(text)
	text = tp.Normalize(text)
	return tp.TruncateText(text, maxSize)
}
