package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// StableIDRegex validates client chosen device ids
	StableIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	// ConnectionIDRegex validates transport assigned ids
	ConnectionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

	// RecordIDRegex validates scan record ids
	RecordIDRegex = regexp.MustCompile(`^[0-9]+-[0-9a-f]+$`)
)

const (
	maxIDLength     = 128
	maxNameLength   = 100
	maxPromptLength = 8000
)

// ValidateStableID validates a device stable ID
func ValidateStableID(stableID string) error {
	if stableID == "" {
		return fmt.Errorf("stable ID is required")
	}
	if len(stableID) > maxIDLength {
		return fmt.Errorf("stable ID is too long (max %d characters)", maxIDLength)
	}
	if !StableIDRegex.MatchString(stableID) {
		return fmt.Errorf("invalid stable ID format")
	}
	return nil
}

// ValidateConnectionID validates a connection ID
func ValidateConnectionID(connID string) error {
	if connID == "" {
		return fmt.Errorf("connection ID is required")
	}
	if len(connID) > maxIDLength {
		return fmt.Errorf("connection ID is too long (max %d characters)", maxIDLength)
	}
	if !ConnectionIDRegex.MatchString(connID) {
		return fmt.Errorf("invalid connection ID format")
	}
	return nil
}

// ValidateRecordID validates a scan record ID
func ValidateRecordID(recordID string) error {
	if recordID == "" {
		return fmt.Errorf("record ID is required")
	}
	if !RecordIDRegex.MatchString(recordID) {
		return fmt.Errorf("invalid record ID format")
	}
	return nil
}

// ValidateDisplayName validates a device display name. Empty names are
// allowed; callers substitute a fallback.
func ValidateDisplayName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("display name is too long (max %d characters)", maxNameLength)
	}
	return nil
}

// ValidatePrompt validates a follow-up question
func ValidatePrompt(prompt string) error {
	if err := ValidateNonEmptyString(prompt, "prompt"); err != nil {
		return err
	}
	return ValidateStringLength(prompt, 1, maxPromptLength, "prompt")
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
