package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// MeetingCodeRegex validates meeting code format
	MeetingCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// ConnectionIDRegex validates connection ID format
	ConnectionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateMeetingCode validates a client-supplied meeting code
func ValidateMeetingCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("meeting code is required")
	}
	if len(code) > 64 {
		return fmt.Errorf("meeting code is too long (max 64 characters)")
	}
	if !MeetingCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid meeting code format")
	}
	return nil
}

// ValidateDisplayName validates a participant display name
func ValidateDisplayName(name string, maxLen int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name is not valid UTF-8")
	}
	if utf8.RuneCountInString(name) > maxLen {
		return fmt.Errorf("display name is too long (max %d characters)", maxLen)
	}
	return nil
}

// ValidateConnectionID validates a client-supplied connection ID
func ValidateConnectionID(connID string) error {
	if connID == "" {
		return fmt.Errorf("connection ID is required")
	}
	if len(connID) > 100 {
		return fmt.Errorf("connection ID is too long (max 100 characters)")
	}
	if !ConnectionIDRegex.MatchString(connID) {
		return fmt.Errorf("invalid connection ID format")
	}
	return nil
}
