// Package core provides the business logic for bulk collaborator imports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When operators encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Split the file into smaller files
//	          Patterns: "file too large"
//
//	FILE002 - Unsupported format: File is neither CSV nor XLSX
//	          Action: Save the spreadsheet as .csv or .xlsx
//	          Patterns: "unsupported file format"
//
//	FILE003 - Unreadable workbook: The workbook could not be opened
//	          Action: Open the file in a spreadsheet editor and save it again
//	          Patterns: "unreadable file"
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV or XLSX file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The file has no data rows
//	          Action: Add at least one collaborator below the header row
//	          Patterns: "empty file"
//
//	FILE006 - No data: No rows could be read with any supported delimiter
//	          Action: Use semicolon, comma or tab separated columns with a header row
//	          Patterns: "no data"
//
// # Reference Errors (REF001-REF099)
//
//	REF001 - Reference lookup failed: Companies, departments or positions could not be loaded
//	         Action: Please try again in a few moments
//	         Patterns: "reference lookup failed"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No valid records: Every row failed validation
//	         Action: Download the error report and fix the listed rows
//	         Patterns: "no valid records"
//
//	IMP002 - Import in progress: The operator already has a running import
//	         Action: Wait for the current import to finish
//	         Patterns: "import already in progress"
//
//	IMP003 - Session expired: Import session not found
//	         Action: The session may have expired. Please upload the file again
//	         Patterns: "import session not found"
//
//	IMP004 - System busy: Too many imports in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent imports"
//
//	IMP005 - Still running: The import has not finished yet
//	         Action: Wait for the import to finish before downloading reports
//	         Patterns: "import session still running"
//
//	IMP006 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	IMP007 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Submission Errors (SUB001-SUB099)
//
//	SUB001 - Batch failed: The collaborator service rejected the whole batch
//	         Action: Download the error report; no collaborator from this file was created
//	         Patterns: "batch submission failed"
//
//	SUB002 - Service unreachable: Unable to connect to the collaborator service
//	         Action: Please try again in a few moments
//	         Patterns: "connection refused"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Wrapping errors (IMP001, REF001, SUB001)
	// These carry detail text that may contain other patterns, so they match first.
	// =========================================================================
	{
		pattern: "no valid records",
		msg: UserMessage{
			Message: "Every row failed validation",
			Action:  "Download the error report and fix the listed rows",
			Code:    "IMP001",
		},
	},
	{
		pattern: "reference lookup failed",
		msg: UserMessage{
			Message: "Companies, departments or positions could not be loaded",
			Action:  "Please try again in a few moments",
			Code:    "REF001",
		},
	},
	{
		pattern: "batch submission failed",
		msg: UserMessage{
			Message: "The collaborator service rejected the whole batch",
			Action:  "Download the error report; no collaborator from this file was created",
			Code:    "SUB001",
		},
	},
	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File is neither CSV nor XLSX",
			Action:  "Save the spreadsheet as .csv or .xlsx",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Open the file in a spreadsheet editor and save it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Add at least one collaborator below the header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no data",
		msg: UserMessage{
			Message: "No rows could be read from the file",
			Action:  "Use semicolon, comma or tab separated columns with a header row",
			Code:    "FILE006",
		},
	},
	// =========================================================================
	// Import Errors (IMP002-IMP007)
	// =========================================================================
	{
		pattern: "import already in progress",
		msg: UserMessage{
			Message: "You already have an import running",
			Action:  "Wait for the current import to finish",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please upload the file again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "import session still running",
		msg: UserMessage{
			Message: "The import has not finished yet",
			Action:  "Wait for the import to finish before downloading reports",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP007",
		},
	},
	// =========================================================================
	// Submission Errors (SUB002)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the collaborator service",
			Action:  "Please try again in a few moments",
			Code:    "SUB002",
		},
	},
	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
