package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Known sentinel errors are matched first with errors.Is; the
// remaining errors are matched by case-insensitive substring.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: a catalog row with this key already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: a value that must be unique already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused: unable to reach the database
//	DB005 - Connection reset: database connection was interrupted
//	DB006 - Timeout: the database did not answer in time
//	DB007 - Deadlock: conflicting concurrent writes
//	DB008 - Not found: the record does not exist in this organization
//	        Sentinel: ErrNotFound
//
// # Validation and Mapping Errors (VAL001-VAL099)
//
//	VAL001 - Table shape: rows do not line up with the header row
//	         Sentinel: ErrShapeMismatch
//	VAL002 - Blocking issues: some rows failed validation
//	         Sentinel: ErrBlockingIssues
//	VAL003 - Invalid number: a numeric cell could not be parsed
//	VAL004 - Required field: a required field is empty or unmapped
//	VAL005 - Duplicate template: a template with this name exists
//	         Sentinel: ErrDuplicateTemplate
//	VAL006 - Invalid mapping: the mapping names a column or field that does not exist
//	         Patterns: "not found in headers", "unknown field"
//	VAL007 - Invalid request: the request body could not be decoded
//	         Patterns: "invalid request"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported file type: only CSV and XLSX are accepted
//	FILE003 - Invalid CSV
//	FILE004 - Invalid XLSX
//	FILE005 - No file provided
//	FILE006 - Empty file: no header row was found
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Busy: too many ingests in progress
//	         Sentinel: ErrTooManyIngests
//	ING002 - Stopped early: the merge was cancelled part way
//	         Type: *StoppedError
//	ING003 - Cancelled: the request was cancelled
//	ING004 - Timed out: the request exceeded its deadline
//
// # Pricing Errors (PRC001-PRC099)
//
//	PRC001 - Invalid rule or settings
//	         Sentinel: ErrInvalidRule
//
// # Lock Errors (LCK001)
//
//	LCK001 - Supplier busy: another ingestion holds the supplier lock
//	         Sentinel: ErrSupplierBusy
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error. Support staff should check the application logs
//	         for the technical error logged alongside the request id.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrBlockingIssues is returned when an ingest is rejected because rows
// failed validation and partial commits were not accepted.
var ErrBlockingIssues = errors.New("validation found blocking issues")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages are checked in order with errors.Is before any pattern.
var sentinelMessages = []sentinelMessage{
	{ErrShapeMismatch, UserMessage{
		Message: "The file's rows do not line up with its header row",
		Action:  "Check for values outside the header columns or a missing header row",
		Code:    "VAL001",
	}},
	{ErrBlockingIssues, UserMessage{
		Message: "Some rows failed validation",
		Action:  "Fix the reported rows, or resubmit accepting a partial import",
		Code:    "VAL002",
	}},
	{ErrDuplicateTemplate, UserMessage{
		Message: "A template with this name already exists for the supplier",
		Action:  "Choose a different template name",
		Code:    "VAL005",
	}},
	{ErrInvalidTemplate, UserMessage{
		Message: "The mapping template is incomplete",
		Action:  "Give the template a name and map at least one known field",
		Code:    "VAL008",
	}},
	{ErrTooManyIngests, UserMessage{
		Message: "The system is busy processing other pricelists",
		Action:  "Please wait a moment and try again",
		Code:    "ING001",
	}},
	{ErrSupplierBusy, UserMessage{
		Message: "Another pricelist for this supplier is being processed",
		Action:  "Wait for the running import to finish and try again",
		Code:    "LCK001",
	}},
	{ErrInvalidRule, UserMessage{
		Message: "The pricing configuration is invalid",
		Action:  "Check margins are between 0 and 1000 and the rule scope lists its targets",
		Code:    "PRC001",
	}},
	{ErrNotFound, UserMessage{
		Message: "The requested record was not found",
		Action:  "Check the id and the organization header",
		Code:    "DB008",
	}},
	{context.Canceled, UserMessage{
		Message: "The request was cancelled",
		Action:  "Please try again",
		Code:    "ING003",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "ING004",
	}},
}

var stoppedMessage = UserMessage{
	Message: "The import stopped before every row was processed",
	Action:  "Rows already committed are kept; upload the file again to finish",
	Code:    "ING002",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{"A catalog row with this key already exists", "Check the file for repeated SKUs", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Make sure the referenced product exists", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Make sure the referenced product exists", "DB003"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},

	// Validation and mapping
	{"invalid number", UserMessage{"Invalid number format detected", "Remove currency symbols and use a plain decimal", "VAL003"}},
	{"required field", UserMessage{"A required field is empty or unmapped", "Map and fill the SKU, description and unit price columns", "VAL004"}},
	{"not found in headers", UserMessage{"The mapping names a column that is not in the file", "Review the column mapping against the file headers", "VAL006"}},
	{"unknown field", UserMessage{"The mapping names an unknown field", "Use only the documented canonical fields", "VAL006"}},
	{"invalid request", UserMessage{"The request could not be read", "Check the request body is valid JSON", "VAL007"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the pricelist into smaller files", "FILE001"}},
	{"unsupported file type", UserMessage{"Unsupported file type", "Upload a .csv or .xlsx file", "FILE002"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent quoting", "FILE003"}},
	{"invalid xlsx", UserMessage{"File is not a valid Excel workbook", "Re-save the file as .xlsx", "FILE004"}},
	{"no file provided", UserMessage{"No file was selected", "Attach the pricelist as the \"file\" field", "FILE005"}},
	{"empty file", UserMessage{"The uploaded file has no header row", "Upload a file with a header row and data rows", "FILE006"}},

	// Rate limiting
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("merge: %w", ErrSupplierBusy))
//	// msg.Code == "LCK001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var stopped *StoppedError
	if errors.As(err, &stopped) {
		return stoppedMessage
	}
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
