package core

// error_messages.go maps technical errors to stable codes with a short
// message and a suggested action. Operators quote the code when reporting
// a failed run.
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Duplicate key          "duplicate key"
//	DB002 - Unique constraint      "unique constraint", "violates unique"
//	DB003 - Store unreachable      "connection refused", "no such host"
//	DB004 - Connection reset       "connection reset", "broken pipe"
//	DB005 - Timeout                "timeout"
//	DB006 - Deadlock or lock       "deadlock", "database is locked"
//	DB007 - Write key rejected     "password authentication failed",
//	                               "security_exception", "permissiondenied",
//	                               "permission denied", "unauthenticated",
//	                               "status 401", "status 403"
//	DB008 - Collection missing     "does not exist", "no such table",
//	                               "index_not_found"
//	DB009 - Payload rejected       "mapper_parsing_exception",
//	                               "invalidargument", "status 400"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Source not found      "source not found"
//	IMP002 - No input files        "no csv files"
//	IMP003 - File too large        "file too large"
//	IMP004 - Run in progress       "import already running"
//	IMP005 - No file provided      "no file provided"
//	IMP006 - Run cancelled         "context canceled"
//	IMP007 - Run timed out         "context deadline exceeded"
//	IMP008 - Unknown backend       "unknown store backend"
//	IMP009 - File unreadable       read failures without an import code
//
// # Default (ERR000)
//
// Returned when nothing matches. The original error is in the logs.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns precede general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{
		Message: "A record with this ID already exists",
		Action:  "Check the input files for repeated ids",
		Code:    "DB001",
	}
	msgUnique = UserMessage{
		Message: "A value that must be unique already exists",
		Action:  "Check the input files for repeated ids",
		Code:    "DB002",
	}
	msgUnreachable = UserMessage{
		Message: "Unable to connect to the store",
		Action:  "Check STORE_URL and that the store is running",
		Code:    "DB003",
	}
	msgReset = UserMessage{
		Message: "The store connection was interrupted",
		Action:  "Run the import again",
		Code:    "DB004",
	}
	msgTimeout = UserMessage{
		Message: "The store operation timed out",
		Action:  "Run the import again or lower IMPORT_BATCH_SIZE",
		Code:    "DB005",
	}
	msgLocked = UserMessage{
		Message: "The store was busy with conflicting operations",
		Action:  "Run the import again",
		Code:    "DB006",
	}
	msgAuth = UserMessage{
		Message: "The store rejected the write credentials",
		Action:  "Check STORE_WRITE_KEY",
		Code:    "DB007",
	}
	msgMissing = UserMessage{
		Message: "The target collection does not exist",
		Action:  "Create the collection or check IMPORT_COLLECTION",
		Code:    "DB008",
	}
	msgRejected = UserMessage{
		Message: "The store rejected the records",
		Action:  "Check the failed rows file for malformed values",
		Code:    "DB009",
	}
	msgCanceled = UserMessage{
		Message: "The import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "IMP006",
	}
	msgDeadline = UserMessage{
		Message: "The import timed out",
		Action:  "Raise IMPORT_TIMEOUT or split the input files",
		Code:    "IMP007",
	}
	msgUnreadable = UserMessage{
		Message: "An input file could not be read",
		Action:  "Check the file exists and is readable by the importer",
		Code:    "IMP009",
	}
)

// errorPatterns is ordered: the first match wins.
var errorPatterns = []errorPattern{
	// Store constraint errors
	{"duplicate key", msgDuplicate},
	{"unique constraint", msgUnique},
	{"violates unique", msgUnique},

	// Credentials, checked before connection errors since auth failures
	// often mention the connection
	{"password authentication failed", msgAuth},
	{"security_exception", msgAuth},
	{"permissiondenied", msgAuth},
	{"permission denied", msgAuth},
	{"unauthenticated", msgAuth},
	{"status 401", msgAuth},
	{"status 403", msgAuth},

	// Connectivity
	{"connection refused", msgUnreachable},
	{"no such host", msgUnreachable},
	{"connection reset", msgReset},
	{"broken pipe", msgReset},

	// Cancellation, ahead of the generic timeout pattern
	{"context canceled", msgCanceled},
	{"context deadline exceeded", msgDeadline},
	{"timeout", msgTimeout},
	{"deadlock", msgLocked},
	{"database is locked", msgLocked},

	// Schema
	{"does not exist", msgMissing},
	{"no such table", msgMissing},
	{"index_not_found", msgMissing},
	{"mapper_parsing_exception", msgRejected},
	{"invalidargument", msgRejected},
	{"status 400", msgRejected},

	// Import errors
	{"source not found", UserMessage{
		Message: "The import source does not exist",
		Action:  "Check IMPORT_SOURCE or --source",
		Code:    "IMP001",
	}},
	{"no csv files", UserMessage{
		Message: "The import source has no .csv files",
		Action:  "Place CSV exports in the source directory",
		Code:    "IMP002",
	}},
	{"file too large", UserMessage{
		Message: "The file exceeds the maximum size",
		Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
		Code:    "IMP003",
	}},
	{"import already running", UserMessage{
		Message: "Another import is in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "IMP004",
	}},
	{"no file provided", UserMessage{
		Message: "No file was provided",
		Action:  "Attach a CSV file in the \"file\" form field",
		Code:    "IMP005",
	}},
	{"unknown store backend", UserMessage{
		Message: "The store backend is not available in this build",
		Action:  "Check STORE_BACKEND",
		Code:    "IMP008",
	}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000.
//
// Example:
//
//	msg := MapError(errors.New("duplicate key violation"))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	// A classified failure keeps the code it was given.
	var f *Failure
	if errors.As(err, &f) && f.Code != "" {
		if msg, ok := messageForCode(f.Code); ok {
			return msg
		}
	}

	// Sentinels first; wrapping may hide the text of a cancellation cause.
	switch {
	case errors.Is(err, context.Canceled):
		return msgCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func messageForCode(code string) (UserMessage, bool) {
	for _, m := range []UserMessage{msgCanceled, msgDeadline, msgUnreadable, defaultMessage} {
		if m.Code == code {
			return m, true
		}
	}
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// FailureKind tells where in the pipeline a recoverable failure happened.
type FailureKind string

const (
	FailureRead  FailureKind = "read"
	FailureStore FailureKind = "store"
	FailureCount FailureKind = "count"
)

// Failure is a recoverable error recorded on a batch, file or run result.
// Message keeps the technical text so operators see what the store said.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure (%s): %s", f.Kind, f.Code, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ClassifyFailure wraps err into a Failure of the given kind.
// Read failures always carry an import code: a local "permission denied"
// is about the input file, not the store credentials.
// Returns nil if err is nil.
func ClassifyFailure(kind FailureKind, err error) *Failure {
	if err == nil {
		return nil
	}
	code := MapError(err).Code
	if kind == FailureRead && !strings.HasPrefix(code, "IMP") {
		code = msgUnreadable.Code
	}
	return &Failure{
		Kind:    kind,
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}
