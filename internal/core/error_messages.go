package core

// error_messages.go maps technical errors to operator-facing messages with a
// stable code operators can quote when asking for help.
//
// Typed errors of this package are matched first with errors.Is/As. Anything
// else (database, file decoding) falls back to case-insensitive substring
// patterns, first match wins.
//
// # Codes
//
//	DB001  Duplicate value              "duplicate key", "violates unique"
//	DB002  Missing referenced record    "violates foreign key"
//	DB003  Database unreachable         "connection refused", "connection reset"
//	DB004  Database busy                "deadlock"
//
//	SRC001 Missing required columns     *MissingColumnsError
//	SRC002 Unsupported file type        "unsupported file type"
//	SRC003 Unreadable file              "read csv", "open xlsx"
//	SRC004 Empty file                   "empty file", "no header"
//	SRC005 File too large               "file too large"
//
//	AUTH001 Ticketing rejected the credentials   *AuthError
//	API001  Ticketing platform unavailable       *APIError with no response or a 5xx
//	API002  Ticketing platform refused a call    *APIError with a 4xx
//	CFG001  Ticketing credentials not configured ErrCredentialsMissing
//	CFG002  Event not linked to ticketing        ErrEventNotLinked
//	CFG003  Credentials cannot be decrypted      "decrypt"
//
//	IMP001 Import already running        ErrImportInProgress
//	IMP002 Row errors block the import   ErrBlockingRowErrors
//	IMP003 System busy                   ErrTooManyImports
//	IMP004 Event not found               ErrEventNotFound
//	IMP005 Import log not found          ErrImportLogNotFound
//
//	REQ001 Request cancelled             "context canceled"
//	REQ002 Request timed out             "context deadline exceeded", "timeout"
//	RATE001 Too many requests            "rate limit"
//
//	ERR000 Anything else; check the logs for the technical error.

import (
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

type errorMatch struct {
	match func(error) bool
	msg   UserMessage
}

// typedErrors are checked before any pattern.
var typedErrors = []errorMatch{
	{
		match: func(err error) bool { var e *MissingColumnsError; return errors.As(err, &e) },
		msg: UserMessage{
			Message: "The file is missing required columns",
			Action:  "Export the attendee list again with every required column, then re-run the preview",
			Code:    "SRC001",
		},
	},
	{
		match: func(err error) bool { var e *AuthError; return errors.As(err, &e) },
		msg: UserMessage{
			Message: "The ticketing platform rejected the credentials",
			Action:  "Update the ticketing API user and key, then try again",
			Code:    "AUTH001",
		},
	},
	{
		match: func(err error) bool {
			var e *APIError
			return errors.As(err, &e) && (e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429)
		},
		msg: UserMessage{
			Message: "The ticketing platform is unavailable",
			Action:  "Please try again in a few minutes",
			Code:    "API001",
		},
	},
	{
		match: func(err error) bool { var e *APIError; return errors.As(err, &e) },
		msg: UserMessage{
			Message: "The ticketing platform refused the request",
			Action:  "Check that the event is linked to the right ticketing event",
			Code:    "API002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrCredentialsMissing) },
		msg: UserMessage{
			Message: "Ticketing credentials are not configured",
			Action:  "Save the ticketing API user and key before syncing",
			Code:    "CFG001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrEventNotLinked) },
		msg: UserMessage{
			Message: "This event is not linked to a ticketing event",
			Action:  "Set the ticketing event reference on the event first",
			Code:    "CFG002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrImportInProgress) },
		msg: UserMessage{
			Message: "An import is already running for this event",
			Action:  "Wait for it to finish, then preview again",
			Code:    "IMP001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrBlockingRowErrors) },
		msg: UserMessage{
			Message: "Some rows have errors",
			Action:  "Fix the rows listed in the preview, or import while ignoring errors",
			Code:    "IMP002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyImports) },
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP003",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrEventNotFound) },
		msg: UserMessage{
			Message: "Event not found",
			Action:  "Verify the event identifier",
			Code:    "IMP004",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrImportLogNotFound) },
		msg: UserMessage{
			Message: "Import log not found",
			Action:  "Verify the import identifier",
			Code:    "IMP005",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Order matters: more specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Action:  "Preview the import again to refresh the classification",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Action:  "Preview the import again to refresh the classification",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "The event or slot may have been deleted. Reload and try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv or .xlsx export",
			Code:    "SRC002",
		},
	},
	{
		pattern: "read csv",
		msg: UserMessage{
			Message: "The file could not be read as CSV",
			Action:  "Export the file again as CSV (comma or semicolon separated)",
			Code:    "SRC003",
		},
	},
	{
		pattern: "open xlsx",
		msg: UserMessage{
			Message: "The file could not be read as a spreadsheet",
			Action:  "Export the file again as .xlsx or .csv",
			Code:    "SRC003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row and data rows",
			Code:    "SRC004",
		},
	},
	{
		pattern: "no header",
		msg: UserMessage{
			Message: "No header row was found",
			Action:  "Make sure the first rows of the file contain the column names",
			Code:    "SRC004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file into smaller exports",
			Code:    "SRC005",
		},
	},
	{
		pattern: "decrypt",
		msg: UserMessage{
			Message: "Stored ticketing credentials cannot be read",
			Action:  "Check the secret keys configuration, or save the credentials again",
			Code:    "CFG003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed errors win over text patterns. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, te := range typedErrors {
		if te.match(err) {
			return te.msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
