package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},

		// Typed errors
		{name: "missing columns", err: &MissingColumnsError{Columns: []string{"email"}}, wantCode: "SRC001"},
		{name: "wrapped missing columns", err: fmt.Errorf("preview: %w", &MissingColumnsError{Columns: []string{"nom"}}), wantCode: "SRC001"},
		{name: "auth error", err: &AuthError{StatusCode: 401}, wantCode: "AUTH001"},
		{name: "api transport error", err: &APIError{Message: "dial tcp"}, wantCode: "API001"},
		{name: "api server error", err: &APIError{StatusCode: 502}, wantCode: "API001"},
		{name: "api throttled", err: &APIError{StatusCode: 429}, wantCode: "API001"},
		{name: "api client error", err: &APIError{StatusCode: 404}, wantCode: "API002"},
		{name: "credentials missing", err: ErrCredentialsMissing, wantCode: "CFG001"},
		{name: "event not linked", err: fmt.Errorf("sync: %w", ErrEventNotLinked), wantCode: "CFG002"},
		{name: "import in progress", err: ErrImportInProgress, wantCode: "IMP001"},
		{name: "row errors", err: &RowErrors{Errors: []RowError{{RowNumber: 2}}}, wantCode: "IMP002"},
		{name: "too many imports", err: ErrTooManyImports, wantCode: "IMP003"},
		{name: "event not found", err: ErrEventNotFound, wantCode: "IMP004"},
		{name: "import log not found", err: ErrImportLogNotFound, wantCode: "IMP005"},

		// Patterns
		{name: "duplicate key", err: errors.New("ERROR: duplicate key value violates unique constraint"), wantCode: "DB001"},
		{name: "foreign key", err: errors.New("violates foreign key constraint \"registrations_slot_id_fkey\""), wantCode: "DB002"},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connection refused"), wantCode: "DB003"},
		{name: "deadlock", err: errors.New("deadlock detected"), wantCode: "DB004"},
		{name: "unsupported file", err: errors.New("unsupported file type \".pdf\""), wantCode: "SRC002"},
		{name: "unreadable csv", err: errors.New("read csv: bare quote"), wantCode: "SRC003"},
		{name: "empty file", err: errors.New("empty file"), wantCode: "SRC004"},
		{name: "file too large", err: errors.New("file too large: 30MB"), wantCode: "SRC005"},
		{name: "decrypt failure", err: errors.New("decrypt credentials: unknown key id"), wantCode: "CFG003"},
		{name: "context canceled", err: context.Canceled, wantCode: "REQ001"},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: "REQ002"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},

		{name: "unknown error", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() returned empty message")
			}
		})
	}
}

func TestMapError_TypedBeforePattern(t *testing.T) {
	// The transport error text mentions a timeout, but the type decides.
	err := &APIError{Message: "request timeout", Err: context.DeadlineExceeded}
	if got := MapError(err).Code; got != "API001" {
		t.Errorf("MapError() code = %q, want API001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrImportInProgress)
	if !strings.Contains(got, "(Code: IMP001)") {
		t.Errorf("FormatUserError() = %q, missing code", got)
	}
	if !strings.HasPrefix(got, "An import is already running") {
		t.Errorf("FormatUserError() = %q, want message first", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrEventNotFound) {
		t.Error("ErrEventNotFound should be user facing")
	}
	if IsUserFacing(errors.New("something odd")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport failure", &APIError{Message: "eof"}, true},
		{"server error", &APIError{StatusCode: 503}, true},
		{"throttled", &APIError{StatusCode: 429}, true},
		{"not found", &APIError{StatusCode: 404}, false},
		{"auth", &AuthError{StatusCode: 401}, false},
		{"lock held", ErrImportInProgress, true},
		{"limiter full", fmt.Errorf("commit: %w", ErrTooManyImports), true},
		{"config", ErrCredentialsMissing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
