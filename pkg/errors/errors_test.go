package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"New", New(ErrCodeInvalidFormat, "row %d: unknown parent %q", 4, "p-9"), `INVALID_FORMAT: row 4: unknown parent "p-9"`},
		{"Wrap", Wrap(ErrCodeStorage, cause, "save session %s", "Ahl al-Bayt"), "STORAGE_ERROR: save session Ahl al-Bayt: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	err := Wrap(ErrCodeStorage, cause, "save")
	if errors.Unwrap(err) != cause || !errors.Is(err, cause) {
		t.Error("Wrap should expose its cause to errors.Is and Unwrap")
	}
}

func TestCodeInspection(t *testing.T) {
	inner := New(ErrCodeSessionNotFound, "session %q not found", "Banu Umayya")
	tests := []struct {
		name     string
		err      error
		code     Code
		wantCode Code
		wantIs   bool
		wantMsg  string
	}{
		{"Direct", inner, ErrCodeSessionNotFound, ErrCodeSessionNotFound, true, `session "Banu Umayya" not found`},
		{"OtherCode", inner, ErrCodeStorage, ErrCodeSessionNotFound, false, `session "Banu Umayya" not found`},
		{"OuterWins", Wrap(ErrCodeStorage, inner, "load"), ErrCodeStorage, ErrCodeStorage, true, "load"},
		{"FmtWrapped", fmt.Errorf("open: %w", inner), ErrCodeSessionNotFound, ErrCodeSessionNotFound, true, `session "Banu Umayya" not found`},
		{"Plain", errors.New("plain"), ErrCodeInvalidInput, "", false, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.wantIs {
				t.Errorf("Is(%s) = %v, want %v", tt.code, got, tt.wantIs)
			}
			if got := GetCode(tt.err); got != tt.wantCode {
				t.Errorf("GetCode() = %q, want %q", got, tt.wantCode)
			}
			if got := UserMessage(tt.err); got != tt.wantMsg {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	if Is(nil, ErrCodeInvalidInput) || GetCode(nil) != "" {
		t.Error("nil error should carry no code")
	}
}

func TestRowError(t *testing.T) {
	cause := errors.New("not a number")
	err := Wrap(ErrCodeInvalidFormat, &RowError{Row: 3, Column: "X", Err: cause}, "import failed")

	if !Is(err, ErrCodeInvalidFormat) {
		t.Error("Is(err, ErrCodeInvalidFormat) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 3 {
		t.Fatalf("errors.As did not find the row error: %v", err)
	}
	if got, want := rowErr.Error(), "row 3, column X: not a number"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := (&RowError{Row: 1, Err: cause}).Error(), "row 1: not a number"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{ErrCodeInvalidFormat, 400},
		{ErrCodeSessionNotFound, 404},
		{ErrCodeConflict, 409},
		{ErrCodeUnsupported, 501},
		{ErrCodeTimeout, 504},
		{ErrCodeStorage, 500},
		{"", 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.code); got != tt.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
