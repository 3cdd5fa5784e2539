package application

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: notFound("meeting"), want: "not_found"},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", notFound("user")), want: "not_found"},
		{name: "empty bundle", err: ErrEmptyBundle, want: "empty"},
		{name: "conflict", err: conflict("already registered"), want: "conflict"},
		{name: "io failure", err: &IOError{FileName: "a.pdf", Op: "write", Err: fs.ErrPermission}, want: "io_failure"},
		{name: "validation", err: singleFieldError("title", "title is required"), want: "validation"},
		{name: "anything else", err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrEmptyBundleIsNotFound(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrEmptyBundle, ErrNotFound) {
		t.Fatal("expected ErrEmptyBundle to match ErrNotFound")
	}
	if errors.Is(notFound("meeting"), ErrEmptyBundle) {
		t.Fatal("plain not found must not match ErrEmptyBundle")
	}
}

func TestIOError(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("open /srv/uploads/secret/a.pdf: %w", fs.ErrPermission)
	err := &IOError{FileName: "a.pdf", Op: "write", Err: cause}

	if !errors.Is(err, ErrIOFailure) {
		t.Fatal("expected IOError to match ErrIOFailure")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("expected IOError to expose its cause")
	}
	if strings.Contains(err.Error(), "/srv/uploads") {
		t.Fatalf("message leaks a path: %q", err.Error())
	}
	if !strings.Contains(err.Error(), `"a.pdf"`) {
		t.Fatalf("message should name the file, got %q", err.Error())
	}
}

func TestNotFoundAndConflictMessages(t *testing.T) {
	t.Parallel()

	if got := notFound("attendee").Error(); got != "attendee not found" {
		t.Fatalf("unexpected message %q", got)
	}

	var cErr *ConflictError
	if !errors.As(conflict("already registered"), &cErr) || cErr.Reason != "already registered" {
		t.Fatalf("expected ConflictError with reason, got %v", cErr)
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.Error() != "" || nilErr.HasErrors() {
		t.Fatal("nil validation error should be empty")
	}

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatal("expected no errors on empty value")
	}
	base.add("title", "title is required")
	base.merge(singleFieldError("end_date", "end date must be after start date"))
	base.merge(nil)

	if !base.HasErrors() || len(base.FieldErrors) != 2 {
		t.Fatalf("expected two field errors, got %v", base.FieldErrors)
	}
	if base.Error() != "validation failed" {
		t.Fatalf("unexpected message %q", base.Error())
	}
}
