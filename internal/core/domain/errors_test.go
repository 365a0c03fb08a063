package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrIngestionInProgress", ErrIngestionInProgress, "ingestion already in progress"},
		{"ErrFetch", ErrFetch, "archive fetch failed"},
		{"ErrCorruptArchive", ErrCorruptArchive, "corrupt archive"},
		{"ErrUnsafePath", ErrUnsafePath, "unsafe archive path"},
		{"ErrEntryRead", ErrEntryRead, "archive entry read failed"},
		{"ErrPartialReadTolerated", ErrPartialReadTolerated, "partial entry read tolerated"},
		{"ErrPersist", ErrPersist, "source file persist failed"},
		{"ErrDispatch", ErrDispatch, "analysis dispatch failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrIngestionInProgress,
		ErrFetch,
		ErrCorruptArchive,
		ErrUnsafePath,
		ErrEntryRead,
		ErrPartialReadTolerated,
		ErrPersist,
		ErrDispatch,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"FetchError", &FetchError{URL: "http://x", Err: cause}, ErrFetch},
		{"CorruptArchiveError", &CorruptArchiveError{Err: cause}, ErrCorruptArchive},
		{"UnsafePathError", &UnsafePathError{Path: "../x", Reason: "traversal"}, ErrUnsafePath},
		{"EntryReadError", &EntryReadError{Path: "a.rb", Err: cause}, ErrEntryRead},
		{"PersistError", &PersistError{Path: "a.rb", Err: cause}, ErrPersist},
		{"DispatchError", &DispatchError{FileID: "f1", Err: cause}, ErrDispatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("expected %v to match %v", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, ErrNotFound) {
				t.Errorf("did not expect %v to match ErrNotFound", wrapped)
			}
		})
	}
}

func TestFetchError_Message(t *testing.T) {
	withStatus := &FetchError{URL: "http://example.com/a.zip", StatusCode: 404}
	if got := withStatus.Error(); got != "fetch http://example.com/a.zip: unexpected status 404" {
		t.Errorf("unexpected message %q", got)
	}

	withCause := &FetchError{URL: "http://example.com/a.zip", Err: errors.New("dial tcp: refused")}
	if got := withCause.Error(); got != "fetch http://example.com/a.zip: dial tcp: refused" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestStageError_UnwrapsToCause(t *testing.T) {
	err := &StageError{
		State: StatePersisting,
		Err:   &PersistError{Path: "lib/foo.rb", Err: errors.New("disk full")},
	}

	if !errors.Is(err, ErrPersist) {
		t.Error("expected StageError to unwrap to ErrPersist")
	}

	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatal("expected errors.As to find PersistError")
	}
	if persistErr.Path != "lib/foo.rb" {
		t.Errorf("expected path lib/foo.rb, got %s", persistErr.Path)
	}
	if err.Error() != `ingestion failed while persisting: persist "lib/foo.rb": disk full` {
		t.Errorf("unexpected message %q", err.Error())
	}
}
