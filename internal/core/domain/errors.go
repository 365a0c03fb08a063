package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestionInProgress indicates another ingestion holds the project
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrFetch indicates the archive could not be downloaded
	ErrFetch = errors.New("archive fetch failed")

	// ErrCorruptArchive indicates the downloaded bytes are not a readable archive
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrUnsafePath indicates an entry normalised to a disallowed path
	ErrUnsafePath = errors.New("unsafe archive path")

	// ErrEntryRead indicates an entry's content could not be read
	ErrEntryRead = errors.New("archive entry read failed")

	// ErrPartialReadTolerated marks an entry whose content was fully
	// decompressed but whose integrity trailer did not verify.
	ErrPartialReadTolerated = errors.New("partial entry read tolerated")

	// ErrPersist indicates a source file could not be stored
	ErrPersist = errors.New("source file persist failed")

	// ErrDispatch indicates downstream analysis could not be enqueued
	ErrDispatch = errors.New("analysis dispatch failed")
)

// FetchError reports a transport failure while downloading an archive.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// CorruptArchiveError reports an archive container that cannot be opened.
type CorruptArchiveError struct {
	Err error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive: %v", e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

func (e *CorruptArchiveError) Is(target error) bool { return target == ErrCorruptArchive }

// UnsafePathError reports an entry path rejected by normalisation.
type UnsafePathError struct {
	Path   string
	Reason string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe archive path %q: %s", e.Path, e.Reason)
}

func (e *UnsafePathError) Is(target error) bool { return target == ErrUnsafePath }

// EntryReadError reports a failure reading one entry's bytes.
type EntryReadError struct {
	Path string
	Err  error
}

func (e *EntryReadError) Error() string {
	return fmt.Sprintf("read entry %q: %v", e.Path, e.Err)
}

func (e *EntryReadError) Unwrap() error { return e.Err }

func (e *EntryReadError) Is(target error) bool { return target == ErrEntryRead }

// PersistError reports a failure storing the source file at Path.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("persist snapshot: %v", e.Err)
	}
	return fmt.Sprintf("persist %q: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// DispatchError reports a failure enqueueing analysis for one file.
type DispatchError struct {
	FileID string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch file %s: %v", e.FileID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }

// StageError records the pipeline state in which a run failed.
type StageError struct {
	State IngestionState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed while %s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
