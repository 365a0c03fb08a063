package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// FetchedArchive is a downloaded archive held in a temporary store.
// Close releases the store and must be called exactly once.
type FetchedArchive interface {
	io.ReaderAt
	io.Closer

	// Size returns the number of bytes downloaded
	Size() int64
}

// ArchiveFetcher downloads a remote archive.
type ArchiveFetcher interface {
	// Fetch streams the body at url into a temporary store labelled with name.
	// Returns a *domain.FetchError on non-2xx status, transport failure or timeout.
	Fetch(ctx context.Context, url, name string) (FetchedArchive, error)
}

// EntryIterator is a lazy, finite, non-restartable sequence of archive entries.
type EntryIterator interface {
	// Next returns the next entry, or false when the sequence is exhausted
	Next() (domain.ArchiveEntry, bool)
}

// ArchiveReader opens fetched bytes as a random-access archive.
type ArchiveReader interface {
	// Open parses the archive directory.
	// Returns a *domain.CorruptArchiveError if the container is invalid.
	//
	// Streams returned by entry Open wrap domain.ErrPartialReadTolerated when
	// the content was fully decompressed but failed integrity verification.
	Open(archive FetchedArchive) (EntryIterator, error)
}
