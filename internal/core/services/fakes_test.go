package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// fakeArchive is a FetchedArchive that only tracks Close.
type fakeArchive struct {
	mu     sync.Mutex
	closed int
}

func (a *fakeArchive) ReadAt(p []byte, off int64) (int, error) { return 0, io.EOF }
func (a *fakeArchive) Size() int64                               { return 0 }

func (a *fakeArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *fakeArchive) closeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// fakeFetcher returns archive or err and records its arguments.
type fakeFetcher struct {
	archive *fakeArchive
	err     error

	calls   int
	gotURL  string
	gotName string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{archive: &fakeArchive{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, name string) (driven.FetchedArchive, error) {
	f.calls++
	f.gotURL = url
	f.gotName = name
	if f.err != nil {
		return nil, f.err
	}
	return f.archive, nil
}

// fakeReader enumerates a fixed list of entries.
type fakeReader struct {
	entries []domain.ArchiveEntry
	err     error
}

func (r *fakeReader) Open(archive driven.FetchedArchive) (driven.EntryIterator, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &sliceIterator{entries: r.entries}, nil
}

type sliceIterator struct {
	entries []domain.ArchiveEntry
	next    int
}

func (it *sliceIterator) Next() (domain.ArchiveEntry, bool) {
	if it.next >= len(it.entries) {
		return domain.ArchiveEntry{}, false
	}
	e := it.entries[it.next]
	it.next++
	return e, true
}

func fileEntry(path, content string) domain.ArchiveEntry {
	return domain.ArchiveEntry{
		Path:             path,
		UncompressedSize: uint64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func dirEntry(path string) domain.ArchiveEntry {
	return domain.ArchiveEntry{
		Path:  path,
		IsDir: true,
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("directories have no content")
		},
	}
}

// brokenEntry yields partial and then fails with err.
func brokenEntry(path, partial string, err error) domain.ArchiveEntry {
	return domain.ArchiveEntry{
		Path: path,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(io.MultiReader(strings.NewReader(partial), errReader{err: err})), nil
		},
	}
}

type errReader struct {
	err error
}

func (r errReader) Read(p []byte) (int, error) {
	return 0, r.err
}
