package services

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// EntryFilter decides which archive entries are ingested.
// An entry is eligible when it is a file, its path matches one of the
// patterns and none of its directories is a test directory.
type EntryFilter struct {
	patterns     []string
	testSegments map[string]struct{}
}

// NewEntryFilter creates a filter. Empty arguments fall back to the defaults.
func NewEntryFilter(patterns, testSegments []string) (*EntryFilter, error) {
	if len(patterns) == 0 {
		patterns = domain.DefaultPatterns
	}
	if testSegments == nil {
		testSegments = domain.DefaultTestSegments
	}

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad entry pattern %q", domain.ErrInvalidInput, p)
		}
	}

	segments := make(map[string]struct{}, len(testSegments))
	for _, s := range testSegments {
		segments[s] = struct{}{}
	}

	return &EntryFilter{
		patterns:     append([]string(nil), patterns...),
		testSegments: segments,
	}, nil
}

// Eligible reports whether the entry should be ingested and, if not, why.
// It never fails: anything it cannot classify is ineligible.
func (f *EntryFilter) Eligible(entry domain.ArchiveEntry) (bool, domain.SkipReason) {
	name := toSlash(entry.Path)
	if entry.IsDir || name == "" || strings.HasSuffix(name, "/") {
		return false, domain.SkipDirectory
	}
	if !f.matches(name) {
		return false, domain.SkipPattern
	}
	if f.inTestDirectory(name) {
		return false, domain.SkipTestPath
	}
	return true, domain.SkipNone
}

func (f *EntryFilter) matches(name string) bool {
	for _, p := range f.patterns {
		ok, err := doublestar.Match(p, name)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// inTestDirectory checks the directory segments only; a file named
// "test" is not a test directory.
func (f *EntryFilter) inTestDirectory(name string) bool {
	segments := strings.Split(name, "/")
	for _, seg := range segments[:len(segments)-1] {
		if _, ok := f.testSegments[seg]; ok {
			return true
		}
	}
	return false
}
