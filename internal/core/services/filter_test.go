package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestNewEntryFilter_Defaults(t *testing.T) {
	f, err := NewEntryFilter(nil, nil)
	require.NoError(t, err)

	ok, _ := f.Eligible(fileEntry("abc123/lib/foo.rb", ""))
	assert.True(t, ok)

	ok, reason := f.Eligible(fileEntry("abc123/lib/foo.py", ""))
	assert.False(t, ok)
	assert.Equal(t, domain.SkipPattern, reason)
}

func TestNewEntryFilter_InvalidPattern(t *testing.T) {
	_, err := NewEntryFilter([]string{"**/*.{rb"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEntryFilter_Eligible(t *testing.T) {
	f, err := NewEntryFilter([]string{"**/*.rb", "**/*.rake"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		entry  domain.ArchiveEntry
		want   bool
		reason domain.SkipReason
	}{
		{"ruby source", fileEntry("abc123/lib/foo.rb", ""), true, domain.SkipNone},
		{"second pattern", fileEntry("abc123/lib/tasks/db.rake", ""), true, domain.SkipNone},
		{"top level file", fileEntry("abc123/Rakefile.rb", ""), true, domain.SkipNone},
		{"directory flag", dirEntry("abc123/lib.rb"), false, domain.SkipDirectory},
		{"directory marker", fileEntry("abc123/lib/", ""), false, domain.SkipDirectory},
		{"empty name", fileEntry("", ""), false, domain.SkipDirectory},
		{"other extension", fileEntry("abc123/README.md", ""), false, domain.SkipPattern},
		{"spec directory", fileEntry("abc123/spec/foo_spec.rb", ""), false, domain.SkipTestPath},
		{"nested test directory", fileEntry("abc123/lib/test/helper.rb", ""), false, domain.SkipTestPath},
		{"test segment case sensitive", fileEntry("abc123/Test/helper.rb", ""), true, domain.SkipNone},
		{"segment only containing test", fileEntry("abc123/latest/foo.rb", ""), true, domain.SkipNone},
		{"specs is not spec", fileEntry("abc123/specs/foo.rb", ""), true, domain.SkipNone},
		{"file named test", fileEntry("abc123/lib/test.rb", ""), true, domain.SkipNone},
		{"backslash separators", fileEntry("abc123\\spec\\foo_spec.rb", ""), false, domain.SkipTestPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := f.Eligible(tt.entry)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEntryFilter_TestDirectoryBeatsExtension(t *testing.T) {
	f, err := NewEntryFilter([]string{"**/*"}, nil)
	require.NoError(t, err)

	for _, path := range []string{
		"root/test/fixtures/data.json",
		"root/spec/support/helpers.rb",
		"root/app/spec/models/user_spec.rb",
	} {
		ok, reason := f.Eligible(fileEntry(path, ""))
		assert.False(t, ok, path)
		assert.Equal(t, domain.SkipTestPath, reason, path)
	}
}

func TestEntryFilter_CustomTestSegments(t *testing.T) {
	f, err := NewEntryFilter(nil, []string{"fixtures"})
	require.NoError(t, err)

	ok, _ := f.Eligible(fileEntry("r/spec/foo_spec.rb", ""))
	assert.True(t, ok, "spec is only excluded by default")

	ok, reason := f.Eligible(fileEntry("r/fixtures/foo.rb", ""))
	assert.False(t, ok)
	assert.Equal(t, domain.SkipTestPath, reason)
}
