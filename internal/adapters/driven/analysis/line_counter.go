package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileAnalyser = (*LineCounter)(nil)

// LineCounter is a minimal analyser: it loads a source file and logs its
// line and byte counts.
type LineCounter struct {
	files  driven.SourceFileStore
	logger *slog.Logger
}

// NewLineCounter creates a LineCounter reading from files.
func NewLineCounter(files driven.SourceFileStore, logger *slog.Logger) *LineCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineCounter{files: files, logger: logger}
}

// Stats holds the counts computed for one file.
type Stats struct {
	Lines int
	Bytes int
}

// Count returns the line and byte counts of content. A trailing line
// without a newline still counts.
func Count(content string) Stats {
	stats := Stats{Bytes: len(content)}
	if content == "" {
		return stats
	}
	stats.Lines = strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		stats.Lines++
	}
	return stats
}

// Analyse loads the file and logs its counts.
func (c *LineCounter) Analyse(ctx context.Context, fileID string) error {
	file, err := c.files.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load source file %s: %w", fileID, err)
	}

	stats := Count(file.Content)
	c.logger.Info("source file analysed",
		"file_id", file.ID,
		"project_id", file.ProjectID,
		"path", file.Path,
		"lines", stats.Lines,
		"bytes", stats.Bytes,
	)
	return nil
}
