package driven

import "context"

// FileAnalyser is the downstream consumer of persisted source files.
type FileAnalyser interface {
	// Analyse processes the source file with the given ID
	Analyse(ctx context.Context, fileID string) error
}
