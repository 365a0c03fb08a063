package domain

import "time"

// IngestionState is a step of the ingestion pipeline.
// Transitions are strictly sequential; StateFailed is reachable from any step.
type IngestionState string

const (
	StateFetching    IngestionState = "fetching"
	StateReading     IngestionState = "reading"
	StateFiltering   IngestionState = "filtering"
	StatePersisting  IngestionState = "persisting"
	StateDispatching IngestionState = "dispatching"
	StateDone        IngestionState = "done"
	StateFailed      IngestionState = "failed"
)

// SkipReason explains why an archive entry was not ingested.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipDirectory SkipReason = "directory"
	SkipPattern   SkipReason = "pattern"
	SkipTestPath  SkipReason = "test_path"
)

// Default limits guarding against oversized or hostile archives.
const (
	DefaultMaxArchiveBytes  int64 = 256 << 20
	DefaultMaxEntryBytes    int64 = 5 << 20
	DefaultMaxSnapshotBytes int64 = 128 << 20
	DefaultMaxEntries             = 50000
	DefaultFetchTimeout           = 2 * time.Minute
)

// DefaultPatterns selects Ruby sources.
var DefaultPatterns = []string{"**/*.rb"}

// DefaultTestSegments are directory names whose contents are never ingested.
var DefaultTestSegments = []string{"spec", "test"}

// IngestionConfig holds the tunables of an ingestion run.
type IngestionConfig struct {
	// Patterns are doublestar globs matched against the raw entry path
	Patterns []string

	// TestSegments are directory names excluded from ingestion
	TestSegments []string

	// MaxArchiveBytes caps the downloaded archive size
	MaxArchiveBytes int64

	// MaxEntryBytes caps a single decompressed entry
	MaxEntryBytes int64

	// MaxSnapshotBytes caps the total decompressed content of a run
	MaxSnapshotBytes int64

	// MaxEntries caps the number of records in the archive directory
	MaxEntries int

	// FetchTimeout bounds the whole download
	FetchTimeout time.Duration
}

// DefaultIngestionConfig returns sensible defaults
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		Patterns:         append([]string(nil), DefaultPatterns...),
		TestSegments:     append([]string(nil), DefaultTestSegments...),
		MaxArchiveBytes:  DefaultMaxArchiveBytes,
		MaxEntryBytes:    DefaultMaxEntryBytes,
		MaxSnapshotBytes: DefaultMaxSnapshotBytes,
		MaxEntries:       DefaultMaxEntries,
		FetchTimeout:     DefaultFetchTimeout,
	}
}

// IngestionResult is the outcome of a successful run.
type IngestionResult struct {
	ProjectID        string             `json:"project_id"`
	Files            []*SourceFile      `json:"files"`
	EntriesSeen      int                `json:"entries_seen"`
	Skipped          map[SkipReason]int `json:"skipped"`
	Collisions       int                `json:"collisions"`
	ToleratedReads   int                `json:"tolerated_reads"`
	DispatchFailures int                `json:"dispatch_failures"`
	Transactional    bool               `json:"transactional"`
	Duration         time.Duration      `json:"duration"`
}
