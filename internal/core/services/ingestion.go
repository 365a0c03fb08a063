package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IngestionService = (*IngestionPipeline)(nil)

// IngestionPipeline replaces a project's source snapshot from its archive.
// It runs the steps in order:
//  1. Fetch the archive into a temporary file
//  2. Open it as a zip
//  3. Filter, normalise and read every entry into a Snapshot
//  4. Replace the project's source files with the Snapshot
//  5. Enqueue analysis of every new file
//
// Nothing is destroyed before step 4, so fetch, archive and path errors
// leave the previous snapshot untouched. The temporary archive is always
// released. Callers must not ingest the same project concurrently.
type IngestionPipeline struct {
	projects driven.ProjectStore
	fetcher  driven.ArchiveFetcher
	reader   driven.ArchiveReader
	filter   *EntryFilter
	replacer *SnapshotReplacer
	notifier *DispatchNotifier
	config   domain.IngestionConfig
	logger   *slog.Logger
}

// IngestionPipelineConfig holds dependencies for IngestionPipeline.
type IngestionPipelineConfig struct {
	ProjectStore    driven.ProjectStore
	SourceFileStore driven.SourceFileStore
	TaskQueue       driven.TaskQueue // Optional: nil disables analysis dispatch
	Fetcher         driven.ArchiveFetcher
	Reader          driven.ArchiveReader
	Ingestion       domain.IngestionConfig
	Logger          *slog.Logger
}

// NewIngestionPipeline creates a new ingestion pipeline.
func NewIngestionPipeline(cfg IngestionPipelineConfig) (*IngestionPipeline, error) {
	if cfg.SourceFileStore == nil || cfg.Fetcher == nil || cfg.Reader == nil {
		return nil, fmt.Errorf("%w: source file store, fetcher and reader are required", domain.ErrInvalidInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filter, err := NewEntryFilter(cfg.Ingestion.Patterns, cfg.Ingestion.TestSegments)
	if err != nil {
		return nil, err
	}

	return &IngestionPipeline{
		projects: cfg.ProjectStore,
		fetcher:  cfg.Fetcher,
		reader:   cfg.Reader,
		filter:   filter,
		replacer: NewSnapshotReplacer(cfg.SourceFileStore, logger),
		notifier: NewDispatchNotifier(cfg.TaskQueue, logger),
		config:   cfg.Ingestion,
		logger:   logger,
	}, nil
}

// IngestProject loads the project and ingests its archive.
func (p *IngestionPipeline) IngestProject(ctx context.Context, projectID string) (*domain.IngestionResult, error) {
	if p.projects == nil {
		return nil, fmt.Errorf("%w: no project store configured", domain.ErrInvalidInput)
	}
	project, err := p.projects.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	return p.Ingest(ctx, project)
}

// Ingest runs the pipeline for project.
func (p *IngestionPipeline) Ingest(ctx context.Context, project *domain.Project) (*domain.IngestionResult, error) {
	if project == nil || project.ID == "" || project.ArchiveURL == "" {
		return nil, fmt.Errorf("%w: project with ID and archive URL is required", domain.ErrInvalidInput)
	}

	startTime := time.Now()
	logger := p.logger.With("project_id", project.ID)
	run := &ingestionRun{logger: logger}

	result := &domain.IngestionResult{
		ProjectID: project.ID,
		Skipped:   make(map[domain.SkipReason]int),
	}

	logger.Info("starting ingestion", "url", project.ArchiveURL)

	// Step 1: Fetch
	run.enter(domain.StateFetching)
	archive, err := p.fetch(ctx, project)
	if err != nil {
		return nil, run.fail(err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn("failed to release temporary archive", "error", err)
		}
	}()

	// Step 2: Open
	run.enter(domain.StateReading)
	entries, err := p.reader.Open(archive)
	if err != nil {
		return nil, run.fail(err)
	}

	// Step 3: Filter, normalise, read
	run.enter(domain.StateFiltering)
	snap, err := p.collect(ctx, logger, entries, result)
	if err != nil {
		return nil, run.fail(err)
	}

	// Step 4: Replace
	run.enter(domain.StatePersisting)
	files, transactional, err := p.replacer.Replace(ctx, project.ID, snap)
	if err != nil {
		return nil, run.fail(err)
	}
	result.Files = files
	result.Transactional = transactional

	// Step 5: Dispatch
	run.enter(domain.StateDispatching)
	result.DispatchFailures = p.notifier.Notify(ctx, files)

	run.enter(domain.StateDone)
	result.Duration = time.Since(startTime)

	logger.Info("ingestion completed",
		"files", len(files),
		"entries", result.EntriesSeen,
		"collisions", result.Collisions,
		"dispatch_failures", result.DispatchFailures,
		"duration", result.Duration,
	)

	return result, nil
}

func (p *IngestionPipeline) fetch(ctx context.Context, project *domain.Project) (driven.FetchedArchive, error) {
	if p.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.FetchTimeout)
		defer cancel()
	}
	return p.fetcher.Fetch(ctx, project.ArchiveURL, project.Slug())
}

// collect walks the archive once and builds the snapshot. Paths are
// validated here, before anything is destroyed.
func (p *IngestionPipeline) collect(ctx context.Context, logger *slog.Logger, entries driven.EntryIterator, result *domain.IngestionResult) (*domain.Snapshot, error) {
	snap := domain.NewSnapshot()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, ok := entries.Next()
		if !ok {
			break
		}
		result.EntriesSeen++

		eligible, reason := p.filter.Eligible(entry)
		if !eligible {
			result.Skipped[reason]++
			continue
		}

		path, err := NormalisePath(entry.Path)
		if err != nil {
			return nil, err
		}

		logger.Info("extracting entry", "path", entry.Path)

		content, err := p.readEntry(entry)
		switch {
		case errors.Is(err, domain.ErrPartialReadTolerated):
			// TODO: drop once checksum mismatches are confirmed to never hide truncated reads
			logger.Warn("ignoring entry read error", "path", entry.Path, "error", err)
			result.ToleratedReads++
		case err != nil:
			logger.Error("failed to read entry", "path", entry.Path, "error", err)
			return nil, &domain.EntryReadError{Path: entry.Path, Err: err}
		}

		if snap.Add(path, content) {
			result.Collisions++
			logger.Warn("duplicate normalised path, keeping later entry", "path", path)
		}

		if limit := p.config.MaxSnapshotBytes; limit > 0 && snap.Bytes() > limit {
			return nil, &domain.EntryReadError{
				Path: entry.Path,
				Err:  fmt.Errorf("snapshot exceeds %d bytes", limit),
			}
		}
	}

	return snap, nil
}

// readEntry returns the entry's bytes. On a tolerated error the content
// read so far is returned together with the error.
func (p *IngestionPipeline) readEntry(entry domain.ArchiveEntry) ([]byte, error) {
	if entry.Open == nil {
		return nil, errors.New("entry has no content stream")
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := p.config.MaxEntryBytes
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}

	content, err := io.ReadAll(r)
	if limit > 0 && int64(len(content)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return content, err
}

// ingestionRun tracks the pipeline state of one run.
type ingestionRun struct {
	state  domain.IngestionState
	logger *slog.Logger
}

func (r *ingestionRun) enter(state domain.IngestionState) {
	r.logger.Debug("ingestion state", "from", r.state, "to", state)
	r.state = state
}

func (r *ingestionRun) fail(err error) error {
	r.logger.Error("ingestion failed", "state", r.state, "error", err)
	failed := &domain.StageError{State: r.state, Err: err}
	r.state = domain.StateFailed
	return failed
}
