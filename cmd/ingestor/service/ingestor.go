package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/codec"
	"github.com/carvault/ingestor/cmd/ingestor/models"
	"github.com/carvault/ingestor/cmd/ingestor/repository"
	"github.com/carvault/ingestor/common/logger"
	"github.com/carvault/ingestor/common/metrics"
	"github.com/carvault/ingestor/common/scheduler"
	"github.com/carvault/ingestor/common/store"
	"github.com/carvault/ingestor/common/worker"
)

// Locator identifies one archive in object storage
type Locator struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ArchiveID derives the record key for this locator
func (l Locator) ArchiveID() string {
	return l.Bucket + "/" + l.Key
}

// blockProgress is captured when a block is submitted for processing,
// so completion callbacks report position without re-reading the stream.
type blockProgress struct {
	cid string
	end uint64
}

// Ingestor drives archives through decode and merge into the block store,
// one archive at a time, and maintains each archive's progress record.
type Ingestor struct {
	blocks      *repository.BlockRepository
	archives    *repository.ArchiveRepository
	merger      *Merger
	opener      carstream.Opener
	codecs      *codec.Registry
	signaler    *worker.Signaler
	concurrency int
	log         *logger.Logger
}

// NewIngestor creates an ingestor over the given store and collaborators.
// concurrency bounds parallel block handling within one archive; 1 means
// strictly sequential. signaler may be nil.
func NewIngestor(st store.Store, opener carstream.Opener, codecs *codec.Registry, signaler *worker.Signaler, concurrency int, log *logger.Logger) *Ingestor {
	blocks := repository.NewBlockRepository(st)
	return &Ingestor{
		blocks:      blocks,
		archives:    repository.NewArchiveRepository(st),
		merger:      NewMerger(blocks, log),
		opener:      opener,
		codecs:      codecs,
		signaler:    signaler,
		concurrency: concurrency,
		log:         log,
	}
}

// IngestBatch processes archives strictly one at a time, in order. The
// first archive failure of any kind aborts the entire remaining batch;
// retrying is safe because completed archives are skipped and block
// writes are idempotent. concurrency overrides the configured per-archive
// block concurrency for this batch; values below 1 fall back to the
// configured default.
func (s *Ingestor) IngestBatch(ctx context.Context, batchID string, locators []Locator, filterExpr string, concurrency int) error {
	log := s.log.WithBatchID(batchID)

	if concurrency < 1 {
		concurrency = s.concurrency
	}

	var filter *ArchiveFilter
	if filterExpr != "" {
		var err error
		filter, err = NewArchiveFilter(filterExpr)
		if err != nil {
			return fmt.Errorf("invalid archive filter: %w", err)
		}
	}

	for _, loc := range locators {
		if filter != nil {
			keep, err := filter.Match(loc)
			if err != nil {
				return fmt.Errorf("archive filter failed for %s: %w", loc.ArchiveID(), err)
			}
			if !keep {
				log.Info("archive filtered out", "archive_id", loc.ArchiveID())
				continue
			}
		}

		if err := s.ingestArchive(ctx, batchID, loc, concurrency); err != nil {
			return fmt.Errorf("ingest archive %s: %w", loc.ArchiveID(), err)
		}
	}

	log.Info("batch complete", "archives", len(locators))
	return nil
}

// IngestArchive runs the per-archive state machine: skip when already
// completed, otherwise reset the progress record, stream every block
// through decode and merge, and mark completion. A failure at any block
// aborts the archive immediately and leaves its record in progress so a
// retry re-attempts from scratch.
func (s *Ingestor) IngestArchive(ctx context.Context, batchID string, loc Locator) error {
	return s.ingestArchive(ctx, batchID, loc, s.concurrency)
}

func (s *Ingestor) ingestArchive(ctx context.Context, batchID string, loc Locator, concurrency int) error {
	archiveID := loc.ArchiveID()
	log := s.log.WithBatchID(batchID).WithArchiveID(archiveID)

	existing, err := s.archives.Get(ctx, archiveID)
	if err != nil {
		return fmt.Errorf("failed to load archive record: %w", err)
	}
	if existing != nil && existing.Completed {
		log.Info("archive already completed, skipping")
		metrics.ArchivesIngested.WithLabelValues("skipped").Inc()
		return nil
	}

	reader, err := s.opener.Open(ctx, loc.Bucket, loc.Key)
	if err != nil {
		metrics.ArchivesIngested.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to open archive stream: %w", err)
	}
	defer reader.Close()

	start := time.Now()

	roots := make([]string, 0, len(reader.Roots()))
	for _, root := range reader.Roots() {
		roots = append(roots, root.String())
	}

	// Full overwrite: partial progress from an earlier failed attempt is
	// discarded, not merged.
	record := &models.ArchiveRecord{
		ArchiveID:       archiveID,
		Bucket:          loc.Bucket,
		Key:             loc.Key,
		CreatedAt:       time.Now().UTC(),
		Roots:           roots,
		Version:         reader.Version(),
		TotalLength:     reader.TotalLength(),
		CurrentPosition: 0,
		Completed:       false,
	}
	if err := s.archives.Reset(ctx, record); err != nil {
		metrics.ArchivesIngested.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to reset archive record: %w", err)
	}

	log.Info("archive ingestion started",
		"roots", len(roots),
		"total_length", record.TotalLength,
		"concurrency", concurrency,
	)

	var stored atomic.Int64
	sched := scheduler.New(concurrency, func(res scheduler.Result) {
		if res.Err != nil {
			return
		}
		done := res.Value.(blockProgress)
		stored.Add(1)
		// Fires in completion order, not submission order. The reader is
		// owned by the driving loop alone; progress is captured at submit
		// time so callbacks never touch it.
		log.Debug("block stored", "cid", done.cid, "position", done.end)
	})

	var readErr error
	for {
		if sched.Failed() {
			break
		}
		blk, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("failed to read archive stream: %w", err)
			break
		}
		progress := blockProgress{cid: blk.CID.String(), end: blk.Offset + blk.Length}
		sched.Submit(func() (any, error) {
			if err := s.processBlock(ctx, archiveID, blk); err != nil {
				return nil, err
			}
			return progress, nil
		})
	}

	taskErr := sched.Wait()
	if readErr == nil {
		readErr = taskErr
	}
	if readErr != nil {
		metrics.ArchivesIngested.WithLabelValues("failed").Inc()
		s.signalCompletion(ctx, log, batchID, archiveID, stored.Load(), time.Since(start), readErr)
		return readErr
	}

	elapsed := time.Since(start)
	if err := s.archives.Complete(ctx, archiveID, record.TotalLength, elapsed); err != nil {
		metrics.ArchivesIngested.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to complete archive record: %w", err)
	}

	metrics.ArchivesIngested.WithLabelValues("completed").Inc()
	metrics.ArchiveDuration.Observe(elapsed.Seconds())
	log.Info("archive completed", "blocks", stored.Load(), "duration_ms", elapsed.Milliseconds())

	s.signalCompletion(ctx, log, batchID, archiveID, stored.Load(), elapsed, nil)
	return nil
}

// processBlock applies the dedup decision rule for a single block: look
// up by content ID; append provenance when the record exists, otherwise
// decode (unless the block carries no payload) and persist the first
// sighting.
func (s *Ingestor) processBlock(ctx context.Context, archiveID string, blk *carstream.Block) error {
	cidStr := blk.CID.String()

	existing, err := s.blocks.Get(ctx, cidStr)
	if err != nil {
		metrics.BlocksProcessed.WithLabelValues("failed").Inc()
		return err
	}

	if existing != nil {
		if err := s.merger.AppendOccurrence(ctx, existing, archiveID, blk); err != nil {
			metrics.BlocksProcessed.WithLabelValues("failed").Inc()
			return err
		}
		metrics.BlocksProcessed.WithLabelValues("duplicate").Inc()
		return nil
	}

	kind := models.KindRaw
	var decoded any
	if blk.Data != nil {
		result, err := s.codecs.Decode(blk)
		if err != nil {
			metrics.BlocksProcessed.WithLabelValues("failed").Inc()
			return err
		}
		kind = result.Kind
		decoded = result.Value
	}

	if err := s.merger.RecordFirstSighting(ctx, archiveID, blk, kind, decoded); err != nil {
		metrics.BlocksProcessed.WithLabelValues("failed").Inc()
		return err
	}
	metrics.BlocksProcessed.WithLabelValues("first_sighting").Inc()
	return nil
}

func (s *Ingestor) signalCompletion(ctx context.Context, log *logger.Logger, batchID, archiveID string, blocks int64, elapsed time.Duration, ingestErr error) {
	if s.signaler == nil {
		return
	}

	opts := &worker.CompletionOpts{
		BatchID:    batchID,
		ArchiveID:  archiveID,
		Status:     "completed",
		Blocks:     blocks,
		DurationMS: elapsed.Milliseconds(),
	}
	if ingestErr != nil {
		opts.Status = "failed"
		opts.Error = ingestErr.Error()
	}

	if err := s.signaler.Signal(ctx, opts); err != nil {
		// Signaling is best-effort; the store is the source of truth.
		log.Warn("failed to signal archive completion", "error", err)
	}
}
