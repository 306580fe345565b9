package application

import (
	"context"
	"errors"
	"time"

	rollups "opsboard/internal/rollups/domain"
)

// QueueRepository provides the per-tenant recompute queue.
type QueueRepository interface {
	// Get returns the pending entry for an org, or nil.
	Get(ctx context.Context, orgID string) (*rollups.QueueEntry, error)
	// GetAny returns an arbitrary pending entry, or nil.
	GetAny(ctx context.Context) (*rollups.QueueEntry, error)
	// DeleteMatching removes the entry only when its span is unchanged,
	// keeping a concurrently widened entry alive.
	DeleteMatching(ctx context.Context, entry rollups.QueueEntry) error
}

// AnomalyDetector scans fresh rollups for drops after a recompute.
type AnomalyDetector interface {
	Detect(ctx context.Context, orgID string) (int, error)
}

// Pipeline couples a full recompute with anomaly detection. This is the only
// write path into the rollup and anomaly stores.
type Pipeline struct {
	recompute *RecomputeService
	detector  AnomalyDetector
}

// NewPipeline constructs a pipeline.
func NewPipeline(recompute *RecomputeService, detector AnomalyDetector) (*Pipeline, error) {
	if recompute == nil {
		return nil, errors.New("pipeline: nil recompute service")
	}
	if detector == nil {
		return nil, errors.New("pipeline: nil detector")
	}
	return &Pipeline{recompute: recompute, detector: detector}, nil
}

// RecomputeAndDetect recomputes the range, then scans the trailing window for
// anomalies. Returns rollups upserted and anomalies created.
func (p *Pipeline) RecomputeAndDetect(ctx context.Context, orgID string, startDate, endDate time.Time) (int, int, error) {
	if p == nil {
		return 0, 0, errors.New("pipeline: nil pipeline")
	}
	upserted, err := p.recompute.Recompute(ctx, orgID, startDate, endDate)
	if err != nil {
		return 0, 0, err
	}
	created, err := p.detector.Detect(ctx, orgID)
	if err != nil {
		return upserted, 0, err
	}
	return upserted, created, nil
}

// ProcessResult reports a single queue pop.
type ProcessResult struct {
	Ran       bool   `json:"ran"`
	OrgID     string `json:"orgId,omitempty"`
	Upserted  int    `json:"upserted"`
	Anomalies int    `json:"anomalies"`
}

// DrainResult reports a bounded drain.
type DrainResult struct {
	Processed int `json:"processed"`
	Upserted  int `json:"upserted"`
	Anomalies int `json:"anomalies"`
}

// QueueProcessor drains the recompute queue one tenant job at a time.
type QueueProcessor struct {
	queue    QueueRepository
	pipeline *Pipeline
}

// NewQueueProcessor constructs a processor.
func NewQueueProcessor(queue QueueRepository, pipeline *Pipeline) (*QueueProcessor, error) {
	if queue == nil {
		return nil, errors.New("queue processor: nil queue repository")
	}
	if pipeline == nil {
		return nil, errors.New("queue processor: nil pipeline")
	}
	return &QueueProcessor{queue: queue, pipeline: pipeline}, nil
}

// ProcessOnce pops one pending job (for the given org, or any if empty),
// recomputes its span, runs detection, and deletes the entry it processed.
// The job is all-or-nothing: the entry survives any failure and the whole
// span is retried on the next invocation.
func (p *QueueProcessor) ProcessOnce(ctx context.Context, orgID string) (ProcessResult, error) {
	if p == nil {
		return ProcessResult{}, errors.New("queue processor: nil processor")
	}

	var (
		entry *rollups.QueueEntry
		err   error
	)
	if orgID != "" {
		entry, err = p.queue.Get(ctx, orgID)
	} else {
		entry, err = p.queue.GetAny(ctx)
	}
	if err != nil {
		return ProcessResult{}, err
	}
	if entry == nil {
		return ProcessResult{}, nil
	}
	if err := entry.Validate(); err != nil {
		return ProcessResult{}, err
	}

	upserted, created, err := p.pipeline.RecomputeAndDetect(ctx, entry.OrgID, entry.MinDate, entry.MaxDate)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := p.queue.DeleteMatching(ctx, *entry); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Ran: true, OrgID: entry.OrgID, Upserted: upserted, Anomalies: created}, nil
}

// Drain repeatedly processes pending jobs up to cap, to keep a single request
// from running unbounded work.
func (p *QueueProcessor) Drain(ctx context.Context, orgID string, cap int) (DrainResult, error) {
	if cap <= 0 {
		cap = 1
	}
	var result DrainResult
	for i := 0; i < cap; i++ {
		res, err := p.ProcessOnce(ctx, orgID)
		if err != nil {
			return result, err
		}
		if !res.Ran {
			break
		}
		result.Processed++
		result.Upserted += res.Upserted
		result.Anomalies += res.Anomalies
	}
	return result, nil
}
