package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recorder persists usage records asynchronously and keeps the Redis
// counters in step. Records are dropped, with a warning, if the buffer
// fills; the counters have already been updated by then so entitlement
// checks stay accurate.
type Recorder struct {
	repo     Repository
	counters *Counters
	logger   *zap.Logger
	buffer   chan *Record
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewRecorder creates a new usage recorder.
func NewRecorder(repo Repository, counters *Counters, logger *zap.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	r := &Recorder{
		repo:     repo,
		counters: counters,
		logger:   logger,
		buffer:   make(chan *Record, bufferSize),
		done:     make(chan struct{}),
	}
	r.start()
	return r
}

// RecordTokens counts a token spend and queues the durable record.
func (r *Recorder) RecordTokens(ctx context.Context, record *Record) {
	record.Kind = KindTokens
	if r.counters != nil && record.Tokens > 0 {
		if _, err := r.counters.AddTokens(ctx, record.OrgID, record.Tokens); err != nil {
			r.logger.Error("failed to increment token counter",
				zap.Error(err),
				zap.String("org_id", record.OrgID.String()),
			)
		}
	}
	r.enqueue(record)
}

// RecordAPICall counts one API call and queues the durable record.
func (r *Recorder) RecordAPICall(ctx context.Context, record *Record) {
	record.Kind = KindAPICall
	if r.counters != nil {
		if _, err := r.counters.AddAPICall(ctx, record.OrgID); err != nil {
			r.logger.Error("failed to increment api call counter",
				zap.Error(err),
				zap.String("org_id", record.OrgID.String()),
			)
		}
	}
	r.enqueue(record)
}

// RecordEvent queues a non-token usage event (document, message).
func (r *Recorder) RecordEvent(record *Record) {
	r.enqueue(record)
}

func (r *Recorder) enqueue(record *Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	select {
	case r.buffer <- record:
		// Successfully queued
	default:
		r.logger.Warn("usage record buffer full, dropping record",
			zap.String("request_id", record.RequestID),
		)
	}
}

// Close stops the recorder and flushes remaining records.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case record := <-r.buffer:
				r.persist(record)
			case <-r.done:
				// Flush remaining records
				for {
					select {
					case record := <-r.buffer:
						r.persist(record)
					default:
						return
					}
				}
			}
		}
	}()
}

func (r *Recorder) persist(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.CreateRecord(ctx, record); err != nil {
		r.logger.Error("failed to persist usage record",
			zap.Error(err),
			zap.String("org_id", record.OrgID.String()),
		)
	}
}
