package optimizer

import (
	"context"
	"runtime"
	"sync"

	apperrors "go-menu-analyzer/internal/errors"
	"go-menu-analyzer/pkg/models"
)

// WorkerPool runs quality assessments concurrently. Callers that hold
// several candidate photos of the same menu use it to pick the best one
// before spending an analysis on it.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	once     sync.Once
}

// NewWorkerPool creates a worker pool. workers <= 0 means one per CPU.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Safe to call more than once.
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job func()) {
	wp.jobQueue <- job
}

// Close shuts the pool down. No Submit may follow.
func (wp *WorkerPool) Close() {
	close(wp.jobQueue)
}

// BatchAssessment is the verdict for one photo in a batch.
type BatchAssessment struct {
	Index      int                      `json:"index"`
	Assessment models.QualityAssessment `json:"assessment"`
	Err        error                    `json:"-"`
}

// AssessBatch assesses every photo concurrently and returns the verdicts in
// input order. A photo that cannot be decoded gets an error verdict; the
// rest of the batch is unaffected.
func (wp *WorkerPool) AssessBatch(ctx context.Context, opt ImageOptimizer, photos [][]byte) []BatchAssessment {
	wp.Start()

	results := make([]BatchAssessment, len(photos))
	var wg sync.WaitGroup

	for i, photo := range photos {
		if err := ctx.Err(); err != nil {
			results[i] = BatchAssessment{Index: i, Err: apperrors.NewCancelledError("assessment cancelled", err)}
			continue
		}

		i, photo := i, photo
		wg.Add(1)
		wp.Submit(func() {
			defer wg.Done()
			assessment, err := opt.AssessQuality(photo)
			results[i] = BatchAssessment{Index: i, Assessment: assessment, Err: err}
		})
	}

	wg.Wait()
	return results
}
