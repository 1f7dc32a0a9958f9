package jobs

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradelab/gograder/internal/grader"
	"github.com/gradelab/gograder/internal/models"
	"github.com/gradelab/gograder/internal/plagiarism"
)

// ResultSaver persists a graded batch and returns the stored row ids.
type ResultSaver interface {
	SaveBatch(ctx context.Context, results []models.GradedResult, assignmentCode string) ([]string, error)
}

// Recorder writes audit events. Implementations must not block grading.
type Recorder interface {
	Record(event string, details map[string]interface{})
}

// Submission is one grading request as accepted by the orchestrator.
type Submission struct {
	Units          []models.SourceUnit
	Topic          string
	Student        string
	AssignmentCode string
	CallbackURL    string
}

// Orchestrator runs grading jobs. Per-unit grading tasks across all jobs
// share one semaphore bounding concurrent reviewer calls. Saver, notifier
// and recorder are optional.
type Orchestrator struct {
	grader   *grader.Grader
	detector *plagiarism.Detector
	store    *Store
	saver    ResultSaver
	notifier *Notifier
	recorder Recorder

	sem chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(g *grader.Grader, det *plagiarism.Detector, store *Store, saver ResultSaver, notifier *Notifier, recorder Recorder, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		grader:   g,
		detector: det,
		store:    store,
		saver:    saver,
		notifier: notifier,
		recorder: recorder,
		sem:      make(chan struct{}, maxConcurrent),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit registers a new job and starts grading it in the background. The
// returned snapshot carries the id callers poll with. Every submission also
// triggers an eager sweep of expired jobs.
func (o *Orchestrator) Submit(sub Submission) models.Job {
	o.store.Sweep()

	if sub.Student == "" {
		sub.Student = "anonymous"
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobStatusPending,
		Student:   sub.Student,
		CreatedAt: time.Now(),
	}
	o.store.Put(job)
	o.record("job.submitted", map[string]interface{}{
		"job_id":  job.ID,
		"student": sub.Student,
		"files":   len(sub.Units),
		"topic":   sub.Topic,
	})

	o.wg.Add(1)
	go o.run(job.ID, sub)

	return *job
}

// Stop cancels in-flight grading, waits for running jobs, then drains the
// notifier.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
	if o.notifier != nil {
		o.notifier.Stop()
	}
}

func (o *Orchestrator) run(jobID string, sub Submission) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("jobs: job %.8s panicked: %v", jobID, r)
			o.fail(jobID, fmt.Sprint(r))
		}
	}()

	start := time.Now()
	o.store.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusProcessing })

	if len(sub.Units) == 0 {
		o.fail(jobID, "no valid files found")
		return
	}

	// Grade all units concurrently under the shared semaphore, then hold
	// at the barrier: similarity detection needs the complete batch.
	// A panic on a unit goroutine is captured and re-raised after the
	// barrier, where the job-level recover fails the job.
	results := make([]models.GradedResult, len(sub.Units))
	var (
		batch     sync.WaitGroup
		panicOnce sync.Once
		unitPanic interface{}
	)
	for i, unit := range sub.Units {
		batch.Add(1)
		go func(i int, unit models.SourceUnit) {
			defer batch.Done()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { unitPanic = r })
				}
			}()
			o.sem <- struct{}{}
			defer func() { <-o.sem }()
			results[i] = o.grader.Grade(o.ctx, unit, sub.Topic)
		}(i, unit)
	}
	batch.Wait()
	if unitPanic != nil {
		panic(unitPanic)
	}

	results = o.detector.Check(results)

	for i := range results {
		if !strings.Contains(results[i].Name, " | ") {
			results[i].Name = sub.Student + " | " + results[i].Name
		}
		if results[i].Status == models.ResultStatusFlag {
			o.record("result.flagged", map[string]interface{}{
				"job_id": jobID,
				"file":   results[i].Name,
				"notes":  results[i].Notes,
			})
		}
	}

	saved := 0
	if o.saver != nil {
		ids, err := o.saver.SaveBatch(o.ctx, results, sub.AssignmentCode)
		if err != nil {
			log.Printf("jobs: batch save for job %.8s failed: %v", jobID, err)
		} else {
			saved = len(ids)
		}
	}

	summary := &models.JobSummary{
		FileCount:  len(results),
		AvgScore:   averageScore(results),
		ElapsedSec: math.Round(time.Since(start).Seconds()*10) / 10,
		Persisted:  saved,
	}

	o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Results = results
		j.Summary = summary
	})
	o.record("job.completed", map[string]interface{}{
		"job_id":      jobID,
		"files":       summary.FileCount,
		"avg_score":   summary.AvgScore,
		"elapsed_sec": summary.ElapsedSec,
		"saved":       saved,
	})
	log.Printf("jobs: job %.8s completed: %d files in %.1fs", jobID, summary.FileCount, summary.ElapsedSec)

	if sub.CallbackURL != "" && o.notifier != nil {
		o.notifier.Dispatch(sub.CallbackURL, Payload{
			Event:   "grading_completed",
			JobID:   jobID,
			Results: results,
			Summary: summary,
		})
	}
}

func (o *Orchestrator) fail(jobID, message string) {
	o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.Error = message
	})
	o.record("job.failed", map[string]interface{}{
		"job_id": jobID,
		"error":  message,
	})
}

func (o *Orchestrator) record(event string, details map[string]interface{}) {
	if o.recorder != nil {
		o.recorder.Record(event, details)
	}
}

// averageScore averages the scored results only, rounded to one decimal.
// A batch with no scores has no average.
func averageScore(results []models.GradedResult) *float64 {
	sum, n := 0, 0
	for _, r := range results {
		if r.TotalScore != nil {
			sum += *r.TotalScore
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(float64(sum)/float64(n)*10) / 10
	return &avg
}
