package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gradelab/gograder/internal/grader"
	"github.com/gradelab/gograder/internal/models"
	"github.com/gradelab/gograder/internal/plagiarism"
	"github.com/gradelab/gograder/internal/rubric"
)

const sampleSrc = `package main

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	return n * factorial(n - 1)
}
`

type stubBank struct{}

func (stubBank) Fetch(_ context.Context, _ string) *models.Rubric {
	return &models.Rubric{Rubric: "criteria"}
}

var _ rubric.Fetcher = stubBank{}

type panickingBank struct{}

func (panickingBank) Fetch(_ context.Context, _ string) *models.Rubric {
	panic("problem bank connection lost")
}

type stubSaver struct {
	mu      sync.Mutex
	batches [][]models.GradedResult
	err     error
}

func (s *stubSaver) SaveBatch(_ context.Context, results []models.GradedResult, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, results)
	ids := make([]string, len(results))
	return ids, nil
}

type stubRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *stubRecorder) Record(event string, _ map[string]interface{}) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *stubRecorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestOrchestrator(saver ResultSaver, notifier *Notifier, recorder Recorder) (*Orchestrator, *Store) {
	store := NewStore(time.Hour, time.Hour)
	g := grader.New(stubBank{}, nil, 50)
	o := NewOrchestrator(g, plagiarism.New(0.80), store, saver, notifier, recorder, 3)
	return o, store
}

func waitForJob(t *testing.T, store *Store, id string) models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(id)
		if !ok {
			t.Fatalf("job %s vanished", id)
		}
		if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
	return models.Job{}
}

func TestSubmitGradesBatch(t *testing.T) {
	saver := &stubSaver{}
	recorder := &stubRecorder{}
	o, store := newTestOrchestrator(saver, nil, recorder)
	defer o.Stop()

	job := o.Submit(Submission{
		Student: "alice",
		Topic:   "recursion",
		Units: []models.SourceUnit{
			{Name: "factorial.go", Text: sampleSrc},
			{Name: "broken.go", Text: "package main\nfunc oops( {\n"},
		},
	})
	if job.Status != models.JobStatusPending {
		t.Errorf("initial status = %s", job.Status)
	}

	done := waitForJob(t, store, job.ID)
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, error = %q", done.Status, done.Error)
	}
	if len(done.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(done.Results))
	}
	for _, r := range done.Results {
		if !strings.HasPrefix(r.Name, "alice | ") {
			t.Errorf("result name %q not decorated with submitter", r.Name)
		}
		if r.Fingerprint != nil {
			t.Errorf("fingerprint for %q not stripped", r.Name)
		}
	}
	if done.Summary == nil {
		t.Fatal("missing summary")
	}
	if done.Summary.FileCount != 2 {
		t.Errorf("file count = %d", done.Summary.FileCount)
	}
	if done.Summary.AvgScore == nil {
		t.Error("expected an average over the scored results")
	}
	if done.Summary.Persisted != 2 {
		t.Errorf("persisted = %d, want 2", done.Summary.Persisted)
	}
	if !recorder.has("job.submitted") || !recorder.has("job.completed") {
		t.Errorf("audit events = %v", recorder.events)
	}
}

func TestSubmitDefaultsStudentName(t *testing.T) {
	o, store := newTestOrchestrator(nil, nil, nil)
	defer o.Stop()

	job := o.Submit(Submission{Units: []models.SourceUnit{{Name: "f.go", Text: sampleSrc}}})
	done := waitForJob(t, store, job.ID)

	if done.Student != "anonymous" {
		t.Errorf("student = %q", done.Student)
	}
	if !strings.HasPrefix(done.Results[0].Name, "anonymous | ") {
		t.Errorf("result name = %q", done.Results[0].Name)
	}
}

func TestSubmitAlreadyDecoratedNameKept(t *testing.T) {
	o, store := newTestOrchestrator(nil, nil, nil)
	defer o.Stop()

	job := o.Submit(Submission{
		Student: "bob",
		Units:   []models.SourceUnit{{Name: "alice | f.go", Text: sampleSrc}},
	})
	done := waitForJob(t, store, job.ID)

	if done.Results[0].Name != "alice | f.go" {
		t.Errorf("decorated name rewritten to %q", done.Results[0].Name)
	}
}

func TestSubmitEmptyBatchFails(t *testing.T) {
	recorder := &stubRecorder{}
	o, store := newTestOrchestrator(nil, nil, recorder)
	defer o.Stop()

	job := o.Submit(Submission{Student: "alice"})
	done := waitForJob(t, store, job.ID)

	if done.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if done.Error != "no valid files found" {
		t.Errorf("error = %q", done.Error)
	}
	if !recorder.has("job.failed") {
		t.Errorf("audit events = %v", recorder.events)
	}
}

func TestSubmitSaveFailureDoesNotFailJob(t *testing.T) {
	saver := &stubSaver{err: errors.New("db is down")}
	o, store := newTestOrchestrator(saver, nil, nil)
	defer o.Stop()

	job := o.Submit(Submission{
		Student: "alice",
		Units:   []models.SourceUnit{{Name: "f.go", Text: sampleSrc}},
	})
	done := waitForJob(t, store, job.ID)

	if done.Status != models.JobStatusCompleted {
		t.Fatalf("status = %s, persistence trouble must not fail the job", done.Status)
	}
	if done.Summary.Persisted != 0 {
		t.Errorf("persisted = %d, want 0", done.Summary.Persisted)
	}
}

func TestSubmitFlagsDuplicates(t *testing.T) {
	recorder := &stubRecorder{}
	o, store := newTestOrchestrator(nil, nil, recorder)
	defer o.Stop()

	job := o.Submit(Submission{
		Student: "class",
		Units: []models.SourceUnit{
			{Name: "a.go", Text: sampleSrc},
			{Name: "b.go", Text: sampleSrc},
		},
	})
	done := waitForJob(t, store, job.ID)

	for _, r := range done.Results {
		if r.Status != models.ResultStatusFlag {
			t.Errorf("%q status = %s, want FLAG for identical submissions", r.Name, r.Status)
		}
	}
	if !recorder.has("result.flagged") {
		t.Errorf("audit events = %v", recorder.events)
	}
}

func TestSubmitPanicMarksJobFailed(t *testing.T) {
	// A nil detector makes the post-barrier step panic; the job must fail
	// with the message captured rather than crash the daemon.
	store := NewStore(time.Hour, time.Hour)
	g := grader.New(stubBank{}, nil, 50)
	o := NewOrchestrator(g, nil, store, nil, nil, nil, 2)
	defer o.Stop()

	job := o.Submit(Submission{Units: []models.SourceUnit{
		{Name: "a.go", Text: sampleSrc},
		{Name: "b.go", Text: sampleSrc},
	}})
	done := waitForJob(t, store, job.ID)

	if done.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed after panic", done.Status)
	}
	if done.Error == "" {
		t.Error("panic message not captured")
	}
}

func TestSubmitCollaboratorPanicFailsJob(t *testing.T) {
	// A panic on a unit goroutine, here from the rubric fetcher, must fail
	// the job with the message captured rather than crash the daemon.
	store := NewStore(time.Hour, time.Hour)
	g := grader.New(panickingBank{}, nil, 50)
	o := NewOrchestrator(g, plagiarism.New(0.80), store, nil, nil, nil, 2)
	defer o.Stop()

	job := o.Submit(Submission{
		Student: "alice",
		Units: []models.SourceUnit{
			{Name: "a.go", Text: sampleSrc},
			{Name: "b.go", Text: sampleSrc},
		},
	})
	done := waitForJob(t, store, job.ID)

	if done.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed after grading panic", done.Status)
	}
	if !strings.Contains(done.Error, "problem bank connection lost") {
		t.Errorf("error = %q", done.Error)
	}
}

func TestCompletionWebhookDelivered(t *testing.T) {
	var mu sync.Mutex
	var got *Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p Payload
		if err := json.Unmarshal(body, &p); err == nil {
			mu.Lock()
			got = &p
			mu.Unlock()
		}
	}))
	defer srv.Close()

	notifier := testNotifier()
	o, store := newTestOrchestrator(nil, notifier, nil)

	job := o.Submit(Submission{
		Student:     "alice",
		CallbackURL: srv.URL,
		Units:       []models.SourceUnit{{Name: "f.go", Text: sampleSrc}},
	})
	waitForJob(t, store, job.ID)
	o.Stop() // drains the notifier

	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatal("webhook never arrived")
	}
	if got.Event != "grading_completed" || got.JobID != job.ID {
		t.Errorf("payload = %+v", got)
	}
	if len(got.Results) != 1 || got.Summary == nil {
		t.Errorf("payload results/summary missing: %+v", got)
	}
}
