// Package server provides the HTTP API and service layer for graderd.
package server

import (
	"context"

	"github.com/gradelab/gograder/internal/jobs"
	"github.com/gradelab/gograder/internal/models"
	"github.com/gradelab/gograder/internal/store"
)

// Service provides the grading API business logic.
type Service struct {
	orchestrator *jobs.Orchestrator
	jobs         *jobs.Store
	results      *store.Store
}

// NewService creates a new API service. The results store may be nil; score
// and statistics queries are then disabled.
func NewService(o *jobs.Orchestrator, jobStore *jobs.Store, results *store.Store) *Service {
	return &Service{
		orchestrator: o,
		jobs:         jobStore,
		results:      results,
	}
}

// SubmitJob validates and enqueues one grading submission. An empty batch is
// accepted here and fails asynchronously, mirroring how callers poll for
// everything else about the job.
func (s *Service) SubmitJob(sub jobs.Submission) (models.Job, error) {
	for _, unit := range sub.Units {
		if unit.Name == "" {
			return models.Job{}, ErrMissingFileName
		}
	}
	return s.orchestrator.Submit(sub), nil
}

// GetJob returns a snapshot of one job.
func (s *Service) GetJob(id string) (models.Job, error) {
	job, ok := s.jobs.Get(id)
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	return job, nil
}

// ScoresByStudent returns the persisted results for one student.
func (s *Service) ScoresByStudent(ctx context.Context, student string) ([]models.ScoreRecord, error) {
	if s.results == nil {
		return nil, ErrStoreDisabled
	}
	return s.results.ScoresByStudent(ctx, student)
}

// ScoresByAssignment returns the persisted results for one assignment code.
func (s *Service) ScoresByAssignment(ctx context.Context, code string) ([]models.ScoreRecord, error) {
	if s.results == nil {
		return nil, ErrStoreDisabled
	}
	return s.results.ScoresByAssignment(ctx, code)
}

// Stats aggregates the persisted scores, optionally per assignment.
func (s *Service) Stats(ctx context.Context, assignmentCode string) (*models.ScoreStats, error) {
	if s.results == nil {
		return nil, ErrStoreDisabled
	}
	return s.results.Stats(ctx, assignmentCode)
}

// PingDB reports whether the results store is reachable.
func (s *Service) PingDB(ctx context.Context) error {
	if s.results == nil {
		return ErrStoreDisabled
	}
	return s.results.Ping(ctx)
}
