// Package jobs tracks grading jobs in memory, runs them under a bounded
// worker pool, and delivers completion webhooks.
package jobs

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/gradelab/gograder/internal/models"
)

const shardCount = 16

// Store is the in-memory job table. Jobs are spread over a fixed set of
// shards to keep submit/poll contention low; each shard has its own lock.
// Expired jobs are removed by a periodic reaper and eagerly on submission.
type Store struct {
	ttl           time.Duration
	sweepInterval time.Duration
	shards        [shardCount]*shard

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewStore(ttl, sweepInterval time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		ttl:           ttl,
		sweepInterval: sweepInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
	for i := range s.shards {
		s.shards[i] = &shard{jobs: make(map[string]*models.Job)}
	}
	return s
}

// Start launches the periodic reaper.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.reaperLoop()
}

// Stop halts the reaper.
func (s *Store) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Store) reaperLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Put registers or replaces a job.
func (s *Store) Put(job *models.Job) {
	sh := s.shardFor(job.ID)
	sh.mu.Lock()
	sh.jobs[job.ID] = job
	sh.mu.Unlock()
}

// Get returns a snapshot of the job. The copy is safe to read while the
// job keeps mutating in the background.
func (s *Store) Get(id string) (models.Job, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	job, ok := sh.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Update applies fn to the job under the shard lock.
func (s *Store) Update(id string, fn func(*models.Job)) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	job, ok := sh.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// Sweep removes every job older than the TTL, measured from creation no
// matter what state the job is in. Returns the number removed.
func (s *Store) Sweep() int {
	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, job := range sh.jobs {
			if job.CreatedAt.Before(cutoff) {
				delete(sh.jobs, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		log.Printf("jobs: reaped %d expired jobs", removed)
	}
	return removed
}

// Len reports the number of tracked jobs.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.jobs)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}
