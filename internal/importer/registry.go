package importer

import (
	"fmt"
	"sort"
	"sync"

	"cadence/internal/services"
)

// ErrJobActive is returned when an owner already has a running import and
// superseding is disabled.
var ErrJobActive = fmt.Errorf("%w: import already running for owner", services.ErrConflict)

// Registry tracks running jobs by id and by owner.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Job
	byOwner map[string]*Job
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*Job),
		byOwner: make(map[string]*Job),
	}
}

// register adds job. When the owner already has a job, it is cancelled and
// replaced as the owner's job if supersede is set; otherwise ErrJobActive is
// returned. The superseded job stays listed by id until it finishes. It is
// returned so the caller can log it.
func (r *Registry) register(job *Job, supersede bool) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.byOwner[job.owner]
	if existing != nil {
		if !supersede {
			return nil, fmt.Errorf("%w (job %s)", ErrJobActive, existing.id)
		}
		existing.Cancel()
	}
	r.byID[job.id] = job
	r.byOwner[job.owner] = job
	return existing, nil
}

// unregister removes a finished job. The owner slot is only freed when job
// still holds it; a superseded job no longer does.
func (r *Registry) unregister(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID[job.id] == job {
		delete(r.byID, job.id)
	}
	if r.byOwner[job.owner] == job {
		delete(r.byOwner, job.owner)
	}
}

// Get returns the running job with id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	return job, ok
}

// ForOwner returns the running job for owner.
func (r *Registry) ForOwner(owner string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byOwner[owner]
	return job, ok
}

// Cancel signals the job with id. It reports false when no such job is
// running, which callers treat as information rather than failure.
func (r *Registry) Cancel(id string) bool {
	job, ok := r.Get(id)
	if !ok {
		return false
	}
	job.Cancel()
	return true
}

// Active returns a status snapshot of every running job ordered by start.
func (r *Registry) Active() []Status {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.byID))
	for _, job := range r.byID {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of running jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
