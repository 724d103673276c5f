package api

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/pkg/models"
)

const (
	// maxJobs bounds the store; the oldest finished jobs are evicted first.
	maxJobs = 100
	// logWindow is how many narration lines a job view carries.
	logWindow = 15
)

// JobStatus is the lifecycle state of a download job.
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
)

// Job is one batch download request.
type Job struct {
	ID        string
	Companies []string
	Year      int
	Exchanges []models.Exchange
	CreatedAt time.Time

	mu         sync.Mutex
	status     JobStatus
	done       int
	outcomes   []models.Outcome
	log        []string
	finishedAt time.Time
}

// OutcomeView is an outcome with its cause rendered for JSON.
type OutcomeView struct {
	models.Outcome
	Detail string `json:"detail"`
}

// JobView is the JSON snapshot of a job.
type JobView struct {
	ID         string            `json:"id"`
	Status     JobStatus         `json:"status"`
	Companies  []string          `json:"companies"`
	Year       int               `json:"year"`
	Exchanges  []models.Exchange `json:"exchanges"`
	Progress   float64           `json:"progress"`
	Succeeded  int               `json:"succeeded"`
	Outcomes   []OutcomeView     `json:"outcomes"`
	Log        []string          `json:"log"`
	LogLines   int               `json:"log_lines"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Narrate appends a line to the job log.
func (j *Job) Narrate(line string) {
	j.mu.Lock()
	j.log = append(j.log, line)
	j.mu.Unlock()
}

func (j *Job) start() {
	j.mu.Lock()
	j.status = JobRunning
	j.mu.Unlock()
}

// addOutcomes records the outcomes of one finished company.
func (j *Job) addOutcomes(outs []models.Outcome) {
	j.mu.Lock()
	j.outcomes = append(j.outcomes, outs...)
	j.done++
	j.mu.Unlock()
}

func (j *Job) finish() {
	j.mu.Lock()
	j.status = JobFinished
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

// Finished reports whether the job has completed.
func (j *Job) Finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == JobFinished
}

// View returns a snapshot with the last logWindow narration lines.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := JobView{
		ID:        j.ID,
		Status:    j.status,
		Companies: j.Companies,
		Year:      j.Year,
		Exchanges: j.Exchanges,
		Outcomes:  make([]OutcomeView, 0, len(j.outcomes)),
		LogLines:  len(j.log),
		CreatedAt: j.CreatedAt,
	}
	if len(j.Companies) > 0 {
		v.Progress = float64(j.done) / float64(len(j.Companies))
	}
	for _, o := range j.outcomes {
		if o.Success {
			v.Succeeded++
		}
		v.Outcomes = append(v.Outcomes, OutcomeView{Outcome: o, Detail: o.Detail()})
	}
	start := max(0, len(j.log)-logWindow)
	v.Log = slices.Clone(j.log[start:])
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		v.FinishedAt = &t
	}
	return v
}

// JobStore keeps jobs in memory.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
	max   int
}

// NewJobStore creates a store holding at most limit jobs.
func NewJobStore(limit int) *JobStore {
	return &JobStore{jobs: make(map[string]*Job), max: limit}
}

// Create registers a queued job.
func (s *JobStore) Create(companies []string, year int, exchanges []models.Exchange) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Companies: companies,
		Year:      year,
		Exchanges: exchanges,
		CreatedAt: time.Now(),
		status:    JobQueued,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.evictLocked()
	return job
}

// evictLocked drops the oldest finished jobs while over capacity.
func (s *JobStore) evictLocked() {
	for i := 0; len(s.order) > s.max && i < len(s.order); {
		id := s.order[i]
		if s.jobs[id].Finished() {
			delete(s.jobs, id)
			s.order = slices.Delete(s.order, i, i+1)
			continue
		}
		i++
	}
}

// Get returns a job by ID.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// List returns views of all jobs, newest first.
func (s *JobStore) List() []JobView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]JobView, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		views = append(views, s.jobs[s.order[i]].View())
	}
	return views
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// runJob processes companies one at a time so progress advances per
// company, broadcasting every narration line.
func (s *Server) runJob(job *Job) {
	log := s.log.With(zap.String("job", job.ID))
	narrate := models.Narrator(func(line string) {
		job.Narrate(line)
		s.wsHub.Broadcast(WSMessage{Type: "log", JobID: job.ID, Data: line})
	})
	eng := s.engine.WithNarrator(narrate)

	// Jobs wait in JobQueued until a slot frees; shutdown abandons them.
	if err := s.slots.Acquire(s.jobCtx, 1); err != nil {
		narrate.Sayf("Job cancelled before it started: %v", err)
		job.finish()
		s.wsHub.Broadcast(WSMessage{Type: "job_finished", JobID: job.ID, Data: job.View()})
		log.Info("job cancelled while queued")
		return
	}
	defer s.slots.Release(1)

	job.start()
	s.wsHub.Broadcast(WSMessage{Type: "job_started", JobID: job.ID, Data: job.View()})
	narrate.Sayf("--- STARTING JOB: %s for Year %d ---", exchangeLabel(job.Exchanges), job.Year)
	log.Info("job started", zap.Strings("companies", job.Companies), zap.Int("year", job.Year))

	for _, company := range job.Companies {
		if s.jobCtx.Err() != nil {
			break
		}
		job.addOutcomes(eng.RunBatch(s.jobCtx, []string{company}, job.Year, job.Exchanges, s.cfg.Download.Dir))
	}

	view := job.View()
	narrate.Sayf("Job completed! %d of %d reports saved in %s", view.Succeeded, len(view.Outcomes), s.cfg.Download.Dir)
	job.finish()
	s.wsHub.Broadcast(WSMessage{Type: "job_finished", JobID: job.ID, Data: job.View()})
	log.Info("job finished", zap.Int("succeeded", view.Succeeded), zap.Int("runs", len(view.Outcomes)))
}

// exchangeLabel names the exchange selection the way the job banner shows it.
func exchangeLabel(exs []models.Exchange) string {
	if len(exs) == len(models.Exchanges) {
		return "BOTH"
	}
	names := make([]string, len(exs))
	for i, e := range exs {
		names[i] = e.String()
	}
	return strings.Join(names, "+")
}
