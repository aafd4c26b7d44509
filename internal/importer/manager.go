package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadence/internal/config"
	"cadence/internal/conflicts"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/store"
)

// EventSource pages through calendar events whose start falls in [from, to).
// An empty next token ends the window.
type EventSource interface {
	ListEvents(ctx context.Context, from, to time.Time, pageToken string) ([]matching.CalendarEvent, string, error)
}

// Store is the persistence surface a job writes through. *store.Store
// satisfies it.
type Store interface {
	FindLink(ctx context.Context, source matching.SourceType, externalID string) (*store.Link, error)
	EnsureShadowStudent(ctx context.Context, email, displayName string) (*store.Student, bool, error)
	CreateLessonWithLink(ctx context.Context, lesson store.Lesson, link store.Link) (*store.Lesson, *store.Link, error)
	SaveJob(ctx context.Context, job store.JobRecord) error
	ListJobs(ctx context.Context, owner string, limit int) ([]store.JobRecord, error)
}

// Detector compares an already imported lesson with its latest remote state.
type Detector interface {
	Detect(ctx context.Context, link *store.Link, remote store.LessonSnapshot) (*conflicts.Detection, error)
}

// Manager starts jobs and owns the registry of running ones.
type Manager struct {
	store    Store
	source   EventSource
	detector Detector
	registry *Registry
	logger   *slog.Logger

	vocabulary     matching.LessonVocabulary
	maxRange       time.Duration
	requestTimeout time.Duration
	eventBuffer    int
	supersede      bool

	now   func() time.Time
	newID func() string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRegistry shares a registry between managers.
func WithRegistry(registry *Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithEventBuffer overrides the per-job event channel capacity.
func WithEventBuffer(size int) Option {
	return func(m *Manager) {
		if size >= 0 {
			m.eventBuffer = size
		}
	}
}

// NewManager constructs an import manager. detector may be nil, in which case
// already imported events are skipped without a sync check.
func NewManager(cfg *config.Config, st Store, source EventSource, detector Detector, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:          st,
		source:         source,
		detector:       detector,
		registry:       NewRegistry(),
		logger:         logging.NewComponentLogger(logger, "importer"),
		vocabulary:     matching.NewLessonVocabulary(cfg.Import.LessonKeywords),
		maxRange:       time.Duration(cfg.Import.MaxRangeDays) * 24 * time.Hour,
		requestTimeout: time.Duration(cfg.Import.RequestTimeoutSeconds) * time.Second,
		eventBuffer:    cfg.Import.EventBuffer,
		supersede:      cfg.Import.SupersedeActive,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the running-job registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Cancel signals the running job with id. It reports false when the job is
// unknown or already finished.
func (m *Manager) Cancel(id string) bool {
	ok := m.registry.Cancel(id)
	m.logger.Info("import cancel requested",
		logging.String(logging.FieldJobID, id),
		logging.Bool("found", ok),
	)
	return ok
}

// HasSource reports whether a calendar feed is wired.
func (m *Manager) HasSource() bool {
	return m.source != nil
}

// History returns persisted job records for owner, newest first.
func (m *Manager) History(ctx context.Context, owner string, limit int) ([]store.JobRecord, error) {
	return m.store.ListJobs(ctx, owner, limit)
}

// Validate checks a request without starting anything.
func (m *Manager) Validate(req Request) error {
	if strings.TrimSpace(req.Owner) == "" {
		return services.Wrap(services.ErrValidation, "importer", "validate", "owner is required", nil)
	}
	if strings.TrimSpace(req.OwnerEmail) == "" {
		return services.Wrap(services.ErrValidation, "importer", "validate", "owner email is required", nil)
	}
	if req.From.IsZero() || req.To.IsZero() {
		return services.Wrap(services.ErrValidation, "importer", "validate", "from and to are required", nil)
	}
	if !req.From.Before(req.To) {
		return services.Wrap(services.ErrValidation, "importer", "validate", "from must be before to", nil)
	}
	if m.maxRange > 0 && req.To.Sub(req.From) > m.maxRange {
		return services.Wrap(services.ErrValidation, "importer", "validate",
			fmt.Sprintf("range exceeds %d days", int(m.maxRange/(24*time.Hour))), nil)
	}
	if m.source == nil {
		return services.Wrap(services.ErrConfiguration, "importer", "validate", "no calendar source configured", nil)
	}
	return nil
}

// Start validates req, registers a job, and runs it in the background. The
// init event is the first thing the job emits. The job is detached from ctx's
// cancellation; only Cancel (or superseding) stops it.
func (m *Manager) Start(ctx context.Context, req Request) (*Job, error) {
	if err := m.Validate(req); err != nil {
		return nil, err
	}
	chunks := SplitMonths(req.From, req.To)
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &Job{
		id:        m.newID(),
		owner:     req.Owner,
		request:   req,
		chunks:    chunks,
		ctx:       jobCtx,
		cancel:    cancel,
		events:    make(chan Event, m.eventBuffer),
		done:      make(chan struct{}),
		state:     StateRunning,
		progress:  Progress{ChunksTotal: len(chunks)},
		startedAt: m.now(),
	}
	job.ctx = services.WithJobID(services.WithOwner(job.ctx, job.owner), job.id)

	superseded, err := m.registry.register(job, m.supersede)
	if err != nil {
		cancel()
		return nil, err
	}
	logger := m.jobLogger(job)
	if superseded != nil {
		logger.Info("superseded running import",
			logging.Decision("import_supersede", "cancelled_previous", "import.supersede_active is set",
				logging.String("previous_job_id", superseded.id))...,
		)
	}
	m.persist(job)
	logger.Info("import started",
		logging.Time("from", req.From),
		logging.Time("to", req.To),
		logging.Int("chunks", len(chunks)),
	)
	go m.run(job, logger)
	return job, nil
}

func (m *Manager) jobLogger(job *Job) *slog.Logger {
	return m.logger.With(
		logging.String(logging.FieldJobID, job.id),
		logging.String(logging.FieldOwner, job.owner),
	)
}

func (m *Manager) run(job *Job, logger *slog.Logger) {
	defer job.cancel()
	m.emit(job, Event{Type: EventInit})
	for _, chunk := range job.chunks {
		if job.cancelled() {
			m.finishCancelled(job, logger)
			return
		}
		m.emit(job, Event{Type: EventChunkStart, Chunk: &chunk})

		stopped, failed := m.drainChunk(job, chunk, logger)
		if stopped {
			m.finishCancelled(job, logger)
			return
		}
		if failed != nil {
			m.finishFailed(job, failed, logger)
			return
		}
		job.bump(func(p *Progress) { p.ChunksDone++ })
	}
	m.finish(job, StateCompleted, EventComplete, "", logger)
}

// drainChunk pages through one chunk. It reports stopped when cancellation
// was observed, or the page-level error that aborted the chunk.
func (m *Manager) drainChunk(job *Job, chunk Chunk, logger *slog.Logger) (stopped bool, err error) {
	pageToken := ""
	for page := 1; ; page++ {
		if job.cancelled() {
			return true, nil
		}
		events, next, err := m.listPage(job, chunk, pageToken)
		if err != nil {
			logging.WarnWithContext(logger, "calendar page fetch failed", "import_page_failed",
				logging.Int("chunk", chunk.Index),
				logging.Int("page", page),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check calendar credentials and quota, then rerun the import"),
				logging.String(logging.FieldImpact, "remaining chunks were not imported"),
			)
			return false, err
		}
		if job.cancelled() {
			return true, nil
		}
		for _, ev := range events {
			if job.cancelled() {
				return true, nil
			}
			m.processEvent(job, ev, logger)
		}
		if next == "" {
			return false, nil
		}
		pageToken = next
	}
}

// listPage issues one page request. An in-flight request is allowed to
// finish after cancellation, bounded by the request timeout.
func (m *Manager) listPage(job *Job, chunk Chunk, pageToken string) ([]matching.CalendarEvent, string, error) {
	ctx := context.WithoutCancel(job.ctx)
	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}
	events, next, err := m.source.ListEvents(ctx, chunk.Start, chunk.End, pageToken)
	if err != nil {
		return nil, "", services.Wrap(services.ErrExternal, "importer", "list events",
			fmt.Sprintf("chunk %s", chunk.Start.Format("2006-01")), err)
	}
	return events, next, nil
}

// processEvent handles one calendar event and increments exactly one of the
// imported, skipped, or error counters.
func (m *Manager) processEvent(job *Job, ev matching.CalendarEvent, logger *slog.Logger) {
	ctx := context.WithoutCancel(job.ctx)
	relevance := m.vocabulary.ClassifyEvent(ev, job.request.OwnerEmail)
	if !relevance.Relevant {
		m.skip(job, ev, relevance.Reason, "")
		return
	}

	link, err := m.store.FindLink(ctx, matching.SourceCalendarEvent, ev.ID)
	if err != nil {
		m.itemError(job, ev, fmt.Errorf("dedup check: %w", err), logger)
		return
	}
	if link != nil {
		m.syncExisting(ctx, job, ev, link, logger)
		return
	}

	participant := relevance.Participant
	student, shadowCreated, err := m.store.EnsureShadowStudent(ctx, participant.Email, displayName(*participant))
	if err != nil {
		m.itemError(job, ev, err, logger)
		return
	}
	remote := conflicts.RemoteSnapshot(ev)
	lesson, _, err := m.store.CreateLessonWithLink(ctx,
		store.Lesson{
			Owner:       job.owner,
			StudentID:   student.ID,
			Title:       remote.Title,
			ScheduledAt: remote.ScheduledAt,
			EndsAt:      remote.EndsAt,
			Notes:       remote.Notes,
		},
		store.Link{SourceType: matching.SourceCalendarEvent, ExternalID: ev.ID},
	)
	if err != nil {
		if isLinkExists(err) {
			m.skip(job, ev, ReasonAlreadyImported, "")
			return
		}
		m.itemError(job, ev, err, logger)
		return
	}
	progress := job.bump(func(p *Progress) { p.Imported++ })
	logger.Debug("lesson imported",
		logging.String("event_id", ev.ID),
		logging.Int64("lesson_id", lesson.ID),
		logging.Bool("shadow_created", shadowCreated),
	)
	m.emit(job, Event{
		Type:          EventItemImported,
		Progress:      progress,
		ItemID:        ev.ID,
		Title:         ev.Summary,
		StudentEmail:  student.Email,
		ShadowCreated: shadowCreated,
	})
}

// syncExisting runs conflict detection for an event that was imported before
// and reports it as skipped with the detection outcome as the reason.
func (m *Manager) syncExisting(ctx context.Context, job *Job, ev matching.CalendarEvent, link *store.Link, logger *slog.Logger) {
	if m.detector == nil || link.EntityKind != store.EntityLesson {
		m.skip(job, ev, ReasonAlreadyImported, "")
		return
	}
	detection, err := m.detector.Detect(ctx, link, conflicts.RemoteSnapshot(ev))
	if err != nil {
		m.itemError(job, ev, fmt.Errorf("conflict check: %w", err), logger)
		return
	}
	switch detection.Decision {
	case conflicts.DecisionFastForward:
		m.skip(job, ev, ReasonUpdatedFromRemote, "")
	case conflicts.DecisionConflict:
		m.skip(job, ev, ReasonConflict, detection.Conflict.ID)
	default:
		m.skip(job, ev, ReasonAlreadyImported, "")
	}
}

func (m *Manager) skip(job *Job, ev matching.CalendarEvent, reason, conflictID string) {
	progress := job.bump(func(p *Progress) { p.Skipped++ })
	m.emit(job, Event{
		Type:       EventItemSkipped,
		Progress:   progress,
		ItemID:     ev.ID,
		Title:      ev.Summary,
		Reason:     reason,
		ConflictID: conflictID,
	})
}

func (m *Manager) itemError(job *Job, ev matching.CalendarEvent, err error, logger *slog.Logger) {
	progress := job.bump(func(p *Progress) { p.Errors++ })
	logger.Warn("calendar event import failed",
		logging.String("event_id", ev.ID),
		logging.Error(err),
		logging.String(logging.FieldEventType, "import_item_failed"),
		logging.String(logging.FieldErrorHint, "rerun the import; imported events are skipped"),
		logging.String(logging.FieldImpact, "event not imported"),
	)
	m.emit(job, Event{
		Type:     EventItemError,
		Progress: progress,
		ItemID:   ev.ID,
		Title:    ev.Summary,
		Message:  err.Error(),
	})
}

func (m *Manager) finishCancelled(job *Job, logger *slog.Logger) {
	m.finish(job, StateCancelled, EventCancelled, "cancelled", logger)
}

func (m *Manager) finishFailed(job *Job, err error, logger *slog.Logger) {
	m.finish(job, StateFailed, EventError, err.Error(), logger)
}

// finish records the terminal state, frees the owner slot, persists history,
// and delivers the terminal event before closing the stream.
func (m *Manager) finish(job *Job, state State, eventType EventType, message string, logger *slog.Logger) {
	progress := job.finish(state, message, m.now())
	m.registry.unregister(job)
	m.persist(job)
	logger.Info("import finished",
		logging.String("state", string(state)),
		logging.Int("chunks_done", progress.ChunksDone),
		logging.Int("imported", progress.Imported),
		logging.Int("skipped", progress.Skipped),
		logging.Int("errors", progress.Errors),
	)
	m.emit(job, Event{Type: eventType, Message: message})
	close(job.events)
	close(job.done)
}

// emit stamps and delivers an event. Progress defaults to the current
// counters when the caller did not capture them.
func (m *Manager) emit(job *Job, ev Event) {
	ev.JobID = job.id
	ev.Time = m.now()
	if ev.Progress == (Progress{}) {
		ev.Progress = job.snapshotProgress()
	}
	job.events <- ev
}

func (m *Manager) persist(job *Job) {
	status := job.Status()
	record := store.JobRecord{
		ID:          status.ID,
		Owner:       status.Owner,
		State:       string(status.State),
		RangeStart:  status.From,
		RangeEnd:    status.To,
		ChunksTotal: status.Progress.ChunksTotal,
		ChunksDone:  status.Progress.ChunksDone,
		Imported:    status.Progress.Imported,
		Skipped:     status.Progress.Skipped,
		Errors:      status.Progress.Errors,
		Message:     status.Message,
		StartedAt:   status.StartedAt,
		FinishedAt:  status.FinishedAt,
	}
	if err := m.store.SaveJob(context.WithoutCancel(job.ctx), record); err != nil {
		m.jobLogger(job).Warn("failed to persist import job history",
			logging.Error(err),
			logging.String(logging.FieldEventType, "import_history_write_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions"),
			logging.String(logging.FieldImpact, "job missing from history listing"),
		)
	}
}
