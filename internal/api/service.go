package api

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cadence/internal/conflicts"
	"cadence/internal/importer"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/reconcile"
	"cadence/internal/services"
	"cadence/internal/store"
)

// ItemProvider fetches the external items of one source scope.
type ItemProvider interface {
	Items(ctx context.Context, scope string) ([]matching.ExternalItem, error)
}

// Store abstracts the persistence calls the facade makes directly.
type Store interface {
	ClaimShadowStudent(ctx context.Context, email, displayName string) (*store.Student, error)
	CountOutstandingConflicts(ctx context.Context) (int, error)
	Path() string
}

// Dependencies wires a Service. Providers maps a source name (SourceDrive,
// SourceTracks) to its adapter; a name mapped to nil is known but not
// configured.
type Dependencies struct {
	Store     Store
	Executor  *reconcile.Executor
	Imports   *importer.Manager
	Conflicts *conflicts.Manager
	Providers map[string]ItemProvider
	Logger    *slog.Logger
}

// Service exposes reconciliation, import, and conflict operations returning
// API DTOs.
type Service struct {
	store     Store
	executor  *reconcile.Executor
	imports   *importer.Manager
	conflicts *conflicts.Manager
	providers map[string]ItemProvider
	logger    *slog.Logger
}

// NewService constructs a Service from deps.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	providers := make(map[string]ItemProvider, len(deps.Providers))
	for name, provider := range deps.Providers {
		providers[strings.ToLower(strings.TrimSpace(name))] = provider
	}
	return &Service{
		store:     deps.Store,
		executor:  deps.Executor,
		imports:   deps.Imports,
		conflicts: deps.Conflicts,
		providers: providers,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

func (s *Service) items(ctx context.Context, source, scope string) ([]matching.ExternalItem, error) {
	name := strings.ToLower(strings.TrimSpace(source))
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "fetch items", "source is required", nil)
	}
	provider, known := s.providers[name]
	if !known {
		return nil, services.Wrap(services.ErrValidation, "api", "fetch items", fmt.Sprintf("unknown source %q", source), nil)
	}
	if provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "fetch items", fmt.Sprintf("source %q is not configured", name), nil)
	}
	ctx = services.WithSource(ctx, name)
	items, err := provider.Items(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched external items",
		logging.String(logging.FieldSource, name),
		logging.Int("count", len(items)),
	)
	return items, nil
}

// Preview runs a dry-run reconciliation over req's source scope.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*Report, error) {
	if s.executor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "preview", "reconciliation executor unavailable", nil)
	}
	items, err := s.items(ctx, req.Source, req.Scope)
	if err != nil {
		return nil, err
	}
	report, err := s.executor.DryRun(ctx, items, req.Exclude)
	if err != nil {
		return nil, err
	}
	dto := FromReport(report)
	return &dto, nil
}

// Commit applies req's action to the items of its source scope.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*CommitReport, error) {
	if s.executor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "commit", "reconciliation executor unavailable", nil)
	}
	action, err := reconcile.ParseAction(req.Action.Type, req.Action.Overrides, req.Action.IDs)
	if err != nil {
		return nil, err
	}
	items, err := s.items(ctx, req.Source, req.Scope)
	if err != nil {
		return nil, err
	}
	report, err := s.executor.Commit(ctx, items, action)
	if err != nil {
		return nil, err
	}
	dto := FromCommitReport(report)
	return &dto, nil
}

// ImportRequestFromDTO parses the wire request into an importer request.
func ImportRequestFromDTO(req ImportRequest) (importer.Request, error) {
	out := importer.Request{
		Owner:      strings.TrimSpace(req.Owner),
		OwnerEmail: strings.TrimSpace(req.OwnerEmail),
	}
	var err error
	if out.From, err = parseBound("from", req.From); err != nil {
		return importer.Request{}, err
	}
	if out.To, err = parseBound("to", req.To); err != nil {
		return importer.Request{}, err
	}
	return out, nil
}

func parseBound(name, value string) (t time.Time, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, services.Wrap(services.ErrValidation, "api", "import", name+" is required", nil)
	}
	t, err = ParseTime(value)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrValidation, "api", "import", fmt.Sprintf("invalid %s %q", name, value), err)
	}
	return t, nil
}

// StartImport validates req and starts a streaming import job. The caller
// must drain the job's events (or call Discard).
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (*importer.Job, error) {
	if s.imports == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "import", "import manager unavailable", nil)
	}
	parsed, err := ImportRequestFromDTO(req)
	if err != nil {
		return nil, err
	}
	return s.imports.Start(ctx, parsed)
}

// CancelImport signals the running job id. It reports false when no such
// job is running.
func (s *Service) CancelImport(id string) bool {
	if s.imports == nil {
		return false
	}
	return s.imports.Cancel(strings.TrimSpace(id))
}

// CancelAllImports signals every running job and returns how many were
// signalled.
func (s *Service) CancelAllImports() int {
	if s.imports == nil {
		return 0
	}
	cancelled := 0
	for _, status := range s.imports.Registry().Active() {
		if s.imports.Cancel(status.ID) {
			cancelled++
		}
	}
	return cancelled
}

// Jobs lists running jobs and persisted history, newest first. History rows
// of jobs that are still running are reported only under Active.
func (s *Service) Jobs(ctx context.Context, owner string, limit int) (*JobsResponse, error) {
	resp := &JobsResponse{Active: []Job{}, History: []Job{}}
	if s.imports == nil {
		return resp, nil
	}
	active := s.imports.Registry().Active()
	running := make(map[string]bool, len(active))
	for _, status := range active {
		if owner != "" && status.Owner != owner {
			continue
		}
		running[status.ID] = true
		resp.Active = append(resp.Active, FromJobStatus(status))
	}
	records, err := s.imports.History(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if running[record.ID] {
			continue
		}
		resp.History = append(resp.History, FromJobRecord(record))
	}
	return resp, nil
}

// Conflicts lists outstanding conflicts, optionally for one owner.
func (s *Service) Conflicts(ctx context.Context, owner string) ([]Conflict, error) {
	if s.conflicts == nil {
		return []Conflict{}, nil
	}
	records, err := s.conflicts.List(ctx, strings.TrimSpace(owner))
	if err != nil {
		return nil, err
	}
	return FromConflicts(records), nil
}

// Resolve applies req to the outstanding conflict id.
func (s *Service) Resolve(ctx context.Context, id string, req ResolveRequest) (*Conflict, error) {
	if s.conflicts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "resolve", "conflict manager unavailable", nil)
	}
	resolution := store.Resolution(strings.ToLower(strings.TrimSpace(req.Resolution)))
	resolved, err := s.conflicts.Resolve(ctx, strings.TrimSpace(id), resolution)
	if err != nil {
		return nil, err
	}
	dto := FromConflict(*resolved)
	return &dto, nil
}

// ClaimStudent converts the shadow student with req.Email into a real one.
func (s *Service) ClaimStudent(ctx context.Context, req ClaimRequest) (*Student, error) {
	if s.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "claim student", "store unavailable", nil)
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "claim student", "email is required", nil)
	}
	student, err := s.store.ClaimShadowStudent(ctx, email, req.DisplayName)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "claim student", fmt.Sprintf("no shadow student with email %s", email), nil)
	}
	s.logger.Info("shadow student claimed",
		logging.Decision("shadow_claim", "claimed", "", logging.Int64("student_id", student.ID))...,
	)
	dto := FromStudent(student)
	return &dto, nil
}

// Status reports database, job, conflict, and source state. Running and
// LockPath are left for the daemon to fill.
func (s *Service) Status(ctx context.Context) (Status, error) {
	status := Status{ActiveJobs: []Job{}, Sources: []SourceStatus{}}
	if s.store != nil {
		status.DatabasePath = s.store.Path()
		count, err := s.store.CountOutstandingConflicts(ctx)
		if err != nil {
			return status, err
		}
		status.OutstandingConflicts = count
	}
	if s.imports != nil {
		status.ActiveJobs = FromJobStatuses(s.imports.Registry().Active())
		status.Sources = append(status.Sources, SourceStatus{Name: "calendar", Available: s.imports.HasSource()})
	}
	if s.executor != nil {
		thresholds := s.executor.Thresholds()
		status.AutoLinkThreshold = thresholds.AutoLink
		status.ReviewFloor = thresholds.ReviewFloor
	}
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status.Sources = append(status.Sources, SourceStatus{Name: name, Available: s.providers[name] != nil})
	}
	return status, nil
}
