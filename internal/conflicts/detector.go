package conflicts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/store"
)

// Store is the persistence surface used for detection and resolution.
// *store.Store satisfies it.
type Store interface {
	GetLesson(ctx context.Context, id int64) (*store.Lesson, error)
	MarkSynced(ctx context.Context, linkID int64, snapshot store.LessonSnapshot) error
	ApplyRemoteSnapshot(ctx context.Context, linkID, lessonID int64, remote store.LessonSnapshot) error
	RecordConflict(ctx context.Context, id string, linkID int64, local, remote store.LessonSnapshot) (*store.Conflict, bool, error)
	GetConflict(ctx context.Context, id string) (*store.Conflict, error)
	ListConflicts(ctx context.Context, owner string, outstandingOnly bool) ([]store.Conflict, error)
	ResolveUseRemote(ctx context.Context, id string) (*store.Conflict, error)
	ResolveUseLocal(ctx context.Context, id string, pushed store.LessonSnapshot) (*store.Conflict, error)
}

// RemoteWriter pushes local lesson state back to the calendar.
type RemoteWriter interface {
	PatchEvent(ctx context.Context, eventID string, ev matching.CalendarEvent) error
}

// Decision is what detection concluded for one linked lesson.
type Decision string

const (
	DecisionInSync      Decision = "in_sync"
	DecisionFastForward Decision = "fast_forward"
	DecisionConflict    Decision = "conflict"
)

// Detection is the result of comparing one linked lesson against the remote.
type Detection struct {
	Decision Decision
	Fields   []string
	Conflict *store.Conflict
	// Created is false when the conflict was already outstanding.
	Created bool
}

// Manager runs detection and resolution. Resolution calls are serialized so
// the remote push and the local close of one conflict never interleave with
// another resolution.
type Manager struct {
	store  Store
	remote RemoteWriter
	logger *slog.Logger
	newID  func() string

	mu sync.Mutex
}

// NewManager constructs a manager. remote may be nil, in which case use_local
// resolutions are rejected.
func NewManager(st Store, remote RemoteWriter, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		remote: remote,
		logger: logging.NewComponentLogger(logger, "conflicts"),
		newID:  uuid.NewString,
	}
}

// Detect compares the local lesson behind link with the remote snapshot and
// records the outcome.
func (m *Manager) Detect(ctx context.Context, link *store.Link, remote store.LessonSnapshot) (*Detection, error) {
	if link == nil || link.EntityKind != store.EntityLesson {
		return nil, services.Wrap(services.ErrValidation, "conflicts", "detect", "link does not point at a lesson", nil)
	}
	lesson, err := m.store.GetLesson(ctx, link.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load lesson %d: %w", link.EntityID, err)
	}
	if lesson == nil {
		return nil, services.Wrap(services.ErrNotFound, "conflicts", "detect", fmt.Sprintf("lesson %d missing for link %d", link.EntityID, link.ID), nil)
	}
	local := lesson.Snapshot()
	logger := m.logger.With(
		logging.ExternalID(link.ExternalID),
		logging.Int64("lesson_id", lesson.ID),
	)

	if local.Equal(remote) {
		if link.Snapshot == nil || !link.Snapshot.Equal(remote) {
			if err := m.store.MarkSynced(ctx, link.ID, remote); err != nil {
				return nil, fmt.Errorf("mark synced: %w", err)
			}
		}
		return &Detection{Decision: DecisionInSync}, nil
	}

	fields := local.DiffFields(remote)
	if link.Snapshot != nil && link.Snapshot.Equal(local) {
		if err := m.store.ApplyRemoteSnapshot(ctx, link.ID, lesson.ID, remote); err != nil {
			return nil, fmt.Errorf("apply remote snapshot: %w", err)
		}
		logger.Info("lesson fast-forwarded to remote",
			logging.Decision("conflict_detection", string(DecisionFastForward), "local unchanged since last sync",
				logging.String("fields", strings.Join(fields, ",")))...,
		)
		return &Detection{Decision: DecisionFastForward, Fields: fields}, nil
	}

	conflict, created, err := m.store.RecordConflict(ctx, m.newID(), link.ID, local, remote)
	if err != nil {
		return nil, fmt.Errorf("record conflict: %w", err)
	}
	if created {
		logger.Info("sync conflict recorded",
			logging.Decision("conflict_detection", string(DecisionConflict), "both sides changed since last sync",
				logging.String("conflict_id", conflict.ID),
				logging.String("fields", strings.Join(fields, ",")))...,
		)
	} else {
		logger.Debug("outstanding conflict refreshed with latest remote",
			logging.String("conflict_id", conflict.ID),
		)
	}
	return &Detection{Decision: DecisionConflict, Fields: fields, Conflict: conflict, Created: created}, nil
}

// List returns outstanding conflicts for owner, or for everyone when owner is
// empty.
func (m *Manager) List(ctx context.Context, owner string) ([]store.Conflict, error) {
	return m.store.ListConflicts(ctx, owner, true)
}

// Resolve applies resolution to the outstanding conflict id. A missing or
// already resolved conflict yields an error matching services.ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, id string, resolution store.Resolution) (*store.Conflict, error) {
	if !resolution.Valid() {
		return nil, services.Wrap(services.ErrValidation, "conflicts", "resolve", fmt.Sprintf("unknown resolution %q", resolution), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conflict, err := m.store.GetConflict(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conflict: %w", err)
	}
	if conflict == nil || !conflict.Outstanding() {
		return nil, notFound(id, nil)
	}

	var resolved *store.Conflict
	switch resolution {
	case store.ResolutionUseRemote:
		resolved, err = m.store.ResolveUseRemote(ctx, id)
	case store.ResolutionUseLocal:
		resolved, err = m.resolveUseLocal(ctx, conflict)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id, err)
		}
		return nil, err
	}
	m.logger.Info("conflict resolved",
		logging.Decision("conflict_resolution", string(resolution), "",
			logging.String("conflict_id", id),
			logging.ExternalID(conflict.ExternalID))...,
	)
	return resolved, nil
}

func (m *Manager) resolveUseLocal(ctx context.Context, conflict *store.Conflict) (*store.Conflict, error) {
	if m.remote == nil {
		return nil, services.Wrap(services.ErrConfiguration, "conflicts", "resolve", "no calendar writer configured for use_local", nil)
	}
	lesson, err := m.store.GetLesson(ctx, conflict.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson == nil {
		return nil, services.Wrap(services.ErrNotFound, "conflicts", "resolve", fmt.Sprintf("lesson %d no longer exists", conflict.EntityID), nil)
	}
	local := lesson.Snapshot()
	if err := m.remote.PatchEvent(ctx, conflict.ExternalID, EventPatch(conflict.ExternalID, local)); err != nil {
		return nil, services.Wrap(services.ErrExternal, "conflicts", "resolve", "push local lesson to calendar", err)
	}
	return m.store.ResolveUseLocal(ctx, conflict.ID, local)
}

func notFound(id string, err error) error {
	return services.Wrap(services.ErrNotFound, "conflicts", "resolve", fmt.Sprintf("conflict %s not found or already resolved", id), err)
}
