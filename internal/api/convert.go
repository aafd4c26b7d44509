package api

import (
	"time"

	"cadence/internal/importer"
	"cadence/internal/matching"
	"cadence/internal/reconcile"
	"cadence/internal/store"
)

// FromReport converts a dry-run report to its API representation.
func FromReport(report *reconcile.Report) Report {
	if report == nil {
		return Report{Results: []MatchResult{}}
	}
	dto := Report{
		Total:       report.Total,
		Matched:     report.Matched,
		ReviewQueue: report.ReviewQueue,
		Unmatched:   report.Unmatched,
		Skipped:     report.Skipped,
		Duplicates:  report.Duplicates,
		Results:     make([]MatchResult, 0, len(report.Results)),
	}
	for _, result := range report.Results {
		dto.Results = append(dto.Results, FromMatchResult(result))
	}
	return dto
}

// FromCommitReport converts a commit report to its API representation.
func FromCommitReport(report *reconcile.CommitReport) CommitReport {
	if report == nil {
		return CommitReport{Report: FromReport(nil)}
	}
	dto := CommitReport{
		Report:   FromReport(&report.Report),
		Action:   report.Action,
		Inserted: report.Inserted,
		Created:  report.Created,
	}
	for _, itemErr := range report.Errors {
		dto.Errors = append(dto.Errors, ItemError{ExternalID: itemErr.ExternalID, Message: itemErr.Message})
	}
	return dto
}

// FromMatchResult converts a single classification.
func FromMatchResult(result matching.MatchResult) MatchResult {
	return MatchResult{
		ExternalID: result.Item.ExternalID,
		SourceType: string(result.Item.SourceType),
		RawLabel:   result.Item.RawLabel,
		Candidate: Candidate{
			Title:         result.Candidate.Title,
			Artist:        result.Candidate.Artist,
			NormalizedKey: result.Candidate.NormalizedKey,
		},
		Best:     fromScored(result.Best),
		RunnerUp: fromScored(result.RunnerUp),
		Outcome:  string(result.Outcome),
		Reason:   result.Reason,
	}
}

func fromScored(scored *matching.Scored) *ScoredMatch {
	if scored == nil {
		return nil
	}
	return &ScoredMatch{
		ID:     scored.Entry.ID,
		Title:  scored.Entry.Title,
		Artist: scored.Entry.Artist,
		Score:  scored.Score,
	}
}

// FromImportEvent converts a job progress event.
func FromImportEvent(ev importer.Event) ImportEvent {
	dto := ImportEvent{
		Type:          string(ev.Type),
		JobID:         ev.JobID,
		Time:          formatTime(ev.Time),
		Progress:      fromProgress(ev.Progress),
		ItemID:        ev.ItemID,
		Title:         ev.Title,
		Reason:        ev.Reason,
		StudentEmail:  ev.StudentEmail,
		ShadowCreated: ev.ShadowCreated,
		ConflictID:    ev.ConflictID,
		Message:       ev.Message,
	}
	if ev.Chunk != nil {
		dto.Chunk = &ChunkInfo{
			Index: ev.Chunk.Index,
			Start: formatTime(ev.Chunk.Start),
			End:   formatTime(ev.Chunk.End),
		}
	}
	return dto
}

func fromProgress(p importer.Progress) Progress {
	return Progress{
		ChunksTotal: p.ChunksTotal,
		ChunksDone:  p.ChunksDone,
		Imported:    p.Imported,
		Skipped:     p.Skipped,
		Errors:      p.Errors,
	}
}

// FromJobStatus converts a live job snapshot.
func FromJobStatus(status importer.Status) Job {
	return Job{
		ID:         status.ID,
		Owner:      status.Owner,
		State:      string(status.State),
		From:       formatTime(status.From),
		To:         formatTime(status.To),
		Progress:   fromProgress(status.Progress),
		StartedAt:  formatTime(status.StartedAt),
		FinishedAt: formatTimePtr(status.FinishedAt),
		Message:    status.Message,
	}
}

// FromJobStatuses converts a slice of live job snapshots.
func FromJobStatuses(statuses []importer.Status) []Job {
	out := make([]Job, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, FromJobStatus(status))
	}
	return out
}

// FromJobRecord converts a persisted job history row.
func FromJobRecord(record store.JobRecord) Job {
	return Job{
		ID:    record.ID,
		Owner: record.Owner,
		State: record.State,
		From:  formatTime(record.RangeStart),
		To:    formatTime(record.RangeEnd),
		Progress: Progress{
			ChunksTotal: record.ChunksTotal,
			ChunksDone:  record.ChunksDone,
			Imported:    record.Imported,
			Skipped:     record.Skipped,
			Errors:      record.Errors,
		},
		StartedAt:  formatTime(record.StartedAt),
		FinishedAt: formatTimePtr(record.FinishedAt),
		Message:    record.Message,
	}
}

// FromConflict converts a conflict record.
func FromConflict(conflict store.Conflict) Conflict {
	fields := conflict.Local.DiffFields(conflict.Remote)
	if fields == nil {
		fields = []string{}
	}
	return Conflict{
		ID:         conflict.ID,
		SourceType: string(conflict.SourceType),
		ExternalID: conflict.ExternalID,
		EntityKind: string(conflict.EntityKind),
		EntityID:   conflict.EntityID,
		Owner:      conflict.Owner,
		Local:      fromSnapshot(conflict.Local),
		Remote:     fromSnapshot(conflict.Remote),
		Fields:     fields,
		DetectedAt: formatTime(conflict.DetectedAt),
		Resolution: string(conflict.Resolution),
		ResolvedAt: formatTimePtr(conflict.ResolvedAt),
	}
}

// FromConflicts converts a slice of conflict records.
func FromConflicts(conflicts []store.Conflict) []Conflict {
	out := make([]Conflict, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, FromConflict(conflict))
	}
	return out
}

func fromSnapshot(snapshot store.LessonSnapshot) Snapshot {
	return Snapshot{
		Title:       snapshot.Title,
		ScheduledAt: formatTime(snapshot.ScheduledAt),
		EndsAt:      formatTime(snapshot.EndsAt),
		Notes:       snapshot.Notes,
	}
}

// FromStudent converts a student record.
func FromStudent(student *store.Student) Student {
	if student == nil {
		return Student{}
	}
	return Student{
		ID:          student.ID,
		Email:       student.Email,
		DisplayName: student.DisplayName,
		Shadow:      student.Shadow,
		ClaimedAt:   formatTimePtr(student.ClaimedAt),
		CreatedAt:   formatTime(student.CreatedAt),
	}
}

// ParseTime parses an RFC3339 timestamp or a YYYY-MM-DD date (UTC midnight).
func ParseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
