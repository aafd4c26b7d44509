package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// dateFormat is accepted for import range bounds alongside RFC3339.
const dateFormat = "2006-01-02"

// Source names accepted by the reconciliation endpoints.
const (
	SourceDrive  = "drive"
	SourceTracks = "tracks"
)

// Candidate is the parsed title/artist guess for an external item.
type Candidate struct {
	Title         string `json:"title"`
	Artist        string `json:"artist,omitempty"`
	NormalizedKey string `json:"normalizedKey"`
}

// ScoredMatch is a catalog entry paired with its confidence score.
type ScoredMatch struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Score  int    `json:"score"`
}

// MatchResult describes the classification of one external item.
type MatchResult struct {
	ExternalID string       `json:"externalId"`
	SourceType string       `json:"sourceType"`
	RawLabel   string       `json:"rawLabel"`
	Candidate  Candidate    `json:"candidate"`
	Best       *ScoredMatch `json:"best,omitempty"`
	RunnerUp   *ScoredMatch `json:"runnerUp,omitempty"`
	Outcome    string       `json:"outcome"`
	// Reason says why an otherwise linkable item was held for review.
	Reason     string       `json:"reason,omitempty"`
}

// Report is the reconciliation summary of a dry run.
type Report struct {
	Total       int           `json:"total"`
	Matched     int           `json:"matched"`
	ReviewQueue int           `json:"reviewQueue"`
	Unmatched   int           `json:"unmatched"`
	Skipped     int           `json:"skipped"`
	Duplicates  int           `json:"duplicates"`
	Results     []MatchResult `json:"results"`
}

// ItemError is a write that failed for one external item.
type ItemError struct {
	ExternalID string `json:"externalId"`
	Message    string `json:"message"`
}

// CommitReport extends Report with the writes a commit made.
type CommitReport struct {
	Report
	Action   string      `json:"action"`
	Inserted int         `json:"inserted"`
	Created  int         `json:"created"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// PreviewRequest asks for a dry run over one source scope.
type PreviewRequest struct {
	Source  string   `json:"source"`
	Scope   string   `json:"scope"`
	Exclude []string `json:"exclude,omitempty"`
}

// ActionSpec is the wire form of a commit action. An empty Type selects the
// default sync.
type ActionSpec struct {
	Type      string           `json:"type"`
	Overrides map[string]int64 `json:"overrides,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
}

// CommitRequest asks for a commit over one source scope.
type CommitRequest struct {
	Source string     `json:"source"`
	Scope  string     `json:"scope"`
	Action ActionSpec `json:"action"`
}

// ImportRequest starts a streaming import. From and To accept RFC3339 or
// YYYY-MM-DD.
type ImportRequest struct {
	Owner      string `json:"owner"`
	OwnerEmail string `json:"ownerEmail"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// Progress carries import job counters.
type Progress struct {
	ChunksTotal int `json:"chunksTotal"`
	ChunksDone  int `json:"chunksDone"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Errors      int `json:"errors"`
}

// ChunkInfo identifies the date window an import is working on.
type ChunkInfo struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ImportEvent is one streamed progress notification.
type ImportEvent struct {
	Type          string     `json:"type"`
	JobID         string     `json:"jobId"`
	Time          string     `json:"time"`
	Progress      Progress   `json:"progress"`
	Chunk         *ChunkInfo `json:"chunk,omitempty"`
	ItemID        string     `json:"itemId,omitempty"`
	Title         string     `json:"title,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	StudentEmail  string     `json:"studentEmail,omitempty"`
	ShadowCreated bool       `json:"shadowCreated,omitempty"`
	ConflictID    string     `json:"conflictId,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// Job describes a running or finished import job.
type Job struct {
	ID         string   `json:"id"`
	Owner      string   `json:"owner"`
	State      string   `json:"state"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Progress   Progress `json:"progress"`
	StartedAt  string   `json:"startedAt,omitempty"`
	FinishedAt string   `json:"finishedAt,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// JobsResponse lists active jobs and persisted history.
type JobsResponse struct {
	Active  []Job `json:"active"`
	History []Job `json:"history"`
}

// CancelResponse reports whether a cancel request reached a running job.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// Snapshot is the synced field set of a lesson.
type Snapshot struct {
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduledAt"`
	EndsAt      string `json:"endsAt"`
	Notes       string `json:"notes,omitempty"`
}

// Conflict is a divergence between a local lesson and its remote event.
type Conflict struct {
	ID         string   `json:"id"`
	SourceType string   `json:"sourceType"`
	ExternalID string   `json:"externalId"`
	EntityKind string   `json:"entityKind"`
	EntityID   int64    `json:"entityId"`
	Owner      string   `json:"owner,omitempty"`
	Local      Snapshot `json:"local"`
	Remote     Snapshot `json:"remote"`
	Fields     []string `json:"fields"`
	DetectedAt string   `json:"detectedAt"`
	Resolution string   `json:"resolution,omitempty"`
	ResolvedAt string   `json:"resolvedAt,omitempty"`
}

// ConflictsResponse lists outstanding conflicts.
type ConflictsResponse struct {
	Conflicts []Conflict `json:"conflicts"`
}

// ResolveRequest selects which side wins a conflict.
type ResolveRequest struct {
	Resolution string `json:"resolution"`
}

// ClaimRequest converts a shadow student into a real account.
type ClaimRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Student describes a student identity.
type Student struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Shadow      bool   `json:"shadow"`
	ClaimedAt   string `json:"claimedAt,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// SourceStatus reports whether an external source is wired.
type SourceStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Status summarizes daemon runtime state.
type Status struct {
	Running              bool           `json:"running"`
	DatabasePath         string         `json:"databasePath"`
	LockPath             string         `json:"lockPath,omitempty"`
	ActiveJobs           []Job          `json:"activeJobs"`
	OutstandingConflicts int            `json:"outstandingConflicts"`
	Sources              []SourceStatus `json:"sources"`
	AutoLinkThreshold    int            `json:"autoLinkThreshold"`
	ReviewFloor          int            `json:"reviewFloor"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
