package store

import "time"

// NodeStatus mirrors spec.md §3's Node.status enum.
type NodeStatus string

const (
	NodeBooting  NodeStatus = "booting"
	NodeIdle     NodeStatus = "idle"
	NodeRunning  NodeStatus = "running"
	NodeEncoding NodeStatus = "encoding"
	NodeCleaning NodeStatus = "cleaning"
	NodeRenaming NodeStatus = "renaming"
	NodePaused   NodeStatus = "paused"
	NodeFinished NodeStatus = "finishing"
	NodeOffline  NodeStatus = "offline"
)

// NodeCommand mirrors spec.md §3's Node.command enum; set by the operator,
// read by the worker on its next poll.
type NodeCommand string

const (
	CommandIdle    NodeCommand = "idle"
	CommandRunning NodeCommand = "running"
	CommandPaused  NodeCommand = "paused"
	CommandQuit    NodeCommand = "quit"
)

// Node is one live worker identity (spec.md §3).
type Node struct {
	Hostname       string
	SessionToken   string
	Version        string
	Status         NodeStatus
	Command        NodeCommand
	LastHeartbeat  time.Time
	ConnectedAt    time.Time
	Progress       float64
	FPS            float64
	CurrentFile    string
	TotalDuration  float64
	JobStartTime   *time.Time
}

// JobType mirrors spec.md §3's Job.job_type enum. "Rename Job" and
// "Quality Mismatch" are internal kinds never dispatched to workers.
type JobType string

const (
	JobTranscode       JobType = "transcode"
	JobCleanup         JobType = "cleanup"
	JobRename          JobType = "Rename Job"
	JobQualityMismatch JobType = "Quality Mismatch"
)

// InternalJobTypes are never dispatched to workers (spec.md §3, §4.4's
// "Eligible job" definition). ArrJobProcessor drains only Rename Job rows;
// Quality Mismatch rows are not drained automatically.
var InternalJobTypes = []JobType{JobRename, JobQualityMismatch}

// IsInternal reports whether a job type is never dispatched to workers.
func (t JobType) IsInternal() bool {
	return t == JobRename || t == JobQualityMismatch
}

// JobStatus mirrors spec.md §3's Job.status enum.
type JobStatus string

const (
	JobPending           JobStatus = "pending"
	JobAwaitingApproval  JobStatus = "awaiting_approval"
	JobEncoding          JobStatus = "encoding"
	JobCompleted         JobStatus = "completed"
	JobFailed            JobStatus = "failed"
)

// Job is one unit of work (spec.md §3).
type Job struct {
	ID         int64
	Filepath   string
	JobType    JobType
	Status     JobStatus
	AssignedTo *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Metadata   []byte // opaque JSON
}

// EncodedFile is one history row (spec.md §3).
type EncodedFile struct {
	ID           int64
	Filepath     string
	OriginalSize int64
	NewSize      int64
	Worker       string
	CompletedAt  time.Time
}

// FailedFile is one failure row (spec.md §3).
type FailedFile struct {
	ID       int64
	Filepath string
	JobType  JobType
	Reason   string
	Log      string
	FailedAt time.Time
}

// MediaSourceType classifies a scanned source (spec.md §3).
type MediaSourceType struct {
	SourceName  string
	ScannerType string
	MediaType   string
	IsHidden    bool
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status  *JobStatus
	JobType *JobType
}

// Page requests a bounded slice of an ordered list.
type Page struct {
	Offset int
	Limit  int
}
