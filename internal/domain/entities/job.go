package entities

import "time"

// JobKind identifies which Pipeline a Job runs through.
type JobKind string

const (
	JobUpload  JobKind = "upload"
	JobYouTube JobKind = "youtube"
)

// JobStatus is a Job's position in the state machine from spec.md §4.5/§8:
// pending -> reserved -> downloading -> processing -> completed
// or ending early at failed / cancelled.
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobReserved    JobStatus = "reserved"
	JobDownloading JobStatus = "downloading"
	JobProcessing  JobStatus = "processing"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobCancelling  JobStatus = "cancelling"
	JobCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether status is a terminal state for a Job.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// ErrorKind classifies why a Job failed, per spec.md §7.
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorFetchNetwork       ErrorKind = "FetchNetwork"
	ErrorFetchUnavailable   ErrorKind = "FetchUnavailable"
	ErrorFetchFormat        ErrorKind = "FetchFormat"
	ErrorSeparatorUnavail   ErrorKind = "SeparatorUnavailable"
	ErrorSeparatorFailed    ErrorKind = "SeparatorFailed"
	ErrorTimeout            ErrorKind = "Timeout"
	ErrorCancelled          ErrorKind = "Cancelled"
	ErrorPersistence        ErrorKind = "Persistence"
	ErrorInternal           ErrorKind = "Internal"
)

// YouTubeNotes carries the step-specific data for a youtube-kind Job.
type YouTubeNotes struct {
	VideoID   string `json:"videoId"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// UploadNotes carries the step-specific data for an upload-kind Job.
type UploadNotes struct {
	SourcePath string `json:"sourcePath"`
}

// JobNotes is the tagged-variant payload for a Job's step-specific data,
// replacing the source's free-form map (see spec.md §9).
type JobNotes struct {
	YouTube *YouTubeNotes `json:"youtube,omitempty"`
	Upload  *UploadNotes  `json:"upload,omitempty"`
}

// ErrorDetail accompanies a failed Job.
type ErrorDetail struct {
	Step    string `json:"step,omitempty"`
	Message string `json:"message,omitempty"`
}

// Job is a unit of asynchronous work driving one Song through a Pipeline.
type Job struct {
	ID            string       `json:"id" db:"id"`
	SongID        string       `json:"songId" db:"song_id"`
	Kind          JobKind      `json:"kind" db:"kind"`
	Status        JobStatus    `json:"status" db:"status"`
	Progress      int          `json:"progress" db:"progress"`
	StatusMessage string       `json:"statusMessage,omitempty" db:"status_message"`
	TaskRef       string       `json:"taskRef,omitempty" db:"task_ref"`
	ErrorKind     ErrorKind    `json:"errorKind,omitempty" db:"error_kind"`
	ErrorDetail   *ErrorDetail `json:"errorDetail,omitempty"`
	Notes         JobNotes     `json:"notes"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	StartedAt     *time.Time   `json:"startedAt,omitempty" db:"started_at"`
	EndedAt       *time.Time   `json:"endedAt,omitempty" db:"ended_at"`
	ReservedAt    *time.Time   `json:"-" db:"reserved_at"`
}

// JobPatch is applied by the reserving worker; fields left nil are unchanged.
type JobPatch struct {
	Status        *JobStatus
	Progress      *int
	StatusMessage *string
	ErrorKind     *ErrorKind
	ErrorDetail   *ErrorDetail
	StartedAt     *time.Time
	EndedAt       *time.Time
}
