package pipeline

import "plantshot/internal/imagegen"

// JobStatus is the in-memory state of one requested image.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobGenerating JobStatus = "generating"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job tracks one image type through a batch. Values are never mutated in
// place; each transition returns a new Job.
type Job struct {
	ID             string             `json:"id"`
	ImageType      imagegen.ImageType `json:"imageType"`
	Status         JobStatus          `json:"status"`
	ImageURL       string             `json:"imageUrl,omitempty"`
	Error          string             `json:"error,omitempty"`
	Prompt         string             `json:"prompt,omitempty"`
	Seed           int                `json:"seed"`
	Temperature    float64            `json:"temperature"`
	DurationMS     int64              `json:"durationMs"`
	ParentImageID  string             `json:"parentImageId,omitempty"`
	ParentImageURL string             `json:"parentImageUrl,omitempty"`
	RecordID       string             `json:"recordId,omitempty"`
}

func newJob(id string, t imagegen.ImageType) Job {
	return Job{ID: id, ImageType: t, Status: JobPending}
}

func (j Job) start(prompt string, seed int, temperature float64) Job {
	j.Status = JobGenerating
	j.Prompt = prompt
	j.Seed = seed
	j.Temperature = temperature
	return j
}

func (j Job) withParent(id, url string) Job {
	j.ParentImageID = id
	j.ParentImageURL = url
	return j
}

func (j Job) complete(url string, durationMS int64) Job {
	j.Status = JobCompleted
	j.ImageURL = url
	j.DurationMS = durationMS
	j.Error = ""
	return j
}

func (j Job) withRecord(id string) Job {
	j.RecordID = id
	return j
}

func (j Job) fail(reason string, durationMS int64) Job {
	j.Status = JobFailed
	j.Error = reason
	j.ImageURL = ""
	j.DurationMS = durationMS
	return j
}

// Resolved reports whether the job reached a terminal state.
func (j Job) Resolved() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// Tally counts completed and failed jobs.
func Tally(jobs []Job) (succeeded, failed int) {
	for _, j := range jobs {
		switch j.Status {
		case JobCompleted:
			succeeded++
		case JobFailed:
			failed++
		}
	}
	return succeeded, failed
}
