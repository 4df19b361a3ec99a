package jobs

import (
	"time"
)

// Progress describes how far a job has come.
type Progress struct {
	Done          int    `json:"done"`
	Total         int    `json:"total"`
	Percentage    int32  `json:"percentage"`
	TimeRemaining *int64 `json:"time_remaining_ms,omitempty"`
}

// BuildProgress derives progress from the item states. The remaining time is
// extrapolated from the average time per finished item and is only reported
// for running jobs.
func BuildProgress(job *Job, now time.Time) Progress {
	p := Progress{Total: job.Total}
	for _, it := range job.Items {
		if it.Status == StatusDone || it.Status == StatusFailed {
			p.Done++
		}
	}
	if p.Total <= 0 {
		return p
	}
	p.Percentage = int32(p.Done * 100 / p.Total)

	if job.Status != StatusRunning || job.StartedAt == nil || p.Done == 0 || p.Done >= p.Total {
		return p
	}
	elapsed := now.Sub(*job.StartedAt).Milliseconds()
	if elapsed <= 0 {
		return p
	}
	remaining := elapsed / int64(p.Done) * int64(p.Total-p.Done)
	p.TimeRemaining = &remaining
	return p
}
