package task

import (
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// Result is the outcome of one title.
type Result struct {
	Title   string
	Article *domain.Article
	Err     error
}

// Report folds per-title results into a job outcome.
type Report struct {
	Results   []Result
	Cancelled bool
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Outcome decides the terminal status of job. Cancellation wins; otherwise
// a job with at least one completed title is completed and a job without
// any is failed. Titles completed on an earlier delivery count too.
func (r *Report) Outcome(job *domain.Job) (domain.JobStatus, string) {
	if r.Cancelled {
		return domain.JobStatusCancelled, ""
	}

	if len(job.CompletedTitles) > 0 {
		return domain.JobStatusCompleted, ""
	}

	if len(job.FailedTitles) > 0 {
		if job.Kind == domain.JobKindSingle {
			return domain.JobStatusFailed, job.FailedTitles[0].Reason
		}
		return domain.JobStatusFailed, "all titles failed to generate"
	}
	return domain.JobStatusFailed, "no titles were generated"
}

// Failures counts results that carry an error.
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
