package job

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// FailurePolicy decides when per-URL failures escalate to a failed job.
type FailurePolicy struct {
	// MaxFailureRate is compared against items_failed / items_processed.
	MaxFailureRate float64
	// MinProcessed is how many items must be processed before the rate applies.
	MinProcessed int
	// MaxConsecutive fails the job after more consecutive failures than this.
	MaxConsecutive int
}

// DefaultFailurePolicy fails a job above 50% failures once 5 items are
// processed, or after more than 10 failures in a row.
var DefaultFailurePolicy = FailurePolicy{
	MaxFailureRate: 0.5,
	MinProcessed:   5,
	MaxConsecutive: 10,
}

// Exceeded returns the error summary when job must fail.
func (p FailurePolicy) Exceeded(job *domain.Job, consecutive int) (string, bool) {
	if p.MaxConsecutive > 0 && consecutive > p.MaxConsecutive {
		return fmt.Sprintf("%d consecutive fetch failures", consecutive), true
	}
	if p.MinProcessed > 0 && job.ItemsProcessed >= p.MinProcessed {
		rate := float64(job.ItemsFailed) / float64(job.ItemsProcessed)
		if rate > p.MaxFailureRate {
			return fmt.Sprintf("failure rate %.0f%% over %d processed items exceeds %.0f%%",
				rate*100, job.ItemsProcessed, p.MaxFailureRate*100), true
		}
	}
	return "", false
}

const summaryAllSeedsUnreachable = "all seeds unreachable"
