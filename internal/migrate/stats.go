package migrate

import "fmt"

// Stats accumulates counters for one pass.
type Stats struct {
	IssuesCreated     int `json:"issues_created"`
	IssuesUpdated     int `json:"issues_updated"`
	IssuesUnchanged   int `json:"issues_unchanged"`
	IssuesAnnounced   int `json:"issues_announced"`
	MilestonesCreated int `json:"milestones_created"`
	PullsCreated      int `json:"pulls_created"`
	PullsUpdated      int `json:"pulls_updated"`
	PullsUnchanged    int `json:"pulls_unchanged"`
	PullsSkipped      int `json:"pulls_skipped"`  // merge requests from forks
	PullsRejected     int `json:"pulls_rejected"` // validation failures on create
	BranchesPushed    int `json:"branches_pushed"`
	MirrorFailures    int `json:"mirror_failures"`
}

// Outcome tags the result of a pass.
type Outcome int

const (
	// OutcomeSuccess means the pass ran to completion.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable means the pass was aborted by a transient authorization
	// failure and may be re-run from scratch.
	OutcomeRetryable
	// OutcomeFatal means the pass was aborted and must not be retried.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PassResult is returned by RunPass.
type PassResult struct {
	Outcome Outcome
	Err     error
	Stats   Stats
}

// Result summarizes a complete run.
type Result struct {
	Project  Project `json:"project"`
	Attempts int     `json:"attempts"`
	Stats    Stats   `json:"stats"`
}
