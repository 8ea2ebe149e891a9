package scheduler

import "time"

// Outcome is what happened to a single resume during a tick.
type Outcome string

const (
	Touched     Outcome = "touched"
	RateLimited Outcome = "rate_limited"
	// Rejected means hh.ru refused to publish the resume (HTTP 400). It stays active.
	Rejected Outcome = "rejected"
	// Failed is a transient failure: network, unexpected status or storage.
	Failed  Outcome = "failed"
	Expired Outcome = "expired"
	// Skipped resumes were not attempted: the token was rejected or missing.
	Skipped Outcome = "skipped"
)

// Report summarizes one tick.
type Report struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Groups     int             `json:"groups"`
	Resumes    int             `json:"resumes"`
	Outcomes   map[Outcome]int `json:"outcomes"`

	// AuthFailures counts token groups skipped because the token was rejected.
	AuthFailures int `json:"auth_failures"`
}

func newReport(id string, started time.Time) *Report {
	return &Report{
		ID:        id,
		StartedAt: started,
		Outcomes:  make(map[Outcome]int),
	}
}

// Duration of the tick.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of resumes with the outcome.
func (r *Report) Count(o Outcome) int {
	return r.Outcomes[o]
}

type groupResult struct {
	outcomes     map[Outcome]int
	authFailures int
}

func (g *groupResult) add(o Outcome, n int) {
	if g.outcomes == nil {
		g.outcomes = make(map[Outcome]int)
	}
	g.outcomes[o] += n
}

func (r *Report) merge(g groupResult) {
	for o, n := range g.outcomes {
		r.Outcomes[o] += n
	}
	r.AuthFailures += g.authFailures
}
