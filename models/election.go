package models

import "time"

type VotingMethod string

const (
	MethodPlurality    VotingMethod = "traditional"
	MethodRankedChoice VotingMethod = "ranked_choice"
)

func (m VotingMethod) Valid() bool {
	return m == MethodPlurality || m == MethodRankedChoice
}

type Candidate struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// Election is the store's view of a single election. It is immutable after
// creation; only vote counts accumulate against it.
type Election struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Candidates []Candidate  `json:"candidates"`
	Method     VotingMethod `json:"voting_method"`
	EndTime    time.Time    `json:"end_time"`
}

// HasCandidate reports whether id belongs to the election's candidate set.
func (e *Election) HasCandidate(id int) bool {
	for _, c := range e.Candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}
