package ballot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"voting-gateway/models"
)

var (
	// ErrInvalidChoice is returned when a choice names a candidate outside
	// the election's candidate set, or names the same candidate twice.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrInsufficientRankings is returned when a ranked-choice ballot ranks
	// fewer than two candidates.
	ErrInsufficientRankings = errors.New("at least two candidates must be ranked")
)

// Choice is a voter's raw selection before encoding. Exactly one field is
// meaningful per method: CandidateID for plurality, Ranking (most-preferred
// first) for ranked choice.
type Choice struct {
	CandidateID int   `json:"candidate_id"`
	Ranking     []int `json:"ranking"`
}

// Encode serializes a choice into the election's method-specific canonical
// payload. It validates against the election's candidate set, never mutates
// election state, and produces no partial output on failure.
func Encode(e *models.Election, c Choice) (models.EncodedBallot, error) {
	switch e.Method {
	case models.MethodPlurality:
		return EncodePlurality(e, c.CandidateID)
	case models.MethodRankedChoice:
		return EncodeRanked(e, c.Ranking)
	default:
		return models.EncodedBallot{}, fmt.Errorf("unknown voting method %q", e.Method)
	}
}

// EncodePlurality encodes a single-candidate ballot: {"vote": <candidate id>}.
func EncodePlurality(e *models.Election, candidateID int) (models.EncodedBallot, error) {
	if !e.HasCandidate(candidateID) {
		return models.EncodedBallot{}, fmt.Errorf("candidate %d not in election %s: %w",
			candidateID, e.ID, ErrInvalidChoice)
	}

	body, err := json.Marshal(struct {
		Vote int `json:"vote"`
	}{Vote: candidateID})
	if err != nil {
		return models.EncodedBallot{}, err
	}

	return models.EncodedBallot{Method: models.MethodPlurality, Body: body}, nil
}

// EncodeRanked encodes an ordered preference ballot. The ranking lists
// distinct candidate ids, most-preferred first; the payload maps each
// candidate id to its 1-based rank, JSON-stringified inside the vote field:
// {"vote": "{\"7\":2,\"9\":1}"}.
func EncodeRanked(e *models.Election, ranking []int) (models.EncodedBallot, error) {
	if len(ranking) < 2 {
		return models.EncodedBallot{}, ErrInsufficientRankings
	}

	rankByID := make(map[int]int, len(ranking))
	for i, id := range ranking {
		if !e.HasCandidate(id) {
			return models.EncodedBallot{}, fmt.Errorf("candidate %d not in election %s: %w",
				id, e.ID, ErrInvalidChoice)
		}
		if _, dup := rankByID[id]; dup {
			return models.EncodedBallot{}, fmt.Errorf("candidate %d ranked twice: %w",
				id, ErrInvalidChoice)
		}
		rankByID[id] = i + 1
	}

	body, err := json.Marshal(struct {
		Vote string `json:"vote"`
	}{Vote: marshalRanks(rankByID)})
	if err != nil {
		return models.EncodedBallot{}, err
	}

	return models.EncodedBallot{Method: models.MethodRankedChoice, Body: body}, nil
}

// marshalRanks builds the inner candidate->rank JSON object with keys in
// ascending numeric order. The ordering is part of the canonical form: both
// ledgers must receive identical bytes for reconciliation to compare equal.
func marshalRanks(rankByID map[int]int) string {
	ids := make([]int, 0, len(rankByID))
	for id := range rankByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strconv.Itoa(id))
		b.WriteString(`":`)
		b.WriteString(strconv.Itoa(rankByID[id]))
	}
	b.WriteByte('}')
	return b.String()
}
