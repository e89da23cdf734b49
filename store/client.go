package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voting-gateway/models"
)

// Config holds the explicit configuration for a store client. Nothing is read
// from the environment here; multiple clients against different stores can
// coexist in one process.
type Config struct {
	// BaseURL is the root of the authoritative store API,
	// e.g. "https://store.example.org".
	BaseURL string

	// HTTP is the underlying http client. A default with a 30 second timeout
	// is used when nil; per-call deadlines belong to the caller's context.
	HTTP *http.Client
}

// Client talks to the authoritative store's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a store client for the given configuration.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store base url %q: unsupported scheme", cfg.BaseURL)
	}

	httpc := cfg.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    httpc,
	}, nil
}

// errorReply is the body the store returns on a non-2xx response.
type errorReply struct {
	Error string `json:"error"`
}

// RejectError is returned by SubmitVote when the store refuses a ballot with
// one of its terminal rejection reasons. Reason carries the store's verbatim
// message for display.
type RejectError struct {
	Kind       models.RejectReason
	StatusCode int
	Reason     string
}

func (e *RejectError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("store rejected vote (%v): %v", e.Kind, e.Reason)
	}
	return fmt.Sprintf("store rejected vote (%v): http %v", e.Kind, e.StatusCode)
}

// AsRejectError unwraps err to a *RejectError if there is one.
func AsRejectError(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// makeReq sends one request to the store and returns the response body. A
// non-2xx response yields an error carrying the decoded reason; the caller
// maps vote rejections to their typed form.
func (c *Client) makeReq(ctx context.Context, method, route string, body []byte, hdr map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method,
		c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	log.Tracef("%v %v", method, route)

	r, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("store request %v %v: %w", method, route, err)
	}
	defer r.Body.Close()

	reply, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, r.StatusCode, fmt.Errorf("read store reply: %w", err)
	}
	return reply, r.StatusCode, nil
}

// decodeErrorReason pulls the store's error string out of a non-2xx body.
// Falls back to the raw body when it is not the expected JSON shape.
func decodeErrorReason(reply []byte) string {
	var er errorReply
	if err := json.Unmarshal(reply, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(reply))
}

// CreateElectionRequest is the POST /elections body. Emails lists the
// eligible voters; the store owns roster handling from here on.
type CreateElectionRequest struct {
	Title      string              `json:"title"`
	Candidates []CandidateName     `json:"candidates"`
	EndTime    time.Time           `json:"end_time"`
	Method     models.VotingMethod `json:"voting_method"`
	Emails     []string            `json:"emails"`
}

type CandidateName struct {
	Name string `json:"name"`
}

type CreateElectionReply struct {
	ID string `json:"id"`
}

// CreateElection creates a new election and returns its store-assigned id.
func (c *Client) CreateElection(ctx context.Context, req CreateElectionRequest) (*CreateElectionReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	reply, code, err := c.makeReq(ctx, http.MethodPost, "/elections", body, nil)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("create election: http %v: %v",
			code, decodeErrorReason(reply))
	}

	var cer CreateElectionReply
	if err := json.Unmarshal(reply, &cer); err != nil {
		return nil, fmt.Errorf("decode create election reply: %w", err)
	}

	log.Debugf("Created election %v (%v)", cer.ID, req.Title)
	return &cer, nil
}

// SubmitVote posts an encoded ballot for the election, authenticating with
// the correlation key as bearer credential. The voter's raw email and code
// never reach the store.
//
// Terminal rejections come back as *RejectError: 401 Unauthorized (malformed
// key or voter not eligible), 403 Closed (election end time passed), 409
// Duplicate (a ballot already exists for this key). Any other failure is
// transient from the protocol's point of view.
func (c *Client) SubmitVote(ctx context.Context, electionID string, key models.CorrelationKey, eb models.EncodedBallot) error {
	route := fmt.Sprintf("/elections/%v/vote", url.PathEscape(electionID))
	hdr := map[string]string{
		"Authorization": "Bearer " + key.String(),
	}

	reply, code, err := c.makeReq(ctx, http.MethodPost, route, eb.Body, hdr)
	if err != nil {
		return err
	}
	if code >= 200 && code <= 299 {
		return nil
	}

	reason := decodeErrorReason(reply)
	switch code {
	case http.StatusUnauthorized:
		return &RejectError{Kind: models.RejectUnauthorized, StatusCode: code, Reason: reason}
	case http.StatusForbidden:
		return &RejectError{Kind: models.RejectClosed, StatusCode: code, Reason: reason}
	case http.StatusConflict:
		return &RejectError{Kind: models.RejectDuplicate, StatusCode: code, Reason: reason}
	}
	return fmt.Errorf("submit vote: http %v: %v", code, reason)
}

// ResultsReply is the GET /elections/{id}/results body.
type ResultsReply struct {
	Title   string              `json:"title"`
	Method  models.VotingMethod `json:"voting_method"`
	EndTime time.Time           `json:"end_time"`
	Results []models.Candidate  `json:"results"`
	Winner  *models.Candidate   `json:"winner"`
	IsDraw  bool                `json:"is_draw"`
}

// Election reshapes a results reply into the election view the ballot
// encoder validates against.
func (r *ResultsReply) Election(id string) *models.Election {
	return &models.Election{
		ID:         id,
		Title:      r.Title,
		Method:     r.Method,
		EndTime:    r.EndTime,
		Candidates: r.Results,
	}
}

// Results fetches per-candidate counts and the winner (or draw flag).
func (c *Client) Results(ctx context.Context, electionID string) (*ResultsReply, error) {
	route := fmt.Sprintf("/elections/%v/results", url.PathEscape(electionID))

	reply, code, err := c.makeReq(ctx, http.MethodGet, route, nil, nil)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("results: http %v: %v", code, decodeErrorReason(reply))
	}

	var rr ResultsReply
	if err := json.Unmarshal(reply, &rr); err != nil {
		return nil, fmt.Errorf("decode results reply: %w", err)
	}
	return &rr, nil
}

// allVotesReply is the GET /elections/{id}/all_votes body: stored ballot
// payloads keyed by correlation key.
type allVotesReply struct {
	Votes map[models.CorrelationKey]string `json:"votes"`
}

// AllVotes returns every stored ballot payload for the election, keyed by
// correlation key. The verifier filters client-side.
func (c *Client) AllVotes(ctx context.Context, electionID string) (map[models.CorrelationKey]string, error) {
	route := fmt.Sprintf("/elections/%v/all_votes", url.PathEscape(electionID))

	reply, code, err := c.makeReq(ctx, http.MethodGet, route, nil, nil)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("all votes: http %v: %v", code, decodeErrorReason(reply))
	}

	var avr allVotesReply
	if err := json.Unmarshal(reply, &avr); err != nil {
		return nil, fmt.Errorf("decode all votes reply: %w", err)
	}
	if avr.Votes == nil {
		avr.Votes = make(map[models.CorrelationKey]string)
	}
	return avr.Votes, nil
}
