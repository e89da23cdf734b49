package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"voting-gateway/ballot"
	"voting-gateway/identity"
	"voting-gateway/models"
	"voting-gateway/service"
	"voting-gateway/store"
)

// ElectionDirectory is the slice of the store API the facade proxies
// directly: election creation and results. Implemented by *store.Client.
type ElectionDirectory interface {
	CreateElection(ctx context.Context, req store.CreateElectionRequest) (*store.CreateElectionReply, error)
	Results(ctx context.Context, electionID string) (*store.ResultsReply, error)
}

// Config holds the collaborators the server fronts. All dependencies are
// explicit; two servers with different stores can run in one process.
type Config struct {
	Directory   ElectionDirectory
	Coordinator *service.Coordinator
	Verifier    *service.Verifier
}

// Server is the HTTP facade the browser UI talks to. Handlers decode input,
// call the protocol operations and render their result values; no protocol
// decisions are made here.
type Server struct {
	directory   ElectionDirectory
	coordinator *service.Coordinator
	verifier    *service.Verifier
	router      *mux.Router
}

// New returns a server routing to the given collaborators.
func New(cfg Config) *Server {
	s := &Server{
		directory:   cfg.Directory,
		coordinator: cfg.Coordinator,
		verifier:    cfg.Verifier,
		router:      mux.NewRouter(),
	}

	s.router.HandleFunc("/elections",
		s.handleCreateElection).Methods(http.MethodPost)
	s.router.HandleFunc("/elections/{id}/results",
		s.handleResults).Methods(http.MethodGet)
	s.router.HandleFunc("/elections/{id}/vote",
		s.handleVote).Methods(http.MethodPost)
	s.router.HandleFunc("/elections/{id}/retry",
		s.handleRetry).Methods(http.MethodPost)
	s.router.HandleFunc("/verify",
		s.handleVerify).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz",
		s.handleHealth).Methods(http.MethodGet)

	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req store.CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Method.Valid() {
		respondError(w, http.StatusBadRequest, "unknown voting method")
		return
	}

	reply, err := s.directory.CreateElection(r.Context(), req)
	if err != nil {
		log.Warnf("Create election failed: %v", err)
		respondError(w, http.StatusBadGateway, "election creation failed")
		return
	}
	respondJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]

	reply, err := s.directory.Results(r.Context(), electionID)
	if err != nil {
		log.Warnf("Results fetch for election %v failed: %v", electionID, err)
		respondError(w, http.StatusBadGateway, "results unavailable")
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// VoteRequest carries the voter's shared secret and raw choice. The secret is
// consumed by key derivation inside the gateway and never forwarded.
type VoteRequest struct {
	Email string `json:"email"`
	Code  string `json:"otp"`

	// Exactly one of the two is used, depending on the election's method.
	CandidateID int   `json:"candidate_id"`
	Ranking     []int `json:"ranking"`
}

// deriveAndEncode turns a vote request into the correlation key and canonical
// payload for the election, fetching the election's method and candidate set
// from the store.
func (s *Server) deriveAndEncode(ctx context.Context, electionID string, req VoteRequest) (models.CorrelationKey, models.EncodedBallot, error) {
	rr, err := s.directory.Results(ctx, electionID)
	if err != nil {
		return "", models.EncodedBallot{}, err
	}

	eb, err := ballot.Encode(rr.Election(electionID), ballot.Choice{
		CandidateID: req.CandidateID,
		Ranking:     req.Ranking,
	})
	if err != nil {
		return "", models.EncodedBallot{}, err
	}

	return identity.Derive(req.Email, req.Code), eb, nil
}

func decodeVoteRequest(w http.ResponseWriter, r *http.Request) (VoteRequest, bool) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Email == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "email and otp are required")
		return req, false
	}
	return req, true
}

// respondEncodeError maps encoder failures, which are locally recoverable by
// re-prompting the voter, to 422s carrying the error kind.
func respondEncodeError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, ballot.ErrInvalidChoice),
		errors.Is(err, ballot.ErrInsufficientRankings):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return true
	}
	return false
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]

	req, ok := decodeVoteRequest(w, r)
	if !ok {
		return
	}

	key, eb, err := s.deriveAndEncode(r.Context(), electionID, req)
	if err != nil {
		if !respondEncodeError(w, err) {
			log.Warnf("Vote preparation for election %v failed: %v", electionID, err)
			respondError(w, http.StatusBadGateway, "election unavailable")
		}
		return
	}

	outcome := s.coordinator.Submit(r.Context(), key, electionID, eb)
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["id"]

	req, ok := decodeVoteRequest(w, r)
	if !ok {
		return
	}

	key, eb, err := s.deriveAndEncode(r.Context(), electionID, req)
	if err != nil {
		if !respondEncodeError(w, err) {
			respondError(w, http.StatusBadGateway, "election unavailable")
		}
		return
	}

	outcome := s.coordinator.RetryLedger(r.Context(), key, electionID, eb)
	respondJSON(w, http.StatusOK, outcome)
}

// VerifyRequest identifies the ballot to reconcile. The same shared secret
// the voter submitted with re-derives the same correlation key.
type VerifyRequest struct {
	Email      string `json:"email"`
	Code       string `json:"otp"`
	ElectionID string `json:"election_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Code == "" || req.ElectionID == "" {
		respondError(w, http.StatusBadRequest, "email, otp and election_id are required")
		return
	}

	key := identity.Derive(req.Email, req.Code)
	report, err := s.verifier.Verify(r.Context(), key, req.ElectionID)
	if err != nil {
		log.Warnf("Verification for election %v failed: %v", req.ElectionID, err)
		respondError(w, http.StatusBadGateway, "verification sources unavailable")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"inflight": s.coordinator.Tracker().InflightCount(),
	})
}
