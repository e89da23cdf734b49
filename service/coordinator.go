package service

import (
	"context"

	"voting-gateway/identity"
	"voting-gateway/models"
	"voting-gateway/store"
)

// BallotStore is the authoritative store as seen by this package. Implemented
// by *store.Client.
type BallotStore interface {
	SubmitVote(ctx context.Context, electionID string, key models.CorrelationKey, eb models.EncodedBallot) error
	AllVotes(ctx context.Context, electionID string) (map[models.CorrelationKey]string, error)
}

// VoteLedger is the contract ledger as seen by this package. Implemented by
// *ledger.Client.
type VoteLedger interface {
	RecordVote(ctx context.Context, electionID string, key models.CorrelationKey, payload []byte) (txHash string, err error)
	VotesByElection(ctx context.Context, electionID string) ([]models.LedgerEntry, error)
}

// Coordinator performs the dual write: the authoritative store first, then
// the contract ledger, strictly in that order. The ledger append embeds the
// same key and payload the store accepted, so the store write must fully
// resolve before the ledger write is attempted.
type Coordinator struct {
	store   BallotStore
	ledger  VoteLedger
	tracker *Tracker
}

// NewCoordinator returns a coordinator over the two systems of record.
func NewCoordinator(bs BallotStore, vl VoteLedger) *Coordinator {
	return &Coordinator{
		store:   bs,
		ledger:  vl,
		tracker: NewTracker(),
	}
}

// Tracker exposes the in-flight submission tracker.
func (c *Coordinator) Tracker() *Tracker {
	return c.tracker
}

// Submit writes an encoded ballot to the store and then to the ledger, and
// reports how the submission resolved. Every path returns an outcome value;
// errors from the collaborators are folded into it, never raised.
//
// If the store rejects, nothing is written anywhere and the ledger is not
// contacted. If the store accepts and the ledger write fails, the store
// record stands unrolled back: the store is the source of truth and the
// ledger a verifiable secondary record. The caller retries the ledger leg
// explicitly via RetryLedger; nothing is retried here.
func (c *Coordinator) Submit(ctx context.Context, key models.CorrelationKey, electionID string, eb models.EncodedBallot) models.SubmissionOutcome {
	fingerprint := identity.Fingerprint(eb.Body)

	// A malformed key can only come from a buggy caller; fail before any
	// network round trip.
	if !key.Valid() {
		return models.SubmissionOutcome{
			State:       models.Rejected,
			Reason:      models.RejectUnauthorized,
			Detail:      "malformed correlation key",
			Fingerprint: fingerprint,
		}
	}

	sub := c.tracker.Begin(key, electionID, fingerprint)
	defer c.tracker.Resolve(sub.ID)

	// Step 1: authoritative store.
	if err := c.store.SubmitVote(ctx, electionID, key, eb); err != nil {
		outcome := models.SubmissionOutcome{
			SubmissionID: sub.ID,
			State:        models.Rejected,
			Fingerprint:  fingerprint,
		}
		if re, ok := store.AsRejectError(err); ok {
			outcome.Reason = re.Kind
			outcome.Detail = re.Reason
			log.Infof("Submission %v rejected by store: %v", sub.ID, re.Kind)
		} else {
			outcome.Reason = models.RejectUnavailable
			outcome.Detail = err.Error()
			log.Warnf("Submission %v: store unreachable: %v", sub.ID, err)
		}
		return outcome
	}

	// Step 2: contract ledger, only after the store accepted.
	txHash, err := c.ledger.RecordVote(ctx, electionID, key, eb.Body)
	if err != nil {
		log.Warnf("Submission %v: ledger write failed after store accept: %v",
			sub.ID, err)
		return models.SubmissionOutcome{
			SubmissionID: sub.ID,
			State:        models.StoreOnly,
			LedgerError:  err.Error(),
			Fingerprint:  fingerprint,
		}
	}

	log.Debugf("Submission %v fully submitted, tx %v", sub.ID, txHash)
	return models.SubmissionOutcome{
		SubmissionID: sub.ID,
		State:        models.FullySubmitted,
		TxHash:       txHash,
		Fingerprint:  fingerprint,
	}
}

// RetryLedger re-attempts the ledger leg of a submission whose store write
// already succeeded. The ledger write must embed the exact payload the store
// accepted, so the retry is anchored on the store's record: the submitted
// choice must reproduce it byte for byte, and the store's bytes are what gets
// appended. A retry for a key the store never accepted, or with a choice that
// encodes differently, is refused outright; appending it would make the two
// systems of record permanently disagree.
//
// The retry is idempotent: if the ledger already holds the matching entry for
// the key, it is a no-op reported as fully submitted. When an append fails,
// the ledger is re-read before giving up, so a duplicate rejection from a
// concurrent append of the same entry still counts as success.
func (c *Coordinator) RetryLedger(ctx context.Context, key models.CorrelationKey, electionID string, eb models.EncodedBallot) models.SubmissionOutcome {
	if !key.Valid() {
		return models.SubmissionOutcome{
			State:  models.Rejected,
			Reason: models.RejectUnauthorized,
			Detail: "malformed correlation key",
		}
	}

	votes, err := c.store.AllVotes(ctx, electionID)
	if err != nil {
		return models.SubmissionOutcome{
			State:  models.Rejected,
			Reason: models.RejectUnavailable,
			Detail: "cannot confirm stored ballot: " + err.Error(),
		}
	}
	stored, ok := votes[key]
	if !ok {
		log.Infof("Ledger retry for election %v refused: store holds no ballot", electionID)
		return models.SubmissionOutcome{
			State:  models.Rejected,
			Reason: models.RejectNoBallot,
			Detail: "the store holds no ballot for this key",
		}
	}
	if stored != string(eb.Body) {
		log.Warnf("Ledger retry for election %v refused: choice does not match stored ballot",
			electionID)
		return models.SubmissionOutcome{
			State:  models.Rejected,
			Reason: models.RejectBallotMismatch,
			Detail: "the submitted choice does not match the stored ballot",
		}
	}
	fingerprint := identity.Fingerprint([]byte(stored))

	entries, err := c.ledger.VotesByElection(ctx, electionID)
	if err != nil {
		return models.SubmissionOutcome{
			State:       models.StoreOnly,
			LedgerError: err.Error(),
			Fingerprint: fingerprint,
		}
	}
	if outcome, done := retryResolved(entries, key, stored, fingerprint); done {
		log.Debugf("Ledger retry for election %v: entry already recorded", electionID)
		return outcome
	}

	txHash, err := c.ledger.RecordVote(ctx, electionID, key, []byte(stored))
	if err != nil {
		// The append may have lost a race against another retry of the same
		// submission. Re-read before reporting failure; a matching entry on
		// chain means the retry's goal is met.
		if entries, rerr := c.ledger.VotesByElection(ctx, electionID); rerr == nil {
			if outcome, done := retryResolved(entries, key, stored, fingerprint); done {
				log.Debugf("Ledger retry for election %v: entry landed concurrently",
					electionID)
				return outcome
			}
		}
		log.Warnf("Ledger retry for election %v failed: %v", electionID, err)
		return models.SubmissionOutcome{
			State:       models.StoreOnly,
			LedgerError: err.Error(),
			Fingerprint: fingerprint,
		}
	}

	return models.SubmissionOutcome{
		State:       models.FullySubmitted,
		TxHash:      txHash,
		Fingerprint: fingerprint,
	}
}

// retryResolved inspects the ledger entries for the key and, when one exists,
// resolves the retry without appending: fully submitted when it matches the
// store's payload, refused when it differs (the disagreement is the
// verifier's alarm to raise, not something a second append can repair).
func retryResolved(entries []models.LedgerEntry, key models.CorrelationKey, stored, fingerprint string) (models.SubmissionOutcome, bool) {
	for _, e := range entries {
		if e.Key != key {
			continue
		}
		if e.VoteData == stored {
			return models.SubmissionOutcome{
				State:       models.FullySubmitted,
				Fingerprint: fingerprint,
			}, true
		}
		return models.SubmissionOutcome{
			State:       models.Rejected,
			Reason:      models.RejectBallotMismatch,
			Detail:      "the ledger already holds a differing payload; run verification",
			Fingerprint: fingerprint,
		}, true
	}
	return models.SubmissionOutcome{}, false
}
