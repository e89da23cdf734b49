package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"voting-gateway/identity"
	"voting-gateway/models"
)

// Verifier proves, without learning the voter's identity, whether the two
// systems of record agree for a correlation key. It performs two independent
// reads and no writes; it is safe to call any number of times.
type Verifier struct {
	store  BallotStore
	ledger VoteLedger
}

// NewVerifier returns a verifier over the two systems of record.
func NewVerifier(bs BallotStore, vl VoteLedger) *Verifier {
	return &Verifier{
		store:  bs,
		ledger: vl,
	}
}

// Verify fetches both ledgers' records for the election, filters each by the
// correlation key and compares the payloads. The two reads carry no ordering
// constraint and run concurrently. An error is returned only when a source
// cannot be read at all; disagreement between readable sources is a verdict,
// not an error.
func (v *Verifier) Verify(ctx context.Context, key models.CorrelationKey, electionID string) (*models.ReconciliationReport, error) {
	var (
		storeVotes    map[models.CorrelationKey]string
		ledgerEntries []models.LedgerEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		storeVotes, err = v.store.AllVotes(gctx, electionID)
		return err
	})
	g.Go(func() error {
		var err error
		ledgerEntries, err = v.ledger.VotesByElection(gctx, electionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.ReconciliationReport{
		Key:        key,
		ElectionID: electionID,
	}

	if payload, ok := storeVotes[key]; ok {
		report.StoreFound = true
		report.StorePayload = payload
		report.StoreFingerprint = identity.Fingerprint([]byte(payload))
	}
	for _, e := range ledgerEntries {
		if e.Key == key {
			report.LedgerFound = true
			report.LedgerPayload = e.VoteData
			report.LedgerFingerprint = identity.Fingerprint([]byte(e.VoteData))
			break
		}
	}

	switch {
	case !report.StoreFound && !report.LedgerFound:
		report.Verdict = models.VerdictBothAbsent
	case report.StoreFound && !report.LedgerFound:
		report.Verdict = models.VerdictStoreOnly
	case !report.StoreFound && report.LedgerFound:
		report.Verdict = models.VerdictLedgerOnly
	case report.StorePayload == report.LedgerPayload:
		report.Verdict = models.VerdictMatch
	default:
		// Both sources hold the key with differing payloads. Correct
		// operation never produces this; surface it loudly and prefer
		// neither source.
		report.Verdict = models.VerdictMismatch
		log.Errorf("Reconciliation mismatch for election %v: store %v vs ledger %v",
			electionID, report.StoreFingerprint, report.LedgerFingerprint)
	}

	return report, nil
}
