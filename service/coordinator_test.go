package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-gateway/models"
	"voting-gateway/store"
)

const (
	testKey      = models.CorrelationKey("adcd436d7270195d0f4168cbfc8686e9bd88b6bda391f2b51fe8033914c124d7")
	testElection = "42"
)

var testBallot = models.EncodedBallot{
	Method: models.MethodPlurality,
	Body:   []byte(`{"vote":2}`),
}

// fakeStore implements BallotStore.
type fakeStore struct {
	submitErr   error
	submitCalls int
	votes       map[models.CorrelationKey]string
	votesErr    error
}

func (f *fakeStore) SubmitVote(_ context.Context, _ string, _ models.CorrelationKey, _ models.EncodedBallot) error {
	f.submitCalls++
	return f.submitErr
}

func (f *fakeStore) AllVotes(_ context.Context, _ string) (map[models.CorrelationKey]string, error) {
	if f.votesErr != nil {
		return nil, f.votesErr
	}
	if f.votes == nil {
		return map[models.CorrelationKey]string{}, nil
	}
	return f.votes, nil
}

// fakeLedger implements VoteLedger.
type fakeLedger struct {
	recordErr   error
	recordCalls int
	lastPayload []byte
	entries     []models.LedgerEntry
	entriesErr  error

	// lateEntries, when set, is returned by every read after the first
	// append attempt, mimicking an entry landing concurrently.
	lateEntries []models.LedgerEntry
}

func (f *fakeLedger) RecordVote(_ context.Context, _ string, _ models.CorrelationKey, payload []byte) (string, error) {
	f.recordCalls++
	f.lastPayload = payload
	if f.recordErr != nil {
		return "", f.recordErr
	}
	return "0xabc123", nil
}

func (f *fakeLedger) VotesByElection(_ context.Context, _ string) ([]models.LedgerEntry, error) {
	if f.entriesErr != nil {
		return nil, f.entriesErr
	}
	if f.lateEntries != nil && f.recordCalls > 0 {
		return f.lateEntries, nil
	}
	return f.entries, nil
}

func TestSubmitFullySubmitted(t *testing.T) {
	fs := &fakeStore{}
	fl := &fakeLedger{}
	c := NewCoordinator(fs, fl)

	outcome := c.Submit(context.Background(), testKey, testElection, testBallot)

	assert.Equal(t, models.FullySubmitted, outcome.State)
	assert.Equal(t, "0xabc123", outcome.TxHash)
	assert.NotEmpty(t, outcome.SubmissionID)
	assert.NotEmpty(t, outcome.Fingerprint)
	assert.Equal(t, 1, fs.submitCalls)
	assert.Equal(t, 1, fl.recordCalls)

	// The submission record is destroyed once both writes resolve.
	assert.Zero(t, c.Tracker().InflightCount())
}

func TestSubmitStoreRejection(t *testing.T) {
	tests := []struct {
		name       string
		kind       models.RejectReason
		statusCode int
		reason     string
	}{
		{"closed", models.RejectClosed, http.StatusForbidden, "election has ended"},
		{"duplicate", models.RejectDuplicate, http.StatusConflict, "vote already cast"},
		{"unauthorized", models.RejectUnauthorized, http.StatusUnauthorized, "invalid authorization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{submitErr: &store.RejectError{
				Kind:       tt.kind,
				StatusCode: tt.statusCode,
				Reason:     tt.reason,
			}}
			fl := &fakeLedger{}
			c := NewCoordinator(fs, fl)

			outcome := c.Submit(context.Background(), testKey, testElection, testBallot)

			require.Equal(t, models.Rejected, outcome.State)
			assert.Equal(t, tt.kind, outcome.Reason)
			// The store's reason is surfaced verbatim.
			assert.Equal(t, tt.reason, outcome.Detail)
			// The ledger is never contacted after a store rejection.
			assert.Zero(t, fl.recordCalls)
		})
	}
}

func TestSubmitStoreUnreachable(t *testing.T) {
	fs := &fakeStore{submitErr: errors.New("connection refused")}
	fl := &fakeLedger{}
	c := NewCoordinator(fs, fl)

	outcome := c.Submit(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectUnavailable, outcome.Reason)
	assert.False(t, outcome.Reason.Terminal())
	assert.Zero(t, fl.recordCalls)
}

func TestSubmitLedgerFailure(t *testing.T) {
	fs := &fakeStore{}
	fl := &fakeLedger{recordErr: errors.New("transaction timed out")}
	c := NewCoordinator(fs, fl)

	outcome := c.Submit(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.StoreOnly, outcome.State)
	assert.Contains(t, outcome.LedgerError, "timed out")
	assert.Empty(t, outcome.TxHash)
	assert.Equal(t, 1, fs.submitCalls)
	assert.Zero(t, c.Tracker().InflightCount())
}

func TestSubmitMalformedKey(t *testing.T) {
	fs := &fakeStore{}
	fl := &fakeLedger{}
	c := NewCoordinator(fs, fl)

	outcome := c.Submit(context.Background(), "not-a-key", testElection, testBallot)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectUnauthorized, outcome.Reason)
	// Caught locally: neither system of record is contacted.
	assert.Zero(t, fs.submitCalls)
	assert.Zero(t, fl.recordCalls)
}

// storedVotes returns a store already holding the test ballot for the test
// key, the state every legitimate ledger retry starts from.
func storedVotes() map[models.CorrelationKey]string {
	return map[models.CorrelationKey]string{
		testKey: string(testBallot.Body),
	}
}

func TestRetryLedger(t *testing.T) {
	fs := &fakeStore{votes: storedVotes()}
	fl := &fakeLedger{}
	c := NewCoordinator(fs, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.FullySubmitted, outcome.State)
	assert.Equal(t, "0xabc123", outcome.TxHash)
	assert.Equal(t, 1, fl.recordCalls)
	// The append carries the store's bytes.
	assert.Equal(t, testBallot.Body, fl.lastPayload)
	// The retry never re-submits to the store.
	assert.Zero(t, fs.submitCalls)
}

func TestRetryLedgerAlreadyRecorded(t *testing.T) {
	fl := &fakeLedger{entries: []models.LedgerEntry{
		{Key: testKey, VoteData: string(testBallot.Body)},
	}}
	c := NewCoordinator(&fakeStore{votes: storedVotes()}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.FullySubmitted, outcome.State)
	// Idempotent no-op: no second append for the same key.
	assert.Zero(t, fl.recordCalls)
	assert.Empty(t, outcome.TxHash)
}

func TestRetryLedgerStillFailing(t *testing.T) {
	fl := &fakeLedger{recordErr: errors.New("nonce too low")}
	c := NewCoordinator(&fakeStore{votes: storedVotes()}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.StoreOnly, outcome.State)
	assert.Contains(t, outcome.LedgerError, "nonce too low")
}

func TestRetryLedgerDivergentBallot(t *testing.T) {
	// The store accepted {"vote":2}; the voter retries with a different
	// choice. Appending it would make the two ledgers permanently disagree,
	// so the retry is refused and nothing reaches the chain.
	fs := &fakeStore{votes: storedVotes()}
	fl := &fakeLedger{}
	c := NewCoordinator(fs, fl)

	divergent := models.EncodedBallot{
		Method: models.MethodPlurality,
		Body:   []byte(`{"vote":3}`),
	}
	outcome := c.RetryLedger(context.Background(), testKey, testElection, divergent)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectBallotMismatch, outcome.Reason)
	assert.Zero(t, fl.recordCalls)

	// Both systems of record still agree.
	v := NewVerifier(fs, fl)
	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)
	assert.NotEqual(t, models.VerdictMismatch, report.Verdict)
}

func TestRetryLedgerNoStoredBallot(t *testing.T) {
	// A retry only makes sense after the store accepted the ballot.
	fl := &fakeLedger{}
	c := NewCoordinator(&fakeStore{}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectNoBallot, outcome.Reason)
	assert.Zero(t, fl.recordCalls)
}

func TestRetryLedgerStoreUnreadable(t *testing.T) {
	fl := &fakeLedger{}
	c := NewCoordinator(&fakeStore{votesErr: errors.New("store down")}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectUnavailable, outcome.Reason)
	assert.Zero(t, fl.recordCalls)
}

func TestRetryLedgerLostAppendRace(t *testing.T) {
	// The append is rejected because a concurrent retry landed the same
	// entry first. The re-read finds it and the retry still resolves to
	// fully submitted.
	fl := &fakeLedger{
		recordErr: errors.New("vote already recorded"),
		lateEntries: []models.LedgerEntry{
			{Key: testKey, VoteData: string(testBallot.Body)},
		},
	}
	c := NewCoordinator(&fakeStore{votes: storedVotes()}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.FullySubmitted, outcome.State)
	assert.Empty(t, outcome.TxHash)
}

func TestRetryLedgerChainHoldsDifferingPayload(t *testing.T) {
	// The chain already carries a different payload for the key. A second
	// append cannot repair that; the retry is refused and the disagreement
	// is left for verification to surface.
	fl := &fakeLedger{entries: []models.LedgerEntry{
		{Key: testKey, VoteData: `{"vote":3}`},
	}}
	c := NewCoordinator(&fakeStore{votes: storedVotes()}, fl)

	outcome := c.RetryLedger(context.Background(), testKey, testElection, testBallot)

	require.Equal(t, models.Rejected, outcome.State)
	assert.Equal(t, models.RejectBallotMismatch, outcome.Reason)
	assert.Zero(t, fl.recordCalls)
}
