package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-gateway/models"
)

func TestVerifyMatch(t *testing.T) {
	fs := &fakeStore{votes: map[models.CorrelationKey]string{
		testKey: `{"vote":2}`,
	}}
	fl := &fakeLedger{entries: []models.LedgerEntry{
		{Key: "someoneelse", VoteData: `{"vote":1}`},
		{Key: testKey, VoteData: `{"vote":2}`},
	}}
	v := NewVerifier(fs, fl)

	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictMatch, report.Verdict)
	assert.True(t, report.StoreFound)
	assert.True(t, report.LedgerFound)
	assert.Equal(t, report.StoreFingerprint, report.LedgerFingerprint)
}

func TestVerifyBothAbsent(t *testing.T) {
	v := NewVerifier(&fakeStore{}, &fakeLedger{})

	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictBothAbsent, report.Verdict)
	assert.False(t, report.StoreFound)
	assert.False(t, report.LedgerFound)
	assert.Empty(t, report.StorePayload)
	assert.Empty(t, report.LedgerPayload)
}

func TestVerifyStoreOnly(t *testing.T) {
	// The state a store-only submission outcome leaves behind until a ledger
	// retry succeeds.
	fs := &fakeStore{votes: map[models.CorrelationKey]string{
		testKey: `{"vote":2}`,
	}}
	v := NewVerifier(fs, &fakeLedger{})

	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictStoreOnly, report.Verdict)
	assert.True(t, report.StoreFound)
	assert.False(t, report.LedgerFound)
}

func TestVerifyLedgerOnly(t *testing.T) {
	fl := &fakeLedger{entries: []models.LedgerEntry{
		{Key: testKey, VoteData: `{"vote":2}`},
	}}
	v := NewVerifier(&fakeStore{}, fl)

	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictLedgerOnly, report.Verdict)
}

func TestVerifyMismatch(t *testing.T) {
	fs := &fakeStore{votes: map[models.CorrelationKey]string{
		testKey: `{"vote":2}`,
	}}
	fl := &fakeLedger{entries: []models.LedgerEntry{
		{Key: testKey, VoteData: `{"vote":3}`},
	}}
	v := NewVerifier(fs, fl)

	report, err := v.Verify(context.Background(), testKey, testElection)
	require.NoError(t, err)

	// Never silently reconciled: both payloads are reported, neither wins.
	assert.Equal(t, models.VerdictMismatch, report.Verdict)
	assert.Equal(t, `{"vote":2}`, report.StorePayload)
	assert.Equal(t, `{"vote":3}`, report.LedgerPayload)
	assert.NotEqual(t, report.StoreFingerprint, report.LedgerFingerprint)
}

func TestVerifyReadFailures(t *testing.T) {
	_, err := NewVerifier(&fakeStore{votesErr: errors.New("store down")}, &fakeLedger{}).
		Verify(context.Background(), testKey, testElection)
	require.Error(t, err)

	_, err = NewVerifier(&fakeStore{}, &fakeLedger{entriesErr: errors.New("rpc down")}).
		Verify(context.Background(), testKey, testElection)
	require.Error(t, err)
}
