package models

// SubmissionState discriminates the three ways a dual-write submission can
// resolve.
type SubmissionState string

const (
	// FullySubmitted: both the store and the ledger accepted the ballot.
	FullySubmitted SubmissionState = "fully_submitted"
	// StoreOnly: the store accepted the ballot but the ledger write failed.
	// The ballot is authoritative but not yet chain-verifiable; verification
	// will report a gap until a retry of the ledger write succeeds.
	StoreOnly SubmissionState = "store_only"
	// Rejected: the store refused the ballot. Nothing was written anywhere.
	Rejected SubmissionState = "rejected"
)

// RejectReason classifies why the store refused a ballot, or that it could
// not be reached at all.
type RejectReason string

const (
	RejectUnauthorized RejectReason = "unauthorized"
	RejectDuplicate    RejectReason = "duplicate"
	RejectClosed       RejectReason = "closed"
	// RejectUnavailable covers transport failures and unexpected store
	// responses. Unlike the three above it is not terminal for the ballot;
	// the voter may submit again.
	RejectUnavailable RejectReason = "store_unavailable"

	// RejectNoBallot is returned by a ledger retry when the store holds no
	// ballot for the key: there is nothing to append, the original
	// submission must be redone.
	RejectNoBallot RejectReason = "no_stored_ballot"
	// RejectBallotMismatch is returned by a ledger retry when the submitted
	// choice does not reproduce the payload the store accepted. The ledger
	// write embeds the store-accepted payload, so appending anything else
	// would make the two systems of record permanently disagree.
	RejectBallotMismatch RejectReason = "ballot_mismatch"
)

// Terminal reports whether resubmitting the same ballot is pointless.
func (r RejectReason) Terminal() bool {
	return r == RejectUnauthorized || r == RejectDuplicate || r == RejectClosed
}

// SubmissionOutcome is the coordinator's result value. Every submission
// resolves to exactly one of the three states; callers branch on State and
// must never see an error used for control flow instead.
type SubmissionOutcome struct {
	SubmissionID string          `json:"submission_id"`
	State        SubmissionState `json:"state"`

	// Reason and Detail are set when State is Rejected. Detail carries the
	// store's reason verbatim for display.
	Reason RejectReason `json:"reason,omitempty"`
	Detail string       `json:"detail,omitempty"`

	// LedgerError is set when State is StoreOnly.
	LedgerError string `json:"ledger_error,omitempty"`

	// TxHash is set when State is FullySubmitted and a ledger transaction was
	// sent (a retry that found the entry already on chain leaves it empty).
	TxHash string `json:"tx_hash,omitempty"`

	// Fingerprint is the Keccak-256 digest of the ballot payload, a receipt
	// the voter can compare against later verification output.
	Fingerprint string `json:"fingerprint,omitempty"`
}
