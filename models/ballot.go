package models

// CorrelationKey is the pseudonymous voter identity shared by both systems of
// record: a one-way digest of the voter's email and one-time code. The raw
// credentials never travel past the deriver.
type CorrelationKey string

const correlationKeyLen = 64 // hex-encoded SHA-256

// Valid reports whether the key is a well-formed lowercase hex digest of the
// expected width. The store independently rejects malformed keys; this check
// only lets callers fail before any network round trip.
func (k CorrelationKey) Valid() bool {
	if len(k) != correlationKeyLen {
		return false
	}
	for _, c := range k {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (k CorrelationKey) String() string {
	return string(k)
}

// EncodedBallot is a method-specific canonical vote payload, ready to be
// posted to the store and appended to the ledger byte for byte.
type EncodedBallot struct {
	Method VotingMethod
	// Body is the JSON request body: {"vote": <candidate id>} for plurality,
	// {"vote": "<candidate id -> rank object>"} for ranked choice.
	Body []byte
}

// LedgerEntry is one record of the contract ledger's append-only log for an
// election.
type LedgerEntry struct {
	Key      CorrelationKey `json:"correlation_key"`
	VoteData string         `json:"vote_data"`
}
