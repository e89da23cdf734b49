package models

// Verdict is the result of comparing both systems of record for one
// correlation key.
type Verdict string

const (
	// VerdictBothAbsent: the key appears in neither source.
	VerdictBothAbsent Verdict = "both_absent"
	// VerdictStoreOnly / VerdictLedgerOnly: the key appears in exactly one
	// source. Expected transiently after a store-only submission, persistent
	// disagreement otherwise.
	VerdictStoreOnly  Verdict = "store_only"
	VerdictLedgerOnly Verdict = "ledger_only"
	// VerdictMatch: both sources hold byte-identical payloads.
	VerdictMatch Verdict = "match"
	// VerdictMismatch: both sources hold the key with differing payloads.
	// This must never occur under correct operation and is surfaced as a hard
	// alarm; neither source is preferred.
	VerdictMismatch Verdict = "mismatch"
)

// ReconciliationReport is built fresh on every verification request and never
// persisted.
type ReconciliationReport struct {
	Key        CorrelationKey `json:"correlation_key"`
	ElectionID string         `json:"election_id"`

	StoreFound   bool   `json:"store_found"`
	StorePayload string `json:"store_payload,omitempty"`

	LedgerFound   bool   `json:"ledger_found"`
	LedgerPayload string `json:"ledger_payload,omitempty"`

	// Payload fingerprints, for compact display alongside the full payloads.
	StoreFingerprint  string `json:"store_fingerprint,omitempty"`
	LedgerFingerprint string `json:"ledger_fingerprint,omitempty"`

	Verdict Verdict `json:"verdict"`
}
