// Package ledger persists one row per successfully extracted source, keyed by
// (source hash, environment). The bypass validator reads it to decide whether
// extraction can be skipped for a re-ingested source.
package ledger
