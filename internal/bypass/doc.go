// Package bypass decides whether the expensive extraction pass can be skipped
// for a source that was fully processed before. The decision cross-checks the
// processing ledger against the live vector backend so a stale record never
// silently serves missing chunks.
package bypass
