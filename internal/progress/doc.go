// Package progress defines the per-job and per-pass progress model for the
// six-pass ingestion pipeline, along with the callback protocol used to fan
// lifecycle events out to subscribers.
package progress
