// Package passes ships the built-in handlers for the six ingestion passes.
// They operate on plain-text sources and produce the artifact layout the rest
// of the system expects, so the pipeline runs end to end without external
// extraction services.
package passes
