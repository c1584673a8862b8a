// Package pipeline drives a source document through the six ingestion passes
// in order, publishing progress events, short-circuiting extraction when a
// prior run can be reused, and reducing every outcome to a single JobResult.
package pipeline
