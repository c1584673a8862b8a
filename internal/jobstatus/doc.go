// Package jobstatus persists queryable job records projected from live
// pipeline progress. Records live in two JSON documents (active and completed
// jobs) that are rewritten wholesale on every mutation, so the store survives
// process crashes with at most the last un-persisted mutation lost.
package jobstatus
