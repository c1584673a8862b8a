// Package main hosts the grimoire CLI entrypoint and command graph.
//
// The Cobra-based command tree wires configuration, logging, the job status
// store, the processing ledger, and the chunk index together at the edge, so
// the internal packages stay free of global state. Subcommands cover running
// the ingestion pipeline, inspecting active and historical jobs, sweeping
// stale records, and maintaining the ledger.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
