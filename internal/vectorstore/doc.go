// Package vectorstore defines the contract the pipeline needs from a vector
// backend and ships a SQLite-backed chunk index so the system runs end to end
// without external infrastructure.
package vectorstore
