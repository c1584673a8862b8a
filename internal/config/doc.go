// Package config loads, validates, and normalizes the TOML configuration for
// the grimoire ingestion pipeline.
package config
