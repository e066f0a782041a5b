// Package config loads, normalizes, and validates ingestor configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INGESTOR_API_TOKEN (optionally sourced from a .env file). The Config type
// centralizes every knob the daemon and CLI need: engine concurrency and
// cancellation timing, submission limits, knowledge store chunking, and the
// optional NATS, ntfy, and inbox integrations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
