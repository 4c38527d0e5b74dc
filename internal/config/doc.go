// Package config loads, normalizes, and validates livecap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as LIVECAP_NTFY_TOPIC. The Config type centralizes
// every knob the daemon and CLI need, and resolves per-streamer overrides
// (backend, naming template, segment policy, cover fetching) against the
// [download] defaults.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
